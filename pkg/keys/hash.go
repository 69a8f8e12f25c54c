package keys

import "crypto/sha256"

// hashForP256 is the digest ES256 signs over, per RFC 7518 §3.4.
func hashForP256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}
