package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"math/big"
)

// P256PublicKey implements PublicKey for NIST P-256 (secp256r1) keys.
type P256PublicKey struct{ pub *ecdsa.PublicKey }

func NewP256PublicKey(pub *ecdsa.PublicKey) P256PublicKey { return P256PublicKey{pub: pub} }

// NewP256PublicKeyFromBytes parses an uncompressed SEC1 point.
func NewP256PublicKeyFromBytes(raw []byte) (P256PublicKey, error) {
	curve := elliptic.P256()
	x, y := elliptic.Unmarshal(curve, raw)
	if x == nil {
		return P256PublicKey{}, fmt.Errorf("invalid P-256 public key encoding")
	}
	return P256PublicKey{pub: &ecdsa.PublicKey{Curve: curve, X: x, Y: y}}, nil
}

func (p P256PublicKey) Type() Type    { return TypeP256 }
func (p P256PublicKey) Bytes() []byte { return elliptic.Marshal(p.pub.Curve, p.pub.X, p.pub.Y) }

// P256Signer is the P-256 implementation of Signer, producing raw
// (r||s) fixed-length signatures.
type P256Signer struct {
	priv *ecdsa.PrivateKey
	pub  P256PublicKey
}

var _ Signer = (*P256Signer)(nil)

func NewP256Signer() (*P256Signer, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating P-256 key: %w", err)
	}
	return &P256Signer{priv: priv, pub: P256PublicKey{pub: &priv.PublicKey}}, nil
}

func (s *P256Signer) PublicKey() PublicKey { return s.pub }

func (s *P256Signer) Sign(data []byte) (Signature, error) {
	r, ss, err := ecdsa.Sign(rand.Reader, s.priv, hashForP256(data))
	if err != nil {
		return nil, err
	}
	return Signature(concatRS(r, ss, 32)), nil
}

func verifyP256(pub PublicKey, data []byte, sig Signature) error {
	p, ok := pub.(P256PublicKey)
	if !ok {
		return fmt.Errorf("expected P-256 public key, got %T", pub)
	}
	if len(sig) != 64 {
		return fmt.Errorf("invalid P-256 signature length %d", len(sig))
	}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	if !ecdsa.Verify(p.pub, hashForP256(data), r, s) {
		return fmt.Errorf("P-256 signature verification failed")
	}
	return nil
}

func concatRS(r, s *big.Int, size int) []byte {
	out := make([]byte, size*2)
	r.FillBytes(out[:size])
	s.FillBytes(out[size:])
	return out
}
