// Ed25519<->X25519 conversion. Every did:key Ed25519 DID must also expose a
// deterministic X25519 key-agreement key so the same DID can both sign and
// receive AuthCrypt messages. The public-key conversion uses the birational
// map between the Edwards and Montgomery curves, implemented here via
// filippo.io/edwards25519's point arithmetic rather than re-deriving
// curve25519 field math by hand.
package keys

import (
	"crypto/rand"
	"crypto/sha512"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/curve25519"
)

// X25519PublicKey implements PublicKey and KeyAgreement for X25519
// key-agreement keys.
type X25519PublicKey struct{ raw [32]byte }

func (p X25519PublicKey) Type() Type    { return TypeX25519 }
func (p X25519PublicKey) Bytes() []byte { return p.raw[:] }
func (p X25519PublicKey) PublicKey() PublicKey { return p }

func (p X25519PublicKey) ECDH(peerPublicKey []byte) ([]byte, error) {
	return nil, errNoPrivateMaterial
}

// X25519KeyAgreement holds an X25519 private scalar and can derive shared
// secrets with a peer's public key (ECDH-ES).
type X25519KeyAgreement struct {
	priv [32]byte
	pub  X25519PublicKey
}

var _ KeyAgreement = (*X25519KeyAgreement)(nil)

// PublicKeyFromEd25519 derives the deterministic X25519 key-agreement
// public key corresponding to an Ed25519 verification key.
func PublicKeyFromEd25519(edPub []byte) (X25519PublicKey, error) {
	point, err := new(edwards25519.Point).SetBytes(edPub)
	if err != nil {
		return X25519PublicKey{}, err
	}
	var out X25519PublicKey
	copy(out.raw[:], point.BytesMontgomery())
	return out, nil
}

// KeyAgreementFromEd25519Seed derives the deterministic X25519
// key-agreement private key corresponding to an Ed25519 signing seed,
// using the standard SHA-512-then-clamp scalar derivation.
func KeyAgreementFromEd25519Seed(seed []byte) (*X25519KeyAgreement, error) {
	h := sha512.Sum512(seed)
	var scalar [32]byte
	copy(scalar[:], h[:32])
	scalar[0] &= 248
	scalar[31] &= 127
	scalar[31] |= 64

	pub, err := curve25519.X25519(scalar[:], curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	ka := &X25519KeyAgreement{priv: scalar}
	copy(ka.pub.raw[:], pub)
	return ka, nil
}

// NewEphemeralX25519 generates a fresh X25519 key-agreement keypair with
// no associated DID, used as the one-time sender key in AuthCrypt's
// ECDH-ES step.
func NewEphemeralX25519() (*X25519KeyAgreement, error) {
	var scalar [32]byte
	if _, err := rand.Read(scalar[:]); err != nil {
		return nil, err
	}
	scalar[0] &= 248
	scalar[31] &= 127
	scalar[31] |= 64

	pub, err := curve25519.X25519(scalar[:], curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	ka := &X25519KeyAgreement{priv: scalar}
	copy(ka.pub.raw[:], pub)
	return ka, nil
}

func (k *X25519KeyAgreement) PublicKey() PublicKey { return k.pub }

func (k *X25519KeyAgreement) ECDH(peerPublicKey []byte) ([]byte, error) {
	return curve25519.X25519(k.priv[:], peerPublicKey)
}

var errNoPrivateMaterial = &noPrivateMaterialError{}

type noPrivateMaterialError struct{}

func (e *noPrivateMaterialError) Error() string {
	return "x25519: public key has no private material to perform ECDH"
}
