package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
)

// Ed25519PublicKey implements PublicKey for Ed25519 verification keys.
type Ed25519PublicKey struct{ raw ed25519.PublicKey }

func NewEd25519PublicKey(raw []byte) (Ed25519PublicKey, error) {
	if len(raw) != ed25519.PublicKeySize {
		return Ed25519PublicKey{}, fmt.Errorf("invalid ed25519 public key length %d", len(raw))
	}
	return Ed25519PublicKey{raw: ed25519.PublicKey(raw)}, nil
}

func (p Ed25519PublicKey) Type() Type   { return TypeEd25519 }
func (p Ed25519PublicKey) Bytes() []byte { return []byte(p.raw) }

// Ed25519Signer is the Ed25519 implementation of Signer.
type Ed25519Signer struct {
	priv ed25519.PrivateKey
	pub  Ed25519PublicKey
}

var _ Signer = (*Ed25519Signer)(nil)

// NewEd25519Signer generates a fresh Ed25519 key pair, used by
// agent.NewEphemeral.
func NewEd25519Signer() (*Ed25519Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating ed25519 key: %w", err)
	}
	return &Ed25519Signer{priv: priv, pub: Ed25519PublicKey{raw: pub}}, nil
}

// NewEd25519SignerFromSeed builds a signer from a 32-byte seed, used by
// secrets resolvers that persist raw key material.
func NewEd25519SignerFromSeed(seed []byte) (*Ed25519Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid ed25519 seed length %d", len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &Ed25519Signer{priv: priv, pub: Ed25519PublicKey{raw: pub}}, nil
}

func (s *Ed25519Signer) PublicKey() PublicKey { return s.pub }

func (s *Ed25519Signer) Sign(data []byte) (Signature, error) {
	return Signature(ed25519.Sign(s.priv, data)), nil
}

// Seed returns the raw 32-byte seed backing this signer.
func (s *Ed25519Signer) Seed() []byte { return s.priv.Seed() }

func verifyEd25519(pub PublicKey, data []byte, sig Signature) error {
	p, ok := pub.(Ed25519PublicKey)
	if !ok {
		return fmt.Errorf("expected ed25519 public key, got %T", pub)
	}
	if !ed25519.Verify(p.raw, data, sig) {
		return fmt.Errorf("ed25519 signature verification failed")
	}
	return nil
}
