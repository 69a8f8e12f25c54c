// Package keys provides the method-agnostic Signer/PublicKey abstraction
// that backs every DID verification and key-agreement method tap-go
// supports. It generalizes the clearnode reference program's
// pkg/sign.Signer/PublicKey/Address interfaces (there: Ethereum-only) to
// three signing key types plus X25519 for key agreement: Ed25519, P-256
// and secp256k1.
package keys

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Type identifies a key algorithm.
type Type uint8

const (
	TypeEd25519 Type = iota
	TypeP256
	TypeSecp256k1
	// TypeX25519 identifies a key-agreement-only key, never used to sign.
	TypeX25519
)

func (t Type) String() string {
	switch t {
	case TypeEd25519:
		return "Ed25519"
	case TypeP256:
		return "P-256"
	case TypeSecp256k1:
		return "secp256k1"
	case TypeX25519:
		return "X25519"
	default:
		return "unknown"
	}
}

// JWSAlg returns the JOSE "alg" header value signatures of this key type
// use when packed as a JWS.
func (t Type) JWSAlg() (string, error) {
	switch t {
	case TypeEd25519:
		return "EdDSA", nil
	case TypeP256:
		return "ES256", nil
	case TypeSecp256k1:
		return "ES256K", nil
	default:
		return "", fmt.Errorf("key type %s cannot sign", t)
	}
}

// PublicKey is a verification or key-agreement public key.
type PublicKey interface {
	Type() Type
	// Bytes returns the raw (non-multibase-encoded) public key material.
	Bytes() []byte
}

// Signer produces signatures over arbitrary byte strings using a held
// private key.
type Signer interface {
	PublicKey() PublicKey
	Sign(data []byte) (Signature, error)
}

// Verifier checks a signature against a public key of the same type.
type Verifier interface {
	Verify(pub PublicKey, data []byte, sig Signature) error
}

// KeyAgreement derives a shared secret with a peer's key-agreement public
// key, for use by the AuthCrypt packing mode.
type KeyAgreement interface {
	PublicKey() PublicKey
	ECDH(peerPublicKey []byte) ([]byte, error)
}

// Signature is a raw signature byte string. It marshals as a hex string,
// the same wire representation the teacher's pkg/sign.Signature uses.
type Signature []byte

func (s Signature) String() string { return hexutil.Encode(s) }

func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Signature) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	decoded, err := hexutil.Decode(str)
	if err != nil {
		return err
	}
	*s = decoded
	return nil
}

// VerifyFor verifies sig over data against pub, dispatching on pub's type.
func VerifyFor(pub PublicKey, data []byte, sig Signature) error {
	switch pub.Type() {
	case TypeEd25519:
		return verifyEd25519(pub, data, sig)
	case TypeP256:
		return verifyP256(pub, data, sig)
	case TypeSecp256k1:
		return verifySecp256k1(pub, data, sig)
	default:
		return fmt.Errorf("key type %s cannot verify signatures", pub.Type())
	}
}
