package pack

import (
	"encoding/binary"
	"fmt"

	"github.com/multiformats/go-multibase"

	"github.com/tap-rsvp/tap-go/pkg/did"
	"github.com/tap-rsvp/tap-go/pkg/keys"
)

// publicKeyFromVerificationMethod decodes the multicodec+multibase key
// material a did:key or did:web verification method carries into the
// concrete keys.PublicKey it represents.
func publicKeyFromVerificationMethod(vm did.VerificationMethod) (keys.PublicKey, error) {
	if vm.PublicKeyMultibase == "" {
		return nil, fmt.Errorf("pack: verification method %s has no publicKeyMultibase", vm.ID)
	}
	_, raw, err := multibase.Decode(vm.PublicKeyMultibase)
	if err != nil {
		return nil, fmt.Errorf("pack: decoding multibase key on %s: %w", vm.ID, err)
	}
	code, n := binary.Uvarint(raw)
	if n <= 0 {
		return nil, fmt.Errorf("pack: malformed multicodec prefix on %s", vm.ID)
	}
	keyBytes := raw[n:]

	switch code {
	case 0xed: // ed25519-pub
		return keys.NewEd25519PublicKey(keyBytes)
	case 0xe7: // secp256k1-pub
		return keys.NewSecp256k1PublicKeyFromBytes(keyBytes)
	case 0x1200: // p256-pub
		return keys.NewP256PublicKeyFromBytes(keyBytes)
	default:
		return nil, fmt.Errorf("pack: unsupported verification key codec 0x%x on %s", code, vm.ID)
	}
}

// keyAgreementPublicFromVerificationMethod decodes an X25519 key
// agreement verification method's raw public key bytes.
func keyAgreementPublicFromVerificationMethod(vm did.VerificationMethod) ([]byte, error) {
	if vm.PublicKeyMultibase == "" {
		return nil, fmt.Errorf("pack: key agreement method %s has no publicKeyMultibase", vm.ID)
	}
	_, raw, err := multibase.Decode(vm.PublicKeyMultibase)
	if err != nil {
		return nil, fmt.Errorf("pack: decoding multibase key on %s: %w", vm.ID, err)
	}
	code, n := binary.Uvarint(raw)
	if n <= 0 || code != 0xec { // x25519-pub
		return nil, fmt.Errorf("pack: verification method %s is not an x25519 key agreement key", vm.ID)
	}
	return raw[n:], nil
}
