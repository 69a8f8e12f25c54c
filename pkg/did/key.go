package did

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/multiformats/go-multibase"

	"github.com/tap-rsvp/tap-go/pkg/keys"
)

// multicodec code points used by did:key, per the multicodec table
// (https://github.com/multiformats/multicodec/blob/master/table.csv).
// tap-go only needs the four key types TAP agents may present.
const (
	codecEd25519Pub   = 0xed
	codecX25519Pub    = 0xec
	codecSecp256k1Pub = 0xe7
	codecP256Pub      = 0x1200
)

// KeyResolver resolves did:key identifiers without any network access:
// the DID itself is a self-certifying encoding of the public key.
type KeyResolver struct{}

func NewKeyResolver() *KeyResolver { return &KeyResolver{} }

func (KeyResolver) Resolve(_ context.Context, did string) (*Document, error) {
	const prefix = "did:key:"
	if !strings.HasPrefix(did, prefix) {
		return nil, fmt.Errorf("did: %q is not a did:key identifier", did)
	}
	fragment := strings.TrimPrefix(did, prefix)

	_, raw, err := multibase.Decode(fragment)
	if err != nil {
		return nil, &NotFoundError{DID: did}
	}

	code, n := binary.Uvarint(raw)
	if n <= 0 {
		return nil, &NotFoundError{DID: did}
	}
	keyBytes := raw[n:]

	vmID := did + "#" + fragment
	doc := &Document{
		ID:             did,
		Authentication: []string{vmID},
	}

	switch code {
	case codecEd25519Pub:
		doc.VerificationMethod = append(doc.VerificationMethod, VerificationMethod{
			ID:                 vmID,
			Type:               "Ed25519VerificationKey2020",
			Controller:         did,
			PublicKeyMultibase: fragment,
		})
		if x25519Pub, err := keys.PublicKeyFromEd25519(keyBytes); err == nil {
			kaFragment, encErr := multibase.Encode(multibase.Base58BTC, encodeMulticodec(codecX25519Pub, x25519Pub.Bytes()))
			if encErr == nil {
				kaID := did + "#" + kaFragment
				doc.KeyAgreement = append(doc.KeyAgreement, kaID)
				doc.VerificationMethod = append(doc.VerificationMethod, VerificationMethod{
					ID:                 kaID,
					Type:               "X25519KeyAgreementKey2020",
					Controller:         did,
					PublicKeyMultibase: kaFragment,
				})
			}
		}
	case codecX25519Pub:
		doc.VerificationMethod = append(doc.VerificationMethod, VerificationMethod{
			ID:                 vmID,
			Type:               "X25519KeyAgreementKey2020",
			Controller:         did,
			PublicKeyMultibase: fragment,
		})
		doc.KeyAgreement = append(doc.KeyAgreement, vmID)
		doc.Authentication = nil
	case codecSecp256k1Pub:
		doc.VerificationMethod = append(doc.VerificationMethod, VerificationMethod{
			ID:                 vmID,
			Type:               "EcdsaSecp256k1VerificationKey2019",
			Controller:         did,
			PublicKeyMultibase: fragment,
		})
	case codecP256Pub:
		doc.VerificationMethod = append(doc.VerificationMethod, VerificationMethod{
			ID:                 vmID,
			Type:               "P256Key2021",
			Controller:         did,
			PublicKeyMultibase: fragment,
		})
	default:
		return nil, fmt.Errorf("did: %q: unsupported multicodec key type 0x%x", did, code)
	}

	return doc, nil
}

func encodeMulticodec(code uint64, key []byte) []byte {
	buf := make([]byte, binary.MaxVarintLen64+len(key))
	n := binary.PutUvarint(buf, code)
	return append(buf[:n], key...)
}
