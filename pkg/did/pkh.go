package did

import (
	"context"
	"fmt"
	"strings"

	"github.com/tap-rsvp/tap-go/pkg/caip"
)

// PkhResolver resolves did:pkh identifiers without any network access.
// A did:pkh identifier is literally a CAIP-10 account id with the
// "did:pkh:" prefix in place of nothing, so resolution is pure parsing:
// the verification method is derived straight from the account address.
type PkhResolver struct{}

func NewPkhResolver() *PkhResolver { return &PkhResolver{} }

func (PkhResolver) Resolve(_ context.Context, did string) (*Document, error) {
	const prefix = "did:pkh:"
	if !strings.HasPrefix(did, prefix) {
		return nil, fmt.Errorf("did: %q is not a did:pkh identifier", did)
	}
	accountRef := strings.TrimPrefix(did, prefix)

	account, err := caip.ParseAccountId(accountRef)
	if err != nil {
		return nil, &NotFoundError{DID: did}
	}

	vmID := did + "#blockchainAccountId"
	return &Document{
		ID: did,
		VerificationMethod: []VerificationMethod{
			{
				ID:         vmID,
				Type:       blockchainVerificationType(account.Chain.Namespace),
				Controller: did,
			},
		},
		Authentication: []string{vmID},
	}, nil
}

func blockchainVerificationType(namespace string) string {
	if namespace == "eip155" {
		return "EcdsaSecp256k1RecoveryMethod2020"
	}
	return "BlockchainVerificationMethod2021"
}
