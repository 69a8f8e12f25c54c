package did

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/multiformats/go-multibase"

	"github.com/tap-rsvp/tap-go/pkg/keys"
)

func mustEd25519KeyDID(t *testing.T) string {
	t.Helper()
	signer, err := keys.NewEd25519Signer()
	if err != nil {
		t.Fatalf("generate signer: %v", err)
	}
	raw := signer.PublicKey().Bytes()
	encoded := encodeMulticodec(codecEd25519Pub, raw)
	fragment, err := multibase.Encode(multibase.Base58BTC, encoded)
	if err != nil {
		t.Fatalf("multibase encode: %v", err)
	}
	return "did:key:" + fragment
}

func TestKeyResolverProducesVerificationAndKeyAgreement(t *testing.T) {
	didStr := mustEd25519KeyDID(t)
	doc, err := NewKeyResolver().Resolve(context.Background(), didStr)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if doc.ID != didStr {
		t.Errorf("doc id = %q, want %q", doc.ID, didStr)
	}
	if len(doc.VerificationMethod) != 2 {
		t.Fatalf("expected 2 verification methods (sign + key agreement), got %d", len(doc.VerificationMethod))
	}
	if len(doc.KeyAgreement) != 1 {
		t.Errorf("expected 1 key agreement entry, got %d", len(doc.KeyAgreement))
	}
}

func TestKeyResolverRejectsMalformedDID(t *testing.T) {
	_, err := NewKeyResolver().Resolve(context.Background(), "did:key:not-multibase!!")
	if err == nil {
		t.Error("expected error for malformed did:key identifier")
	}
}

func TestCompositeResolverDispatchesByMethod(t *testing.T) {
	c := NewCompositeResolver(NewKeyResolver(), nil, NewPkhResolver())

	if _, err := c.Resolve(context.Background(), "did:web:example.com"); err == nil {
		t.Error("expected UnsupportedMethodError when web resolver is nil")
	} else if _, ok := err.(*UnsupportedMethodError); !ok {
		t.Errorf("expected UnsupportedMethodError, got %T: %v", err, err)
	}

	didStr := mustEd25519KeyDID(t)
	if _, err := c.Resolve(context.Background(), didStr); err != nil {
		t.Errorf("expected did:key to dispatch successfully: %v", err)
	}
}

func TestPkhResolverFromCAIP10Account(t *testing.T) {
	didStr := "did:pkh:eip155:1:0xab5801a7d398351b8be11c439e05c5b3259aec9b"
	doc, err := NewPkhResolver().Resolve(context.Background(), didStr)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(doc.VerificationMethod) != 1 {
		t.Fatalf("expected 1 verification method, got %d", len(doc.VerificationMethod))
	}
	if doc.VerificationMethod[0].Type != "EcdsaSecp256k1RecoveryMethod2020" {
		t.Errorf("verification method type = %q", doc.VerificationMethod[0].Type)
	}
}

func TestResolveServiceEndpointPrefersDIDCommMessaging(t *testing.T) {
	mustRaw := func(v string) json.RawMessage {
		b, _ := json.Marshal(v)
		return b
	}
	doc := &Document{
		Service: []Service{
			{ID: "#other", Type: "LinkedDomains", ServiceEndpoint: mustRaw("https://example.com/other")},
			{ID: "#didcomm", Type: "DIDCommMessaging", ServiceEndpoint: mustRaw("https://example.com/didcomm")},
		},
	}
	endpoint, ok := ResolveServiceEndpoint(doc)
	if !ok || endpoint != "https://example.com/didcomm" {
		t.Errorf("endpoint = %q, ok=%v, want https://example.com/didcomm", endpoint, ok)
	}
}

func TestResolveServiceEndpointFallsBackToFirstURL(t *testing.T) {
	mustRaw := func(v string) json.RawMessage {
		b, _ := json.Marshal(v)
		return b
	}
	doc := &Document{
		Service: []Service{
			{ID: "#other", Type: "LinkedDomains", ServiceEndpoint: mustRaw("https://example.com/other")},
		},
	}
	endpoint, ok := ResolveServiceEndpoint(doc)
	if !ok || endpoint != "https://example.com/other" {
		t.Errorf("endpoint = %q, ok=%v, want fallback to first URL", endpoint, ok)
	}
}

func TestResolveServiceEndpointNoneFound(t *testing.T) {
	doc := &Document{}
	if _, ok := ResolveServiceEndpoint(doc); ok {
		t.Error("expected ok=false for document with no services")
	}
}
