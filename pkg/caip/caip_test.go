package caip

import "testing"

func TestChainIdRoundTrip(t *testing.T) {
	for _, s := range []string{"eip155:1", "bip122:000000000019d6689c085ae165831e93", "cosmos:cosmoshub-3"} {
		id, err := ParseChainId(s)
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		if id.Render() != s {
			t.Fatalf("render(parse(%q)) = %q, want %q", s, id.Render(), s)
		}
	}
}

func TestAccountIdRoundTrip(t *testing.T) {
	s := "eip155:1:0x6b175474e89094c44da98b954eedeac495271d0"
	id, err := ParseAccountId(s)
	if err != nil {
		t.Fatal(err)
	}
	if id.Render() != s {
		t.Fatalf("render(parse(%q)) = %q, want %q", s, id.Render(), s)
	}
}

func TestAssetIdRoundTrip(t *testing.T) {
	s := "eip155:1/erc20:0x6b175474e89094c44da98b954eedeac495271d0"
	id, err := ParseAssetId(s)
	if err != nil {
		t.Fatal(err)
	}
	if id.Render() != s {
		t.Fatalf("render(parse(%q)) = %q, want %q", s, id.Render(), s)
	}
}

func TestAccountIdEqualityIgnoresEip155Case(t *testing.T) {
	a, err := ParseAccountId("eip155:1:0x6B175474E89094C44Da98b954EedeAC495271d0")
	if err != nil {
		t.Fatal(err)
	}
	b, err := ParseAccountId("eip155:1:0x6b175474e89094c44da98b954eedeac495271d0")
	if err != nil {
		t.Fatal(err)
	}
	if !a.Equals(b) {
		t.Fatal("expected eip155 accounts to compare equal regardless of case")
	}
	if a.Render() == b.Render() {
		t.Fatal("expected distinct renderings to be preserved verbatim")
	}
}

func TestParseErrorsReportSegmentAndPosition(t *testing.T) {
	_, err := ParseChainId("EIP155:1")
	if err == nil {
		t.Fatal("expected error for uppercase namespace")
	}
	pe, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if pe.Segment != "EIP155" {
		t.Fatalf("expected offending segment EIP155, got %q", pe.Segment)
	}
}

func TestMalformedAccountIdsRejected(t *testing.T) {
	cases := []string{"", "eip155", "eip155:", ":1", "eip155:1:"}
	for _, s := range cases {
		if _, err := ParseAccountId(s); err == nil {
			t.Fatalf("expected parse error for %q", s)
		}
	}
}
