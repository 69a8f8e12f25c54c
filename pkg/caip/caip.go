// Package caip parses, validates and renders CAIP-2 (chain id), CAIP-10
// (account id) and CAIP-19 (asset id) identifiers. It is pure computation
// with no I/O: no dependency in the retrieval pack vendors a CAIP parser,
// and the grammars are small fixed regular languages, so a hand-written
// parser is the grounded choice here (see DESIGN.md).
package caip

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	namespaceRe = regexp.MustCompile(`^[-a-z0-9]{3,8}$`)
	referenceRe = regexp.MustCompile(`^[-_a-zA-Z0-9]{1,32}$`)
	addressRe   = regexp.MustCompile(`^[a-zA-Z0-9]{1,64}$`)
	// assetReferenceRe is the CAIP-19 asset_reference grammar.
	assetReferenceRe = regexp.MustCompile(`^[-.%a-zA-Z0-9]{1,128}$`)
)

// ParseError reports the offending segment and its byte offset within the
// original identifier string.
type ParseError struct {
	Input   string
	Segment string
	Pos     int
	Reason  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("caip: invalid %q at position %d (%q): %s", e.Input, e.Pos, e.Segment, e.Reason)
}

// ChainId identifies a blockchain network, e.g. "eip155:1".
type ChainId struct {
	Namespace string
	Reference string
}

// ParseChainId parses a CAIP-2 chain id.
func ParseChainId(s string) (ChainId, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return ChainId{}, &ParseError{Input: s, Segment: s, Pos: 0, Reason: "expected namespace:reference"}
	}
	ns, ref := parts[0], parts[1]
	if !namespaceRe.MatchString(ns) {
		return ChainId{}, &ParseError{Input: s, Segment: ns, Pos: 0, Reason: "invalid namespace"}
	}
	if !referenceRe.MatchString(ref) {
		return ChainId{}, &ParseError{Input: s, Segment: ref, Pos: len(ns) + 1, Reason: "invalid reference"}
	}
	return ChainId{Namespace: ns, Reference: ref}, nil
}

// Render returns the canonical "namespace:reference" string.
func (c ChainId) Render() string { return c.Namespace + ":" + c.Reference }

// Validate reports whether c's fields satisfy the CAIP-2 grammar.
func (c ChainId) Validate() error {
	if !namespaceRe.MatchString(c.Namespace) {
		return &ParseError{Input: c.Render(), Segment: c.Namespace, Pos: 0, Reason: "invalid namespace"}
	}
	if !referenceRe.MatchString(c.Reference) {
		return &ParseError{Input: c.Render(), Segment: c.Reference, Pos: len(c.Namespace) + 1, Reason: "invalid reference"}
	}
	return nil
}

// Equals compares two chain ids for equality. Namespaces and references
// compare case-sensitively except eip155, whose reference is a decimal
// chain id and therefore already case-insensitive by construction.
func (c ChainId) Equals(other ChainId) bool {
	return c.Namespace == other.Namespace && c.Reference == other.Reference
}

// AccountId identifies an account on a specific chain, e.g.
// "eip155:1:0x6b175474e89094c44da98b954eedeac495271d0".
type AccountId struct {
	Chain   ChainId
	Address string
}

// ParseAccountId parses a CAIP-10 account id.
func ParseAccountId(s string) (AccountId, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return AccountId{}, &ParseError{Input: s, Segment: s, Pos: 0, Reason: "expected namespace:reference:address"}
	}
	chain, err := ParseChainId(parts[0] + ":" + parts[1])
	if err != nil {
		return AccountId{}, err
	}
	addr := parts[2]
	if !addressRe.MatchString(addr) {
		return AccountId{}, &ParseError{Input: s, Segment: addr, Pos: len(parts[0]) + len(parts[1]) + 2, Reason: "invalid address"}
	}
	return AccountId{Chain: chain, Address: addr}, nil
}

// Render returns the canonical "namespace:reference:address" string,
// rendering the address verbatim as supplied.
func (a AccountId) Render() string { return a.Chain.Render() + ":" + a.Address }

func (a AccountId) Validate() error {
	if err := a.Chain.Validate(); err != nil {
		return err
	}
	if !addressRe.MatchString(a.Address) {
		return &ParseError{Input: a.Render(), Segment: a.Address, Pos: 0, Reason: "invalid address"}
	}
	return nil
}

// Equals compares two account ids. eip155 addresses are compared
// case-insensitively (checksummed vs. lowercase hex both refer to the same
// account) but always rendered verbatim.
func (a AccountId) Equals(other AccountId) bool {
	if !a.Chain.Equals(other.Chain) {
		return false
	}
	if a.Chain.Namespace == "eip155" {
		return common.HexToAddress(a.Address) == common.HexToAddress(other.Address)
	}
	return a.Address == other.Address
}

// AssetId identifies a specific asset on a chain, e.g.
// "eip155:1/erc20:0x6b175474e89094c44da98b954eedeac495271d0".
type AssetId struct {
	Chain          ChainId
	AssetNamespace string
	AssetReference string
}

// ParseAssetId parses a CAIP-19 asset id.
func ParseAssetId(s string) (AssetId, error) {
	chainAndAsset := strings.SplitN(s, "/", 2)
	if len(chainAndAsset) != 2 {
		return AssetId{}, &ParseError{Input: s, Segment: s, Pos: 0, Reason: "expected chain/asset_namespace:asset_reference"}
	}
	chain, err := ParseChainId(chainAndAsset[0])
	if err != nil {
		return AssetId{}, err
	}
	assetParts := strings.SplitN(chainAndAsset[1], ":", 2)
	if len(assetParts) != 2 {
		pos := len(chainAndAsset[0]) + 1
		return AssetId{}, &ParseError{Input: s, Segment: chainAndAsset[1], Pos: pos, Reason: "expected asset_namespace:asset_reference"}
	}
	assetNs, assetRef := assetParts[0], assetParts[1]
	if !namespaceRe.MatchString(assetNs) {
		pos := len(chainAndAsset[0]) + 1
		return AssetId{}, &ParseError{Input: s, Segment: assetNs, Pos: pos, Reason: "invalid asset namespace"}
	}
	if !assetReferenceRe.MatchString(assetRef) {
		pos := len(chainAndAsset[0]) + 1 + len(assetNs) + 1
		return AssetId{}, &ParseError{Input: s, Segment: assetRef, Pos: pos, Reason: "invalid asset reference"}
	}
	return AssetId{Chain: chain, AssetNamespace: assetNs, AssetReference: assetRef}, nil
}

// Render returns the canonical "chain/asset_namespace:asset_reference" string.
func (a AssetId) Render() string {
	return a.Chain.Render() + "/" + a.AssetNamespace + ":" + a.AssetReference
}

func (a AssetId) Validate() error {
	if err := a.Chain.Validate(); err != nil {
		return err
	}
	if !namespaceRe.MatchString(a.AssetNamespace) {
		return &ParseError{Input: a.Render(), Segment: a.AssetNamespace, Pos: 0, Reason: "invalid asset namespace"}
	}
	if !assetReferenceRe.MatchString(a.AssetReference) {
		return &ParseError{Input: a.Render(), Segment: a.AssetReference, Pos: 0, Reason: "invalid asset reference"}
	}
	return nil
}

func (a AssetId) Equals(other AssetId) bool {
	if !a.Chain.Equals(other.Chain) {
		return false
	}
	if a.Chain.Namespace == "eip155" {
		return strings.EqualFold(a.AssetNamespace, other.AssetNamespace) &&
			common.HexToAddress(a.AssetReference) == common.HexToAddress(other.AssetReference)
	}
	return a.AssetNamespace == other.AssetNamespace && a.AssetReference == other.AssetReference
}
