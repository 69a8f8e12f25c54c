package keys

import (
	"crypto/ecdsa"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Secp256k1PublicKey implements PublicKey for secp256k1 keys, the curve
// did:pkh eip155 accounts and did:key zQ3s... keys both use.
type Secp256k1PublicKey struct{ pub *ecdsa.PublicKey }

func NewSecp256k1PublicKey(pub *ecdsa.PublicKey) Secp256k1PublicKey {
	return Secp256k1PublicKey{pub: pub}
}

func NewSecp256k1PublicKeyFromBytes(raw []byte) (Secp256k1PublicKey, error) {
	pub, err := ethcrypto.UnmarshalPubkey(raw)
	if err != nil {
		return Secp256k1PublicKey{}, fmt.Errorf("unmarshal secp256k1 public key: %w", err)
	}
	return Secp256k1PublicKey{pub: pub}, nil
}

func (p Secp256k1PublicKey) Type() Type    { return TypeSecp256k1 }
func (p Secp256k1PublicKey) Bytes() []byte { return ethcrypto.FromECDSAPub(p.pub) }

// EthereumAddress returns the 20-byte Ethereum-style address derived from
// this public key, used to render CAIP-10 eip155 account ids.
func (p Secp256k1PublicKey) EthereumAddress() [20]byte {
	return ethcrypto.PubkeyToAddress(*p.pub)
}

// Secp256k1Signer is the secp256k1 implementation of Signer, generalizing
// the teacher's EthereumSigner (pkg/sign/eth_signer.go) from an
// Ethereum-transaction signer into a DID verification-method signer.
type Secp256k1Signer struct {
	priv *ecdsa.PrivateKey
	pub  Secp256k1PublicKey
}

var _ Signer = (*Secp256k1Signer)(nil)

func NewSecp256k1Signer() (*Secp256k1Signer, error) {
	priv, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating secp256k1 key: %w", err)
	}
	return &Secp256k1Signer{priv: priv, pub: Secp256k1PublicKey{pub: &priv.PublicKey}}, nil
}

// NewSecp256k1SignerFromHex builds a signer from a hex-encoded private key,
// mirroring the teacher's NewEthereumSigner constructor.
func NewSecp256k1SignerFromHex(hexKey string) (*Secp256k1Signer, error) {
	priv, err := ethcrypto.HexToECDSA(trimHexPrefix(hexKey))
	if err != nil {
		return nil, fmt.Errorf("parsing secp256k1 private key: %w", err)
	}
	return &Secp256k1Signer{priv: priv, pub: Secp256k1PublicKey{pub: &priv.PublicKey}}, nil
}

func (s *Secp256k1Signer) PublicKey() PublicKey { return s.pub }

// Sign signs the Keccak256 hash of data and returns a 65-byte
// (r||s||v) recoverable signature, same layout the teacher's
// EthereumSigner.Sign produces.
func (s *Secp256k1Signer) Sign(data []byte) (Signature, error) {
	hash := ethcrypto.Keccak256(data)
	sig, err := ethcrypto.Sign(hash, s.priv)
	if err != nil {
		return nil, err
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return Signature(sig), nil
}

func verifySecp256k1(pub PublicKey, data []byte, sig Signature) error {
	p, ok := pub.(Secp256k1PublicKey)
	if !ok {
		return fmt.Errorf("expected secp256k1 public key, got %T", pub)
	}
	if len(sig) != 65 {
		return fmt.Errorf("invalid secp256k1 signature length %d", len(sig))
	}
	localSig := make([]byte, 65)
	copy(localSig, sig)
	if localSig[64] >= 27 {
		localSig[64] -= 27
	}
	hash := ethcrypto.Keccak256(data)
	recovered, err := ethcrypto.SigToPub(hash, localSig)
	if err != nil {
		return fmt.Errorf("secp256k1 signature recovery failed: %w", err)
	}
	if ethcrypto.PubkeyToAddress(*recovered) != ethcrypto.PubkeyToAddress(*p.pub) {
		return fmt.Errorf("secp256k1 signature verification failed")
	}
	return nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
