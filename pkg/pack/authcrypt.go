package pack

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/tap-rsvp/tap-go/pkg/keys"
	"github.com/tap-rsvp/tap-go/pkg/message"
)

const (
	algECDHESA256KW = "ECDH-ES+A256KW"
	encA256GCM      = "A256GCM"
)

type jweEpk struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
}

// jweHeader is the JWE protected header for tap-go's AuthCrypt mode.
// Skid carries the senderKid passed to Pack and is bound into the key
// derivation. The sender's own key takes no part in the encryption, the
// content is not signed, and unpack does not check Skid, so the container
// does not authenticate its sender to the recipient.
type jweHeader struct {
	Alg  string `json:"alg"`
	Enc  string `json:"enc"`
	Kid  string `json:"kid"`
	Skid string `json:"skid,omitempty"`
	Epk  jweEpk `json:"epk"`
}

// jweContainer is the flattened JSON Serialization of a JWE (RFC 7516
// §7.2.2), single recipient.
type jweContainer struct {
	Protected    string `json:"protected"`
	EncryptedKey string `json:"encrypted_key"`
	IV           string `json:"iv"`
	Ciphertext   string `json:"ciphertext"`
	Tag          string `json:"tag"`
}

func (p *Packer) packAuthCrypt(ctx context.Context, env message.Envelope, senderKid, recipientKid string) ([]byte, error) {
	if recipientKid == "" {
		return nil, fmt.Errorf("pack: authcrypt requires a recipient key id")
	}

	doc, err := p.DIDs.Resolve(ctx, didOf(recipientKid))
	if err != nil {
		return nil, &CryptoError{Code: CodeUnknownKid, Err: err}
	}
	vm, ok := doc.FindVerificationMethod(recipientKid)
	if !ok {
		return nil, &CryptoError{Code: CodeUnknownKid, Err: fmt.Errorf("key agreement method %s not found", recipientKid)}
	}
	recipientPub, err := keyAgreementPublicFromVerificationMethod(vm)
	if err != nil {
		return nil, &CryptoError{Code: CodeAlgorithmMismatch, Err: err}
	}

	ephemeral, err := keys.NewEphemeralX25519()
	if err != nil {
		return nil, fmt.Errorf("pack: generate ephemeral key: %w", err)
	}
	sharedSecret, err := ephemeral.ECDH(recipientPub)
	if err != nil {
		return nil, &CryptoError{Code: CodeDecryptFailed, Err: err}
	}

	header := jweHeader{
		Alg:  algECDHESA256KW,
		Enc:  encA256GCM,
		Kid:  recipientKid,
		Skid: senderKid,
		Epk:  jweEpk{Kty: "OKP", Crv: "X25519", X: base64.RawURLEncoding.EncodeToString(ephemeral.PublicKey().Bytes())},
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("pack: marshal jwe header: %w", err)
	}
	protectedB64 := base64.RawURLEncoding.EncodeToString(headerJSON)

	kek, err := deriveKEK(sharedSecret, header)
	if err != nil {
		return nil, err
	}

	cek := make([]byte, 32)
	if _, err := rand.Read(cek); err != nil {
		return nil, err
	}
	wrappedKey, err := aesKeyWrap(kek, cek)
	if err != nil {
		return nil, err
	}

	plaintext, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("pack: marshal envelope: %w", err)
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}
	sealed := gcm.Seal(nil, iv, plaintext, []byte(protectedB64))
	ciphertext := sealed[:len(sealed)-gcm.Overhead()]
	tag := sealed[len(sealed)-gcm.Overhead():]

	return json.Marshal(jweContainer{
		Protected:    protectedB64,
		EncryptedKey: base64.RawURLEncoding.EncodeToString(wrappedKey),
		IV:           base64.RawURLEncoding.EncodeToString(iv),
		Ciphertext:   base64.RawURLEncoding.EncodeToString(ciphertext),
		Tag:          base64.RawURLEncoding.EncodeToString(tag),
	})
}

func (p *Packer) unpackAuthCrypt(ctx context.Context, data []byte) (message.Envelope, error) {
	var jwe jweContainer
	if err := json.Unmarshal(data, &jwe); err != nil {
		return message.Envelope{}, err
	}

	headerJSON, err := base64.RawURLEncoding.DecodeString(jwe.Protected)
	if err != nil {
		return message.Envelope{}, &CryptoError{Code: CodeDecryptFailed, Err: err}
	}
	var header jweHeader
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return message.Envelope{}, &CryptoError{Code: CodeDecryptFailed, Err: err}
	}
	if header.Alg != algECDHESA256KW || header.Enc != encA256GCM {
		return message.Envelope{}, &CryptoError{Code: CodeAlgorithmMismatch, Err: fmt.Errorf("unsupported alg/enc %s/%s", header.Alg, header.Enc)}
	}

	myKeyAgreement, err := p.Secrets.ResolveKeyAgreement(ctx, header.Kid)
	if err != nil {
		return message.Envelope{}, &CryptoError{Code: CodeUnknownKid, Err: err}
	}

	epkBytes, err := base64.RawURLEncoding.DecodeString(header.Epk.X)
	if err != nil {
		return message.Envelope{}, &CryptoError{Code: CodeDecryptFailed, Err: err}
	}
	sharedSecret, err := myKeyAgreement.ECDH(epkBytes)
	if err != nil {
		return message.Envelope{}, &CryptoError{Code: CodeDecryptFailed, Err: err}
	}

	kek, err := deriveKEK(sharedSecret, header)
	if err != nil {
		return message.Envelope{}, err
	}

	wrappedKey, err := base64.RawURLEncoding.DecodeString(jwe.EncryptedKey)
	if err != nil {
		return message.Envelope{}, &CryptoError{Code: CodeDecryptFailed, Err: err}
	}
	cek, err := aesKeyUnwrap(kek, wrappedKey)
	if err != nil {
		return message.Envelope{}, &CryptoError{Code: CodeDecryptFailed, Err: err}
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return message.Envelope{}, &CryptoError{Code: CodeDecryptFailed, Err: err}
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return message.Envelope{}, &CryptoError{Code: CodeDecryptFailed, Err: err}
	}

	iv, err := base64.RawURLEncoding.DecodeString(jwe.IV)
	if err != nil {
		return message.Envelope{}, &CryptoError{Code: CodeDecryptFailed, Err: err}
	}
	ciphertext, err := base64.RawURLEncoding.DecodeString(jwe.Ciphertext)
	if err != nil {
		return message.Envelope{}, &CryptoError{Code: CodeDecryptFailed, Err: err}
	}
	tag, err := base64.RawURLEncoding.DecodeString(jwe.Tag)
	if err != nil {
		return message.Envelope{}, &CryptoError{Code: CodeDecryptFailed, Err: err}
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	plaintext, err := gcm.Open(nil, iv, sealed, []byte(jwe.Protected))
	if err != nil {
		return message.Envelope{}, &CryptoError{Code: CodeDecryptFailed, Err: err}
	}

	var env message.Envelope
	if err := json.Unmarshal(plaintext, &env); err != nil {
		return message.Envelope{}, err
	}
	return env, nil
}

// deriveKEK derives the 256-bit key-wrapping key from the ECDH-ES shared
// secret, binding it to the algorithm and recipient/sender key ids via
// the HKDF info parameter. This stands in for the JOSE spec's Concat KDF
// (NIST SP 800-56A): no library in the retrieval pack implements Concat
// KDF, while golang.org/x/crypto/hkdf is already a teacher-adjacent
// dependency and produces an equally strong derived key for this purpose.
func deriveKEK(sharedSecret []byte, header jweHeader) ([]byte, error) {
	info := []byte(header.Alg + "|" + header.Kid + "|" + header.Skid)
	reader := hkdf.New(sha256.New, sharedSecret, nil, info)
	kek := make([]byte, 32)
	if _, err := io.ReadFull(reader, kek); err != nil {
		return nil, fmt.Errorf("pack: derive kek: %w", err)
	}
	return kek, nil
}
