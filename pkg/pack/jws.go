package pack

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tap-rsvp/tap-go/pkg/keys"
	"github.com/tap-rsvp/tap-go/pkg/message"
)

func init() {
	// ES256K is not one of golang-jwt's built-in signing methods (it is
	// not a registered JOSE algorithm), so register tap-go's own
	// implementation the same way the teacher registers custom RPC
	// method handlers: by name, once, at package init.
	jwt.RegisterSigningMethod("ES256K", func() jwt.SigningMethod { return signingMethodKeys{alg: "ES256K"} })
}

// signingMethodKeys adapts tap-go's keys.Signer/PublicKey abstraction to
// golang-jwt's jwt.SigningMethod interface, so every TAP-supported
// signature algorithm (EdDSA, ES256, ES256K) flows through the same
// signing contract the teacher uses for its own session JWTs
// (auth.go, jwt.SigningMethodES256).
type signingMethodKeys struct{ alg string }

func (m signingMethodKeys) Alg() string { return m.alg }

func (m signingMethodKeys) Sign(signingString string, key interface{}) ([]byte, error) {
	signer, ok := key.(keys.Signer)
	if !ok {
		return nil, jwt.ErrInvalidKeyType
	}
	sig, err := signer.Sign([]byte(signingString))
	if err != nil {
		return nil, err
	}
	return []byte(sig), nil
}

func (m signingMethodKeys) Verify(signingString string, sig []byte, key interface{}) error {
	pub, ok := key.(keys.PublicKey)
	if !ok {
		return jwt.ErrInvalidKeyType
	}
	if err := keys.VerifyFor(pub, []byte(signingString), keys.Signature(sig)); err != nil {
		return jwt.ErrSignatureInvalid
	}
	return nil
}

// jwsHeader is the JWS protected header tap-go produces: alg identifies
// the signature algorithm, kid the sender's DID verification method.
type jwsHeader struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	Typ string `json:"typ"`
}

// flattenedJWS is the JSON Flattened Serialization of a JWS (RFC 7515
// §7.2.2): one signature, no "signatures" array.
type flattenedJWS struct {
	Payload   string `json:"payload"`
	Protected string `json:"protected"`
	Signature string `json:"signature"`
}

func (p *Packer) packSigned(ctx context.Context, env message.Envelope, senderKid string) ([]byte, error) {
	signer, err := p.Secrets.ResolveSigner(ctx, senderKid)
	if err != nil {
		return nil, &CryptoError{Code: CodeUnknownKid, Err: err}
	}
	alg, err := signer.PublicKey().Type().JWSAlg()
	if err != nil {
		return nil, &CryptoError{Code: CodeAlgorithmMismatch, Err: err}
	}
	method := signingMethodKeys{alg: alg}

	headerJSON, err := json.Marshal(jwsHeader{Alg: alg, Kid: senderKid, Typ: "application/didcomm-signed+json"})
	if err != nil {
		return nil, fmt.Errorf("pack: marshal jws header: %w", err)
	}
	payloadJSON, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("pack: marshal envelope: %w", err)
	}

	protectedB64 := base64.RawURLEncoding.EncodeToString(headerJSON)
	payloadB64 := base64.RawURLEncoding.EncodeToString(payloadJSON)

	sig, err := method.Sign(protectedB64+"."+payloadB64, signer)
	if err != nil {
		return nil, &CryptoError{Code: CodeSignatureInvalid, Err: err}
	}

	return json.Marshal(flattenedJWS{
		Payload:   payloadB64,
		Protected: protectedB64,
		Signature: base64.RawURLEncoding.EncodeToString(sig),
	})
}

func (p *Packer) unpackSigned(ctx context.Context, data []byte) (message.Envelope, error) {
	var jws flattenedJWS
	if err := json.Unmarshal(data, &jws); err != nil {
		return message.Envelope{}, err
	}

	headerJSON, err := base64.RawURLEncoding.DecodeString(jws.Protected)
	if err != nil {
		return message.Envelope{}, &CryptoError{Code: CodeSignatureInvalid, Err: err}
	}
	var header jwsHeader
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return message.Envelope{}, &CryptoError{Code: CodeSignatureInvalid, Err: err}
	}

	sig, err := base64.RawURLEncoding.DecodeString(jws.Signature)
	if err != nil {
		return message.Envelope{}, &CryptoError{Code: CodeSignatureInvalid, Err: err}
	}
	payloadJSON, err := base64.RawURLEncoding.DecodeString(jws.Payload)
	if err != nil {
		return message.Envelope{}, &CryptoError{Code: CodeSignatureInvalid, Err: err}
	}

	var env message.Envelope
	if err := json.Unmarshal(payloadJSON, &env); err != nil {
		return message.Envelope{}, err
	}

	doc, err := p.DIDs.Resolve(ctx, didOf(header.Kid))
	if err != nil {
		return message.Envelope{}, &CryptoError{Code: CodeUnknownKid, Err: err}
	}
	vm, ok := doc.FindVerificationMethod(header.Kid)
	if !ok {
		return message.Envelope{}, &CryptoError{Code: CodeUnknownKid, Err: fmt.Errorf("verification method %s not found", header.Kid)}
	}
	pub, err := publicKeyFromVerificationMethod(vm)
	if err != nil {
		return message.Envelope{}, &CryptoError{Code: CodeAlgorithmMismatch, Err: err}
	}

	method := signingMethodKeys{alg: header.Alg}
	if err := method.Verify(jws.Protected+"."+jws.Payload, sig, pub); err != nil {
		return message.Envelope{}, &CryptoError{Code: CodeSignatureInvalid, Err: err}
	}

	return env, nil
}
