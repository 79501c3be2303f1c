// Package cryptobox encrypts extracted codes with a recipient-supplied RSA
// public key before they leave the device. Encryption is optional: a blank
// key means the payload passes through unchanged.
package cryptobox

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

// Error classifies encryption failures: malformed key material or a
// rejected input. Treated as a terminal delivery failure, never retried.
type Error struct {
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return fmt.Sprintf("encryption error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("encryption error: %s", e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsEncryptionError reports whether err came from the encryptor.
func IsEncryptionError(err error) bool {
	var encErr *Error
	return errors.As(err, &encErr)
}

// Encryptor performs RSA PKCS#1 v1.5 encryption with base64-encoded output.
type Encryptor struct{}

func NewEncryptor() *Encryptor {
	return &Encryptor{}
}

// Encrypt returns base64(RSA-PKCS1v15(plaintext)) under the supplied public
// key. The key may be a PEM PUBLIC KEY block or bare base64 DER (PKIX). A
// blank key returns the plaintext unchanged; that passthrough is the
// documented contract for unconfigured encryption, not an error.
func (e *Encryptor) Encrypt(plaintext, publicKey string) (string, error) {
	if strings.TrimSpace(publicKey) == "" {
		return plaintext, nil
	}

	key, err := parsePublicKey(publicKey)
	if err != nil {
		return "", err
	}

	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, key, []byte(plaintext))
	if err != nil {
		return "", &Error{Message: "rsa encrypt failed", Cause: err}
	}

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func parsePublicKey(material string) (*rsa.PublicKey, error) {
	der, err := decodeKeyMaterial(material)
	if err != nil {
		return nil, err
	}

	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, &Error{Message: "malformed public key", Cause: err}
	}

	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, &Error{Message: fmt.Sprintf("unsupported key type %T", parsed)}
	}
	return key, nil
}

func decodeKeyMaterial(material string) ([]byte, error) {
	trimmed := strings.TrimSpace(material)

	if block, _ := pem.Decode([]byte(trimmed)); block != nil {
		return block.Bytes, nil
	}

	// Keys pasted from key generators commonly arrive as bare base64 DER
	// without the PEM armor.
	compact := strings.Join(strings.Fields(trimmed), "")
	der, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return nil, &Error{Message: "public key is neither PEM nor base64 DER", Cause: err}
	}
	return der, nil
}
