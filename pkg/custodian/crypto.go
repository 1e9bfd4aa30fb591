package custodian

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"

	"github.com/nbutton23/zxcvbn-go"
	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"

	"github.com/nalapon/hf-web-client/pkg/errs"
)

// minPasswordLen and minPasswordScore are checked in that order: the
// length check is the cheap rejection, run before the strength estimator.
const (
	minPasswordLen   = 8
	minPasswordScore = 3
)

// checkPasswordStrength rejects a password shorter than minPasswordLen or
// whose zxcvbn score falls below minPasswordScore.
func checkPasswordStrength(password string) error {
	if len(password) < minPasswordLen {
		return errs.New(errs.InputInvalid, "password must be at least 8 characters")
	}
	strength := zxcvbn.PasswordStrength(password, nil)
	if strength.Score < minPasswordScore {
		return errs.New(errs.InputInvalid, "password is too weak")
	}
	return nil
}

// deriveKey runs PBKDF2-HMAC-SHA256 with the exact iteration count the
// sealing format requires, producing a 256-bit AES key from secret and
// salt.
func deriveKey(secret, salt []byte) []byte {
	return pbkdf2.Key(secret, salt, kdfIters, kdfKeyLen, sha256.New)
}

// seal AEAD-encrypts plaintext under key and iv using AES-256-GCM.
func seal(key, iv, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "failed constructing AES cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "failed constructing GCM mode")
	}
	return gcm.Seal(nil, iv, plaintext, nil), nil
}

// unseal AEAD-decrypts ciphertext under key and iv. An authentication
// failure (wrong key, i.e. wrong password) is reported via the returned
// error; callers must translate that into errs.BadPassword rather than
// leaking the underlying crypto error.
func unseal(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "failed constructing AES cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "failed constructing GCM mode")
	}
	return gcm.Open(nil, iv, ciphertext, nil)
}

// randomBytes returns n cryptographically random bytes.
func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, errors.Wrap(err, "failed reading random bytes")
	}
	return b, nil
}

// zero overwrites b in place. Used on every transient buffer that held key
// material (derived KDF keys, decrypted PEM plaintext) once it has served
// its purpose, so it does not linger in memory longer than necessary.
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// parseECPrivateKeyPEM accepts either a SEC1 "EC PRIVATE KEY" block or a
// PKCS8 "PRIVATE KEY" block, the two PEM shapes bccsp/sw's key loader
// accepts, and returns the parsed P-256 key.
func parseECPrivateKeyPEM(keyPEM string) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(keyPEM))
	if block == nil {
		return nil, errs.New(errs.InputInvalid, "key_pem does not contain a PEM block")
	}

	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, errs.Wrap(errs.InputInvalid, err, "key_pem is not a valid EC private key")
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errs.New(errs.InputInvalid, "key_pem does not contain an ECDSA key")
	}
	return key, nil
}
