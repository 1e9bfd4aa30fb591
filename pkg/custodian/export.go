package custodian

import (
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"

	"github.com/nalapon/hf-web-client/pkg/errs"
)

// exportedPayload is the JSON structure sealed inside an export blob.
type exportedPayload struct {
	Label         string `json:"label"`
	MSPID         string `json:"msp_id"`
	Certificate   string `json:"certificate"`
	PrivateKeyPEM string `json:"private_key_pem"`
}

// exportEnvelope is the opaque string ExportIdentity returns, JSON-encoded
// and then base64-wrapped: a fresh salt and iv alongside the AEAD
// ciphertext of an exportedPayload. Key extraction is permitted only
// through this consensual, password-gated flow.
type exportEnvelope struct {
	Salt       []byte `json:"salt"`
	IV         []byte `json:"iv"`
	Ciphertext []byte `json:"ciphertext"`
}

// ExportIdentity serializes the currently unlocked identity's certificate
// and private key under label and mspID, AEAD-encrypts the serialized form
// under a key derived from password, and returns the result as an opaque
// base64 string. Requires an unlocked key.
func (c *Custodian) ExportIdentity(label, mspID, password string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unlockedKey == nil {
		return "", errs.NotUnlockedErr()
	}
	if err := checkPasswordStrength(password); err != nil {
		return "", err
	}

	keyDER, err := x509.MarshalECPrivateKey(c.unlockedKey)
	if err != nil {
		return "", errs.Wrap(errs.Unknown, err, "failed marshaling private key")
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	payload := exportedPayload{
		Label:         label,
		MSPID:         mspID,
		Certificate:   c.unlockedCert,
		PrivateKeyPEM: string(keyPEM),
	}
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", errs.Wrap(errs.Unknown, err, "failed serializing export payload")
	}

	salt, err := randomBytes(kdfSaltLen)
	if err != nil {
		return "", errs.Wrap(errs.Unknown, err, "failed generating salt")
	}
	iv, err := randomBytes(aeadIVLen)
	if err != nil {
		return "", errs.Wrap(errs.Unknown, err, "failed generating iv")
	}

	derived := deriveKey([]byte(password), salt)
	defer zero(derived)

	ciphertext, err := seal(derived, iv, plaintext)
	if err != nil {
		return "", errs.Wrap(errs.Unknown, err, "failed sealing export payload")
	}

	envelope, err := json.Marshal(exportEnvelope{Salt: salt, IV: iv, Ciphertext: ciphertext})
	if err != nil {
		return "", errs.Wrap(errs.Unknown, err, "failed serializing export envelope")
	}
	return base64.StdEncoding.EncodeToString(envelope), nil
}

// ImportExportedIdentity decrypts blob under password, validates that it
// carries a certificate and a private key, and re-runs the
// CreatePasswordIdentity flow with the recovered material and password.
func (c *Custodian) ImportExportedIdentity(blob, password string) error {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return errs.Wrap(errs.InputInvalid, err, "export blob is not valid base64")
	}

	var envelope exportEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return errs.Wrap(errs.InputInvalid, err, "export blob is malformed")
	}

	derived := deriveKey([]byte(password), envelope.Salt)
	defer zero(derived)

	plaintext, err := unseal(derived, envelope.IV, envelope.Ciphertext)
	if err != nil {
		return errs.BadPasswordErr()
	}
	defer zero(plaintext)

	var payload exportedPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return errs.Wrap(errs.InputInvalid, err, "decrypted export payload is malformed")
	}
	if payload.Certificate == "" || payload.PrivateKeyPEM == "" {
		return errs.New(errs.InputInvalid, "export payload is missing certificate or private key")
	}

	_, _, _, err = c.CreatePasswordIdentity(payload.Certificate, payload.PrivateKeyPEM, password)
	return err
}
