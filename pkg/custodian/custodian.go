// Package custodian implements the identity custodian: the only component
// in this module that ever holds a private key in memory. It mediates
// every signing operation and every read or write of sealed key material,
// and never lets the key itself cross its own boundary.
//
// Grounded on hyperledger/fabric's bccsp/sw package for the PEM-handling
// and key-store conventions, generalized to the single in-process custodian
// the design notes call for (collapsing the source's separate browser and
// native-runtime paths into one core, with the KeyStore as the only
// environment-specific seam).
package custodian

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"sync"

	"github.com/hashicorp/vault/shamir"
	"github.com/tyler-smith/go-bip39"

	"github.com/nalapon/hf-web-client/pkg/errs"
	"github.com/nalapon/hf-web-client/pkg/keystore"
)

// Custodian owns at most one unlocked private key at a time and serializes
// every operation through mu, the Go realization of "all custodian
// operations are serialized; at most one sign proceeds at a time per slot".
type Custodian struct {
	mu    sync.Mutex
	store keystore.Store

	unlockedKey  *ecdsa.PrivateKey
	unlockedCert string
}

// New returns a Custodian persisting sealed material through store.
func New(store keystore.Store) *Custodian {
	return &Custodian{store: store}
}

// identityFor builds the AppIdentity handle returned to callers once a key
// is held in memory. Sign on the returned identity always calls back into
// this custodian, never a snapshot of the key.
func (c *Custodian) identityFor(certPEM string) AppIdentity {
	return AppIdentity{CertPEM: certPEM, sign: c.sign}
}

// sign produces the raw 64-byte (R||S) ECDSA-P256 signature over
// sha256(msg), requiring an unlocked key.
//
// Grounded on hyperledger-fabric's pkg/config/signer.go ecdsaSignature
// shape, minus its low-S/DER step, which pkg/signer performs separately.
func (c *Custodian) sign(msg []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unlockedKey == nil {
		return nil, errs.NotUnlockedErr()
	}

	digest := sha256.Sum256(msg)
	r, s, err := ecdsa.Sign(rand.Reader, c.unlockedKey, digest[:])
	if err != nil {
		return nil, errs.Wrap(errs.Unknown, err, "signing failed")
	}

	out := make([]byte, 64)
	r.FillBytes(out[:32])
	s.FillBytes(out[32:])
	return out, nil
}

// CreatePasswordIdentity seals cert_pem/key_pem under password (or, if
// password is empty, under a freshly generated BIP-39 mnemonic) and moves
// the custodian to Unlocked. It returns the active identity, the recovery
// phrase actually used as the secret, and 5 base64-encoded Shamir shares
// of that secret (threshold 3). Recombining those shares back into the
// secret is out of scope for this module; see the design notes.
func (c *Custodian) CreatePasswordIdentity(certPEM, keyPEM, password string) (AppIdentity, string, []string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key, err := parseECPrivateKeyPEM(keyPEM)
	if err != nil {
		return AppIdentity{}, "", nil, err
	}

	secret := password
	if secret == "" {
		entropy, err := bip39.NewEntropy(128)
		if err != nil {
			return AppIdentity{}, "", nil, errs.Wrap(errs.Unknown, err, "failed generating recovery entropy")
		}
		mnemonic, err := bip39.NewMnemonic(entropy)
		if err != nil {
			return AppIdentity{}, "", nil, errs.Wrap(errs.Unknown, err, "failed generating recovery phrase")
		}
		secret = mnemonic
	} else if err := checkPasswordStrength(password); err != nil {
		return AppIdentity{}, "", nil, err
	}

	salt, err := randomBytes(kdfSaltLen)
	if err != nil {
		return AppIdentity{}, "", nil, errs.Wrap(errs.Unknown, err, "failed generating salt")
	}
	iv, err := randomBytes(aeadIVLen)
	if err != nil {
		return AppIdentity{}, "", nil, errs.Wrap(errs.Unknown, err, "failed generating iv")
	}

	derived := deriveKey([]byte(secret), salt)
	defer zero(derived)

	ciphertext, err := seal(derived, iv, []byte(keyPEM))
	if err != nil {
		return AppIdentity{}, "", nil, errs.Wrap(errs.Unknown, err, "failed sealing private key")
	}

	record := sealedIdentity{
		EncryptedKeyPEM: ciphertext,
		CertificatePEM:  certPEM,
		KDFSalt:         salt,
		AEADIv:          iv,
	}
	if err := c.persistSealed(record); err != nil {
		return AppIdentity{}, "", nil, err
	}

	shareBytes, err := shamir.Split([]byte(secret), 5, 3)
	if err != nil {
		return AppIdentity{}, "", nil, errs.Wrap(errs.Unknown, err, "failed splitting recovery secret")
	}
	shares := make([]string, len(shareBytes))
	for i, sb := range shareBytes {
		shares[i] = base64.StdEncoding.EncodeToString(sb)
	}

	c.unlockedKey = key
	c.unlockedCert = certPEM
	return c.identityFor(certPEM), secret, shares, nil
}

// UnlockIdentity loads the sealed record, re-derives the KDF key from the
// stored salt, and AEAD-decrypts it. An authentication failure returns
// errs.BadPassword and leaves custodian state untouched — it never clears
// or overwrites an existing unlocked key on failure.
func (c *Custodian) UnlockIdentity(password string) (AppIdentity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	record, err := c.loadSealed()
	if err != nil {
		return AppIdentity{}, err
	}

	derived := deriveKey([]byte(password), record.KDFSalt)
	defer zero(derived)

	plaintext, err := unseal(derived, record.AEADIv, record.EncryptedKeyPEM)
	if err != nil {
		return AppIdentity{}, errs.BadPasswordErr()
	}
	defer zero(plaintext)

	key, err := parseECPrivateKeyPEM(string(plaintext))
	if err != nil {
		return AppIdentity{}, err
	}

	c.unlockedKey = key
	c.unlockedCert = record.CertificatePEM
	return c.identityFor(record.CertificatePEM), nil
}

// ImportIdentity behaves like unlock but bypasses sealed storage entirely:
// the caller supplies PEM material directly and nothing is persisted.
func (c *Custodian) ImportIdentity(certPEM, keyPEM string) (AppIdentity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key, err := parseECPrivateKeyPEM(keyPEM)
	if err != nil {
		return AppIdentity{}, err
	}

	c.unlockedKey = key
	c.unlockedCert = certPEM
	return c.identityFor(certPEM), nil
}

// DeleteIdentity deletes the sealed record and drops the in-memory key,
// taking the custodian to Empty regardless of its prior state.
func (c *Custodian) DeleteIdentity() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range []string{keyEncryptedPrivateKey, keyUserCertificate, keyKDFSalt, keyEncryptionIV} {
		if err := c.store.Delete(key); err != nil {
			return errs.Wrapf(errs.Unknown, err, "failed deleting sealed key %q", key)
		}
	}

	c.clearUnlocked()
	return nil
}

// LockIdentity drops the in-memory key without touching the sealed record,
// taking an Unlocked custodian back to Sealed (or leaving an Empty
// custodian as it was).
func (c *Custodian) LockIdentity() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearUnlocked()
}

// clearUnlocked zeroes and drops the in-memory key. Callers must hold mu.
func (c *Custodian) clearUnlocked() {
	if c.unlockedKey != nil {
		c.unlockedKey.D.SetInt64(0)
	}
	c.unlockedKey = nil
	c.unlockedCert = ""
}

// DoesPasswordIdentityExist reports whether the password slot holds a
// complete sealed record. Partial presence of the four fields is a
// corruption, not a "does not exist" answer.
func (c *Custodian) DoesPasswordIdentityExist() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	present, missing, err := c.sealedKeyPresence()
	if err != nil {
		return false, err
	}
	if present == 0 {
		return false, nil
	}
	if present < 4 {
		return false, errs.StoreCorruptErr(missing)
	}
	return true, nil
}

// sealedKeyPresence counts how many of the four sealed-record keys are
// present in the store and names the first missing one found.
func (c *Custodian) sealedKeyPresence() (present int, firstMissing string, err error) {
	for _, key := range []string{keyEncryptedPrivateKey, keyUserCertificate, keyKDFSalt, keyEncryptionIV} {
		_, ok, err := c.store.Get(key)
		if err != nil {
			return 0, "", errs.Wrapf(errs.Unknown, err, "failed reading sealed key %q", key)
		}
		if ok {
			present++
		} else if firstMissing == "" {
			firstMissing = key
		}
	}
	return present, firstMissing, nil
}

// persistSealed writes all four sealed-record fields, using the store's
// batch optimization when it offers one so the record lands as a single
// durable flush instead of four independent writes.
func (c *Custodian) persistSealed(record sealedIdentity) error {
	entries := map[string][]byte{
		keyEncryptedPrivateKey: record.EncryptedKeyPEM,
		keyUserCertificate:     []byte(record.CertificatePEM),
		keyKDFSalt:             record.KDFSalt,
		keyEncryptionIV:        record.AEADIv,
	}
	if err := keystore.SetMany(c.store, entries); err != nil {
		return errs.Wrap(errs.Unknown, err, "failed persisting sealed identity")
	}
	return nil
}

// loadSealed reads the sealed record, failing with errs.StoreCorrupt if any
// of the four fields is missing.
func (c *Custodian) loadSealed() (sealedIdentity, error) {
	present, missing, err := c.sealedKeyPresence()
	if err != nil {
		return sealedIdentity{}, err
	}
	if present < 4 {
		return sealedIdentity{}, errs.StoreCorruptErr(missing)
	}

	encKey, _, err := c.store.Get(keyEncryptedPrivateKey)
	if err != nil {
		return sealedIdentity{}, errs.Wrap(errs.Unknown, err, "failed reading sealed identity")
	}
	cert, _, err := c.store.Get(keyUserCertificate)
	if err != nil {
		return sealedIdentity{}, errs.Wrap(errs.Unknown, err, "failed reading sealed identity")
	}
	salt, _, err := c.store.Get(keyKDFSalt)
	if err != nil {
		return sealedIdentity{}, errs.Wrap(errs.Unknown, err, "failed reading sealed identity")
	}
	iv, _, err := c.store.Get(keyEncryptionIV)
	if err != nil {
		return sealedIdentity{}, errs.Wrap(errs.Unknown, err, "failed reading sealed identity")
	}

	return sealedIdentity{
		EncryptedKeyPEM: encKey,
		CertificatePEM:  string(cert),
		KDFSalt:         salt,
		AEADIv:          iv,
	}, nil
}
