package custodian

// Persisted KeyStore keys. All four must be present together for the
// password slot, or their absence as a set means the slot is Empty;
// presence of some but not all is corruption.
const (
	keyEncryptedPrivateKey = "pbe-fabric-encrypted-private-key"
	keyUserCertificate     = "pbe-fabric-user-certificate"
	keyKDFSalt             = "pbe-fabric-key-derivation-salt"
	keyEncryptionIV        = "pbe-fabric-encryption-iv"

	// keyHardwareCredentialID is the hardware slot's pointer back into the
	// password slot's sealed record (Design Notes: "hardware slot as a thin
	// overlay").
	keyHardwareCredentialID = "hw-fabric-credential-id"
)

// sealedIdentity is the four-field record persisted for the password slot.
// All four fields are present together or absent together; partial
// presence is a corruption (errs.StoreCorrupt).
type sealedIdentity struct {
	EncryptedKeyPEM []byte
	CertificatePEM  string
	KDFSalt         []byte
	AEADIv          []byte
}

const (
	kdfSaltLen = 16
	aeadIVLen  = 12
	kdfIters   = 250000
	kdfKeyLen  = 32 // AES-256
)
