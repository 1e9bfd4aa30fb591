package fabric

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"github.com/pkg/errors"
)

// nonceLen is the size in bytes of the per-transaction nonce. Fabric uses
// 24 bytes; it must be used exactly once per transaction.
const nonceLen = 24

// TransactionContext carries the random nonce and serialized creator
// identity a proposal is built from, plus the transaction id they
// deterministically produce. It is derived per-transaction and never
// persisted.
type TransactionContext struct {
	Nonce        []byte
	CreatorBytes []byte
	TxID         string
}

// NewTransactionContext generates a fresh nonce, serializes the given
// identity under mspID, and computes TxID = hex(sha256(nonce||creator)).
// Two independent calls with the same (mspID, certPEM) produce different
// nonces and therefore different tx ids; TxID is deterministic only given a
// fixed (nonce, creator) pair, which is what ProposalPayload relies on to
// produce the same tx id and a byte-identical chaincode proposal payload
// when replayed with the same inputs.
func NewTransactionContext(mspID, certPEM string) (*TransactionContext, error) {
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "error generating transaction nonce")
	}

	creator, err := SerializedIdentity(mspID, certPEM)
	if err != nil {
		return nil, errors.Wrap(err, "error serializing creator identity")
	}

	return &TransactionContext{
		Nonce:        nonce,
		CreatorBytes: creator,
		TxID:         ComputeTxID(nonce, creator),
	}, nil
}

// ComputeTxID computes the transaction id from an explicit nonce and
// creator, independent of random generation, so callers can re-derive it
// deterministically (and so tests can check the determinism invariant).
func ComputeTxID(nonce, creatorBytes []byte) string {
	h := sha256.New()
	h.Write(nonce)
	h.Write(creatorBytes)
	return hex.EncodeToString(h.Sum(nil))
}
