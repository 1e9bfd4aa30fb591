package fabric

import "github.com/hyperledger/fabric-protos-go-apiv2/peer"

// PreparedTransaction is the output of endorse and the input to submit: the
// transaction id and the protobuf-serialized Payload the endorser
// returned, ready to be signed and wrapped into an Envelope.
type PreparedTransaction struct {
	TxID            string
	EnvelopePayload []byte
}

// SubmittedOutcome is the result of a committed transaction: its id and
// the validation code the ordering service ultimately assigned it.
type SubmittedOutcome struct {
	TxID           string
	ValidationCode peer.TxValidationCode
}

// Valid reports whether the outcome's validation code is VALID.
func (o SubmittedOutcome) Valid() bool {
	return o.ValidationCode == peer.TxValidationCode_VALID
}

// ChaincodeEvent is one entry of a ChaincodeEventBatch.
type ChaincodeEvent struct {
	TxID          string
	ChaincodeName string
	EventName     string
	Payload       []byte
}

// ChaincodeEventBatch is a block's worth of chaincode events, in the order
// the gateway's ChaincodeEvents stream delivered them.
type ChaincodeEventBatch struct {
	BlockNumber uint64
	Events      []ChaincodeEvent
}

// FilteredTransaction is one transaction's outcome inside a FilteredBlock.
type FilteredTransaction struct {
	TxID             string
	ValidationCode   peer.TxValidationCode
	ChaincodeActions []string
}

// FilteredBlock is the deliver-filtered view of a committed block: enough
// to learn which transactions committed and how, without the full block
// payload.
type FilteredBlock struct {
	ChannelID    string
	Number       uint64
	Transactions []FilteredTransaction
}
