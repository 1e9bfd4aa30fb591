// Package fabric builds the Fabric wire messages this module emits and
// parses the ones it receives: serialized identities, transaction
// contexts, proposals, envelopes, deliver seek requests, gateway event
// requests, and evaluate-response payloads. Every builder here is a pure
// function of its documented inputs, aside from the random nonce in
// NewTransactionContext and SeekInfoEnvelope and the header timestamp in
// ProposalPayload and SeekInfoEnvelope; none of them touch the
// network or the identity custodian.
package fabric

import (
	"github.com/hyperledger/fabric-protos-go-apiv2/msp"
	"google.golang.org/protobuf/proto"
)

// SerializedIdentity packs an MSP id and a PEM certificate into the
// msp.SerializedIdentity wire form Fabric uses as a "creator" everywhere an
// identity needs to travel inside a signed message.
func SerializedIdentity(mspID, certPEM string) ([]byte, error) {
	id := &msp.SerializedIdentity{
		Mspid:   mspID,
		IdBytes: []byte(certPEM),
	}
	return proto.Marshal(id)
}
