package fabric

import (
	"github.com/hyperledger/fabric-protos-go-apiv2/gateway"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
)

// CommitStatusRequestBytes marshals an unsigned gateway.CommitStatusRequest
// for txID on channel, addressed to the given identity. The caller signs
// these bytes directly (not wrapped in an Envelope) and carries the
// signature alongside the request in a SignedCommitStatusRequest.
func CommitStatusRequestBytes(channel, txID string, mspID, certPEM string) ([]byte, error) {
	creator, err := SerializedIdentity(mspID, certPEM)
	if err != nil {
		return nil, err
	}

	req := &gateway.CommitStatusRequest{
		ChannelId:     channel,
		TransactionId: txID,
		Identity:      creator,
	}
	b, err := proto.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "error marshaling CommitStatusRequest")
	}
	return b, nil
}
