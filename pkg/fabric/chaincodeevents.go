package fabric

import (
	"github.com/hyperledger/fabric-protos-go-apiv2/gateway"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
)

// ChaincodeEventsRequestBytes marshals an unsigned
// gateway.ChaincodeEventsRequest for chaincode on channel, addressed to the
// given identity, starting from the newest block. As with
// CommitStatusRequestBytes, the caller signs these bytes directly.
func ChaincodeEventsRequestBytes(channel, chaincode, mspID, certPEM string) ([]byte, error) {
	creator, err := SerializedIdentity(mspID, certPEM)
	if err != nil {
		return nil, err
	}

	req := &gateway.ChaincodeEventsRequest{
		ChannelId:   channel,
		ChaincodeId: chaincode,
		Identity:    creator,
	}
	b, err := proto.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "error marshaling ChaincodeEventsRequest")
	}
	return b, nil
}
