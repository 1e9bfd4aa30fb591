package fabric

import (
	"crypto/rand"
	"math"
	"time"

	"github.com/hyperledger/fabric-protos-go-apiv2/common"
	"github.com/hyperledger/fabric-protos-go-apiv2/orderer"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// StartPosition selects where a deliver-seek stream begins. The zero value
// means "newest": start at the most recently committed block.
type StartPosition struct {
	Specified   bool
	BlockNumber uint64
}

// SeekInfoEnvelope builds an unsigned common.Envelope carrying a
// DELIVER_SEEK_INFO request for channel, addressed to the given MSP/cert
// identity. The stream never stops on its own (Stop is pinned to the
// maximum block number) and blocks until new blocks are ready, matching
// the peer deliver service's streaming contract.
//
// Grounded on hyperledger/fabric's examples/events/eventsclient and
// common/deliverclient/blocksprovider, which build the identical
// SeekNewest/SeekSpecified/BLOCK_UNTIL_READY shape.
func SeekInfoEnvelope(channel, mspID, certPEM string, start StartPosition) (*common.Envelope, error) {
	var startPos *orderer.SeekPosition
	if start.Specified {
		startPos = &orderer.SeekPosition{
			Type: &orderer.SeekPosition_Specified{
				Specified: &orderer.SeekSpecified{Number: start.BlockNumber},
			},
		}
	} else {
		startPos = &orderer.SeekPosition{
			Type: &orderer.SeekPosition_Newest{Newest: &orderer.SeekNewest{}},
		}
	}

	stopPos := &orderer.SeekPosition{
		Type: &orderer.SeekPosition_Specified{
			Specified: &orderer.SeekSpecified{Number: math.MaxUint64},
		},
	}

	seekInfo := &orderer.SeekInfo{
		Start:    startPos,
		Stop:     stopPos,
		Behavior: orderer.SeekInfo_BLOCK_UNTIL_READY,
	}
	seekInfoBytes, err := proto.Marshal(seekInfo)
	if err != nil {
		return nil, errors.Wrap(err, "error marshaling SeekInfo")
	}

	creator, err := SerializedIdentity(mspID, certPEM)
	if err != nil {
		return nil, err
	}

	// A deliver-seek request is not a chaincode transaction and has no
	// TransactionContext of its own, so it generates its own nonce here.
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "error generating seek nonce")
	}

	hdr := &common.Header{
		ChannelHeader: mustMarshal(&common.ChannelHeader{
			Type:      int32(common.HeaderType_DELIVER_SEEK_INFO),
			Version:   1,
			Timestamp: timestamppb.New(time.Now().UTC()),
			ChannelId: channel,
		}),
		SignatureHeader: mustMarshal(&common.SignatureHeader{
			Nonce:   nonce,
			Creator: creator,
		}),
	}

	payload := &common.Payload{Header: hdr}
	payloadBytes, err := proto.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "error marshaling Payload")
	}

	return &common.Envelope{Payload: payloadBytes}, nil
}
