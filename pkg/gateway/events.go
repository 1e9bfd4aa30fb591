package gateway

import (
	"context"

	"github.com/hyperledger/fabric-protos-go-apiv2/gateway"

	"github.com/nalapon/hf-web-client/internal/log"
	"github.com/nalapon/hf-web-client/pkg/custodian"
	"github.com/nalapon/hf-web-client/pkg/fabric"
)

// ListenChaincodeEvents opens a server-streaming RPC for chaincode's events
// on channel and returns a lazy, cancellable sequence of event batches, one
// per block that carried a matching event. The returned channel is closed
// when ctx is cancelled or the stream ends; cancellation is never reported
// as an error.
//
// Grounded on the design notes' "pull-based cancellable iterator": a
// goroutine pulls from the gRPC stream and pushes onto a channel the caller
// drains, realizing spec.md §5's "event streams run on their own
// task/coroutine; back-pressure is the consumer's".
func (c *Client) ListenChaincodeEvents(ctx context.Context, channel, chaincode, mspID string, identity custodian.AppIdentity) (<-chan fabric.ChaincodeEventBatch, error) {
	reqBytes, err := fabric.ChaincodeEventsRequestBytes(channel, chaincode, mspID, identity.CertPEM)
	if err != nil {
		return nil, err
	}

	der, err := signAndNormalize(identity, reqBytes)
	if err != nil {
		return nil, err
	}

	stream, err := c.rpc.ChaincodeEvents(ctx, &gateway.SignedChaincodeEventsRequest{
		Request:   reqBytes,
		Signature: der,
	})
	if err != nil {
		return nil, classifyRPCError(err)
	}

	out := make(chan fabric.ChaincodeEventBatch)
	go func() {
		defer close(out)
		for {
			resp, err := stream.Recv()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Logger.Debugf("chaincode events stream for %s ended: %v", chaincode, err)
				return
			}

			batch := fabric.ChaincodeEventBatch{BlockNumber: resp.GetBlockNumber()}
			for _, e := range resp.GetEvents() {
				batch.Events = append(batch.Events, fabric.ChaincodeEvent{
					TxID:          e.GetTxId(),
					ChaincodeName: e.GetChaincodeId(),
					EventName:     e.GetEventName(),
					Payload:       e.GetPayload(),
				})
			}

			select {
			case out <- batch:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
