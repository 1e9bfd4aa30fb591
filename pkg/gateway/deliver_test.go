package gateway_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hyperledger/fabric-protos-go-apiv2/common"
	"github.com/hyperledger/fabric-protos-go-apiv2/peer"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"github.com/nalapon/hf-web-client/pkg/fabric"
	fgateway "github.com/nalapon/hf-web-client/pkg/gateway"
)

// fakeDeliverConn is an in-memory DeliverConn: frames written by the client
// go into written, frames queued in toClient are returned by ReadBinary in
// order, and ReadBinary blocks until one is available or toClient is closed.
type fakeDeliverConn struct {
	mu       sync.Mutex
	written  [][]byte
	toClient chan []byte
	closeErr error
	closedAt int
}

func newFakeDeliverConn() *fakeDeliverConn {
	return &fakeDeliverConn{toClient: make(chan []byte, 16)}
}

func (f *fakeDeliverConn) WriteBinary(frame []byte) error {
	f.mu.Lock()
	f.written = append(f.written, frame)
	f.mu.Unlock()
	return nil
}

func (f *fakeDeliverConn) ReadBinary() ([]byte, error) {
	data, ok := <-f.toClient
	if !ok {
		return nil, context.Canceled
	}
	return data, nil
}

func (f *fakeDeliverConn) Close(code int) error {
	f.mu.Lock()
	f.closedAt = code
	f.mu.Unlock()
	return nil
}

func (f *fakeDeliverConn) pushBlock(t *testing.T, fb *peer.FilteredBlock) {
	t.Helper()
	resp := &peer.DeliverResponse{Type: &peer.DeliverResponse_FilteredBlock{FilteredBlock: fb}}
	data, err := proto.Marshal(resp)
	require.NoError(t, err)
	f.toClient <- data
}

func (f *fakeDeliverConn) pushStatus(t *testing.T, status common.Status) {
	t.Helper()
	resp := &peer.DeliverResponse{Type: &peer.DeliverResponse_Status{Status: status}}
	data, err := proto.Marshal(resp)
	require.NoError(t, err)
	f.toClient <- data
}

type fakeDeliverTransport struct {
	conn *fakeDeliverConn
}

func (f *fakeDeliverTransport) Connect(ctx context.Context, url string) (fgateway.DeliverConn, error) {
	return f.conn, nil
}

func TestListenBlockEventsDecodesFilteredBlocks(t *testing.T) {
	fakeClient := &fakeGatewayClient{}
	c := clientWith(t, fakeClient)
	conn := newFakeDeliverConn()
	c.WithDeliverTransport(&fakeDeliverTransport{conn: conn})
	identity := newIdentity(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	blocks, err := c.ListenBlockEvents(ctx, "mychannel", "peer0.org1.example.com", "peer0.org1.example.com", "Org1MSP", identity, fabric.StartPosition{})
	require.NoError(t, err)

	conn.pushStatus(t, common.Status_SUCCESS)
	conn.pushBlock(t, &peer.FilteredBlock{
		ChannelId: "mychannel",
		Number:    42,
		FilteredTransactions: []*peer.FilteredTransaction{
			{
				Txid:           "tx1",
				TxValidationCode: peer.TxValidationCode_VALID,
				Type: &peer.FilteredTransaction_TransactionActions{
					TransactionActions: &peer.FilteredTransactionActions{
						ChaincodeActions: []*peer.FilteredChaincodeAction{
							{ChaincodeEvent: &peer.ChaincodeEvent{EventName: "AssetCreated"}},
						},
					},
				},
			},
		},
	})

	select {
	case block := <-blocks:
		require.Equal(t, uint64(42), block.Number)
		require.Len(t, block.Transactions, 1)
		require.Equal(t, "tx1", block.Transactions[0].TxID)
		require.Equal(t, []string{"AssetCreated"}, block.Transactions[0].ChaincodeActions)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for filtered block")
	}
}

func TestListenBlockEventsCancellationClosesChannelWithoutError(t *testing.T) {
	fakeClient := &fakeGatewayClient{}
	c := clientWith(t, fakeClient)
	conn := newFakeDeliverConn()
	c.WithDeliverTransport(&fakeDeliverTransport{conn: conn})
	identity := newIdentity(t)

	ctx, cancel := context.WithCancel(context.Background())

	blocks, err := c.ListenBlockEvents(ctx, "mychannel", "peer0.org1.example.com", "peer0.org1.example.com", "Org1MSP", identity, fabric.StartPosition{})
	require.NoError(t, err)

	cancel()
	close(conn.toClient)

	select {
	case _, ok := <-blocks:
		require.False(t, ok, "channel should be closed, not yield a value")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}
