package gateway

import (
	"context"
	"fmt"
	"net/url"

	"github.com/gorilla/websocket"
	"google.golang.org/protobuf/proto"

	"github.com/nalapon/hf-web-client/internal/log"
	"github.com/nalapon/hf-web-client/pkg/custodian"
	"github.com/nalapon/hf-web-client/pkg/errs"
	"github.com/nalapon/hf-web-client/pkg/fabric"

	"github.com/hyperledger/fabric-protos-go-apiv2/peer"
)

// DeliverTransport opens the binary-framed WebSocket connection
// ListenBlockEvents proxies a DeliverFiltered stream through. Tests
// substitute a fake implementation; the default is deliverWebsocket.
type DeliverTransport interface {
	Connect(ctx context.Context, url string) (DeliverConn, error)
}

// DeliverConn is one open deliver-stream connection: binary frames only.
type DeliverConn interface {
	WriteBinary(frame []byte) error
	ReadBinary() ([]byte, error)
	Close(code int) error
}

// deliverWebsocket is the default DeliverTransport, backed by
// gorilla/websocket. No pack repo ships a WebSocket client; this is the
// standard ecosystem choice for proxying the peer's DeliverFiltered gRPC
// service over a browser-reachable transport.
type deliverWebsocket struct{}

func (deliverWebsocket) Connect(ctx context.Context, target string) (DeliverConn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, errs.TransportFailureErr(err)
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (w *wsConn) WriteBinary(frame []byte) error {
	return w.conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (w *wsConn) ReadBinary() ([]byte, error) {
	kind, data, err := w.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if kind != websocket.BinaryMessage {
		return nil, errs.New(errs.StreamProtocolError, "deliver stream sent a non-binary frame")
	}
	return data, nil
}

func (w *wsConn) Close(code int) error {
	msg := websocket.FormatCloseMessage(code, "")
	_ = w.conn.WriteMessage(websocket.CloseMessage, msg)
	return w.conn.Close()
}

// WithDeliverTransport overrides the WebSocket transport ListenBlockEvents
// uses, the seam deliver_test.go exercises with a fake DeliverConn.
func (c *Client) WithDeliverTransport(t DeliverTransport) *Client {
	c.deliverTransport = t
	return c
}

func (c *Client) transport() DeliverTransport {
	if c.deliverTransport != nil {
		return c.deliverTransport
	}
	return deliverWebsocket{}
}

// ListenBlockEvents opens a WebSocket to wsBaseUrl?target=<peerHostname>&hostname=<tlsSNI>,
// sends a DELIVER_SEEK_INFO envelope as the first binary frame, and yields
// a lazy, cancellable sequence of FilteredBlock records decoded from the
// server's subsequent binary frames. Every "status" frame, whatever its
// status, is logged and skipped, as is a frame that fails to decode; a read
// error ends the sequence (the channel is closed) without surfacing an
// error. Cancellation closes the socket with code 1000 and never surfaces
// as an error.
func (c *Client) ListenBlockEvents(ctx context.Context, channel, peerHostname, tlsSNI, mspID string, identity custodian.AppIdentity, start fabric.StartPosition) (<-chan fabric.FilteredBlock, error) {
	if c.wsBaseURL == "" {
		return nil, errs.New(errs.InputInvalid, "ws_url is required to listen for block events")
	}

	envelope, err := fabric.SeekInfoEnvelope(channel, mspID, identity.CertPEM, start)
	if err != nil {
		return nil, err
	}

	der, err := signAndNormalize(identity, envelope.GetPayload())
	if err != nil {
		return nil, err
	}
	envelope.Signature = der

	frame, err := proto.Marshal(envelope)
	if err != nil {
		return nil, errs.Wrap(errs.Unknown, err, "failed marshaling seek envelope")
	}

	target := fmt.Sprintf("%s?target=%s&hostname=%s", c.wsBaseURL, url.QueryEscape(peerHostname), url.QueryEscape(tlsSNI))
	conn, err := c.transport().Connect(ctx, target)
	if err != nil {
		return nil, err
	}

	if err := conn.WriteBinary(frame); err != nil {
		_ = conn.Close(1000)
		return nil, errs.TransportFailureErr(err)
	}

	out := make(chan fabric.FilteredBlock)
	go func() {
		defer close(out)
		defer conn.Close(1000)

		for {
			if ctx.Err() != nil {
				return
			}

			data, err := conn.ReadBinary()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Logger.Debugf("deliver stream for %s ended: %v", channel, err)
				return
			}

			var resp peer.DeliverResponse
			if err := proto.Unmarshal(data, &resp); err != nil {
				log.Logger.Errorf("deliver stream sent a malformed frame: %v", err)
				continue
			}

			switch t := resp.GetType().(type) {
			case *peer.DeliverResponse_FilteredBlock:
				block := convertFilteredBlock(t.FilteredBlock)
				select {
				case out <- block:
				case <-ctx.Done():
					return
				}
			case *peer.DeliverResponse_Status:
				log.Logger.Debugf("deliver stream status for %s: %v", channel, t.Status)
			default:
				log.Logger.Debugf("deliver stream sent an unrecognized frame for %s", channel)
			}
		}
	}()

	return out, nil
}

// convertFilteredBlock maps the wire peer.FilteredBlock onto this module's
// domain FilteredBlock type.
func convertFilteredBlock(fb *peer.FilteredBlock) fabric.FilteredBlock {
	block := fabric.FilteredBlock{
		ChannelID: fb.GetChannelId(),
		Number:    fb.GetNumber(),
	}
	for _, tx := range fb.GetFilteredTransactions() {
		ft := fabric.FilteredTransaction{
			TxID:           tx.GetTxid(),
			ValidationCode: tx.GetTxValidationCode(),
		}
		if actions := tx.GetTransactionActions(); actions != nil {
			for _, a := range actions.GetChaincodeActions() {
				if ev := a.GetChaincodeEvent(); ev != nil {
					ft.ChaincodeActions = append(ft.ChaincodeActions, ev.GetEventName())
				}
			}
		}
		block.Transactions = append(block.Transactions, ft)
	}
	return block
}
