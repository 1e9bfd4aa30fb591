package gateway

import (
	"context"
	"crypto/tls"
	"crypto/x509"

	"github.com/hyperledger/fabric-protos-go-apiv2/common"
	"github.com/hyperledger/fabric-protos-go-apiv2/gateway"
	"github.com/hyperledger/fabric-protos-go-apiv2/peer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	"github.com/nalapon/hf-web-client/internal/log"
	"github.com/nalapon/hf-web-client/pkg/custodian"
	"github.com/nalapon/hf-web-client/pkg/errs"
	"github.com/nalapon/hf-web-client/pkg/fabric"
	"github.com/nalapon/hf-web-client/pkg/signer"
)

// Client is the single public entry point this module exposes for talking
// to a Fabric Gateway peer.
type Client struct {
	rpc       gateway.GatewayClient
	conn      *grpc.ClientConn
	wsBaseURL string

	deliverTransport DeliverTransport
}

// New dials cfg.GatewayURL (TLS-pinned to cfg.TLSCACert when present) and
// returns a ready Client. If cfg.TransportOverride is set, it is used in
// place of dialing, the seam client_test.go's fake gateway.GatewayClient
// uses.
//
// Grounded on pkg/infra/client.go's DialConnection/newGRPCClient: the same
// TLS-or-insecure dial decision, simplified to one gateway endpoint instead
// of tape's endorser/orderer/committer fan-out.
func New(cfg Config) (*Client, error) {
	if cfg.TransportOverride != nil {
		return &Client{rpc: cfg.TransportOverride(), wsBaseURL: cfg.WSURL}, nil
	}

	var dialOpt grpc.DialOption
	if cfg.TLSCACert != "" {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM([]byte(cfg.TLSCACert)) {
			return nil, errs.New(errs.InputInvalid, "tls_ca_cert is not a valid PEM certificate")
		}
		dialOpt = grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{RootCAs: pool}))
	} else {
		dialOpt = grpc.WithInsecure() //nolint:staticcheck // matches the teacher's insecure-by-default dial path
	}

	conn, err := grpc.Dial(cfg.GatewayURL, dialOpt)
	if err != nil {
		return nil, errs.TransportFailureErr(err)
	}

	return &Client{
		rpc:       gateway.NewGatewayClient(conn),
		conn:      conn,
		wsBaseURL: cfg.WSURL,
	}, nil
}

// Close releases the underlying gRPC connection, if this Client dialed one.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// signedProposal builds and signs a SignedProposal for params under
// identity, returning it alongside the TransactionContext it was built
// from (the caller needs txCtx.TxID regardless of which RPC follows).
func signedProposal(params fabric.ProposalParams, identity custodian.AppIdentity) (*peer.SignedProposal, *fabric.TransactionContext, error) {
	txCtx, err := fabric.NewTransactionContext(params.MSPID, identity.CertPEM)
	if err != nil {
		return nil, nil, err
	}

	proposal, err := fabric.ProposalPayload(params, txCtx)
	if err != nil {
		return nil, nil, err
	}

	proposalBytes, err := proto.Marshal(proposal)
	if err != nil {
		return nil, nil, errs.Wrap(errs.Unknown, err, "failed marshaling proposal")
	}

	der, err := signAndNormalize(identity, proposalBytes)
	if err != nil {
		return nil, nil, err
	}

	return &peer.SignedProposal{
		ProposalBytes: proposalBytes,
		Signature:     der,
	}, txCtx, nil
}

// signAndNormalize signs msg through identity's capability and normalizes
// the raw signature into the DER encoding every signature in this module
// uses.
func signAndNormalize(identity custodian.AppIdentity, msg []byte) ([]byte, error) {
	raw, err := identity.Sign(msg)
	if err != nil {
		return nil, err
	}
	der, err := signer.Normalize(raw)
	if err != nil {
		return nil, errs.Wrap(errs.Unknown, err, "failed normalizing signature")
	}
	return der, nil
}

// classifyRPCError distinguishes an endorsement-level failure (the
// chaincode itself returned an error, or peers disagreed) from a transport
// failure (connection refused, TLS failure, any other non-OK gRPC status).
//
// The real gateway service reports endorsement failures as codes.Aborted
// with the chaincode's own error text as the status message; everything
// else is a transport problem.
func classifyRPCError(err error) error {
	if err == nil {
		return nil
	}
	if st, ok := status.FromError(err); ok && st.Code() == codes.Aborted {
		return errs.New(errs.EndorsementFailure, st.Message())
	}
	return errs.TransportFailureErr(err)
}

// EvaluateTransaction runs params as a query: it is signed and endorsed
// locally by the gateway's chosen peer, but the result is never submitted
// to the ordering service.
func (c *Client) EvaluateTransaction(ctx context.Context, params fabric.ProposalParams, identity custodian.AppIdentity) (*fabric.EvaluatedTransaction, error) {
	proposal, txCtx, err := signedProposal(params, identity)
	if err != nil {
		return nil, err
	}

	resp, err := c.rpc.Evaluate(ctx, &gateway.EvaluateRequest{
		TransactionId:       txCtx.TxID,
		ChannelId:           params.ChannelName,
		ProposedTransaction: proposal,
	})
	if err != nil {
		return nil, classifyRPCError(err)
	}

	result := resp.GetResult()
	return &fabric.EvaluatedTransaction{
		TxID:       txCtx.TxID,
		Status:     result.GetStatus(),
		Message:    result.GetMessage(),
		ParsedData: fabric.ParseEvaluationPayload(result.GetPayload()),
	}, nil
}

// endorseOutcome bundles what an Endorse RPC produces: the prepared
// transaction submit() needs, plus the already-decoded simulation result
// submitAndCommit surfaces to its own caller.
type endorseOutcome struct {
	Prepared fabric.PreparedTransaction
	Result   interface{}
}

func (c *Client) endorse(ctx context.Context, params fabric.ProposalParams, identity custodian.AppIdentity) (endorseOutcome, error) {
	proposal, txCtx, err := signedProposal(params, identity)
	if err != nil {
		return endorseOutcome{}, err
	}

	resp, err := c.rpc.Endorse(ctx, &gateway.EndorseRequest{
		TransactionId:       txCtx.TxID,
		ChannelId:           params.ChannelName,
		ProposedTransaction: proposal,
	})
	if err != nil {
		return endorseOutcome{}, classifyRPCError(err)
	}

	envelopeBytes := resp.GetPreparedTransaction().GetPayload()

	return endorseOutcome{
		Prepared: fabric.PreparedTransaction{TxID: txCtx.TxID, EnvelopePayload: envelopeBytes},
		Result:   fabric.ParseEvaluationPayload(resp.GetResult().GetPayload()),
	}, nil
}

// PrepareTransaction endorses params and returns the tx id plus the raw
// envelope payload bytes the caller must submit next.
func (c *Client) PrepareTransaction(ctx context.Context, params fabric.ProposalParams, identity custodian.AppIdentity) (fabric.PreparedTransaction, error) {
	outcome, err := c.endorse(ctx, params, identity)
	if err != nil {
		return fabric.PreparedTransaction{}, err
	}
	return outcome.Prepared, nil
}

// SubmitSignedTransaction signs preparedPayload and submits it to the
// ordering service. It returns as soon as the gateway accepts the
// transaction; it does not wait for commit.
func (c *Client) SubmitSignedTransaction(ctx context.Context, channel, txID string, preparedPayload []byte, identity custodian.AppIdentity) error {
	der, err := signAndNormalize(identity, preparedPayload)
	if err != nil {
		return err
	}

	_, err = c.rpc.Submit(ctx, &gateway.SubmitRequest{
		TransactionId: txID,
		ChannelId:     channel,
		PreparedTransaction: &common.Envelope{
			Payload:   preparedPayload,
			Signature: der,
		},
	})
	if err != nil {
		return classifyRPCError(err)
	}
	log.Logger.Debugf("submitted transaction %s on channel %s", txID, channel)
	return nil
}

// CommitStatus calls the gateway's commit-status RPC for txID and reports
// the ultimate validation code, surfacing errs.CommitFailed if it is
// anything other than VALID.
func (c *Client) CommitStatus(ctx context.Context, channel, txID, mspID string, identity custodian.AppIdentity) (fabric.SubmittedOutcome, error) {
	reqBytes, err := fabric.CommitStatusRequestBytes(channel, txID, mspID, identity.CertPEM)
	if err != nil {
		return fabric.SubmittedOutcome{}, err
	}

	der, err := signAndNormalize(identity, reqBytes)
	if err != nil {
		return fabric.SubmittedOutcome{}, err
	}

	resp, err := c.rpc.CommitStatus(ctx, &gateway.SignedCommitStatusRequest{
		Request:   reqBytes,
		Signature: der,
	})
	if err != nil {
		return fabric.SubmittedOutcome{}, classifyRPCError(err)
	}

	outcome := fabric.SubmittedOutcome{TxID: txID, ValidationCode: resp.GetResult()}
	if !outcome.Valid() {
		return outcome, errs.CommitFailedErr(txID, outcome.ValidationCode)
	}
	return outcome, nil
}

// SubmitAndCommitResult is the outcome submitAndCommit returns on success.
type SubmitAndCommitResult struct {
	TxID   string
	Result interface{}
}

// SubmitAndCommit orchestrates prepare, submit, and commit-status in
// sequence. On failure at any stage it returns the first error, annotated
// with the stage it occurred in.
func (c *Client) SubmitAndCommit(ctx context.Context, params fabric.ProposalParams, identity custodian.AppIdentity) (*SubmitAndCommitResult, error) {
	outcome, err := c.endorse(ctx, params, identity)
	if err != nil {
		return nil, errs.Wrap(errOrUnknownKind(err), err, "prepare: "+err.Error())
	}

	if err := c.SubmitSignedTransaction(ctx, params.ChannelName, outcome.Prepared.TxID, outcome.Prepared.EnvelopePayload, identity); err != nil {
		return nil, errs.Wrap(errOrUnknownKind(err), err, "submit: "+err.Error())
	}

	if _, err := c.CommitStatus(ctx, params.ChannelName, outcome.Prepared.TxID, params.MSPID, identity); err != nil {
		return nil, errs.Wrap(errOrUnknownKind(err), err, "commit: "+err.Error())
	}

	return &SubmitAndCommitResult{TxID: outcome.Prepared.TxID, Result: outcome.Result}, nil
}

// errOrUnknownKind extracts the Kind of err if it is already an *errs.Error
// (so stage annotation doesn't erase the original classification), falling
// back to Unknown.
func errOrUnknownKind(err error) errs.Kind {
	if e, ok := err.(*errs.Error); ok {
		return e.Kind
	}
	return errs.Unknown
}

