package fabric

import (
	"time"

	"github.com/hyperledger/fabric-protos-go-apiv2/common"
	"github.com/hyperledger/fabric-protos-go-apiv2/peer"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Arg is one chaincode invocation argument. Args may be supplied as either
// a UTF-8 string or raw bytes; ProposalPayload serializes whichever form is
// given without re-encoding it.
type Arg struct {
	String string
	Bytes  []byte
	IsRaw  bool
}

// StringArg wraps a UTF-8 argument.
func StringArg(s string) Arg { return Arg{String: s} }

// BytesArg wraps a raw-byte argument.
func BytesArg(b []byte) Arg { return Arg{Bytes: b, IsRaw: true} }

func (a Arg) bytes() []byte {
	if a.IsRaw {
		return a.Bytes
	}
	return []byte(a.String)
}

// ProposalParams names the chaincode invocation a proposal will carry.
// Args are serialized in order after the function name: index 0 of the
// resulting chaincode input is the UTF-8 function name, indices 1..N are
// the caller-supplied args in order.
type ProposalParams struct {
	MSPID         string
	ChannelName   string
	ChaincodeName string
	FunctionName  string
	Args          []Arg
}

func (p ProposalParams) ccArgs() [][]byte {
	argsByte := make([][]byte, 0, len(p.Args)+1)
	argsByte = append(argsByte, []byte(p.FunctionName))
	for _, a := range p.Args {
		argsByte = append(argsByte, a.bytes())
	}
	return argsByte
}

// ProposalPayload assembles an unsigned peer.Proposal for params, signed
// over the given transaction context. The chaincode type is set to GOLANG
// unconditionally: the field is informational at the wire level and does
// not restrict which chaincode language actually runs on the peer.
//
// Grounded on hyperledger/fabric's
// protoutil.CreateChaincodeProposalWithTxIDNonceAndTransient: the same
// ChaincodeHeaderExtension / ChannelHeader / SignatureHeader / Header
// assembly, generalized to take an already-computed TransactionContext
// instead of generating its own nonce, so the same (nonce, creator) pair
// and params always produce the same tx id and a byte-identical
// Proposal.Payload. The channel header carries the current time, so the
// Proposal.Header bytes differ between calls.
func ProposalPayload(params ProposalParams, txCtx *TransactionContext) (*peer.Proposal, error) {
	spec := &peer.ChaincodeSpec{
		Type:        peer.ChaincodeSpec_GOLANG,
		ChaincodeId: &peer.ChaincodeID{Name: params.ChaincodeName},
		Input:       &peer.ChaincodeInput{Args: params.ccArgs()},
	}
	invocation := &peer.ChaincodeInvocationSpec{ChaincodeSpec: spec}

	ccHdrExt := &peer.ChaincodeHeaderExtension{ChaincodeId: spec.ChaincodeId}
	ccHdrExtBytes, err := proto.Marshal(ccHdrExt)
	if err != nil {
		return nil, errors.Wrap(err, "error marshaling ChaincodeHeaderExtension")
	}

	cisBytes, err := proto.Marshal(invocation)
	if err != nil {
		return nil, errors.Wrap(err, "error marshaling ChaincodeInvocationSpec")
	}

	ccPropPayload := &peer.ChaincodeProposalPayload{Input: cisBytes}
	ccPropPayloadBytes, err := proto.Marshal(ccPropPayload)
	if err != nil {
		return nil, errors.Wrap(err, "error marshaling ChaincodeProposalPayload")
	}

	hdr := &common.Header{
		ChannelHeader: mustMarshal(&common.ChannelHeader{
			Type:      int32(common.HeaderType_ENDORSER_TRANSACTION),
			Version:   1,
			TxId:      txCtx.TxID,
			Timestamp: timestamppb.New(time.Now().UTC()),
			ChannelId: params.ChannelName,
			Extension: ccHdrExtBytes,
			Epoch:     0,
		}),
		SignatureHeader: mustMarshal(&common.SignatureHeader{
			Nonce:   txCtx.Nonce,
			Creator: txCtx.CreatorBytes,
		}),
	}

	hdrBytes, err := proto.Marshal(hdr)
	if err != nil {
		return nil, errors.Wrap(err, "error marshaling Header")
	}

	return &peer.Proposal{
		Header:  hdrBytes,
		Payload: ccPropPayloadBytes,
	}, nil
}

func mustMarshal(m proto.Message) []byte {
	b, err := proto.Marshal(m)
	if err != nil {
		panic(errors.Wrap(err, "error marshaling protobuf message"))
	}
	return b
}
