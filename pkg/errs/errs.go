// Package errs defines the error taxonomy of this module. pkg/custodian
// returns *Error from every public operation. pkg/gateway's Client returns
// *Error for dial, RPC and signing failures, but passes errors from
// pkg/fabric's builders through unchanged, and LoadConfig returns plain
// errors. pkg/fabric, pkg/signer, the keystore implementations and
// pkg/loadtest return plain pkg/errors-wrapped errors.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies the category of a failure. Callers branch on Kind, not on
// the error message, which is free to change.
type Kind int

const (
	// Unknown is the zero value of Kind and the kind given to internal
	// failures (randomness, marshaling, signing, storage) that fit no other
	// category.
	Unknown Kind = iota

	// InputInvalid covers weak passwords, missing fields, malformed shares,
	// and unrecognized configuration options.
	InputInvalid

	// NotUnlocked is returned when sign is requested with no unlocked key.
	NotUnlocked

	// BadPassword is returned when a KDF-derived key fails AEAD
	// authentication during unlock.
	BadPassword

	// StoreCorrupt is returned when a sealed record has some of its four
	// fields present and others missing.
	StoreCorrupt

	// TransportFailure covers connection refusal, TLS failure, and gRPC
	// statuses other than OK.
	TransportFailure

	// EndorsementFailure is returned when the chaincode returns a
	// non-success response or endorsing peers disagree.
	EndorsementFailure

	// CommitFailed is returned when the commit-status RPC reports a
	// validation code other than VALID.
	CommitFailed

	// Cancelled marks user-initiated cancellation. Streams never surface it
	// as an error; it exists for the rare non-stream caller that needs to
	// tell cancellation apart from failure.
	Cancelled

	// StreamProtocolError marks a deliver WebSocket that sent a non-binary
	// frame. Close codes are not inspected, and a frame that fails to
	// decode is logged and skipped rather than reported with this kind.
	StreamProtocolError
)

func (k Kind) String() string {
	switch k {
	case InputInvalid:
		return "InputInvalid"
	case NotUnlocked:
		return "NotUnlocked"
	case BadPassword:
		return "BadPassword"
	case StoreCorrupt:
		return "StoreCorrupt"
	case TransportFailure:
		return "TransportFailure"
	case EndorsementFailure:
		return "EndorsementFailure"
	case CommitFailed:
		return "CommitFailed"
	case Cancelled:
		return "Cancelled"
	case StreamProtocolError:
		return "StreamProtocolError"
	default:
		return "Unknown"
	}
}

// Error is the shape every public operation in this module returns on
// failure: a single Kind and a human-readable message. It never embeds key
// or password material, regardless of what its cause chain contains.
type Error struct {
	Kind  Kind
	Msg   string
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New builds an *Error carrying kind and msg with no further cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap converts cause into an *Error of the given kind, preserving cause for
// Unwrap but never echoing it verbatim if the caller passed a msg.
func Wrap(kind Kind, cause error, msg string) *Error {
	if msg == "" {
		msg = cause.Error()
	}
	return &Error{Kind: kind, Msg: msg, cause: cause}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(kind Kind, cause error, format string, args ...interface{}) *Error {
	return Wrap(kind, cause, fmt.Sprintf(format, args...))
}

// NotUnlockedErr is returned by sign when no key is currently unlocked.
func NotUnlockedErr() *Error {
	return New(NotUnlocked, "no identity is unlocked")
}

// BadPasswordErr is returned by unlock when AEAD authentication fails.
func BadPasswordErr() *Error {
	return New(BadPassword, "password did not authenticate the sealed identity")
}

// StoreCorruptErr is returned when a sealed record has partial fields.
func StoreCorruptErr(missing string) *Error {
	return New(StoreCorrupt, "sealed identity record is incomplete: missing "+missing)
}

// CommitFailedErr reports a non-VALID commit outcome for txID.
func CommitFailedErr(txID string, code fmt.Stringer) *Error {
	return New(CommitFailed, fmt.Sprintf("transaction %s failed to commit: %s", txID, code))
}

// innermostDetail walks a pkg/errors cause chain and returns the deepest
// message available, preferring an embedded transport detail (for example a
// chaincode error string nested inside a gRPC status) over the outer
// transport-library wrapper message.
func innermostDetail(err error) string {
	cause := errors.Cause(err)
	if cause == nil {
		return err.Error()
	}
	return cause.Error()
}

// TransportFailureErr builds a TransportFailure error preferring the
// innermost decoded detail in err's cause chain, per the error handling
// design's message-preference rule.
func TransportFailureErr(err error) *Error {
	return Wrap(TransportFailure, err, innermostDetail(err))
}
