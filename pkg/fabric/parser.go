package fabric

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// EvaluatedTransaction is the result of a successful evaluate call: the
// transaction id the builder assigned, the simulated response status and
// message from the chaincode, and the parsed payload.
type EvaluatedTransaction struct {
	TxID       string
	Status     int32
	Message    string
	ParsedData interface{}
}

// ParseEvaluationPayload interprets the raw payload of a gateway evaluate
// response:
//  1. decode as UTF-8; on failure return the binary fallback rendering.
//  2. if the UTF-8 string parses as JSON, return the parsed structure.
//  3. otherwise return the UTF-8 string unchanged.
//
// For a JSON payload, re-encoding the parsed result with encoding/json and
// parsing those bytes again yields an equal value. The input is always raw
// evaluate-response bytes; an already-parsed value is never passed back in
// directly.
func ParseEvaluationPayload(payload []byte) interface{} {
	if !utf8.Valid(payload) {
		return fmt.Sprintf("(binary) 0x%x", payload)
	}

	s := string(payload)

	var parsed interface{}
	if err := json.Unmarshal(payload, &parsed); err == nil {
		return parsed
	}

	return s
}
