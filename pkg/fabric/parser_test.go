package fabric_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nalapon/hf-web-client/pkg/fabric"
)

func TestParseEvaluationPayloadJSONArray(t *testing.T) {
	payload := []byte(`[{"ID":"asset1","Color":"blue"},{"ID":"asset2","Color":"red"}]`)
	parsed := fabric.ParseEvaluationPayload(payload)

	arr, ok := parsed.([]interface{})
	require.True(t, ok)
	require.Len(t, arr, 2)
}

func TestParseEvaluationPayloadIsIdempotentForJSON(t *testing.T) {
	payload := []byte(`{"ID":"test-asset-1","Color":"blue","Size":10}`)
	once := fabric.ParseEvaluationPayload(payload)

	reencoded, err := json.Marshal(once)
	require.NoError(t, err)
	twice := fabric.ParseEvaluationPayload(reencoded)

	require.Equal(t, once, twice)
}

func TestParseEvaluationPayloadNonJSONPassthrough(t *testing.T) {
	payload := []byte("plain text response, not json")
	parsed := fabric.ParseEvaluationPayload(payload)

	s, ok := parsed.(string)
	require.True(t, ok)
	require.Equal(t, string(payload), s)
}

func TestParseEvaluationPayloadBinaryFallback(t *testing.T) {
	payload := []byte{0xff, 0xfe, 0x00, 0x01}
	parsed := fabric.ParseEvaluationPayload(payload)

	s, ok := parsed.(string)
	require.True(t, ok)
	require.Equal(t, "(binary) 0xfffe0001", s)
}
