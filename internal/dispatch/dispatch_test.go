package dispatch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractProgressTokenAcceptsStringToken(t *testing.T) {
	params := json.RawMessage(`{"_meta":{"progressToken":"op1"}}`)
	require.Equal(t, "op1", extractProgressToken(params))
}

func TestExtractProgressTokenAcceptsNumericToken(t *testing.T) {
	params := json.RawMessage(`{"_meta":{"progressToken":42}}`)
	require.Equal(t, "42", extractProgressToken(params))
}

func TestExtractProgressTokenMissingMeta(t *testing.T) {
	require.Equal(t, "", extractProgressToken(json.RawMessage(`{}`)))
}

func TestExtractProgressTokenMalformedParams(t *testing.T) {
	require.Equal(t, "", extractProgressToken(json.RawMessage(`not json`)))
}
