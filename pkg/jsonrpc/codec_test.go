package jsonrpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/a2arun/pkg/a2a"
)

func TestParseRequest_ParseError(t *testing.T) {
	_, err := ParseRequest([]byte(`{not json`))
	require.Error(t, err)
	rpcErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, CodeParseError, rpcErr.Code)
}

func TestParseRequest_InvalidRequest(t *testing.T) {
	_, err := ParseRequest([]byte(`{"jsonrpc":"2.0"}`))
	require.Error(t, err)
	rpcErr := err.(*Error)
	assert.Equal(t, CodeInvalidRequest, rpcErr.Code)
}

func TestDecodeParams_MessageSend(t *testing.T) {
	raw := json.RawMessage(`{
		"message": {"role":"user","messageId":"m1","parts":[{"kind":"text","text":"hi"}]}
	}`)
	parsed, rpcErr := DecodeParams(MethodMessageSend, raw)
	require.Nil(t, rpcErr)
	params, ok := parsed.(a2a.MessageSendParams)
	require.True(t, ok)
	assert.Equal(t, "m1", params.Message.MessageID)
}

func TestDecodeParams_InvalidParams(t *testing.T) {
	raw := json.RawMessage(`{"message": {"role":"user","messageId":"m1","parts":[]}}`)
	_, rpcErr := DecodeParams(MethodMessageSend, raw)
	require.NotNil(t, rpcErr)
	assert.Equal(t, CodeInvalidParams, rpcErr.Code)
}

func TestDecodeParams_UnknownMethod(t *testing.T) {
	_, rpcErr := DecodeParams("bogus/method", json.RawMessage(`{}`))
	require.NotNil(t, rpcErr)
	assert.Equal(t, CodeMethodNotFound, rpcErr.Code)
}

func TestDecodeParams_LegacyTasksSend(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "t1",
		"message": {"role":"user","messageId":"m1","parts":[{"kind":"text","text":"hi"}]}
	}`)
	parsed, rpcErr := DecodeParams(MethodTasksSend, raw)
	require.Nil(t, rpcErr)
	params := parsed.(a2a.MessageSendParams)
	assert.Equal(t, "t1", params.Message.TaskID)
}

func TestDecodeParams_ContentTypeNotSupported(t *testing.T) {
	a2a.AllowedFileMimeTypes = map[string]bool{"application/pdf": true}
	defer func() { a2a.AllowedFileMimeTypes = map[string]bool{} }()

	raw := json.RawMessage(`{
		"message": {"role":"user","messageId":"m1","parts":[{"kind":"file","file":{"bytes":"aGk=","mimeType":"application/exe"}}]}
	}`)
	_, rpcErr := DecodeParams(MethodMessageSend, raw)
	require.NotNil(t, rpcErr)
	assert.Equal(t, CodeContentTypeNotSupported, rpcErr.Code)
}

func TestSchema_KnownMethods(t *testing.T) {
	for _, m := range Methods() {
		assert.NotNil(t, Schema(m), "schema for %s", m)
	}
	assert.Nil(t, Schema("bogus"))
}
