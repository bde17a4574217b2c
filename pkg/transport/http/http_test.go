package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/a2arun/pkg/a2a"
	"github.com/kadirpekel/a2arun/pkg/broker"
	"github.com/kadirpekel/a2arun/pkg/handler"
	"github.com/kadirpekel/a2arun/pkg/jsonrpc"
	"github.com/kadirpekel/a2arun/pkg/router"
	"github.com/kadirpekel/a2arun/pkg/store"
)

func testCard() *a2a.AgentCard {
	return &a2a.AgentCard{
		Name:               "test-agent",
		URL:                "http://localhost:8080/",
		Version:            "0.1.0",
		DefaultInputModes:  []string{"text/plain"},
		DefaultOutputModes: []string{"text/plain"},
		Skills: []a2a.AgentSkill{
			{ID: "echo", Name: "Echo", Description: "echoes input"},
		},
	}
}

func testRouter() *router.Router {
	s := store.NewMemoryStore()
	return router.New(s, handler.NewDefaultHandler(s), broker.New(0, 0), nil, nil)
}

func TestHandleRPC_MessageSend(t *testing.T) {
	mux := New(testRouter(), testCard(), nil, nil, nil)

	body := `{"jsonrpc":"2.0","id":1,"method":"message/send","params":{"message":{"messageId":"m1","role":"user","parts":[{"kind":"text","text":"hi"}]}}}`
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp jsonrpc.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.Error)
}

func TestHandleRPC_RejectsStreamingMethod(t *testing.T) {
	mux := New(testRouter(), testCard(), nil, nil, nil)

	body := `{"jsonrpc":"2.0","id":1,"method":"message/stream","params":{"message":{"messageId":"m1","role":"user","parts":[{"kind":"text","text":"hi"}]}}}`
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	var resp jsonrpc.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.CodeUnsupportedOperation, resp.Error.Code)
}

func TestHandleAgentCard(t *testing.T) {
	mux := New(testRouter(), testCard(), nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/.well-known/agent-card.json", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var card a2a.AgentCard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &card))
	assert.Equal(t, "test-agent", card.Name)
}

func TestHandleSkills(t *testing.T) {
	mux := New(testRouter(), testCard(), nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/skills/echo", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/skills/missing", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSchema(t *testing.T) {
	mux := New(testRouter(), testCard(), nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/schema/message/send", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &schema))
	assert.NotEmpty(t, schema)

	req = httptest.NewRequest(http.MethodGet, "/schema/bogus/method", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
