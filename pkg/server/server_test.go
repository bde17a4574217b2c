package server

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/a2arun/pkg/config"
)

const testCardYAML = `
name: Test Agent
url: https://agent.example/a2a
skills:
  - id: echo
    name: Echo
`

func writeCard(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent-card.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testCardYAML), 0644))
	return path
}

func testConfig(t *testing.T) *config.Config {
	cfg := &config.Config{Server: config.ServerConfig{
		HTTPAddr:      "127.0.0.1:0",
		WSAddr:        "127.0.0.1:0",
		AgentCardPath: writeCard(t),
	}}
	cfg.SetDefaults()
	return cfg
}

func TestNew_BuildsServerWithMemoryStore(t *testing.T) {
	s, err := New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	assert.Equal(t, "Test Agent", s.AgentCard().Name)
	assert.True(t, s.AgentCard().Capabilities.Streaming)
	assert.NotNil(t, s.Router())
}

func TestNew_RejectsUnknownDialect(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Dialect = "oracle"
	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestRun_ShutsDownOnContextCancel(t *testing.T) {
	s, err := New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
