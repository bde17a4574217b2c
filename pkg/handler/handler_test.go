package handler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/a2arun/pkg/a2a"
	"github.com/kadirpekel/a2arun/pkg/store"
)

func TestDefaultHandler_AppendsHistoryAndMarksWorking(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	task, err := s.CreateTask(ctx, "t1", "")
	require.NoError(t, err)

	h := NewDefaultHandler(s)
	msg := a2a.Message{MessageID: "m1", Role: a2a.MessageRoleUser, Parts: []a2a.Part{{Type: a2a.PartTypeText, Text: "hi"}}}

	updated, err := h.ProcessMessage(ctx, task, msg)
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateWorking, updated.Status.State)
	require.Len(t, updated.History, 1)
	assert.Equal(t, "m1", updated.History[0].MessageID)
}
