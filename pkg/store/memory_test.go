package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/a2arun/pkg/a2a"
)

func TestMemoryStore_CreateAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	task, err := s.CreateTask(ctx, "t1", "")
	require.NoError(t, err)
	assert.Equal(t, "default", task.ContextID)
	assert.Equal(t, a2a.TaskStateSubmitted, task.Status.State)

	_, err = s.CreateTask(ctx, "t1", "")
	assert.ErrorIs(t, err, ErrTaskExists)

	got, err := s.GetTask(ctx, "t1", nil)
	require.NoError(t, err)
	assert.Equal(t, "t1", got.ID)

	_, err = s.GetTask(ctx, "missing", nil)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

// P1: after n sequential UpdateTaskStatus calls, GetTask returns exactly
// the n-th state.
func TestMemoryStore_P1_SequentialUpdatesObserveLast(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, err := s.CreateTask(ctx, "t1", "")
	require.NoError(t, err)

	states := []a2a.TaskState{a2a.TaskStateWorking, a2a.TaskStateInputRequired, a2a.TaskStateWorking, a2a.TaskStateCompleted}
	for _, st := range states {
		_, err := s.UpdateTaskStatus(ctx, "t1", st, nil)
		require.NoError(t, err)
	}

	got, err := s.GetTask(ctx, "t1", nil)
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCompleted, got.Status.State)
}

// P2: message ids in history are pairwise distinct.
func TestMemoryStore_P2_HistoryIDsUnique(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, err := s.CreateTask(ctx, "t1", "")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		msg := &a2a.Message{MessageID: fmt.Sprintf("m%d", i), Role: a2a.MessageRoleAgent, Parts: []a2a.Part{{Type: a2a.PartTypeText, Text: "x"}}}
		_, err := s.UpdateTaskStatus(ctx, "t1", a2a.TaskStateWorking, msg)
		require.NoError(t, err)
	}

	got, err := s.GetTask(ctx, "t1", nil)
	require.NoError(t, err)
	assert.True(t, a2a.UniqueHistoryIDs(got.History))
	assert.Len(t, got.History, 3)
}

// P4 / B3: cancel only succeeds from working; others fail with
// ErrTaskNotCancelable and leave the store unchanged.
func TestMemoryStore_P4_CancelOnlyFromWorking(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, err := s.CreateTask(ctx, "t1", "")
	require.NoError(t, err)

	_, err = s.CancelTask(ctx, "t1")
	assert.ErrorIs(t, err, ErrTaskNotCancelable)

	_, err = s.UpdateTaskStatus(ctx, "t1", a2a.TaskStateWorking, nil)
	require.NoError(t, err)

	got, err := s.CancelTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCanceled, got.Status.State)
	require.Len(t, got.History, 1)
	assert.Contains(t, got.History[0].Parts[0].Text, "canceled")

	_, err = s.CancelTask(ctx, "t1")
	assert.ErrorIs(t, err, ErrTaskNotCancelable)
}

// P5 / S4: GetTask(id, n) returns at most n history entries, the n most
// recent when stored history is >= n.
func TestMemoryStore_P5_HistoryTruncation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, err := s.CreateTask(ctx, "t1", "")
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		msg := &a2a.Message{MessageID: fmt.Sprintf("m%d", i), Role: a2a.MessageRoleUser, Parts: []a2a.Part{{Type: a2a.PartTypeText, Text: "x"}}}
		_, err := s.UpdateTaskStatus(ctx, "t1", a2a.TaskStateWorking, msg)
		require.NoError(t, err)
	}

	n := 2
	got, err := s.GetTask(ctx, "t1", &n)
	require.NoError(t, err)
	require.Len(t, got.History, 2)
	assert.Equal(t, "m4", got.History[0].MessageID)
	assert.Equal(t, "m5", got.History[1].MessageID)
}

// B1: historyLength = 0 returns no history field (nil slice).
func TestMemoryStore_B1_ZeroHistoryLength(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, err := s.CreateTask(ctx, "t1", "")
	require.NoError(t, err)
	msg := &a2a.Message{MessageID: "m1", Role: a2a.MessageRoleUser, Parts: []a2a.Part{{Type: a2a.PartTypeText, Text: "x"}}}
	_, err = s.UpdateTaskStatus(ctx, "t1", a2a.TaskStateWorking, msg)
	require.NoError(t, err)

	zero := 0
	got, err := s.GetTask(ctx, "t1", &zero)
	require.NoError(t, err)
	assert.Nil(t, got.History)
}

// L2: set then get push notification config round-trips.
func TestMemoryStore_L2_PushNotificationRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, err := s.CreateTask(ctx, "t1", "")
	require.NoError(t, err)

	cfg := a2a.TaskPushNotificationConfig{
		TaskID: "t1",
		PushNotificationConfig: a2a.PushNotificationConfig{
			URL:   "https://wh.example/hook",
			Token: "secret",
		},
	}
	_, err = s.SetPushNotification(ctx, cfg)
	require.NoError(t, err)

	got, err := s.GetPushNotification(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	require.NoError(t, s.RemovePushNotification(ctx, "t1"))
	_, err = s.GetPushNotification(ctx, "t1")
	assert.ErrorIs(t, err, ErrPushNotConfigured)
}

func TestMemoryStore_CrossTaskParallelism(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		_, err := s.CreateTask(ctx, fmt.Sprintf("t%d", i), "")
		require.NoError(t, err)
	}

	done := make(chan struct{}, 10)
	for i := 0; i < 10; i++ {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			_, _ = s.UpdateTaskStatus(ctx, fmt.Sprintf("t%d", i), a2a.TaskStateWorking, nil)
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	for i := 0; i < 10; i++ {
		got, err := s.GetTask(ctx, fmt.Sprintf("t%d", i), nil)
		require.NoError(t, err)
		assert.Equal(t, a2a.TaskStateWorking, got.Status.State)
	}
}
