package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/a2arun/pkg/a2a"
)

func statusEvent(taskID string, final bool) *a2a.TaskStatusUpdateEvent {
	return a2a.NewStatusUpdateEvent(&a2a.Task{ID: taskID, Status: a2a.TaskStatus{State: a2a.TaskStateWorking}}, final)
}

func artifactEvent(taskID, artifactID string) *a2a.TaskArtifactUpdateEvent {
	return a2a.NewArtifactUpdateEvent(taskID, "", a2a.Artifact{ArtifactID: artifactID})
}

func TestBroker_PublishStatusDeliversToSubscriber(t *testing.T) {
	b := New(4, time.Minute)
	sub := b.SubscribeStatus("t1", nil)
	defer sub.Close()

	b.PublishStatus("t1", statusEvent("t1", false))

	select {
	case ev := <-sub.Events():
		se, ok := ev.(*a2a.TaskStatusUpdateEvent)
		require.True(t, ok)
		assert.Equal(t, "t1", se.TaskID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBroker_CatchUpEventDeliveredFirst(t *testing.T) {
	b := New(4, time.Minute)
	catchUp := statusEvent("t1", false)
	sub := b.SubscribeStatus("t1", catchUp)
	defer sub.Close()

	select {
	case ev := <-sub.Events():
		assert.Same(t, catchUp, ev)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for catch-up event")
	}
}

func TestBroker_DropsOnFullBuffer(t *testing.T) {
	b := New(1, time.Minute)
	sub := b.SubscribeStatus("t1", nil)
	defer sub.Close()

	b.PublishStatus("t1", statusEvent("t1", false))
	// Buffer now full; this publish must not block.
	done := make(chan struct{})
	go func() {
		b.PublishStatus("t1", statusEvent("t1", true))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber buffer")
	}
}

func TestBroker_UnrelatedTaskNotAffected(t *testing.T) {
	b := New(4, time.Minute)
	sub1 := b.SubscribeStatus("t1", nil)
	defer sub1.Close()
	sub2 := b.SubscribeStatus("t2", nil)
	defer sub2.Close()

	b.PublishStatus("t1", statusEvent("t1", false))

	select {
	case <-sub2.Events():
		t.Fatal("subscriber for t2 received an event meant for t1")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBroker_CloseRemovesSubscription(t *testing.T) {
	b := New(4, time.Minute)
	sub := b.SubscribeStatus("t1", nil)
	assert.Equal(t, 1, b.StatusSubscriberCount("t1"))

	sub.Close()
	assert.Equal(t, 0, b.StatusSubscriberCount("t1"))

	_, ok := <-sub.Events()
	assert.False(t, ok)
}

func TestBroker_StatusAndArtifactTablesAreIndependent(t *testing.T) {
	b := New(4, time.Minute)
	statusSub := b.SubscribeStatus("t1", nil)
	defer statusSub.Close()
	artifactSub := b.SubscribeArtifact("t1", nil)
	defer artifactSub.Close()

	b.PublishArtifact("t1", artifactEvent("t1", "a1"))

	select {
	case <-statusSub.Events():
		t.Fatal("status subscriber received an artifact event")
	case <-time.After(100 * time.Millisecond):
	}

	select {
	case ev := <-artifactSub.Events():
		ae, ok := ev.(*a2a.TaskArtifactUpdateEvent)
		require.True(t, ok)
		assert.Equal(t, "a1", ae.Artifact.ArtifactID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for artifact event")
	}

	assert.Equal(t, 1, b.StatusSubscriberCount("t1"))
	assert.Equal(t, 1, b.ArtifactSubscriberCount("t1"))
}

func TestBroker_SubscribeMergesStatusAndArtifactEvents(t *testing.T) {
	b := New(4, time.Minute)
	sub := b.Subscribe("t1", statusEvent("t1", false), []a2a.Event{artifactEvent("t1", "a1")})
	defer sub.Close()

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case ev := <-sub.Events():
			switch e := ev.(type) {
			case *a2a.TaskStatusUpdateEvent:
				seen["status"] = true
				assert.Equal(t, "t1", e.TaskID)
			case *a2a.TaskArtifactUpdateEvent:
				seen["artifact"] = true
				assert.Equal(t, "a1", e.Artifact.ArtifactID)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for merged catch-up events")
		}
	}
	assert.True(t, seen["status"])
	assert.True(t, seen["artifact"])

	sub.Close()
	_, ok := <-sub.Events()
	assert.False(t, ok, "merged channel must close after Close")
}

func TestBroker_RunStopsOnContextCancel(t *testing.T) {
	b := New(4, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}
