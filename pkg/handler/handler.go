// Package handler implements the message handler (C7): the pluggable
// business logic invoked once a task's existence and history have been
// resolved by the router, responsible only for deciding what happens to
// the task next.
package handler

import (
	"context"

	"github.com/kadirpekel/a2arun/pkg/a2a"
	"github.com/kadirpekel/a2arun/pkg/store"
)

// Handler processes an incoming message against a task and returns the
// task's new state. It does not talk to the broker or push dispatcher;
// the router does that once the returned task is known, by diffing the
// artifacts against those the task held before the call and always
// broadcasting the returned status.
type Handler interface {
	ProcessMessage(ctx context.Context, task *a2a.Task, msg a2a.Message) (*a2a.Task, error)
}

// DefaultHandler is the out-of-the-box handler: it appends the incoming
// message to history, marks the task working, and leaves it there. It
// exists so a2arun is runnable standalone and so other handlers have a
// minimal reference implementation to diverge from; real agents plug in
// their own Handler that eventually drives the task to a terminal state.
type DefaultHandler struct {
	store store.Store
}

// NewDefaultHandler constructs a DefaultHandler backed by store for the
// status transition it performs.
func NewDefaultHandler(s store.Store) *DefaultHandler {
	return &DefaultHandler{store: s}
}

func (h *DefaultHandler) ProcessMessage(ctx context.Context, task *a2a.Task, msg a2a.Message) (*a2a.Task, error) {
	return h.store.UpdateTaskStatus(ctx, task.ID, a2a.TaskStateWorking, &msg)
}
