// Package store implements the task store (C4): the authoritative record
// of tasks, their status/history/artifacts, and push-notification
// registrations.
package store

import (
	"context"
	"errors"

	"github.com/kadirpekel/a2arun/pkg/a2a"
)

// Sentinel errors the router (§7) maps onto typed JSON-RPC codes.
var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrTaskExists        = errors.New("task already exists")
	ErrTaskNotCancelable = errors.New("task is not cancelable")
	ErrPushNotConfigured = errors.New("no push notification registered for task")
)

// Store is the abstract task persistence interface (§4.3). Implementations
// must serialize mutations of a single task's (status, history, artifacts)
// tuple; cross-task operations may run in parallel without coordination.
type Store interface {
	// CreateTask creates a new task in the submitted state. Fails with
	// ErrTaskExists if id is already present.
	CreateTask(ctx context.Context, id, contextID string) (*a2a.Task, error)

	// GetTask returns a snapshot of the task. historyLength, when non-nil,
	// truncates history to the most recent n entries; zero clears the
	// history field entirely rather than returning an empty slice.
	GetTask(ctx context.Context, id string, historyLength *int) (*a2a.Task, error)

	// UpdateTaskStatus writes a new status with the current timestamp. If
	// statusMessage is non-nil it is appended to history as part of the
	// same mutation. Fails with ErrTaskNotFound if id does not exist.
	UpdateTaskStatus(ctx context.Context, id string, state a2a.TaskState, statusMessage *a2a.Message) (*a2a.Task, error)

	// AppendArtifact appends or updates an artifact on the task, honoring
	// append/lastChunk semantics the caller has already resolved.
	AppendArtifact(ctx context.Context, id string, artifact a2a.Artifact) (*a2a.Task, error)

	// CancelTask validates the task is in the working state and, in one
	// atomic mutation, transitions it to canceled and appends a
	// synthesized agent status message "Task <id> canceled."
	CancelTask(ctx context.Context, id string) (*a2a.Task, error)

	// TaskExists reports whether a task with the given id is known to the
	// store.
	TaskExists(ctx context.Context, id string) (bool, error)

	// SetPushNotification registers (or replaces) a webhook for a task.
	SetPushNotification(ctx context.Context, cfg a2a.TaskPushNotificationConfig) (a2a.TaskPushNotificationConfig, error)

	// GetPushNotification returns the registered webhook for a task, or
	// ErrPushNotConfigured if none is registered.
	GetPushNotification(ctx context.Context, taskID string) (a2a.TaskPushNotificationConfig, error)

	// RemovePushNotification removes a task's webhook registration, if any.
	RemovePushNotification(ctx context.Context, taskID string) error
}
