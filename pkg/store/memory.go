package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kadirpekel/a2arun/pkg/a2a"
)

// MemoryStore is an in-process, volatile Store implementation. Each task
// owns its own mutex, held only across the data mutation itself — never
// across subscriber or webhook I/O, per §4.3/§5.
type MemoryStore struct {
	mu    sync.RWMutex // guards the tasks map itself (insert/lookup)
	tasks map[string]*taskEntry
}

type taskEntry struct {
	mu   sync.Mutex // serializes mutations of this one task
	task *a2a.Task
	push *a2a.TaskPushNotificationConfig
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]*taskEntry)}
}

func (s *MemoryStore) entry(id string) (*taskEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.tasks[id]
	return e, ok
}

func (s *MemoryStore) CreateTask(ctx context.Context, id, contextID string) (*a2a.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; ok {
		return nil, ErrTaskExists
	}
	t := a2a.NewTask(id, contextID)
	s.tasks[id] = &taskEntry{task: t}
	return cloneTask(t), nil
}

func (s *MemoryStore) GetTask(ctx context.Context, id string, historyLength *int) (*a2a.Task, error) {
	e, ok := s.entry(id)
	if !ok {
		return nil, ErrTaskNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	snapshot := cloneTask(e.task)
	applyHistoryLength(snapshot, historyLength)
	return snapshot, nil
}

func (s *MemoryStore) UpdateTaskStatus(ctx context.Context, id string, state a2a.TaskState, statusMessage *a2a.Message) (*a2a.Task, error) {
	e, ok := s.entry(id)
	if !ok {
		return nil, ErrTaskNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UTC()
	e.task.Status = a2a.TaskStatus{State: state, Timestamp: &now}
	if statusMessage != nil {
		e.task.Status.Message = statusMessage
		e.task.History = append(e.task.History, *statusMessage)
	}
	return cloneTask(e.task), nil
}

func (s *MemoryStore) AppendArtifact(ctx context.Context, id string, artifact a2a.Artifact) (*a2a.Task, error) {
	e, ok := s.entry(id)
	if !ok {
		return nil, ErrTaskNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	found := false
	for i := range e.task.Artifacts {
		if e.task.Artifacts[i].ArtifactID == artifact.ArtifactID {
			e.task.Artifacts[i] = artifact
			found = true
			break
		}
	}
	if !found {
		e.task.Artifacts = append(e.task.Artifacts, artifact)
	}
	return cloneTask(e.task), nil
}

func (s *MemoryStore) CancelTask(ctx context.Context, id string) (*a2a.Task, error) {
	e, ok := s.entry(id)
	if !ok {
		return nil, ErrTaskNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.task.Status.State != a2a.TaskStateWorking {
		return nil, ErrTaskNotCancelable
	}

	now := time.Now().UTC()
	synth := a2a.Message{
		Role:      a2a.MessageRoleAgent,
		MessageID: fmt.Sprintf("%s-canceled", id),
		TaskID:    id,
		ContextID: e.task.ContextID,
		Kind:      "message",
		Parts: []a2a.Part{{
			Type: a2a.PartTypeText,
			Text: fmt.Sprintf("Task %s canceled.", id),
		}},
	}
	e.task.Status = a2a.TaskStatus{State: a2a.TaskStateCanceled, Timestamp: &now, Message: &synth}
	e.task.History = append(e.task.History, synth)
	return cloneTask(e.task), nil
}

func (s *MemoryStore) TaskExists(ctx context.Context, id string) (bool, error) {
	_, ok := s.entry(id)
	return ok, nil
}

func (s *MemoryStore) SetPushNotification(ctx context.Context, cfg a2a.TaskPushNotificationConfig) (a2a.TaskPushNotificationConfig, error) {
	e, ok := s.entry(cfg.TaskID)
	if !ok {
		return a2a.TaskPushNotificationConfig{}, ErrTaskNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	c := cfg
	e.push = &c
	return cfg, nil
}

func (s *MemoryStore) GetPushNotification(ctx context.Context, taskID string) (a2a.TaskPushNotificationConfig, error) {
	e, ok := s.entry(taskID)
	if !ok {
		return a2a.TaskPushNotificationConfig{}, ErrTaskNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.push == nil {
		return a2a.TaskPushNotificationConfig{}, ErrPushNotConfigured
	}
	return *e.push, nil
}

func (s *MemoryStore) RemovePushNotification(ctx context.Context, taskID string) error {
	e, ok := s.entry(taskID)
	if !ok {
		return ErrTaskNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.push = nil
	return nil
}

// applyHistoryLength enforces the §4.3 truncation policy: nil means full
// history, 0 means no history field, n means the n most recent entries.
func applyHistoryLength(t *a2a.Task, n *int) {
	if n == nil {
		return
	}
	if *n <= 0 {
		t.History = nil
		return
	}
	if len(t.History) > *n {
		t.History = append([]a2a.Message{}, t.History[len(t.History)-*n:]...)
	}
}

func cloneTask(t *a2a.Task) *a2a.Task {
	cp := *t
	if t.History != nil {
		cp.History = append([]a2a.Message{}, t.History...)
	}
	if t.Artifacts != nil {
		cp.Artifacts = append([]a2a.Artifact{}, t.Artifacts...)
	}
	if t.Metadata != nil {
		m := make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			m[k] = v
		}
		cp.Metadata = m
	}
	return &cp
}
