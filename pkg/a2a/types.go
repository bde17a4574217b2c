// Package a2a implements the Agent-to-Agent (A2A) Protocol wire types:
// https://a2a-protocol.org/latest/specification/
package a2a

import "time"

// ============================================================================
// PROTOCOL VERSION
// ============================================================================

const ProtocolVersion = "1.0"

// ============================================================================
// TASK - Unit of Work in A2A Protocol
// ============================================================================

// Task represents a stateful unit of work owned by the server.
type Task struct {
	ID        string         `json:"id"`
	ContextID string         `json:"contextId"`
	Status    TaskStatus     `json:"status"`
	History   []Message      `json:"history,omitempty"`
	Artifacts []Artifact     `json:"artifacts,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Kind      string         `json:"kind"`
}

// TaskStatus carries the current state, an optional status message and
// the time of the last transition.
type TaskStatus struct {
	State     TaskState  `json:"state"`
	Message   *Message   `json:"message,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// TaskState is one of the nine wire-exact task lifecycle states.
type TaskState string

const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateCanceled      TaskState = "canceled"
	TaskStateFailed        TaskState = "failed"
	TaskStateRejected      TaskState = "rejected"
	TaskStateAuthRequired  TaskState = "auth-required"
	TaskStateUnknown       TaskState = "unknown"
)

// IsTerminal reports whether no further transitions are expected.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateCanceled, TaskStateFailed, TaskStateRejected:
		return true
	default:
		return false
	}
}

// NewTask constructs a task in its initial submitted state.
func NewTask(id, contextID string) *Task {
	now := time.Now().UTC()
	if contextID == "" {
		contextID = "default"
	}
	return &Task{
		ID:        id,
		ContextID: contextID,
		Kind:      "task",
		Status: TaskStatus{
			State:     TaskStateSubmitted,
			Timestamp: &now,
		},
	}
}

// ============================================================================
// MESSAGE - Conversation Messages
// ============================================================================

// Message is an ordered sequence of parts exchanged between a client and
// the agent, tagged with a role and carrying a unique id.
type Message struct {
	Role      MessageRole    `json:"role"`
	Parts     []Part         `json:"parts"`
	MessageID string         `json:"messageId"`
	ContextID string         `json:"contextId,omitempty"`
	TaskID    string         `json:"taskId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Kind      string         `json:"kind,omitempty"`
}

// MessageRole is the sender of a message.
type MessageRole string

const (
	MessageRoleUser  MessageRole = "user"
	MessageRoleAgent MessageRole = "agent"
)

// ============================================================================
// PART - closed tagged variant: Text, Data, File
// ============================================================================

// PartType discriminates the Part union.
type PartType string

const (
	PartTypeText PartType = "text"
	PartTypeData PartType = "data"
	PartTypeFile PartType = "file"
)

// Part is one element of a Message or Artifact. Exactly one of Text,
// Data, or File is populated depending on Type.
type Part struct {
	Type     PartType       `json:"kind"`
	Text     string         `json:"text,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	File     *FilePart      `json:"file,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// FilePart carries file content either inline (Bytes, base64 in transit)
// or by reference (URI). Exactly one must be set, never both or neither.
type FilePart struct {
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Bytes    string `json:"bytes,omitempty"`
	URI      string `json:"uri,omitempty"`
}

// ============================================================================
// ARTIFACT - Task Output Artifacts
// ============================================================================

// Artifact is a structured result produced while a task executes. It may
// be streamed incrementally via Append/LastChunk on its update events.
type Artifact struct {
	ArtifactID  string         `json:"artifactId"`
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Parts       []Part         `json:"parts"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ============================================================================
// STREAMING EVENTS
// ============================================================================

// Event is the closed set of values a streaming method may yield: an
// initial Task snapshot, a TaskStatusUpdateEvent, or a
// TaskArtifactUpdateEvent.
type Event interface {
	eventMarker()
}

// TaskStatusUpdateEvent reports a status transition for a task.
type TaskStatusUpdateEvent struct {
	TaskID    string         `json:"taskId"`
	ContextID string         `json:"contextId"`
	Kind      string         `json:"kind"`
	Status    TaskStatus     `json:"status"`
	Final     bool           `json:"final"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func (TaskStatusUpdateEvent) eventMarker() {}

// TaskArtifactUpdateEvent reports a new or updated artifact for a task.
type TaskArtifactUpdateEvent struct {
	TaskID    string         `json:"taskId"`
	ContextID string         `json:"contextId"`
	Kind      string         `json:"kind"`
	Artifact  Artifact       `json:"artifact"`
	Append    bool           `json:"append,omitempty"`
	LastChunk bool           `json:"lastChunk,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func (TaskArtifactUpdateEvent) eventMarker() {}

// TaskEvent wraps a Task so it satisfies Event; used for the initial
// snapshot on subscribe/resubscribe.
type TaskEvent struct {
	Task *Task
}

func (TaskEvent) eventMarker() {}

// NewStatusUpdateEvent builds a TaskStatusUpdateEvent for the given task.
func NewStatusUpdateEvent(t *Task, final bool) *TaskStatusUpdateEvent {
	return &TaskStatusUpdateEvent{
		TaskID:    t.ID,
		ContextID: t.ContextID,
		Kind:      "status-update",
		Status:    t.Status,
		Final:     final,
	}
}

// NewArtifactUpdateEvent builds a TaskArtifactUpdateEvent reporting a
// complete artifact, not a streamed chunk of one, so LastChunk is always
// true and Append always false.
func NewArtifactUpdateEvent(taskID, contextID string, artifact Artifact) *TaskArtifactUpdateEvent {
	return &TaskArtifactUpdateEvent{
		TaskID:    taskID,
		ContextID: contextID,
		Kind:      "artifact-update",
		Artifact:  artifact,
		LastChunk: true,
	}
}

// ============================================================================
// RPC METHOD PARAMETER SHAPES
// ============================================================================

// MessageSendParams is the params object for message/send and message/stream.
type MessageSendParams struct {
	Message       Message               `json:"message"`
	Configuration *MessageConfiguration `json:"configuration,omitempty"`
	Metadata      map[string]any        `json:"metadata,omitempty"`
}

// MessageConfiguration carries optional per-call execution hints.
type MessageConfiguration struct {
	AcceptedOutputModes []string `json:"acceptedOutputModes,omitempty"`
	HistoryLength       *int     `json:"historyLength,omitempty"`
	Blocking            bool     `json:"blocking,omitempty"`
}

// TaskSendParams is the legacy params shape for tasks/send and
// tasks/sendSubscribe: a bare message plus an explicit task id.
type TaskSendParams struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionId,omitempty"`
	Message   Message        `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// AsMessageSendParams normalizes the legacy shape into the current one.
func (p TaskSendParams) AsMessageSendParams() MessageSendParams {
	msg := p.Message
	if msg.TaskID == "" {
		msg.TaskID = p.ID
	}
	if msg.ContextID == "" {
		msg.ContextID = p.SessionID
	}
	return MessageSendParams{Message: msg, Metadata: p.Metadata}
}

// TaskQueryParams is the params object for tasks/get and tasks/resubscribe.
type TaskQueryParams struct {
	ID            string `json:"id"`
	HistoryLength *int   `json:"historyLength,omitempty"`
}

// TaskIdParams is the params object for tasks/cancel and
// tasks/pushNotificationConfig/get.
type TaskIdParams struct {
	ID string `json:"id"`
}

// PushNotificationAuthentication describes webhook auth credentials.
type PushNotificationAuthentication struct {
	Schemes     []string `json:"schemes,omitempty"`
	Credentials string   `json:"credentials,omitempty"`
}

// PushNotificationConfig is a per-task webhook registration.
type PushNotificationConfig struct {
	URL            string                          `json:"url"`
	Token          string                          `json:"token,omitempty"`
	Authentication *PushNotificationAuthentication `json:"authentication,omitempty"`
}

// TaskPushNotificationConfig is the params/result object for
// tasks/pushNotificationConfig/set (and the result of .../get).
type TaskPushNotificationConfig struct {
	TaskID                 string                 `json:"taskId"`
	PushNotificationConfig PushNotificationConfig `json:"pushNotificationConfig"`
}

// ============================================================================
// AGENT CARD - Discovery & Capability Advertisement
// ============================================================================

// AgentCard describes an agent's identity, capabilities, and skills. Field
// names follow the published schema verbatim.
type AgentCard struct {
	Name                       string                     `json:"name"`
	Description                string                     `json:"description"`
	URL                        string                     `json:"url"`
	Version                    string                     `json:"version"`
	Provider                   *AgentProvider             `json:"provider,omitempty"`
	DocumentationURL           string                     `json:"documentationUrl,omitempty"`
	Capabilities               AgentCapabilities          `json:"capabilities"`
	SecuritySchemes            map[string]SecurityScheme  `json:"securitySchemes,omitempty"`
	Security                   []map[string][]string      `json:"security,omitempty"`
	DefaultInputModes          []string                   `json:"defaultInputModes"`
	DefaultOutputModes         []string                   `json:"defaultOutputModes"`
	Skills                     []AgentSkill               `json:"skills"`
	SupportsAuthenticatedCard  bool                       `json:"supportsAuthenticatedExtendedCard,omitempty"`
	Signatures                 []AgentCardSignature       `json:"signatures,omitempty"`
}

// AgentProvider identifies the organization publishing the agent.
type AgentProvider struct {
	Organization string `json:"organization"`
	URL          string `json:"url,omitempty"`
}

// AgentCapabilities advertises optional protocol features.
type AgentCapabilities struct {
	Streaming              bool `json:"streaming"`
	PushNotifications      bool `json:"pushNotifications"`
	StateTransitionHistory bool `json:"stateTransitionHistory"`
}

// SecurityScheme describes one authentication mechanism the agent accepts.
type SecurityScheme struct {
	Type             string         `json:"type"`
	Scheme           string         `json:"scheme,omitempty"`
	In               string         `json:"in,omitempty"`
	Name             string         `json:"name,omitempty"`
	OpenIDConnectURL string         `json:"openIdConnectUrl,omitempty"`
	Flows            map[string]any `json:"flows,omitempty"`
}

// AgentSkill describes one capability an agent advertises.
type AgentSkill struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Tags        []string               `json:"tags,omitempty"`
	Examples    []string               `json:"examples,omitempty"`
	Security    []map[string][]string  `json:"security,omitempty"`
}

// AgentCardSignature is an optional JWS signature over the card.
type AgentCardSignature struct {
	Protected string         `json:"protected"`
	Signature string         `json:"signature"`
	Header    map[string]any `json:"header,omitempty"`
}
