// Package router implements the method dispatcher (C3): translating
// decoded JSON-RPC requests into store/handler/broker/push operations and
// typed JSON-RPC responses, including the resolve-or-create task logic
// common to every message-sending method.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/a2arun/pkg/a2a"
	"github.com/kadirpekel/a2arun/pkg/broker"
	"github.com/kadirpekel/a2arun/pkg/handler"
	"github.com/kadirpekel/a2arun/pkg/jsonrpc"
	"github.com/kadirpekel/a2arun/pkg/push"
	"github.com/kadirpekel/a2arun/pkg/store"
	"github.com/kadirpekel/a2arun/pkg/tracing"
)

var tracer = tracing.Tracer("a2arun.router")

// errInvalidAgentResponse flags a task returned by the handler that
// violates the invariants a client is entitled to rely on.
var errInvalidAgentResponse = errors.New("handler returned an invalid task")

// Router wires the task store, message handler, event broker and push
// dispatcher together behind the JSON-RPC method surface.
type Router struct {
	store   store.Store
	handler handler.Handler
	broker  *broker.Broker
	push    *push.Dispatcher
	logger  *slog.Logger
}

// New constructs a Router. logger defaults to slog.Default() if nil.
func New(s store.Store, h handler.Handler, b *broker.Broker, p *push.Dispatcher, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{store: s, handler: h, broker: b, push: p, logger: logger}
}

// Dispatch handles every non-streaming method. Streaming methods
// (message/stream, tasks/sendSubscribe, tasks/resubscribe) must go
// through OpenStream instead; Dispatch rejects them.
func (r *Router) Dispatch(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	ctx, span := tracer.Start(ctx, "router.dispatch", trace.WithAttributes(attribute.String("rpc.method", req.Method)))
	defer span.End()

	if jsonrpc.StreamingMethods[req.Method] {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.NewTypedError(jsonrpc.KindUnsupportedOperation,
			"use the streaming transport for "+req.Method))
	}

	params, rpcErr := jsonrpc.DecodeParams(req.Method, req.Params)
	if rpcErr != nil {
		span.SetStatus(codes.Error, rpcErr.Message)
		return jsonrpc.NewErrorResponse(req.ID, rpcErr)
	}

	var result any
	var err error
	switch req.Method {
	case jsonrpc.MethodMessageSend, jsonrpc.MethodTasksSend:
		result, err = r.SendMessage(ctx, params.(a2a.MessageSendParams))
	case jsonrpc.MethodTasksGet:
		p := params.(a2a.TaskQueryParams)
		result, err = r.store.GetTask(ctx, p.ID, p.HistoryLength)
	case jsonrpc.MethodTasksCancel:
		p := params.(a2a.TaskIdParams)
		result, err = r.CancelTask(ctx, p.ID)
	case jsonrpc.MethodPushNotificationConfigSet:
		p := params.(a2a.TaskPushNotificationConfig)
		result, err = r.store.SetPushNotification(ctx, p)
	case jsonrpc.MethodPushNotificationConfigGet:
		p := params.(a2a.TaskIdParams)
		result, err = r.store.GetPushNotification(ctx, p.ID)
	default:
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.NewTypedError(jsonrpc.KindMethodNotFound, "method not found: "+req.Method))
	}

	if err != nil {
		rpcErr := translateError(err)
		span.SetStatus(codes.Error, rpcErr.Message)
		return jsonrpc.NewErrorResponse(req.ID, rpcErr)
	}
	return jsonrpc.NewResponse(req.ID, result)
}

// OpenStream handles message/stream, tasks/sendSubscribe and
// tasks/resubscribe: it resolves the task (creating or looking it up),
// registers exactly one merged broker.StreamSubscription (a status
// subscriber and an artifact subscriber fanned into one channel), and for
// the send variants starts the handler in the background before
// returning. The caller (the WebSocket transport) then ranges over the
// returned subscription's Events().
func (r *Router) OpenStream(ctx context.Context, req *jsonrpc.Request) (taskID string, sub *broker.StreamSubscription, rpcErr *jsonrpc.Error) {
	ctx, span := tracer.Start(ctx, "router.open_stream", trace.WithAttributes(attribute.String("rpc.method", req.Method)))
	defer span.End()

	if !jsonrpc.StreamingMethods[req.Method] {
		return "", nil, jsonrpc.NewTypedError(jsonrpc.KindUnsupportedOperation, "not a streaming method: "+req.Method)
	}

	params, decErr := jsonrpc.DecodeParams(req.Method, req.Params)
	if decErr != nil {
		return "", nil, decErr
	}

	if req.Method == jsonrpc.MethodTasksResubscribe {
		p := params.(a2a.TaskQueryParams)
		task, err := r.store.GetTask(ctx, p.ID, nil)
		if err != nil {
			return "", nil, translateError(err)
		}
		statusCatchUp := a2a.NewStatusUpdateEvent(task, task.Status.State.IsTerminal())
		return task.ID, r.broker.Subscribe(task.ID, statusCatchUp, artifactCatchUpEvents(task)), nil
	}

	msgParams := params.(a2a.MessageSendParams)
	task, err := r.resolveTask(ctx, msgParams.Message)
	if err != nil {
		return "", nil, translateError(err)
	}

	sub = r.broker.Subscribe(task.ID, a2a.NewStatusUpdateEvent(task, false), artifactCatchUpEvents(task))
	go r.process(context.WithoutCancel(ctx), task, msgParams.Message)
	return task.ID, sub, nil
}

// artifactCatchUpEvents builds one TaskArtifactUpdateEvent per artifact
// the task already carries, per the artifact-subscriber catch-up
// contract: a client that subscribes after artifacts already exist still
// sees every one of them, not just future updates.
func artifactCatchUpEvents(task *a2a.Task) []a2a.Event {
	if len(task.Artifacts) == 0 {
		return nil
	}
	events := make([]a2a.Event, len(task.Artifacts))
	for i, artifact := range task.Artifacts {
		events[i] = a2a.NewArtifactUpdateEvent(task.ID, task.ContextID, artifact)
	}
	return events
}

// SendMessage implements message/send and the legacy tasks/send: resolve
// or create the task, run it through the handler, publish the result and
// dispatch any registered webhook, then return the task synchronously.
func (r *Router) SendMessage(ctx context.Context, params a2a.MessageSendParams) (*a2a.Task, error) {
	task, err := r.resolveTask(ctx, params.Message)
	if err != nil {
		return nil, err
	}
	return r.process(ctx, task, params.Message)
}

func (r *Router) resolveTask(ctx context.Context, msg a2a.Message) (*a2a.Task, error) {
	taskID := msg.TaskID
	if taskID == "" {
		taskID = uuid.NewString()
	}

	exists, err := r.store.TaskExists(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if exists {
		return r.store.GetTask(ctx, taskID, nil)
	}
	return r.store.CreateTask(ctx, taskID, msg.ContextID)
}

// process runs the handler and fans the resulting status and any new
// artifacts out to the broker and, if registered, the push dispatcher. It
// is shared by the blocking and streaming call paths. The handler itself
// only returns the task's new state; process notices what changed by
// diffing the artifacts the task carried before the call against what it
// carries after, since the handler may have appended artifacts to the
// store directly (store.AppendArtifact) without the router's involvement.
func (r *Router) process(ctx context.Context, task *a2a.Task, msg a2a.Message) (*a2a.Task, error) {
	ctx, span := tracer.Start(ctx, "handler.process_message", trace.WithAttributes(attribute.String("task.id", task.ID)))
	defer span.End()

	before := existingArtifactIDs(task.Artifacts)

	updated, err := r.handler.ProcessMessage(ctx, task, msg)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if err := validateHandlerResult(updated); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	r.broadcastNewArtifacts(ctx, updated, before)

	final := updated.Status.State.IsTerminal()
	r.broadcastStatus(ctx, updated, final)

	return updated, nil
}

// existingArtifactIDs captures the artifact ids a task already has, as a
// baseline for detecting which artifacts a handler call added.
func existingArtifactIDs(artifacts []a2a.Artifact) map[string]struct{} {
	ids := make(map[string]struct{}, len(artifacts))
	for _, a := range artifacts {
		ids[a.ArtifactID] = struct{}{}
	}
	return ids
}

// validateHandlerResult enforces the invariants the router promises
// clients downstream of any handler: history ids stay unique and every
// artifact the handler leaves on the task is individually well-formed.
func validateHandlerResult(task *a2a.Task) error {
	if task == nil {
		return fmt.Errorf("%w: nil task", errInvalidAgentResponse)
	}
	if !a2a.UniqueHistoryIDs(task.History) {
		return fmt.Errorf("%w: duplicate message ids in history", errInvalidAgentResponse)
	}
	for i := range task.Artifacts {
		if err := a2a.ValidateArtifact(&task.Artifacts[i]); err != nil {
			return fmt.Errorf("%w: %v", errInvalidAgentResponse, err)
		}
	}
	return nil
}

// broadcastNewArtifacts publishes and pushes one TaskArtifactUpdateEvent
// per artifact present on task but absent from before.
func (r *Router) broadcastNewArtifacts(ctx context.Context, task *a2a.Task, before map[string]struct{}) {
	for _, artifact := range task.Artifacts {
		if _, ok := before[artifact.ArtifactID]; ok {
			continue
		}
		ev := a2a.NewArtifactUpdateEvent(task.ID, task.ContextID, artifact)
		r.publishArtifact(ctx, task.ID, ev)
		r.dispatchPush(ctx, task.ID, ev)
	}
}

// broadcastStatus publishes and pushes the task's current status as a
// TaskStatusUpdateEvent.
func (r *Router) broadcastStatus(ctx context.Context, task *a2a.Task, final bool) {
	ev := a2a.NewStatusUpdateEvent(task, final)
	r.publishStatus(ctx, task.ID, ev)
	r.dispatchPush(ctx, task.ID, ev)
}

func (r *Router) publishStatus(ctx context.Context, taskID string, ev a2a.Event) {
	_, span := tracer.Start(ctx, "broker.publish", trace.WithAttributes(attribute.String("task.id", taskID)))
	defer span.End()
	r.broker.PublishStatus(taskID, ev)
}

func (r *Router) publishArtifact(ctx context.Context, taskID string, ev a2a.Event) {
	_, span := tracer.Start(ctx, "broker.publish", trace.WithAttributes(attribute.String("task.id", taskID)))
	defer span.End()
	r.broker.PublishArtifact(taskID, ev)
}

// dispatchPush looks up taskID's push-notification registration and, if
// one exists, POSTs ev to it in the background. ev is marshaled directly
// as the webhook body, the same shape a streaming subscriber would see.
func (r *Router) dispatchPush(ctx context.Context, taskID string, ev a2a.Event) {
	if r.push == nil {
		return
	}
	cfg, err := r.store.GetPushNotification(context.Background(), taskID)
	if err != nil {
		if !errors.Is(err, store.ErrPushNotConfigured) {
			r.logger.Error("failed to look up push notification config", "task_id", taskID, "error", err)
		}
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, span := tracer.Start(ctx, "push.dispatch", trace.WithAttributes(attribute.String("task.id", taskID)))
		defer span.End()
		if err := r.push.Dispatch(ctx, cfg.PushNotificationConfig, ev); err != nil {
			span.SetStatus(codes.Error, err.Error())
			r.logger.Error("push notification delivery failed", "task_id", taskID, "url", cfg.PushNotificationConfig.URL, "error", err)
		}
	}()
}

// CancelTask implements tasks/cancel: cancel in the store, then publish
// the final status event and dispatch any registered webhook.
func (r *Router) CancelTask(ctx context.Context, id string) (*a2a.Task, error) {
	task, err := r.store.CancelTask(ctx, id)
	if err != nil {
		return nil, err
	}
	r.broadcastStatus(ctx, task, true)
	return task, nil
}

// translateError maps store sentinel errors onto the typed JSON-RPC
// error codes the A2A wire protocol defines; anything else becomes an
// internal error so implementation details never leak to clients.
func translateError(err error) *jsonrpc.Error {
	switch {
	case errors.Is(err, store.ErrTaskNotFound):
		return jsonrpc.NewTypedError(jsonrpc.KindTaskNotFound, err.Error())
	case errors.Is(err, store.ErrTaskNotCancelable):
		return jsonrpc.NewTypedError(jsonrpc.KindTaskNotCancelable, err.Error())
	case errors.Is(err, store.ErrPushNotConfigured):
		return jsonrpc.NewTypedError(jsonrpc.KindPushNotificationNotSupported, err.Error())
	case errors.Is(err, store.ErrTaskExists):
		return jsonrpc.NewTypedError(jsonrpc.KindInvalidParams, err.Error())
	case errors.Is(err, errInvalidAgentResponse):
		return jsonrpc.NewTypedError(jsonrpc.KindInvalidAgentResponse, err.Error())
	default:
		return jsonrpc.NewTypedError(jsonrpc.KindInternal, err.Error())
	}
}
