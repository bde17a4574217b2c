package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kadirpekel/a2arun/pkg/a2a"
)

// DecodeParams unmarshals a request's params into the typed shape expected
// by its method, returning MethodNotFound for an unrecognized method,
// ContentTypeNotSupported for a message whose file part carries a MIME
// type outside the allow-list, and InvalidParams for any other decode or
// semantic validation failure. The structural half of "schema/semantic
// validation" (§7) is the strict, unknown-field-rejecting decode below;
// Schema (schema.go) exposes the matching JSON Schema for the same shapes
// so clients can validate params before ever sending them.
func DecodeParams(method string, raw json.RawMessage) (any, *Error) {
	switch method {
	case MethodMessageSend, MethodMessageStream:
		var p a2a.MessageSendParams
		if err := strictUnmarshal(raw, &p); err != nil {
			return nil, NewTypedError(KindInvalidParams, err.Error())
		}
		if err := a2a.ValidateMessage(&p.Message); err != nil {
			return nil, validationError(err)
		}
		return p, nil

	case MethodTasksSend, MethodTasksSendSubscribe:
		var p a2a.TaskSendParams
		if err := strictUnmarshal(raw, &p); err != nil {
			return nil, NewTypedError(KindInvalidParams, err.Error())
		}
		if p.ID == "" {
			return nil, NewTypedError(KindInvalidParams, "id is required")
		}
		if err := a2a.ValidateMessage(&p.Message); err != nil {
			return nil, validationError(err)
		}
		return p.AsMessageSendParams(), nil

	case MethodTasksGet, MethodTasksResubscribe:
		var p a2a.TaskQueryParams
		if err := strictUnmarshal(raw, &p); err != nil {
			return nil, NewTypedError(KindInvalidParams, err.Error())
		}
		if p.ID == "" {
			return nil, NewTypedError(KindInvalidParams, "id is required")
		}
		return p, nil

	case MethodTasksCancel, MethodPushNotificationConfigGet:
		var p a2a.TaskIdParams
		if err := strictUnmarshal(raw, &p); err != nil {
			return nil, NewTypedError(KindInvalidParams, err.Error())
		}
		if p.ID == "" {
			return nil, NewTypedError(KindInvalidParams, "id is required")
		}
		return p, nil

	case MethodPushNotificationConfigSet:
		var p a2a.TaskPushNotificationConfig
		if err := strictUnmarshal(raw, &p); err != nil {
			return nil, NewTypedError(KindInvalidParams, err.Error())
		}
		if p.TaskID == "" || p.PushNotificationConfig.URL == "" {
			return nil, NewTypedError(KindInvalidParams, "taskId and pushNotificationConfig.url are required")
		}
		return p, nil
	}

	return nil, NewTypedError(KindMethodNotFound, fmt.Sprintf("unknown method %q", method))
}

// validationError maps a2a.ValidateMessage's error onto its typed JSON-RPC
// kind: an unsupported content type gets its own code, everything else
// falls back to the generic InvalidParams.
func validationError(err error) *Error {
	if errors.Is(err, a2a.ErrUnsupportedContentType) {
		return NewTypedError(KindContentTypeNotSupported, err.Error())
	}
	return NewTypedError(KindInvalidParams, err.Error())
}

// strictUnmarshal rejects unknown fields, catching a common class of
// malformed client params before they reach business logic.
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("params is required")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	return nil
}
