package jsonrpc

import (
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/kadirpekel/a2arun/pkg/a2a"
)

var (
	schemaOnce sync.Once
	schemas    map[string]*jsonschema.Schema
)

func buildSchemas() map[string]*jsonschema.Schema {
	reflector := &jsonschema.Reflector{ExpandedStruct: true}
	return map[string]*jsonschema.Schema{
		MethodMessageSend:               reflector.Reflect(a2a.MessageSendParams{}),
		MethodMessageStream:             reflector.Reflect(a2a.MessageSendParams{}),
		MethodTasksSend:                 reflector.Reflect(a2a.TaskSendParams{}),
		MethodTasksSendSubscribe:        reflector.Reflect(a2a.TaskSendParams{}),
		MethodTasksGet:                  reflector.Reflect(a2a.TaskQueryParams{}),
		MethodTasksResubscribe:          reflector.Reflect(a2a.TaskQueryParams{}),
		MethodTasksCancel:               reflector.Reflect(a2a.TaskIdParams{}),
		MethodPushNotificationConfigGet: reflector.Reflect(a2a.TaskIdParams{}),
		MethodPushNotificationConfigSet: reflector.Reflect(a2a.TaskPushNotificationConfig{}),
	}
}

// Schema returns the published JSON Schema for a method's params shape, or
// nil for an unrecognized method. Served by the HTTP transport's
// GET /schema/<method> endpoint, a documentation aid only: it does not
// gate dispatch, which validates params independently via DecodeParams.
func Schema(method string) *jsonschema.Schema {
	schemaOnce.Do(func() { schemas = buildSchemas() })
	return schemas[method]
}

// Methods lists every method string the codec recognizes.
func Methods() []string {
	return []string{
		MethodMessageSend,
		MethodMessageStream,
		MethodTasksSend,
		MethodTasksSendSubscribe,
		MethodTasksGet,
		MethodTasksCancel,
		MethodTasksResubscribe,
		MethodPushNotificationConfigSet,
		MethodPushNotificationConfigGet,
	}
}
