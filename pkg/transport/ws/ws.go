// Package ws implements the WebSocket transport (C2): a single endpoint
// that accepts text frames each carrying one JSON-RPC request. Streaming
// methods open an implicit subscription: the connection keeps emitting
// TaskStatusUpdateEvent and TaskArtifactUpdateEvent frames, wrapped in
// the request's JSON-RPC envelope, until a final status event arrives.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/a2arun/pkg/a2a"
	"github.com/kadirpekel/a2arun/pkg/auth"
	"github.com/kadirpekel/a2arun/pkg/jsonrpc"
	"github.com/kadirpekel/a2arun/pkg/metrics"
	"github.com/kadirpekel/a2arun/pkg/router"
	"github.com/kadirpekel/a2arun/pkg/tracing"
)

var tracer = tracing.Tracer("a2arun.transport.ws")

// Default heartbeat tuning (§5): a ping goes out every PingInterval; a
// connection silent for IdleTimeout is dropped.
const (
	DefaultPingInterval = 30 * time.Second
	DefaultIdleTimeout  = 60 * time.Second
	writeTimeout        = 10 * time.Second
	sendBuffer          = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler upgrades incoming requests and runs the per-connection pump.
type Handler struct {
	router       *router.Router
	metrics      *metrics.Metrics
	logger       *slog.Logger
	auth         *auth.JWTValidator
	pingInterval time.Duration
	idleTimeout  time.Duration
}

// New builds the WebSocket transport handler. validator may be nil to
// disable authentication; m may be nil.
func New(r *router.Router, validator *auth.JWTValidator, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		router:       r,
		metrics:      m,
		logger:       logger,
		auth:         validator,
		pingInterval: DefaultPingInterval,
		idleTimeout:  DefaultIdleTimeout,
	}
	if validator != nil {
		return validator.HTTPMiddleware(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := newConnection(r.Context(), conn, h)
	c.run()
}

// connection owns one WebSocket's lifetime: a reader goroutine decodes
// incoming JSON-RPC requests and dispatches or subscribes, while the
// writer pump serializes every outbound data frame (responses and stream
// events) and the heartbeat pings onto the single connection
// gorilla/websocket requires.
type connection struct {
	ctx    context.Context
	conn   *websocket.Conn
	h      *Handler
	send   chan []byte
	done   chan struct{}
	subs   []subHandle
	logger *slog.Logger
}

type subHandle struct {
	close func()
}

func newConnection(ctx context.Context, conn *websocket.Conn, h *Handler) *connection {
	return &connection{
		ctx:    ctx,
		conn:   conn,
		h:      h,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		logger: h.logger,
	}
}

func (c *connection) run() {
	go c.writePump()

	c.conn.SetReadDeadline(time.Now().Add(c.h.idleTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.h.idleTimeout))
		return nil
	})

	defer c.close()

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		c.conn.SetReadDeadline(time.Now().Add(c.h.idleTimeout))
		c.handleFrame(data)
	}
}

func (c *connection) writePump() {
	ticker := time.NewTicker(c.h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *connection) close() {
	close(c.done)
	for _, s := range c.subs {
		s.close()
	}
	c.conn.Close()
}

func (c *connection) handleFrame(data []byte) {
	req, rpcErr := jsonrpc.ParseRequest(data)
	if rpcErr != nil {
		c.writeEnvelope(nil, nil, rpcErr.(*jsonrpc.Error))
		return
	}

	ctx, span := tracer.Start(c.ctx, "ws.frame", trace.WithAttributes(attribute.String("rpc.method", req.Method)))
	defer span.End()

	start := time.Now()
	if jsonrpc.StreamingMethods[req.Method] {
		c.handleStream(ctx, req)
		c.h.metrics.RecordRPC(req.Method, "ok", time.Since(start))
		return
	}

	resp := c.h.router.Dispatch(ctx, req)
	outcome := "ok"
	if resp.Error != nil {
		outcome = "error"
	}
	c.h.metrics.RecordRPC(req.Method, outcome, time.Since(start))
	c.writeResponse(resp)
}

func (c *connection) handleStream(ctx context.Context, req *jsonrpc.Request) {
	_, sub, rpcErr := c.h.router.OpenStream(ctx, req)
	if rpcErr != nil {
		c.writeEnvelope(req.ID, nil, rpcErr)
		return
	}

	c.subs = append(c.subs, subHandle{close: sub.Close})

	go func() {
		for ev := range sub.Events() {
			c.writeEnvelope(req.ID, ev, nil)
			if status, ok := ev.(*a2a.TaskStatusUpdateEvent); ok && status.Final {
				sub.Close()
				return
			}
		}
	}()
}

func (c *connection) writeResponse(resp *jsonrpc.Response) {
	b, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("failed to marshal jsonrpc response", "error", err)
		return
	}
	c.enqueue(b)
}

func (c *connection) writeEnvelope(id json.RawMessage, result any, rpcErr *jsonrpc.Error) {
	var resp *jsonrpc.Response
	if rpcErr != nil {
		resp = jsonrpc.NewErrorResponse(id, rpcErr)
	} else {
		resp = jsonrpc.NewResponse(id, result)
	}
	c.writeResponse(resp)
}

func (c *connection) enqueue(b []byte) {
	select {
	case c.send <- b:
	case <-c.done:
	default:
		c.logger.Warn("dropping websocket frame, send buffer full")
	}
}
