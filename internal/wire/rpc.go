package wire

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Envelope is the request frame carried over one Conn round-trip: an
// operation name, its JSON payload, and the caller's RPC deadline
// (§5 "Cancellation/timeouts: each external operation carries a
// deadline from its caller's RPC context").
type Envelope struct {
	Op           string          `json:"op"`
	Payload      json.RawMessage `json:"payload"`
	DeadlineUnix int64           `json:"deadline_unix,omitempty"`
}

// Reply is the response frame: exactly one of Result or Err is set.
type Reply struct {
	Result json.RawMessage `json:"result,omitempty"`
	Err    *ErrorPayload   `json:"err,omitempty"`
}

// ErrorPayload is the wire shape of an xerrors.Error, re-hydrated by
// the client into a local error.
type ErrorPayload struct {
	Kind    string `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"trace_id"`
}

func (e *ErrorPayload) Error() string {
	return fmt.Sprintf("[%s/%s] %s (trace=%s)", e.Kind, e.Code, e.Message, e.TraceID)
}

// Handler processes one operation's payload and returns a JSON-
// marshalable result or an error.
type Handler func(ctx context.Context, payload json.RawMessage) (any, error)

// ErrToPayload converts an arbitrary error into the wire shape. Errors
// implementing kindedError's Wire method are passed through
// faithfully; anything else is reported as
// an opaque internal error, per spec §7 ("internal errors are ...
// surfaced as an opaque category string").
type kindedError interface {
	error
	Wire() ErrorPayload
}

func ErrToPayload(err error) *ErrorPayload {
	if ke, ok := err.(kindedError); ok {
		p := ke.Wire()
		return &p
	}
	return &ErrorPayload{Kind: "other_internal", Code: "internal", Message: "internal error"}
}

// Server accepts connections on addr and dispatches each frame to a
// registered handler by operation name. Inbound concurrency is capped
// at maxConns (MATCH_RPC_MAX_NUMBER_CO_CONNECTIONS, spec §6) using a
// weighted semaphore, one of the natural Go fits for an admission
// bound the teacher's stack doesn't otherwise cover.
type Server struct {
	addr     string
	handlers map[string]Handler
	sem      *semaphore.Weighted
	logger   *zap.Logger
}

// NewServer constructs a Server. Register handlers before calling
// ListenAndServe.
func NewServer(addr string, maxConns int64, logger *zap.Logger) *Server {
	return &Server{
		addr:     addr,
		handlers: make(map[string]Handler),
		sem:      semaphore.NewWeighted(maxConns),
		logger:   logger,
	}
}

// Register binds an operation name to its handler.
func (s *Server) Register(op string, h Handler) {
	s.handlers[op] = h
}

// ListenAndServe runs until ctx is cancelled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("wire: listen %s: %w", s.addr, err)
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wire: accept: %w", err)
		}
		if !s.sem.TryAcquire(1) {
			s.logger.Warn("wire: rejecting connection, at MATCH_RPC_MAX_NUMBER_CO_CONNECTIONS")
			conn.Close()
			continue
		}
		go s.serveConn(ctx, conn)
	}
}

func (s *Server) serveConn(ctx context.Context, nc net.Conn) {
	defer s.sem.Release(1)
	defer nc.Close()

	fc, err := NewConn(nc)
	if err != nil {
		s.logger.Error("wire: failed to frame connection", zap.Error(err))
		return
	}
	if err := fc.Handshake(true); err != nil {
		s.logger.Warn("wire: handshake failed", zap.Error(err))
		return
	}

	for {
		var env Envelope
		if err := fc.ReadMessage(&env); err != nil {
			return // peer closed or framing error; connection is done
		}

		reqCtx := ctx
		var cancel context.CancelFunc
		if env.DeadlineUnix != 0 {
			reqCtx, cancel = context.WithDeadline(ctx, time.Unix(0, env.DeadlineUnix))
		}

		handler, ok := s.handlers[env.Op]
		if !ok {
			_ = fc.WriteMessage(Reply{Err: &ErrorPayload{Kind: "user_facing", Code: "unknown_op", Message: fmt.Sprintf("unknown operation %q", env.Op)}})
			if cancel != nil {
				cancel()
			}
			continue
		}

		result, err := handler(reqCtx, env.Payload)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			_ = fc.WriteMessage(Reply{Err: ErrToPayload(err)})
			continue
		}
		resultJSON, merr := json.Marshal(result)
		if merr != nil {
			_ = fc.WriteMessage(Reply{Err: &ErrorPayload{Kind: "other_internal", Code: "internal", Message: "failed to marshal result"}})
			continue
		}
		_ = fc.WriteMessage(Reply{Result: resultJSON})
	}
}

// Client dials addr fresh for every Call — simple, and adequate at
// the request volumes this system targets; a connection is held open
// only for the duration of one request/response round-trip.
type Client struct {
	addr string
}

// Dial returns a Client bound to addr. It does not connect, so it
// never reports an unreachable addr; each Call dials on its own.
func Dial(addr string) (*Client, error) {
	return &Client{addr: addr}, nil
}

// Call issues one request and decodes its response into resp (which
// may be nil if the caller doesn't need the result).
func (c *Client) Call(ctx context.Context, op string, req any, resp any) error {
	nc, err := (&net.Dialer{}).DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("wire: dial %s: %w", c.addr, err)
	}
	defer nc.Close()

	fc, err := NewConn(nc)
	if err != nil {
		return err
	}
	if err := fc.Handshake(false); err != nil {
		return err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("wire: marshal request: %w", err)
	}

	env := Envelope{Op: op, Payload: payload}
	if dl, ok := ctx.Deadline(); ok {
		env.DeadlineUnix = dl.UnixNano()
	}
	if err := fc.WriteMessage(env); err != nil {
		return err
	}

	var reply Reply
	if err := fc.ReadMessage(&reply); err != nil {
		return fmt.Errorf("wire: read reply: %w", err)
	}
	if reply.Err != nil {
		return reply.Err
	}
	if resp != nil && len(reply.Result) > 0 {
		if err := json.Unmarshal(reply.Result, resp); err != nil {
			return fmt.Errorf("wire: unmarshal response: %w", err)
		}
	}
	return nil
}
