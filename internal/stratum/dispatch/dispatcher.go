// Package dispatch implements the V2 frame dispatcher (spec §4.G): a
// registry from a message's runtime msg_type discriminant to a typed
// handler, with a mandatory catch-all for anything unregistered. The
// spec's "#[id]/#[handler] pair... is a thin ergonomic layer over a
// get_id -> match switch" design note is taken literally here: Dispatcher
// is nothing more than a map lookup plus the catch-all.
package dispatch

import (
	"context"
	"fmt"

	"github.com/chimera-pool/stratum-noise-proxy/internal/stratum/v2/binary"
)

// Handler processes one decoded frame's payload. Handlers are registered
// per msg_type; the dispatcher does not decode the payload itself (each
// handler calls the matching binary.DecodeXxx for its own message type).
type Handler func(frame binary.Frame) error

// CatchAll receives any frame whose msg_type has no registered Handler.
type CatchAll func(frame binary.Frame) error

// Dispatcher routes frames by msg_type to a registered Handler, falling
// back to CatchAll for anything unrecognized. It is not safe for
// concurrent registration, but Dispatch itself is read-only and may be
// called concurrently once setup is complete — though in this proxy it
// never is, since the translator is single-threaded per session (spec §5).
type Dispatcher struct {
	handlers map[uint8]Handler
	catchAll CatchAll
}

// New creates a Dispatcher. catchAll must not be nil — the spec requires
// a mandatory catch-all handler.
func New(catchAll CatchAll) *Dispatcher {
	if catchAll == nil {
		panic("dispatch: catchAll handler is required")
	}
	return &Dispatcher{handlers: make(map[uint8]Handler), catchAll: catchAll}
}

// Register binds msgType to handler. Registering the same msgType twice is
// a programming bug.
func (d *Dispatcher) Register(msgType uint8, handler Handler) {
	if _, exists := d.handlers[msgType]; exists {
		panic(fmt.Sprintf("dispatch: msg_type %d already registered", msgType))
	}
	d.handlers[msgType] = handler
}

// Dispatch routes frame to its registered handler, or to the catch-all if
// none is registered for frame.MsgType.
func (d *Dispatcher) Dispatch(frame binary.Frame) error {
	if h, ok := d.handlers[frame.MsgType]; ok {
		return h(frame)
	}
	return d.catchAll(frame)
}

// AsyncHandler is the future-returning counterpart to Handler, for
// handlers whose work may suspend (e.g. one that needs to await an
// upstream round trip before producing its result). The hard core's own
// translator never needs this — its handling is purely synchronous (spec
// §5) — but the dispatcher exposes it for collaborators built on top of
// the same registry (e.g. a future admin/debug frame type that queries
// external state).
type AsyncHandler func(ctx context.Context, frame binary.Frame) <-chan error

// AsyncCatchAll is the async counterpart to CatchAll.
type AsyncCatchAll func(ctx context.Context, frame binary.Frame) <-chan error

// AsyncDispatcher is Dispatcher's async-handler variant (spec §4.G "async
// variants of the dispatcher return futures"). A Go future is a
// receive-only channel that yields exactly one value.
type AsyncDispatcher struct {
	handlers map[uint8]AsyncHandler
	catchAll AsyncCatchAll
}

// NewAsync creates an AsyncDispatcher. catchAll must not be nil.
func NewAsync(catchAll AsyncCatchAll) *AsyncDispatcher {
	if catchAll == nil {
		panic("dispatch: catchAll handler is required")
	}
	return &AsyncDispatcher{handlers: make(map[uint8]AsyncHandler), catchAll: catchAll}
}

// Register binds msgType to an async handler.
func (d *AsyncDispatcher) Register(msgType uint8, handler AsyncHandler) {
	if _, exists := d.handlers[msgType]; exists {
		panic(fmt.Sprintf("dispatch: msg_type %d already registered", msgType))
	}
	d.handlers[msgType] = handler
}

// Dispatch routes frame to its registered async handler (or the
// catch-all), returning the future it produces.
func (d *AsyncDispatcher) Dispatch(ctx context.Context, frame binary.Frame) <-chan error {
	if h, ok := d.handlers[frame.MsgType]; ok {
		return h(ctx, frame)
	}
	return d.catchAll(ctx, frame)
}

// TryHandler is the "try flavor" catch-all the spec calls out: rather than
// the raw frame, it receives a Result pairing the frame with a conversion
// error when the frame failed to decode into any known message type
// upstream of the dispatcher.
type TryHandler func(frame binary.Frame, convErr error) error
