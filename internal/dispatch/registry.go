// Package dispatch maps remote-control command lines to their handlers.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rbright/aperture/internal/protocol"
)

// Request is one command line received on an exchange.
type Request struct {
	ID         string
	Line       string
	Command    protocol.Command
	RemoteAddr string
}

// Handler runs one command and decides if and when a response is produced.
type Handler interface {
	Handle(context.Context, Request) Result
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, Request) Result

func (f HandlerFunc) Handle(ctx context.Context, req Request) Result {
	return f(ctx, req)
}

// Registry binds commands to handlers.
type Registry struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[protocol.Command]Handler
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		logger:   logger,
		handlers: make(map[protocol.Command]Handler),
	}
}

// Register binds cmd to h, replacing any previous binding.
func (r *Registry) Register(cmd protocol.Command, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[cmd] = h
}

// Registered returns the bound commands in protocol order.
func (r *Registry) Registered() []protocol.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]protocol.Command, 0, len(r.handlers))
	for _, cmd := range protocol.Commands() {
		if _, ok := r.handlers[cmd]; ok {
			out = append(out, cmd)
		}
	}
	return out
}

// Dispatch parses req.Line and invokes the bound handler at most once.
func (r *Registry) Dispatch(ctx context.Context, req Request) Result {
	cmd, ok := protocol.ParseCommand(req.Line)
	if !ok {
		return Respond(protocol.Error("Unknown command: " + req.Line))
	}

	r.mu.RLock()
	h, ok := r.handlers[cmd]
	r.mu.RUnlock()
	if !ok || h == nil {
		return Respond(protocol.Error("No handler registered for command: " + req.Line))
	}

	req.Command = cmd
	result := r.invoke(ctx, h, req)
	if result.empty() {
		r.logger.Error("handler produced no result", "exchange_id", req.ID, "command", cmd)
		return Respond(protocol.Error("Internal error handling command: " + req.Line))
	}
	return result
}

func (r *Registry) invoke(ctx context.Context, h Handler, req Request) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("handler panicked",
				"exchange_id", req.ID,
				"command", req.Command,
				"panic", fmt.Sprint(rec),
			)
			result = Respond(protocol.Error("Internal error handling command: " + req.Line))
		}
	}()
	return h.Handle(ctx, req)
}
