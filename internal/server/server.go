// Package server runs the single-client TCP command listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbright/aperture/internal/dispatch"
	"github.com/rbright/aperture/internal/fsm"
	"github.com/rbright/aperture/internal/protocol"
)

// DefaultAddr is the TCP address used when none is configured.
const DefaultAddr = ":8888"

// Dispatcher resolves one command line into a handler result.
type Dispatcher interface {
	Dispatch(context.Context, dispatch.Request) dispatch.Result
}

// Options tunes per-exchange deadlines. Zero values disable a deadline.
type Options struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ResponseTimeout time.Duration

	// OnState observes every listener state change.
	OnState func(fsm.State)
}

// Stats counts exchanges since Serve started.
type Stats struct {
	Accepted  uint64
	Completed uint64
	Aborted   uint64
}

// Server accepts one connection at a time and answers exactly one command per connection.
type Server struct {
	listener   net.Listener
	dispatcher Dispatcher
	logger     *slog.Logger
	opts       Options

	mu    sync.RWMutex
	state fsm.State

	accepted  atomic.Uint64
	completed atomic.Uint64
	aborted   atomic.Uint64
}

func New(listener net.Listener, dispatcher Dispatcher, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		listener:   listener,
		dispatcher: dispatcher,
		logger:     logger,
		opts:       opts,
		state:      fsm.StateIdle,
	}
}

// Listen binds the TCP command port.
func Listen(ctx context.Context, addr string) (net.Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen tcp %s: %w", addr, err)
	}
	return ln, nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// State returns the current listener state.
func (s *Server) State() fsm.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Server) Stats() Stats {
	return Stats{
		Accepted:  s.accepted.Load(),
		Completed: s.completed.Load(),
		Aborted:   s.aborted.Load(),
	}
}

// Serve runs the accept loop until ctx is cancelled or the listener is closed, which
// return nil. Any other accept failure stops the loop and is returned.
func (s *Server) Serve(ctx context.Context) error {
	addr := s.listener.Addr().String()
	s.transition(fsm.EventStart)

	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.listener.Close()
		case <-stopWatch:
		}
	}()

	s.logger.Info("listener started", "address", addr)

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.transition(fsm.EventStop)
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				s.logger.Info("listener stopped", "address", addr)
				return nil
			}
			_ = s.listener.Close()
			s.logger.Error("accept failed; stopping listener", "address", addr, "error", err.Error())
			return fmt.Errorf("accept connection: %w", err)
		}

		s.serveExchange(ctx, conn)
	}
}

// serveExchange runs one exchange to completion before the next accept.
func (s *Server) serveExchange(ctx context.Context, conn net.Conn) {
	ex := newExchange(conn, s.logger, s.opts.WriteTimeout)
	defer ex.Close()

	s.accepted.Add(1)
	s.transition(fsm.EventAccept)
	ex.logger.Debug("client connected")

	if s.opts.ReadTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout)); err != nil {
			ex.logger.Warn("set read deadline failed", "error", err.Error())
			s.abort()
			return
		}
	}

	line, err := protocol.ReadCommand(ex.reader)
	if err != nil {
		switch {
		case errors.Is(err, io.EOF):
			ex.logger.Info("client closed before sending a command")
		case errors.Is(err, protocol.ErrCommandTooLong):
			ex.logger.Warn("command line too long")
			ex.Send(protocol.Error("Command line too long"))
		default:
			ex.logger.Warn("read command failed", "error", err.Error())
		}
		s.abort()
		return
	}
	s.transition(fsm.EventRead)
	_ = conn.SetReadDeadline(time.Time{})

	exCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	req := dispatch.Request{ID: ex.ID(), Line: line, RemoteAddr: remoteAddr(conn)}
	ex.logger.Info("command received", "line", line)

	result := s.dispatcher.Dispatch(exCtx, req)
	s.transition(fsm.EventDispatch)

	resp, err := s.await(exCtx, req, result)
	if err != nil {
		ex.logger.Warn("exchange abandoned without response", "error", err.Error())
	} else {
		ex.Send(resp)
	}

	s.completed.Add(1)
	s.transition(fsm.EventComplete)
}

// await returns the immediate response or waits for a deferred one. It only
// returns an error when the server is shutting down.
func (s *Server) await(ctx context.Context, req dispatch.Request, result dispatch.Result) (protocol.Response, error) {
	if resp, ok := result.Immediate(); ok {
		return resp, nil
	}

	d, ok := result.Deferred()
	if !ok {
		return protocol.Error("Internal error handling command: " + req.Line), nil
	}

	waitCtx := ctx
	if s.opts.ResponseTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.opts.ResponseTimeout)
		defer cancel()
	}

	resp, err := d.Wait(waitCtx)
	if err == nil {
		return resp, nil
	}
	d.Abandon()
	if ctx.Err() != nil {
		return protocol.Response{}, ctx.Err()
	}

	cmd, _ := protocol.ParseCommand(req.Line)
	s.logger.Warn("deferred response timed out", "exchange_id", req.ID, "command", cmd, "timeout", s.opts.ResponseTimeout.String())
	return protocol.Error(fmt.Sprintf("Timed out waiting for %s to complete", cmd)), nil
}

func (s *Server) abort() {
	s.aborted.Add(1)
	s.transition(fsm.EventAbort)
}

func (s *Server) transition(event fsm.Event) {
	s.mu.Lock()
	next, err := fsm.Transition(s.state, event)
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("listener state transition rejected", "error", err.Error())
		return
	}
	s.state = next
	s.mu.Unlock()

	if s.opts.OnState != nil {
		s.opts.OnState(next)
	}
}
