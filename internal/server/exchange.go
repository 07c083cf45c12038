package server

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbright/aperture/internal/protocol"
	"github.com/rs/xid"
	"golang.org/x/sys/unix"
)

// Exchange owns one accepted connection from accept until close.
type Exchange struct {
	conn   net.Conn
	reader *bufio.Reader
	id     xid.ID
	logger *slog.Logger

	writeTimeout time.Duration

	sent      atomic.Bool
	closeOnce sync.Once
}

func newExchange(conn net.Conn, logger *slog.Logger, writeTimeout time.Duration) *Exchange {
	id := xid.New()
	return &Exchange{
		conn:         conn,
		reader:       bufio.NewReader(conn),
		id:           id,
		logger:       logger.With("exchange_id", id.String(), "remote_addr", remoteAddr(conn)),
		writeTimeout: writeTimeout,
	}
}

func (e *Exchange) ID() string { return e.id.String() }

// Send frames resp onto the connection and then closes it. It runs at most once per
// exchange; write failures are logged and reported as false, never returned.
func (e *Exchange) Send(resp protocol.Response) bool {
	if !e.sent.CompareAndSwap(false, true) {
		_ = resp.Close()
		e.logger.Error("response already sent on exchange", "kind", resp.Kind())
		return false
	}
	defer e.Close()
	defer func() { _ = resp.Close() }()

	if e.writeTimeout > 0 {
		if err := e.conn.SetWriteDeadline(time.Now().Add(e.writeTimeout)); err != nil {
			e.logWriteFailure(resp, fmt.Errorf("set write deadline: %w", err))
			return false
		}
	}

	w := bufio.NewWriterSize(e.conn, protocol.ChunkSize)
	frame, err := protocol.WriteResponse(w, resp)
	if err == nil {
		err = w.Flush()
	}
	if err != nil {
		e.logWriteFailure(resp, err)
		return false
	}

	e.logger.Info("response sent",
		"kind", frame.Kind,
		"bytes", frame.Length,
		"digest", fmt.Sprintf("%016x", frame.Digest),
	)
	return true
}

// Close closes the connection once.
func (e *Exchange) Close() {
	e.closeOnce.Do(func() {
		if err := e.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			e.logger.Warn("close connection failed", "error", err.Error())
		}
	})
}

func (e *Exchange) logWriteFailure(resp protocol.Response, err error) {
	switch {
	case isClientGone(err):
		e.logger.Warn("client went away before response completed", "kind", resp.Kind(), "error", err.Error())
	case errors.Is(err, os.ErrDeadlineExceeded):
		e.logger.Warn("response write timed out", "kind", resp.Kind(), "error", err.Error())
	default:
		e.logger.Error("send response failed", "kind", resp.Kind(), "error", err.Error())
	}
}

// isClientGone reports peer-side disconnects during a write.
func isClientGone(err error) bool {
	return errors.Is(err, unix.EPIPE) || errors.Is(err, unix.ECONNRESET) || errors.Is(err, net.ErrClosed)
}

func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
