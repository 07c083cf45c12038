// Package client sends one remote-control command and decodes the framed response.
package client

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rbright/aperture/internal/protocol"
)

// Send dials addr, writes command as one line and reads exactly one framed response.
// A zero timeout leaves the exchange bounded only by ctx.
func Send(ctx context.Context, addr string, command string, timeout time.Duration) (protocol.Frame, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return protocol.Frame{}, err
	}
	defer conn.Close()

	if timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			return protocol.Frame{}, fmt.Errorf("set deadline: %w", err)
		}
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if _, err := conn.Write([]byte(command + "\n")); err != nil {
		return protocol.Frame{}, fmt.Errorf("write command: %w", err)
	}

	frame, err := protocol.ReadResponse(bufio.NewReader(conn))
	if err != nil {
		if ctx.Err() != nil {
			return protocol.Frame{}, ctx.Err()
		}
		return protocol.Frame{}, fmt.Errorf("read response: %w", err)
	}
	return frame, nil
}
