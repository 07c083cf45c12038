package client

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/rbright/aperture/internal/protocol"
	"github.com/stretchr/testify/require"
)

// serveOnce answers the first connection with raw bytes and reports the command it read.
func serveOnce(t *testing.T, reply string) (string, <-chan string) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = lis.Close() })

	got := make(chan string, 1)
	go func() {
		conn, err := lis.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		line, _ := protocol.ReadCommand(bufio.NewReader(conn))
		got <- line
		if reply != "" {
			_, _ = conn.Write([]byte(reply))
		}
	}()
	return lis.Addr().String(), got
}

func TestSendDecodesImageFrame(t *testing.T) {
	addr, got := serveOnce(t, "IMAGE\n4\n\xff\xd8\xff\xd9")

	frame, err := Send(context.Background(), addr, "TAKE_PHOTO", time.Second)
	require.NoError(t, err)
	require.Equal(t, "TAKE_PHOTO", <-got)
	require.Equal(t, protocol.KindImage, frame.Kind)
	require.EqualValues(t, 4, frame.Length)
	require.Equal(t, []byte{0xff, 0xd8, 0xff, 0xd9}, frame.Payload)
	require.NotZero(t, frame.Digest)
}

func TestSendReportsTruncatedResponse(t *testing.T) {
	addr, _ := serveOnce(t, "TEXT\n10\nshort")

	_, err := Send(context.Background(), addr, "GET_PROP", time.Second)
	require.Error(t, err)
	require.Contains(t, err.Error(), "read response")
}

func TestSendDialFailure(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	_, err = Send(context.Background(), addr, "GET_PROP", time.Second)
	require.Error(t, err)
}

func TestSendHonorsContextWhileWaiting(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = lis.Close() })
	go func() {
		conn, err := lis.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(2 * time.Second)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = Send(ctx, lis.Addr().String(), "TAKE_PHOTO", 0)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
