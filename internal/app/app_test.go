package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/rbright/aperture/internal/config"
	"github.com/rbright/aperture/internal/ipc"
	"github.com/stretchr/testify/require"
)

func TestExecuteHelp(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"--help"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "Usage:")
	require.Empty(t, stderr.String())
}

func TestExecuteVersion(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"version"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "aperture")
	require.Empty(t, stderr.String())
}

func TestExecuteUnknownCommand(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"definitely-not-a-command"}, &stdout, &stderr)
	require.Equal(t, 2, exitCode)
	require.Contains(t, stderr.String(), "unknown command")
	require.Contains(t, stderr.String(), "Usage:")
}

func TestExecuteInvalidConfigFails(t *testing.T) {
	paths := setupRunnerEnv(t)
	require.NoError(t, os.WriteFile(paths.configPath, []byte(`{"server": {"addr": ""}}`), 0o600))

	var stderr bytes.Buffer
	exitCode := Runner{Stdout: io.Discard, Stderr: &stderr}.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "error:")
}

func TestRunnerStatusIdleWhenSocketUnavailable(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "idle\n", stdout.String())
	require.Empty(t, stderr.String())
}

func TestRunnerGrantWithoutEndpointFails(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stderr bytes.Buffer
	runner := Runner{Stdout: io.Discard, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "grant"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "aperture is not running")
}

func TestRunnerForwardsControlCommands(t *testing.T) {
	paths := setupRunnerEnv(t)
	commands := make(chan string, 8)

	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, "aperture.sock"), func(_ context.Context, req ipc.Request) ipc.Response {
		commands <- req.Command
		switch req.Command {
		case ipc.CommandStatus:
			return ipc.Response{OK: true, State: "listening"}
		case ipc.CommandGrant, ipc.CommandDeny, ipc.CommandRevoke:
			return ipc.Response{OK: true, Message: req.Command + " handled"}
		default:
			return ipc.Response{OK: false, Error: "unsupported"}
		}
	})
	defer shutdown()

	for _, cmd := range []string{"status", "grant", "deny", "revoke"} {
		stdout := &bytes.Buffer{}
		stderr := &bytes.Buffer{}
		runner := Runner{Stdout: stdout, Stderr: stderr}

		exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, cmd})
		require.Equal(t, 0, exitCode, cmd)
		require.Empty(t, stderr.String(), cmd)
		if cmd != "status" {
			require.Equal(t, cmd+" handled\n", stdout.String())
		}
	}

	got := []string{<-commands, <-commands, <-commands, <-commands}
	require.ElementsMatch(t, []string{"status", "grant", "deny", "revoke"}, got)
}

func TestRunnerStatusPrintsPermissionAndExchanges(t *testing.T) {
	paths := setupRunnerEnv(t)

	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, "aperture.sock"), func(_ context.Context, _ ipc.Request) ipc.Response {
		return ipc.Response{
			OK:         true,
			State:      "dispatched",
			Permission: &ipc.Permission{Prompting: true, Waiting: true, Prompts: 1},
			Exchanges:  &ipc.Exchanges{Accepted: 2, Completed: 1},
		}
	})
	defer shutdown()

	var stdout bytes.Buffer
	exitCode := Runner{Stdout: &stdout, Stderr: io.Discard}.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "dispatched\n"+
		"permission: granted=false prompting=true waiting=true prompts=1\n"+
		"exchanges: accepted=2 completed=1 aborted=0\n", stdout.String())
}

func TestRunnerStatusFallsBackToIdleWhenServerStateEmpty(t *testing.T) {
	paths := setupRunnerEnv(t)

	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, "aperture.sock"), func(_ context.Context, req ipc.Request) ipc.Response {
		return ipc.Response{OK: true}
	})
	defer shutdown()

	var stdout bytes.Buffer
	exitCode := Runner{Stdout: &stdout, Stderr: io.Discard}.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "idle\n", stdout.String())
}

func TestTryForwardSuccessAndFailureResponses(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "aperture.sock")
	shutdown := startIPCServerForRunnerTest(t, socketPath, func(_ context.Context, req ipc.Request) ipc.Response {
		if req.Command == ipc.CommandStatus {
			return ipc.Response{OK: true, State: "listening"}
		}
		return ipc.Response{OK: false, Error: "unsupported"}
	})
	defer shutdown()

	resp, handled, err := tryForward(context.Background(), socketPath, ipc.CommandStatus)
	require.True(t, handled)
	require.NoError(t, err)
	require.Equal(t, "listening", resp.State)

	_, handled, err = tryForward(context.Background(), socketPath, "bogus")
	require.True(t, handled)
	require.EqualError(t, err, "unsupported")
}

func TestTryForwardDoesNotRemoveSocketPathOnForwardFailure(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "aperture.sock")
	require.NoError(t, os.WriteFile(socketPath, []byte("stale"), 0o600))

	_, handled, err := tryForward(context.Background(), socketPath, ipc.CommandStatus)
	require.False(t, handled)
	require.NoError(t, err)

	_, statErr := os.Stat(socketPath)
	require.NoError(t, statErr)
}

func TestTryForwardTreatsReadFailuresAsHandledErrors(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "aperture.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, acceptErr := listener.Accept()
		if acceptErr == nil {
			_ = conn.Close()
		}
	}()

	_, handled, err := tryForward(context.Background(), socketPath, ipc.CommandStatus)
	require.True(t, handled)
	require.Error(t, err)
	require.Contains(t, err.Error(), `forward command "status":`)

	<-done
	require.NoError(t, listener.Close())
}

func TestSocketErrorHelpers(t *testing.T) {
	require.False(t, isSocketMissing(nil))
	require.False(t, isConnectionRefused(nil))

	require.True(t, isSocketMissing(os.ErrNotExist))
	require.True(t, isSocketMissing(errors.New("dial unix /tmp/aperture.sock: no such file or directory")))
	require.False(t, isSocketMissing(errors.New("other error")))

	require.True(t, isConnectionRefused(syscall.ECONNREFUSED))
	require.False(t, isConnectionRefused(errors.New("other error")))
}

func TestDialAddr(t *testing.T) {
	require.Equal(t, "127.0.0.1:8888", dialAddr(":8888"))
	require.Equal(t, "10.0.0.2:9000", dialAddr("10.0.0.2:9000"))
}

func TestRunnerDoctorCommandPrintsReport(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout bytes.Buffer
	exitCode := Runner{Stdout: &stdout, Stderr: io.Discard}.Execute(context.Background(), []string{"--config", paths.configPath, "doctor"})
	require.Contains(t, []int{0, 1}, exitCode)
	require.Contains(t, stdout.String(), "config: loaded")
	require.Contains(t, stdout.String(), "XDG_RUNTIME_DIR")
}

func TestRunnerDevicesCommandFailsWithoutPulse(t *testing.T) {
	paths := setupRunnerEnv(t)
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var stderr bytes.Buffer
	exitCode := Runner{Stdout: io.Discard, Stderr: &stderr}.Execute(context.Background(), []string{"--config", paths.configPath, "devices"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "error:")
}

func TestRunnerHealthRequiresAddress(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stderr bytes.Buffer
	exitCode := Runner{Stdout: io.Discard, Stderr: &stderr}.Execute(context.Background(), []string{"--config", paths.configPath, "health"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "health.addr is not configured")
}

func TestRunnerSendFailsWithoutEndpoint(t *testing.T) {
	paths := setupRunnerEnv(t)
	addr := freeAddr(t)

	var stderr bytes.Buffer
	exitCode := Runner{Stdout: io.Discard, Stderr: &stderr}.Execute(context.Background(),
		[]string{"--config", paths.configPath, "--addr", addr, "send", "GET_PROP"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), `error: send "GET_PROP"`)
}

func TestRunnerServeEndToEnd(t *testing.T) {
	paths := setupRunnerEnv(t)
	env := writeEndpointConfig(t, &paths)

	serveOut := &lockedBuffer{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serveDone := make(chan int, 1)
	go func() {
		serveDone <- Runner{Stdout: serveOut, Stderr: serveOut}.Execute(ctx, []string{"--config", paths.configPath, "serve"})
	}()

	run := func(args ...string) (int, string, string) {
		var stdout, stderr bytes.Buffer
		code := Runner{Stdout: &stdout, Stderr: &stderr}.Execute(context.Background(), append([]string{"--config", paths.configPath}, args...))
		return code, stdout.String(), stderr.String()
	}

	require.Eventually(t, func() bool {
		_, out, _ := run("status")
		return strings.HasPrefix(out, "listening\n")
	}, 5*time.Second, 25*time.Millisecond, serveOut.String())

	code, out, errOut := run("send", "get_prop")
	require.Equal(t, 0, code, errOut)
	require.Equal(t, "[ro.product.brand]: [aperture]\n", out)

	code, _, errOut = run("send", "DANCE")
	require.Equal(t, 1, code)
	require.Equal(t, "Error: Unknown command: DANCE\n", errOut)

	code, out, _ = run("send", "OPEN_CAMERA")
	require.Equal(t, 0, code)
	require.Equal(t, "Camera access not authorized\n", out)

	photoOut := filepath.Join(t.TempDir(), "received.jpg")
	photoDone := make(chan int, 1)
	go func() {
		code, _, _ := run("--out", photoOut, "send", "TAKE_PHOTO")
		photoDone <- code
	}()

	require.Eventually(t, func() bool {
		_, out, _ := run("status")
		return strings.Contains(out, "waiting=true")
	}, 5*time.Second, 25*time.Millisecond)

	code, out, _ = run("grant")
	require.Equal(t, 0, code)
	require.Equal(t, "camera access granted; resumed pending capture\n", out)

	select {
	case code := <-photoDone:
		require.Equal(t, 0, code)
	case <-time.After(5 * time.Second):
		t.Fatal("TAKE_PHOTO did not complete after grant")
	}
	data, err := os.ReadFile(photoOut)
	require.NoError(t, err)
	require.Equal(t, "JPEGDATA", string(data))

	entries, err := os.ReadDir(env.photoDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, strings.HasPrefix(entries[0].Name(), "captured_auto_"))

	_, out, _ = run("status")
	require.Contains(t, out, "permission: granted=true prompting=false waiting=false prompts=2")

	cancel()
	select {
	case code := <-serveDone:
		require.Equal(t, 0, code, serveOut.String())
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}

	_, statErr := os.Stat(filepath.Join(paths.runtimeDir, "aperture.sock"))
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestRunnerServeFailsWhenAddressInUse(t *testing.T) {
	paths := setupRunnerEnv(t)
	env := writeEndpointConfig(t, &paths)

	busy, err := net.Listen("tcp", env.addr)
	require.NoError(t, err)
	defer busy.Close()

	var stderr bytes.Buffer
	exitCode := Runner{Stdout: io.Discard, Stderr: &stderr}.Execute(context.Background(), []string{"--config", paths.configPath, "serve"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "listen tcp")

	_, statErr := os.Stat(filepath.Join(paths.runtimeDir, "aperture.sock"))
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestServiceControlCommands(t *testing.T) {
	paths := setupRunnerEnv(t)
	writeEndpointConfig(t, &paths)
	loaded, err := config.Load(paths.configPath)
	require.NoError(t, err)

	svc, err := newService(context.Background(), loaded.Config, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(svc.close)

	resp := svc.handleControl(context.Background(), ipc.Request{Command: ipc.CommandStatus})
	require.True(t, resp.OK)
	require.Equal(t, "idle", resp.State)
	require.False(t, resp.Permission.Granted)

	resp = svc.handleControl(context.Background(), ipc.Request{Command: ipc.CommandGrant})
	require.Equal(t, "camera access granted", resp.Message)
	require.True(t, resp.Permission.Granted)

	resp = svc.handleControl(context.Background(), ipc.Request{Command: ipc.CommandRevoke})
	require.Equal(t, "camera access revoked", resp.Message)
	require.False(t, resp.Permission.Granted)

	resp = svc.handleControl(context.Background(), ipc.Request{Command: ipc.CommandDeny})
	require.Equal(t, "camera access denied", resp.Message)

	resp = svc.handleControl(context.Background(), ipc.Request{Command: "toggle"})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "unknown control command")
}

type runnerPaths struct {
	configPath string
	runtimeDir string
}

func setupRunnerEnv(t *testing.T) runnerPaths {
	t.Helper()

	runtimeDir := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_RUNTIME_DIR", runtimeDir)

	configPath := filepath.Join(t.TempDir(), "config.jsonc")
	require.NoError(t, os.WriteFile(configPath, []byte("\n"), 0o600))

	return runnerPaths{configPath: configPath, runtimeDir: runtimeDir}
}

type endpointEnv struct {
	addr     string
	photoDir string
}

// writeEndpointConfig points the endpoint at a stub capture tool and a fake device.
func writeEndpointConfig(t *testing.T, paths *runnerPaths) endpointEnv {
	t.Helper()

	dir := t.TempDir()
	capture := filepath.Join(dir, "fake-capture")
	require.NoError(t, os.WriteFile(capture, []byte("#!/bin/sh\nprintf 'JPEGDATA' > \"$1\"\n"), 0o755))
	device := filepath.Join(dir, "video0")
	require.NoError(t, os.WriteFile(device, nil, 0o600))

	env := endpointEnv{addr: freeAddr(t), photoDir: filepath.Join(dir, "photos")}
	body := fmt.Sprintf(`server:
  addr: %q
camera:
  capture_cmd: %q
  viewer_cmd: "true {device}"
  device: %q
  photo_dir: %q
props:
  cmd: "printf '[ro.product.brand]: [aperture]\\n'"
  audio: false
indicator:
  enable: false
  sound_enable: false
`, env.addr, capture+" {output}", device, env.photoDir)

	paths.configPath = filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(paths.configPath, []byte(body), 0o600))
	return env
}

func freeAddr(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())
	return addr
}

func startIPCServerForRunnerTest(t *testing.T, socketPath string, handler func(context.Context, ipc.Request) ipc.Response) func() {
	t.Helper()

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ipc.Serve(ctx, listener, ipc.HandlerFunc(handler))
	}()

	return func() {
		cancel()
		require.NoError(t, <-done)
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
