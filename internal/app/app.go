// Package app wires parsed CLI commands to the endpoint runtime and its clients.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rbright/aperture/internal/audio"
	"github.com/rbright/aperture/internal/cli"
	"github.com/rbright/aperture/internal/client"
	"github.com/rbright/aperture/internal/config"
	"github.com/rbright/aperture/internal/doctor"
	"github.com/rbright/aperture/internal/health"
	"github.com/rbright/aperture/internal/ipc"
	"github.com/rbright/aperture/internal/logging"
	"github.com/rbright/aperture/internal/protocol"
	"github.com/rbright/aperture/internal/version"
	"golang.org/x/sys/unix"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const binaryName = "aperture"

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(binaryName))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	level, err := logging.ParseLevel(cfgLoaded.Config.Log.Level)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	logRuntime, err := logging.New(level)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandGrant:
		return r.forwardOrFail(ctx, ipc.CommandGrant)
	case cli.CommandDeny:
		return r.forwardOrFail(ctx, ipc.CommandDeny)
	case cli.CommandRevoke:
		return r.forwardOrFail(ctx, ipc.CommandRevoke)
	case cli.CommandSend:
		return r.commandSend(ctx, cfgLoaded.Config, parsed, logger)
	case cli.CommandHealth:
		return r.commandHealth(ctx, cfgLoaded.Config, parsed.Addr)
	case cli.CommandServe:
		if parsed.Addr != "" {
			cfgLoaded.Config.Server.Addr = parsed.Addr
		}
		return r.commandServe(ctx, cfgLoaded.Config, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandServe(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	control, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8, nil)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = control.Close()
		_ = os.Remove(socketPath)
	}()

	svc, err := newService(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("start endpoint failed", "error", err.Error())
		return 1
	}

	fmt.Fprintf(r.Stdout, "listening on %s\n", svc.server.Addr())
	if err := svc.run(ctx, control); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("endpoint stopped with error", "error", err.Error())
		return 1
	}
	logger.Info("endpoint stopped", "stats", svc.server.Stats())
	return 0
}

func (r Runner) commandSend(ctx context.Context, cfg config.Config, parsed cli.Parsed, logger *slog.Logger) int {
	addr := dialAddr(cfg.Server.Addr)
	if parsed.Addr != "" {
		addr = parsed.Addr
	}

	timeout := cfg.Server.ResponseTimeout()
	if timeout > 0 {
		timeout += 5 * time.Second
	}
	frame, err := client.Send(ctx, addr, parsed.Arg, timeout)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: send %q to %s: %v\n", parsed.Arg, addr, err)
		return 1
	}
	logger.Info("response received", "addr", addr, "kind", frame.Kind, "bytes", frame.Length, "digest", frame.Digest)

	switch frame.Kind {
	case protocol.KindImage:
		if err := os.WriteFile(parsed.OutPath, frame.Payload, 0o644); err != nil {
			fmt.Fprintf(r.Stderr, "error: write image: %v\n", err)
			return 1
		}
		fmt.Fprintf(r.Stdout, "Image saved to %s (%d bytes, xxh64 %016x)\n", parsed.OutPath, frame.Length, frame.Digest)
		return 0
	case protocol.KindError:
		fmt.Fprintf(r.Stderr, "Error: %s\n", frame.Payload)
		return 1
	default:
		fmt.Fprintln(r.Stdout, strings.TrimRight(string(frame.Payload), "\n"))
		return 0
	}
}

// dialAddr turns a listen address such as ":8888" into one a client can dial.
func dialAddr(listen string) string {
	if strings.HasPrefix(listen, ":") {
		return "127.0.0.1" + listen
	}
	return listen
}

func (r Runner) commandHealth(ctx context.Context, cfg config.Config, override string) int {
	addr := cfg.Health.Addr
	if override != "" {
		addr = override
	}
	if strings.TrimSpace(addr) == "" {
		fmt.Fprintln(r.Stderr, "error: health.addr is not configured")
		return 1
	}

	resp, err := health.Check(ctx, dialAddr(addr), health.Service, 3*time.Second)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	text, err := health.Render(resp)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintln(r.Stdout, text)
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return 1
	}
	return 0
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio sources found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			yesNo(device.Available),
			yesNo(device.Muted),
		)
	}
	return 0
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.CommandStatus)
	if !handled {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	r.printStatus(resp)
	return 0
}

func (r Runner) printStatus(resp ipc.Response) {
	state := resp.State
	if state == "" {
		state = "idle"
	}
	fmt.Fprintln(r.Stdout, state)
	if p := resp.Permission; p != nil {
		fmt.Fprintf(r.Stdout, "permission: granted=%t prompting=%t waiting=%t prompts=%d\n", p.Granted, p.Prompting, p.Waiting, p.Prompts)
	}
	if e := resp.Exchanges; e != nil {
		fmt.Fprintf(r.Stdout, "exchanges: accepted=%d completed=%d aborted=%d\n", e.Accepted, e.Completed, e.Aborted)
	}
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, command)
	if !handled {
		fmt.Fprintln(r.Stderr, "error: aperture is not running")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

func tryForward(ctx context.Context, socketPath string, command string) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, ipc.Request{Command: command}, 220*time.Millisecond)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if isSocketMissing(err) || isConnectionRefused(err) {
		return ipc.Response{}, false, nil
	}
	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
}

func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "no such file or directory")
}

func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, unix.ECONNREFUSED)
}
