package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rbright/aperture/internal/config"
	"github.com/rs/xid"
)

// CommandCapturer runs an external capture tool that writes a JPEG to a path it is given.
type CommandCapturer struct {
	argv     []string
	device   string
	photoDir string
	timeout  time.Duration
	logger   *slog.Logger

	busy atomic.Bool
	now  func() time.Time
}

func NewCommandCapturer(cfg config.CameraConfig, logger *slog.Logger) *CommandCapturer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CommandCapturer{
		argv:     append([]string(nil), cfg.Capture.Argv...),
		device:   cfg.Device,
		photoDir: config.ExpandUserPath(cfg.PhotoDir),
		timeout:  cfg.CaptureTimeout(),
		logger:   logger,
		now:      time.Now,
	}
}

// Capture starts the capture tool in the background.
func (c *CommandCapturer) Capture(ctx context.Context, onSaved func(Photo), onError func(error)) {
	if !c.busy.CompareAndSwap(false, true) {
		go onError(ErrBusy)
		return
	}

	go func() {
		defer c.busy.Store(false)

		path, err := c.run(ctx)
		if err != nil {
			c.logger.Warn("photo capture failed", "error", err.Error())
			onError(err)
			return
		}
		c.logger.Info("photo captured", "path", path)
		onSaved(Photo{Path: path})
	}()
}

func (c *CommandCapturer) run(ctx context.Context) (string, error) {
	if len(c.argv) == 0 {
		return "", errors.New("capture command is not configured")
	}
	if err := os.MkdirAll(c.photoDir, 0o755); err != nil {
		return "", fmt.Errorf("create photo dir: %w", err)
	}

	path := filepath.Join(c.photoDir, PhotoFileName(c.now(), xid.New()))
	argv := expandArgv(c.argv, map[string]string{
		config.OutputPlaceholder: path,
		config.DevicePlaceholder: c.device,
	})
	if !containsPlaceholder(c.argv, config.OutputPlaceholder) {
		argv = append(argv, path)
	}

	runCtx, cancel := boundedContext(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.WaitDelay = time.Second
	out, err := cmd.CombinedOutput()
	if err != nil {
		_ = os.Remove(path)
		if runCtx.Err() != nil && ctx.Err() == nil {
			return "", fmt.Errorf("%s timed out after %s", argv[0], c.timeout)
		}
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return "", fmt.Errorf("%s failed: %w", argv[0], err)
		}
		return "", fmt.Errorf("%s failed: %w (%s)", argv[0], err, trimmed)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%s did not write %s: %w", argv[0], path, err)
	}
	if info.Size() == 0 {
		_ = os.Remove(path)
		return "", fmt.Errorf("%s wrote an empty file", argv[0])
	}
	return path, nil
}

// PhotoFileName names a capture by local time with a unique suffix, e.g.
// captured_auto_20261019_142501_cs1ud4rr0g7lm9h0t8kg.jpg.
func PhotoFileName(at time.Time, id xid.ID) string {
	return "captured_auto_" + at.Format("20060102_150405") + "_" + id.String() + ".jpg"
}

func expandArgv(argv []string, values map[string]string) []string {
	out := make([]string, len(argv))
	for i, arg := range argv {
		for placeholder, value := range values {
			arg = strings.ReplaceAll(arg, placeholder, value)
		}
		out[i] = arg
	}
	return out
}

func containsPlaceholder(argv []string, placeholder string) bool {
	for _, arg := range argv {
		if strings.Contains(arg, placeholder) {
			return true
		}
	}
	return false
}
