package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/rbright/aperture/internal/config"
)

// Status strings returned by Opener.Open.
const (
	StatusOpened     = "Camera opened successfully."
	StatusNoDevice   = "Camera does not exist"
	openFailedPrefix = "Failed to open camera: "
)

// Opener launches the live viewer for the capture device.
type Opener struct {
	device string
	argv   []string
	logger *slog.Logger

	start func(*exec.Cmd) error
}

func NewOpener(cfg config.CameraConfig, logger *slog.Logger) *Opener {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Opener{
		device: cfg.Device,
		argv:   append([]string(nil), cfg.Viewer.Argv...),
		logger: logger,
		start:  startDetached,
	}
}

// DeviceExists reports whether the capture device node is present.
func (o *Opener) DeviceExists() bool {
	_, err := os.Stat(o.device)
	return err == nil
}

// Open starts the viewer without waiting for it and returns a status line.
func (o *Opener) Open(ctx context.Context) string {
	if !o.DeviceExists() {
		o.logger.Info("camera device missing", "device", o.device)
		return StatusNoDevice
	}
	if len(o.argv) == 0 {
		return openFailedPrefix + "viewer command is not configured"
	}

	argv := expandArgv(o.argv, map[string]string{config.DevicePlaceholder: o.device})
	cmd := exec.Command(argv[0], argv[1:]...)
	if err := o.start(cmd); err != nil {
		o.logger.Warn("camera viewer failed to start", "error", err.Error())
		return openFailedPrefix + err.Error()
	}
	o.logger.Info("camera viewer started", "device", o.device, "command", argv[0])
	return StatusOpened
}

// startDetached runs cmd in the background and reaps it when it exits.
func startDetached(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return fmt.Errorf("%s not found", execErr.Name)
		}
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
