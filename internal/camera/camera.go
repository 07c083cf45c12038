// Package camera captures photos and opens the live viewer.
package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rbright/aperture/internal/config"
	"github.com/rbright/aperture/internal/gpio"
)

// Photo describes a finished capture. An empty Path means the picture stayed on
// the camera's own storage and Note says where it went.
type Photo struct {
	Path string
	Note string
}

// Capturer takes one picture asynchronously. Exactly one of onSaved or onError
// runs, exactly once, on a goroutine owned by the capturer.
type Capturer interface {
	Capture(ctx context.Context, onSaved func(Photo), onError func(error))
}

// ErrBusy is reported when a capture is requested while another is running.
var ErrBusy = errors.New("capture already in progress")

// NewCapturer builds the capturer selected by camera.backend. The returned close
// func releases backend resources and is never nil.
func NewCapturer(cfg config.CameraConfig, logger *slog.Logger) (Capturer, func() error, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	switch cfg.Backend {
	case config.BackendCommand:
		return NewCommandCapturer(cfg, logger), func() error { return nil }, nil
	case config.BackendGPIO:
		driver, err := gpio.NewDriver(cfg.GPIO.Mock, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("init gpio driver: %w", err)
		}
		shutter := NewShutterCapturer(driver, cfg.GPIO, logger)
		return shutter, driver.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported camera backend %q", cfg.Backend)
	}
}

// boundedContext applies the capture timeout when one is configured.
func boundedContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
