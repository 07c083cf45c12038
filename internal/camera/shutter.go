package camera

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/aperture/internal/config"
	"github.com/rbright/aperture/internal/gpio"
)

// StoredOnCamera is the note reported when a shot is kept on the camera's card.
const StoredOnCamera = "Image saved to camera storage"

// ShutterCapturer fires a tethered camera through its wired remote connector.
// FOCUS and SHUTTER are active low: focus, wait for autofocus, shutter, hold, then
// release shutter and focus.
type ShutterCapturer struct {
	driver       gpio.Driver
	focusPin     int
	shutterPin   int
	focusDelay   time.Duration
	shutterDelay time.Duration
	logger       *slog.Logger

	mu sync.Mutex
}

// NewShutterCapturer configures both lines as outputs and parks them high.
func NewShutterCapturer(driver gpio.Driver, cfg config.GPIOConfig, logger *slog.Logger) *ShutterCapturer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	for _, pin := range []int{cfg.FocusPin, cfg.ShutterPin} {
		if err := driver.SetupPin(pin, gpio.Output); err != nil {
			logger.Warn("gpio setup failed", "pin", pin, "error", err.Error())
		}
		if err := driver.WritePin(pin, gpio.High); err != nil {
			logger.Warn("gpio park high failed", "pin", pin, "error", err.Error())
		}
	}

	return &ShutterCapturer{
		driver:       driver,
		focusPin:     cfg.FocusPin,
		shutterPin:   cfg.ShutterPin,
		focusDelay:   cfg.FocusDelay(),
		shutterDelay: cfg.ShutterDelay(),
		logger:       logger,
	}
}

// Capture runs the trigger sequence in the background.
func (s *ShutterCapturer) Capture(ctx context.Context, onSaved func(Photo), onError func(error)) {
	if !s.mu.TryLock() {
		go onError(ErrBusy)
		return
	}

	go func() {
		defer s.mu.Unlock()

		if err := s.Shoot(ctx); err != nil {
			s.logger.Warn("shutter release failed", "error", err.Error())
			onError(err)
			return
		}
		onSaved(Photo{Note: StoredOnCamera})
	}()
}

// Shoot runs one trigger sequence synchronously. Both lines end high even on failure.
func (s *ShutterCapturer) Shoot(ctx context.Context) error {
	s.logger.Debug("triggering shot", "focus_pin", s.focusPin, "shutter_pin", s.shutterPin)

	if err := s.driver.WritePin(s.focusPin, gpio.Low); err != nil {
		return fmt.Errorf("assert focus: %w", err)
	}
	if err := sleepContext(ctx, s.focusDelay); err != nil {
		s.release()
		return err
	}

	if err := s.driver.WritePin(s.shutterPin, gpio.Low); err != nil {
		s.release()
		return fmt.Errorf("assert shutter: %w", err)
	}
	if err := sleepContext(ctx, s.shutterDelay); err != nil {
		s.release()
		return err
	}

	if err := s.driver.WritePin(s.shutterPin, gpio.High); err != nil {
		s.release()
		return fmt.Errorf("release shutter: %w", err)
	}
	if err := s.driver.WritePin(s.focusPin, gpio.High); err != nil {
		return fmt.Errorf("release focus: %w", err)
	}

	s.logger.Info("shot triggered")
	return nil
}

func (s *ShutterCapturer) release() {
	_ = s.driver.WritePin(s.shutterPin, gpio.High)
	_ = s.driver.WritePin(s.focusPin, gpio.High)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
