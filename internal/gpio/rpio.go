package gpio

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"
)

// RPiDriver drives Raspberry Pi GPIO through /dev/gpiomem.
type RPiDriver struct {
	logger *slog.Logger

	mu   sync.Mutex
	pins map[int]rpio.Pin
}

// NewRPiDriver maps GPIO memory. It fails off-device or without gpiomem access.
func NewRPiDriver(logger *slog.Logger) (*RPiDriver, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpio memory: %w", err)
	}
	logger.Info("gpio memory mapped")

	return &RPiDriver{logger: logger, pins: make(map[int]rpio.Pin)}, nil
}

func (r *RPiDriver) SetupPin(pin int, mode PinMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setupLocked(pin, mode)
}

func (r *RPiDriver) setupLocked(pin int, mode PinMode) error {
	p := rpio.Pin(pin)
	switch mode {
	case Input:
		p.Input()
	case Output:
		p.Output()
	default:
		return fmt.Errorf("unknown pin mode: %d", mode)
	}
	r.pins[pin] = p
	r.logger.Debug("gpio setup", "pin", pin, "mode", mode.String())
	return nil
}

// WritePin configures unknown pins as outputs first.
func (r *RPiDriver) WritePin(pin int, level Level) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pins[pin]
	if !ok {
		if err := r.setupLocked(pin, Output); err != nil {
			return err
		}
		p = r.pins[pin]
	}

	if level == High {
		p.High()
	} else {
		p.Low()
	}
	r.logger.Debug("gpio write", "pin", pin, "level", level.String())
	return nil
}

// ReadPin configures unknown pins as inputs first.
func (r *RPiDriver) ReadPin(pin int) (Level, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pins[pin]
	if !ok {
		if err := r.setupLocked(pin, Input); err != nil {
			return Low, err
		}
		p = r.pins[pin]
	}

	if p.Read() == rpio.High {
		return High, nil
	}
	return Low, nil
}

// Close returns every touched pin to input before unmapping.
func (r *RPiDriver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for pin, p := range r.pins {
		p.Input()
		r.logger.Debug("gpio reset to input", "pin", pin)
	}
	r.pins = make(map[int]rpio.Pin)
	return rpio.Close()
}
