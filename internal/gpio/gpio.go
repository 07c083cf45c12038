// Package gpio drives the digital lines of a tethered camera's remote connector.
package gpio

import (
	"log/slog"
	"sync"
)

// Level is the logical state of a pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "high"
	}
	return "low"
}

// PinMode selects input or output.
type PinMode int

const (
	Input PinMode = iota
	Output
)

func (m PinMode) String() string {
	switch m {
	case Input:
		return "input"
	case Output:
		return "output"
	default:
		return "unknown"
	}
}

// Driver controls GPIO lines. The Raspberry Pi driver and the mock both satisfy it.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	Close() error
}

// NewDriver returns the mock driver when mock is set, otherwise the memory-mapped
// Raspberry Pi driver.
func NewDriver(mock bool, logger *slog.Logger) (Driver, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if mock {
		logger.Info("using mock gpio driver")
		return NewMockDriver(logger), nil
	}
	return NewRPiDriver(logger)
}

// MockDriver keeps pin levels in memory and logs every operation.
type MockDriver struct {
	logger *slog.Logger

	mu     sync.Mutex
	levels map[int]Level
	modes  map[int]PinMode
}

func NewMockDriver(logger *slog.Logger) *MockDriver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &MockDriver{
		logger: logger,
		levels: make(map[int]Level),
		modes:  make(map[int]PinMode),
	}
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	m.mu.Lock()
	m.modes[pin] = mode
	m.mu.Unlock()
	m.logger.Debug("gpio setup", "pin", pin, "mode", mode.String())
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	m.mu.Lock()
	m.levels[pin] = level
	m.mu.Unlock()
	m.logger.Debug("gpio write", "pin", pin, "level", level.String())
	return nil
}

// ReadPin returns the last level written, High for untouched pins.
func (m *MockDriver) ReadPin(pin int) (Level, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	level, ok := m.levels[pin]
	if !ok {
		return High, nil
	}
	return level, nil
}

func (m *MockDriver) Close() error {
	m.logger.Debug("gpio close (mock)")
	return nil
}
