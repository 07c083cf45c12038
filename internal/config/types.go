// Package config resolves, parses, validates, and defaults aperture configuration.
package config

import "time"

// Config is the fully materialized runtime configuration used by aperture.
type Config struct {
	Server     ServerConfig
	Health     HealthConfig
	Camera     CameraConfig
	Permission PermissionConfig
	Props      PropsConfig
	Indicator  IndicatorConfig
	Log        LogConfig
}

// ServerConfig controls the TCP command listener.
type ServerConfig struct {
	Addr              string
	ReadTimeoutMS     int
	WriteTimeoutMS    int
	ResponseTimeoutMS int
}

// HealthConfig controls the optional gRPC health endpoint. An empty Addr disables it.
type HealthConfig struct {
	Addr string
}

// CameraConfig selects and tunes the capture backend and the viewer.
type CameraConfig struct {
	Backend          string
	Capture          CommandConfig
	Viewer           CommandConfig
	Device           string
	PhotoDir         string
	CaptureTimeoutMS int
	GPIO             GPIOConfig
}

// GPIOConfig wires a tethered camera's remote connector.
type GPIOConfig struct {
	Mock           bool
	FocusPin       int
	ShutterPin     int
	FocusDelayMS   int
	ShutterDelayMS int
}

// PermissionConfig seeds the camera permission gate.
type PermissionConfig struct {
	GrantOnStart bool
}

// PropsConfig controls GET_PROP output.
type PropsConfig struct {
	Command CommandConfig
	Keys    []string
	Audio   bool
}

// IndicatorConfig controls desktop notifications and audio cues.
type IndicatorConfig struct {
	Enable           bool
	DesktopAppName   string
	TimeoutMS        int
	SoundEnable      bool
	SoundShutterFile string
	SoundPromptFile  string
}

// LogConfig controls runtime log verbosity.
type LogConfig struct {
	Level string
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

// Backend names accepted by camera.backend.
const (
	BackendCommand = "command"
	BackendGPIO    = "gpio"
)

// Placeholders substituted into camera commands.
const (
	OutputPlaceholder = "{output}"
	DevicePlaceholder = "{device}"
)

func (s ServerConfig) ReadTimeout() time.Duration     { return millis(s.ReadTimeoutMS) }
func (s ServerConfig) WriteTimeout() time.Duration    { return millis(s.WriteTimeoutMS) }
func (s ServerConfig) ResponseTimeout() time.Duration { return millis(s.ResponseTimeoutMS) }

func (c CameraConfig) CaptureTimeout() time.Duration { return millis(c.CaptureTimeoutMS) }

func (g GPIOConfig) FocusDelay() time.Duration   { return millis(g.FocusDelayMS) }
func (g GPIOConfig) ShutterDelay() time.Duration { return millis(g.ShutterDelayMS) }

func millis(ms int) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
