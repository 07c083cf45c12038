package config

import (
	"fmt"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return nil, fmt.Errorf("server.addr must not be empty")
	}
	if cfg.Server.ReadTimeoutMS < 0 {
		return nil, fmt.Errorf("server.read_timeout_ms must be >= 0")
	}
	if cfg.Server.WriteTimeoutMS < 0 {
		return nil, fmt.Errorf("server.write_timeout_ms must be >= 0")
	}
	if cfg.Server.ResponseTimeoutMS < 0 {
		return nil, fmt.Errorf("server.response_timeout_ms must be >= 0")
	}
	if cfg.Server.ResponseTimeoutMS == 0 {
		warnings = append(warnings, Warning{Message: "server.response_timeout_ms=0 lets a pending photo hold the listener indefinitely"})
	}
	if addr := strings.TrimSpace(cfg.Health.Addr); addr != "" && addr == strings.TrimSpace(cfg.Server.Addr) {
		return nil, fmt.Errorf("health.addr must differ from server.addr")
	}

	switch cfg.Camera.Backend {
	case BackendCommand:
		if len(cfg.Camera.Capture.Argv) == 0 {
			return nil, fmt.Errorf("camera.capture_cmd must not be empty when camera.backend=command")
		}
		if !strings.Contains(cfg.Camera.Capture.Raw, OutputPlaceholder) {
			warnings = append(warnings, Warning{Message: "camera.capture_cmd has no {output} placeholder; the photo path is appended"})
		}
	case BackendGPIO:
		gpio := cfg.Camera.GPIO
		if gpio.FocusPin <= 0 || gpio.ShutterPin <= 0 {
			return nil, fmt.Errorf("camera.gpio pins must be > 0")
		}
		if gpio.FocusPin == gpio.ShutterPin {
			return nil, fmt.Errorf("camera.gpio.focus_pin and camera.gpio.shutter_pin must differ")
		}
		if gpio.FocusDelayMS < 0 || gpio.ShutterDelayMS < 0 {
			return nil, fmt.Errorf("camera.gpio delays must be >= 0")
		}
	case "":
		return nil, fmt.Errorf("camera.backend must not be empty")
	default:
		return nil, fmt.Errorf("camera.backend must be one of: command, gpio")
	}

	if strings.TrimSpace(cfg.Camera.Device) == "" {
		return nil, fmt.Errorf("camera.device must not be empty")
	}
	if cfg.Camera.Backend == BackendCommand && strings.TrimSpace(cfg.Camera.PhotoDir) == "" {
		return nil, fmt.Errorf("camera.photo_dir must not be empty when camera.backend=command")
	}
	if cfg.Camera.CaptureTimeoutMS < 0 {
		return nil, fmt.Errorf("camera.capture_timeout_ms must be >= 0")
	}
	if cfg.Camera.Viewer.Raw != "" && len(cfg.Camera.Viewer.Argv) == 0 {
		return nil, fmt.Errorf("camera.viewer_cmd is configured but empty")
	}

	if cfg.Props.Command.Raw != "" && len(cfg.Props.Command.Argv) == 0 {
		return nil, fmt.Errorf("props.cmd is configured but empty")
	}

	if cfg.Indicator.Enable && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.enable=true")
	}
	if cfg.Indicator.TimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.timeout_ms must be >= 0")
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}

	return warnings, nil
}
