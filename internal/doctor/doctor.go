// Package doctor runs readiness diagnostics for config, capture tools, the camera
// device, listening addresses, and audio sources.
package doctor

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/aperture/internal/audio"
	"github.com/rbright/aperture/internal/config"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// gpioDevice is the memory device go-rpio maps on a Raspberry Pi.
var gpioDevice = "/dev/gpiomem"

// Run executes environment/config/runtime checks for a loaded config.
func Run(loaded config.Loaded) Report {
	cfg := loaded.Config
	checks := []Check{checkConfig(loaded)}

	checks = append(checks, checkEnv("XDG_RUNTIME_DIR", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "control socket directory is set", "XDG_RUNTIME_DIR is empty; grant/deny/status cannot reach serve"))

	switch cfg.Camera.Backend {
	case config.BackendCommand:
		checks = append(checks, checkCommand(cfg.Camera.Capture.Argv, "camera.capture_cmd"))
		checks = append(checks, checkWritableDir("camera.photo_dir", config.ExpandUserPath(cfg.Camera.PhotoDir)))
	case config.BackendGPIO:
		if cfg.Camera.GPIO.Mock {
			checks = append(checks, Check{Name: "camera.gpio", Pass: true, Message: "mock driver enabled"})
		} else {
			checks = append(checks, checkPathExists("camera.gpio", gpioDevice))
		}
	}

	if len(cfg.Camera.Viewer.Argv) > 0 {
		checks = append(checks, checkCommand(cfg.Camera.Viewer.Argv, "camera.viewer_cmd"))
	}
	checks = append(checks, checkPathExists("camera.device", cfg.Camera.Device))

	if len(cfg.Props.Command.Argv) > 0 {
		checks = append(checks, checkCommand(cfg.Props.Command.Argv, "props.cmd"))
	}
	if cfg.Props.Audio {
		checks = append(checks, checkAudioSources())
	}

	checks = append(checks, checkAddrAvailable("server.addr", cfg.Server.Addr))
	if strings.TrimSpace(cfg.Health.Addr) != "" {
		checks = append(checks, checkAddrAvailable("health.addr", cfg.Health.Addr))
	}

	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	if !loaded.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("using defaults (%q not found)", loaded.Path)}
	}
	message := fmt.Sprintf("loaded %q", loaded.Path)
	if n := len(loaded.Warnings); n > 0 {
		message += fmt.Sprintf(" with %d warning(s)", n)
	}
	return Check{Name: "config", Pass: true, Message: message}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

func checkPathExists(name string, path string) Check {
	if strings.TrimSpace(path) == "" {
		return Check{Name: name, Pass: false, Message: "path is empty"}
	}
	if _, err := os.Stat(path); err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("%s: %v", path, err)}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("%s present", path)}
}

// checkWritableDir creates dir if needed and proves a file can be written there.
func checkWritableDir(name string, dir string) Check {
	if strings.TrimSpace(dir) == "" {
		return Check{Name: name, Pass: false, Message: "path is empty"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("create %s: %v", dir, err)}
	}
	f, err := os.CreateTemp(dir, ".aperture-doctor-*")
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("write %s: %v", dir, err)}
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("%s is writable", dir)}
}

// checkAddrAvailable binds addr briefly. It fails while a running serve holds it.
func checkAddrAvailable(name string, addr string) Check {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("cannot bind %s: %v", addr, err)}
	}
	_ = lis.Close()
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("%s is available", addr)}
}

func checkAudioSources() Check {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	devices, err := audio.ListDevices(ctx)
	if err != nil {
		return Check{Name: "props.audio", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("%d source(s)", len(devices))
	if def, ok := audio.DefaultDevice(devices); ok {
		message += fmt.Sprintf(", default %q", def.ID)
	}
	return Check{Name: "props.audio", Pass: true, Message: message}
}
