package props

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"os/user"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/rbright/aperture/internal/audio"
	"github.com/rbright/aperture/internal/config"
	"golang.org/x/sys/unix"
)

const commandTimeout = 5 * time.Second

// Collector produces the GET_PROP text block.
type Collector struct {
	argv   []string
	keys   []string
	audio  bool
	logger *slog.Logger

	osReleasePath string
	listAudio     func(context.Context) ([]audio.Device, error)
}

func NewCollector(cfg config.PropsConfig, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Collector{
		argv:          append([]string(nil), cfg.Command.Argv...),
		keys:          append([]string(nil), cfg.Keys...),
		audio:         cfg.Audio,
		logger:        logger,
		osReleasePath: "/etc/os-release",
		listAudio:     audio.ListDevices,
	}
}

// Collect runs the configured property command, or describes the host when none is
// set. With a key list the output is narrowed to those keys; without one a command's
// output is returned verbatim.
func (c *Collector) Collect(ctx context.Context) (string, error) {
	if len(c.argv) > 0 {
		out, err := c.runCommand(ctx)
		if err != nil {
			return "", err
		}
		if len(c.keys) == 0 {
			return out, nil
		}
		return Format(Filter(Parse(out), c.keys)), nil
	}

	props := c.hostProps()
	if c.audio {
		props = append(props, c.audioProps(ctx)...)
	}
	if len(c.keys) > 0 {
		props = Filter(props, c.keys)
	}
	return Format(props), nil
}

func (c *Collector) runCommand(ctx context.Context) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	out, err := exec.CommandContext(runCtx, c.argv[0], c.argv[1:]...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if stderr := strings.TrimSpace(string(exitErr.Stderr)); stderr != "" {
				return "", fmt.Errorf("%s: %w (%s)", c.argv[0], err, stderr)
			}
		}
		return "", fmt.Errorf("%s: %w", c.argv[0], err)
	}
	return string(out), nil
}

func (c *Collector) hostProps() []Prop {
	props := []Prop{
		{Key: "host.name", Value: hostname()},
		{Key: "os.name", Value: runtime.GOOS},
		{Key: "os.arch", Value: runtime.GOARCH},
		{Key: "cpu.count", Value: strconv.Itoa(runtime.NumCPU())},
	}
	props = append(props, unameProps()...)
	props = append(props, osReleaseProps(c.osReleasePath)...)
	props = append(props,
		Prop{Key: "user.name", Value: username()},
		Prop{Key: "net.ipv4", Value: localIPv4()},
	)
	return props
}

// audioProps is best effort: a missing sound server leaves the block out.
func (c *Collector) audioProps(ctx context.Context) []Prop {
	devices, err := c.listAudio(ctx)
	if err != nil {
		c.logger.Debug("audio sources unavailable", "error", err.Error())
		return nil
	}

	props := []Prop{{Key: "audio.source.count", Value: strconv.Itoa(len(devices))}}
	if def, ok := audio.DefaultDevice(devices); ok {
		props = append(props, Prop{Key: "audio.source.default", Value: def.ID})
	}
	for i, dev := range devices {
		prefix := "audio.source." + strconv.Itoa(i) + "."
		props = append(props,
			Prop{Key: prefix + "id", Value: dev.ID},
			Prop{Key: prefix + "description", Value: dev.Description},
			Prop{Key: prefix + "state", Value: dev.State},
			Prop{Key: prefix + "available", Value: strconv.FormatBool(dev.Available)},
			Prop{Key: prefix + "muted", Value: strconv.FormatBool(dev.Muted)},
		)
	}
	return props
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return ""
	}
	return name
}

func username() string {
	current, err := user.Current()
	if err != nil {
		return ""
	}
	return current.Username
}

// localIPv4 returns the first non-loopback IPv4 address, if any.
func localIPv4() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, address := range addrs {
		ipnet, ok := address.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip := ipnet.IP.To4(); ip != nil {
			return ip.String()
		}
	}
	return ""
}

func unameProps() []Prop {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return nil
	}
	return []Prop{
		{Key: "kernel.name", Value: unix.ByteSliceToString(uts.Sysname[:])},
		{Key: "kernel.release", Value: unix.ByteSliceToString(uts.Release[:])},
		{Key: "kernel.version", Value: unix.ByteSliceToString(uts.Version[:])},
		{Key: "kernel.machine", Value: unix.ByteSliceToString(uts.Machine[:])},
	}
}

// osReleaseProps maps os-release fields to "os.release.<lowercase key>".
func osReleaseProps(path string) []Prop {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var props []Prop
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "ID", "VERSION_ID", "PRETTY_NAME", "VERSION_CODENAME":
		default:
			continue
		}
		if unquoted, err := strconv.Unquote(value); err == nil {
			value = unquoted
		} else {
			value = strings.Trim(value, `'"`)
		}
		props = append(props, Prop{Key: "os.release." + strings.ToLower(key), Value: value})
	}
	return props
}
