// Package audio discovers PulseAudio input sources on the host.
package audio

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// Device describes one Pulse input source.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Monitor     bool
	Default     bool
}

// ListDevices returns Pulse input sources with default/availability metadata.
// Monitor sources (loopbacks of sinks) are flagged, not dropped.
func ListDevices(ctx context.Context) ([]Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client, err := pulse.NewClient(
		pulse.ClientApplicationName("aperture"),
		pulse.ClientApplicationIconName("camera-photo"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	defaultSource, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}
	defaultID := defaultSource.ID()

	var sourceInfos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &sourceInfos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(sourceInfos))
	for _, source := range sourceInfos {
		if source == nil {
			continue
		}
		devices = append(devices, deviceFromSource(source, defaultID))
	}
	sortDevices(devices)
	return devices, nil
}

func deviceFromSource(source *pulseproto.GetSourceInfoReply, defaultID string) Device {
	description := strings.TrimSpace(source.Device)
	if description == "" {
		description = source.SourceName
	}
	return Device{
		ID:          source.SourceName,
		Description: description,
		State:       sourceStateString(source.State),
		Available:   sourceAvailable(source),
		Muted:       source.Mute,
		Monitor:     strings.HasSuffix(source.SourceName, ".monitor"),
		Default:     source.SourceName == defaultID,
	}
}

// sortDevices puts the default source first, then real inputs before monitors, then by id.
func sortDevices(devices []Device) {
	sort.SliceStable(devices, func(i, j int) bool {
		a, b := devices[i], devices[j]
		if a.Default != b.Default {
			return a.Default
		}
		if a.Monitor != b.Monitor {
			return !a.Monitor
		}
		return a.ID < b.ID
	})
}

// DefaultDevice returns the default source, if listed.
func DefaultDevice(devices []Device) (Device, bool) {
	for _, dev := range devices {
		if dev.Default {
			return dev, true
		}
	}
	return Device{}, false
}

// sourceStateString maps Pulse source state constants to human-readable values.
func sourceStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

// sourceAvailable maps Pulse source port availability to a simple boolean.
func sourceAvailable(source *pulseproto.GetSourceInfoReply) bool {
	if source == nil {
		return false
	}
	if len(source.Ports) == 0 {
		return true
	}
	for _, port := range source.Ports {
		if port.Name != source.ActivePortName {
			continue
		}
		// PulseAudio values: unknown=0, no=1, yes=2.
		return port.Available == 0 || port.Available == 2
	}
	return true
}
