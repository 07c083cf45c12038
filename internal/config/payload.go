package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape shared by JSONC and YAML. Pointer fields keep
// absent keys distinct from zero values so defaults survive partial files.
type fileConfig struct {
	Server     *fileServer     `json:"server" yaml:"server"`
	Health     *fileHealth     `json:"health" yaml:"health"`
	Camera     *fileCamera     `json:"camera" yaml:"camera"`
	Permission *filePermission `json:"permission" yaml:"permission"`
	Props      *fileProps      `json:"props" yaml:"props"`
	Indicator  *fileIndicator  `json:"indicator" yaml:"indicator"`
	Log        *fileLog        `json:"log" yaml:"log"`
}

type fileServer struct {
	Addr              *string `json:"addr" yaml:"addr"`
	ReadTimeoutMS     *int    `json:"read_timeout_ms" yaml:"read_timeout_ms"`
	WriteTimeoutMS    *int    `json:"write_timeout_ms" yaml:"write_timeout_ms"`
	ResponseTimeoutMS *int    `json:"response_timeout_ms" yaml:"response_timeout_ms"`
}

type fileHealth struct {
	Addr *string `json:"addr" yaml:"addr"`
}

type fileCamera struct {
	Backend          *string   `json:"backend" yaml:"backend"`
	CaptureCmd       *string   `json:"capture_cmd" yaml:"capture_cmd"`
	ViewerCmd        *string   `json:"viewer_cmd" yaml:"viewer_cmd"`
	Device           *string   `json:"device" yaml:"device"`
	PhotoDir         *string   `json:"photo_dir" yaml:"photo_dir"`
	CaptureTimeoutMS *int      `json:"capture_timeout_ms" yaml:"capture_timeout_ms"`
	GPIO             *fileGPIO `json:"gpio" yaml:"gpio"`
}

type fileGPIO struct {
	Mock           *bool `json:"mock" yaml:"mock"`
	FocusPin       *int  `json:"focus_pin" yaml:"focus_pin"`
	ShutterPin     *int  `json:"shutter_pin" yaml:"shutter_pin"`
	FocusDelayMS   *int  `json:"focus_delay_ms" yaml:"focus_delay_ms"`
	ShutterDelayMS *int  `json:"shutter_delay_ms" yaml:"shutter_delay_ms"`
}

type filePermission struct {
	GrantOnStart *bool `json:"grant_on_start" yaml:"grant_on_start"`
}

type fileProps struct {
	Cmd   *string     `json:"cmd" yaml:"cmd"`
	Keys  *stringList `json:"keys" yaml:"keys"`
	Audio *bool       `json:"audio" yaml:"audio"`
}

type fileIndicator struct {
	Enable           *bool   `json:"enable" yaml:"enable"`
	DesktopAppName   *string `json:"desktop_app_name" yaml:"desktop_app_name"`
	TimeoutMS        *int    `json:"timeout_ms" yaml:"timeout_ms"`
	SoundEnable      *bool   `json:"sound_enable" yaml:"sound_enable"`
	SoundShutterFile *string `json:"sound_shutter_file" yaml:"sound_shutter_file"`
	SoundPromptFile  *string `json:"sound_prompt_file" yaml:"sound_prompt_file"`
}

type fileLog struct {
	Level *string `json:"level" yaml:"level"`
}

// stringList accepts either a list of strings or one comma-delimited string.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = splitList(single)
		return nil
	}

	return fmt.Errorf("expected string array or comma-delimited string")
}

func (l *stringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*l = list
		return nil
	case yaml.ScalarNode:
		*l = splitList(value.Value)
		return nil
	default:
		return fmt.Errorf("line %d: expected string list or comma-delimited string", value.Line)
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func (payload fileConfig) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if s := payload.Server; s != nil {
		setString(&cfg.Server.Addr, s.Addr)
		setInt(&cfg.Server.ReadTimeoutMS, s.ReadTimeoutMS)
		setInt(&cfg.Server.WriteTimeoutMS, s.WriteTimeoutMS)
		setInt(&cfg.Server.ResponseTimeoutMS, s.ResponseTimeoutMS)
	}

	if payload.Health != nil {
		setString(&cfg.Health.Addr, payload.Health.Addr)
	}

	if c := payload.Camera; c != nil {
		if c.Backend != nil {
			cfg.Camera.Backend = strings.ToLower(strings.TrimSpace(*c.Backend))
		}
		if c.CaptureCmd != nil {
			command, err := parseCommand("camera.capture_cmd", *c.CaptureCmd, OutputPlaceholder, DevicePlaceholder)
			if err != nil {
				return nil, err
			}
			cfg.Camera.Capture = command
		}
		if c.ViewerCmd != nil {
			command, err := parseCommand("camera.viewer_cmd", *c.ViewerCmd, DevicePlaceholder)
			if err != nil {
				return nil, err
			}
			cfg.Camera.Viewer = command
		}
		setString(&cfg.Camera.Device, c.Device)
		setString(&cfg.Camera.PhotoDir, c.PhotoDir)
		setInt(&cfg.Camera.CaptureTimeoutMS, c.CaptureTimeoutMS)

		if g := c.GPIO; g != nil {
			setBool(&cfg.Camera.GPIO.Mock, g.Mock)
			setInt(&cfg.Camera.GPIO.FocusPin, g.FocusPin)
			setInt(&cfg.Camera.GPIO.ShutterPin, g.ShutterPin)
			setInt(&cfg.Camera.GPIO.FocusDelayMS, g.FocusDelayMS)
			setInt(&cfg.Camera.GPIO.ShutterDelayMS, g.ShutterDelayMS)
		}
	}

	if payload.Permission != nil {
		setBool(&cfg.Permission.GrantOnStart, payload.Permission.GrantOnStart)
	}

	if p := payload.Props; p != nil {
		if p.Cmd != nil {
			command, err := parseCommand("props.cmd", *p.Cmd)
			if err != nil {
				return nil, err
			}
			cfg.Props.Command = command
		}
		if p.Keys != nil {
			cfg.Props.Keys = cfg.Props.Keys[:0]
			seen := make(map[string]struct{}, len(*p.Keys))
			for _, key := range *p.Keys {
				key = strings.TrimSpace(key)
				if key == "" {
					continue
				}
				if _, dup := seen[key]; dup {
					warnings = append(warnings, Warning{Message: fmt.Sprintf("props.keys lists %q more than once", key)})
					continue
				}
				seen[key] = struct{}{}
				cfg.Props.Keys = append(cfg.Props.Keys, key)
			}
		}
		setBool(&cfg.Props.Audio, p.Audio)
	}

	if i := payload.Indicator; i != nil {
		setBool(&cfg.Indicator.Enable, i.Enable)
		setString(&cfg.Indicator.DesktopAppName, i.DesktopAppName)
		setInt(&cfg.Indicator.TimeoutMS, i.TimeoutMS)
		setBool(&cfg.Indicator.SoundEnable, i.SoundEnable)
		setString(&cfg.Indicator.SoundShutterFile, i.SoundShutterFile)
		setString(&cfg.Indicator.SoundPromptFile, i.SoundPromptFile)
	}

	if payload.Log != nil && payload.Log.Level != nil {
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(*payload.Log.Level))
	}

	return warnings, nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
