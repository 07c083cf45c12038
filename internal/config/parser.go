package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format names a supported config file syntax.
type Format string

const (
	FormatJSONC Format = "jsonc"
	FormatYAML  Format = "yaml"
)

// DetectFormat picks YAML for .yaml/.yml paths. Otherwise content whose first
// non-whitespace character is `{` (or empty content) is JSONC, anything else YAML.
func DetectFormat(path string, content string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json", ".jsonc":
		return FormatJSONC
	}

	trimmed := strings.TrimSpace(content)
	if trimmed == "" || strings.HasPrefix(trimmed, "{") {
		return FormatJSONC
	}
	return FormatYAML
}

// Parse reads configuration content, detecting the format from the content itself.
func Parse(content string, base Config) (Config, []Warning, error) {
	return ParseFormat(DetectFormat("", content), content, base)
}

// ParseFormat overlays content in the given format onto base and validates the result.
func ParseFormat(format Format, content string, base Config) (Config, []Warning, error) {
	if strings.TrimSpace(content) == "" {
		validatedWarnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, validatedWarnings, nil
	}

	var (
		payload fileConfig
		err     error
	)
	switch format {
	case FormatJSONC:
		payload, err = decodeJSONC(content)
	case FormatYAML:
		payload, err = decodeYAML(content)
	default:
		return Config{}, nil, fmt.Errorf("unsupported config format %q", format)
	}
	if err != nil {
		return Config{}, nil, err
	}

	cfg := base
	warnings, err := payload.applyTo(&cfg)
	if err != nil {
		return Config{}, nil, err
	}

	validatedWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	warnings = append(warnings, validatedWarnings...)
	return cfg, warnings, nil
}
