package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"
)

var placeholderPattern = regexp.MustCompile(`\{[a-z_]+\}`)

// parseCommand splits raw into argv and checks that it only uses the placeholders
// allowed for key. The program itself may not be a placeholder.
func parseCommand(key string, raw string, allowed ...string) (CommandConfig, error) {
	argv, err := parseArgv(raw)
	if err != nil {
		return CommandConfig{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	if err := checkPlaceholders(argv, allowed); err != nil {
		return CommandConfig{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return CommandConfig{Raw: raw, Argv: argv}, nil
}

func checkPlaceholders(argv []string, allowed []string) error {
	for i, arg := range argv {
		for _, placeholder := range placeholderPattern.FindAllString(arg, -1) {
			if !slices.Contains(allowed, placeholder) {
				if len(allowed) == 0 {
					return fmt.Errorf("placeholder %s is not supported here", placeholder)
				}
				return fmt.Errorf("unknown placeholder %s (allowed: %s)", placeholder, strings.Join(allowed, ", "))
			}
			if i == 0 {
				return fmt.Errorf("program name must not be a placeholder")
			}
		}
	}
	return nil
}

func mustParseCommand(raw string, allowed ...string) CommandConfig {
	command, err := parseCommand("default command", raw, allowed...)
	if err != nil {
		panic(err)
	}
	return command
}

func parseArgv(input string) ([]string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}
	if strings.HasPrefix(input, "#") {
		return nil, nil
	}

	var (
		argv    []string
		current strings.Builder
		quote   rune
		escape  bool
	)

	flush := func() {
		if current.Len() == 0 {
			return
		}
		argv = append(argv, current.String())
		current.Reset()
	}

	for _, r := range input {
		switch {
		case escape:
			current.WriteRune(r)
			escape = false
		case r == '\\':
			escape = true
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			current.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
		case unicode.IsSpace(r):
			flush()
		default:
			current.WriteRune(r)
		}
	}

	if escape {
		return nil, fmt.Errorf("unterminated escape sequence in command: %q", input)
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote in command: %q", input)
	}

	flush()
	return argv, nil
}
