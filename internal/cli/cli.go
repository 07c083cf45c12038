// Package cli parses aperture command-line arguments.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandServe   Command = "serve"
	CommandSend    Command = "send"
	CommandGrant   Command = "grant"
	CommandDeny    Command = "deny"
	CommandRevoke  Command = "revoke"
	CommandStatus  Command = "status"
	CommandDevices Command = "devices"
	CommandHealth  Command = "health"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

// commandArgs is the number of positional arguments each command takes.
var commandArgs = map[Command]int{
	CommandServe:   0,
	CommandSend:    1,
	CommandGrant:   0,
	CommandDeny:    0,
	CommandRevoke:  0,
	CommandStatus:  0,
	CommandDevices: 0,
	CommandHealth:  0,
	CommandDoctor:  0,
	CommandVersion: 0,
	CommandHelp:    0,
}

// DefaultOutPath is where `send` writes IMAGE payloads without --out.
const DefaultOutPath = "received_image.jpg"

type Parsed struct {
	Command    Command
	Arg        string
	ConfigPath string
	Addr       string
	OutPath    string
	ShowHelp   bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true, OutPath: DefaultOutPath}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config", "--addr", "--out":
			i++
			if i >= len(args) || strings.TrimSpace(args[i]) == "" {
				return Parsed{}, fmt.Errorf("%s requires a value", arg)
			}
			switch arg {
			case "--config":
				parsed.ConfigPath = args[i]
			case "--addr":
				parsed.Addr = args[i]
			case "--out":
				parsed.OutPath = args[i]
			}
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			want, ok := commandArgs[cmd]
			if !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			rest := args[i+1:]
			if len(rest) > want {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
			}
			if len(rest) < want {
				return Parsed{}, fmt.Errorf("command %q requires an argument", arg)
			}
			if want == 1 {
				parsed.Arg = rest[0]
				if strings.TrimSpace(parsed.Arg) == "" {
					return Parsed{}, errors.New("send requires a non-empty command")
				}
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			return parsed, nil
		}
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] [--addr HOST:PORT] [--out PATH] <command> [COMMAND]

Commands:
  serve     Run the remote-control endpoint
  send      Send one command (OPEN_CAMERA, TAKE_PHOTO, GET_PROP) to an endpoint
  grant     Grant camera access to a running endpoint
  deny      Deny a pending camera access request
  revoke    Withdraw a previous camera access grant
  status    Print listener and permission state
  devices   List audio input sources reported by GET_PROP
  health    Query the gRPC health endpoint
  doctor    Run configuration and environment checks
  version   Print version information
  help      Show this help

Flags:
  --config PATH      Config file path (default: $XDG_CONFIG_HOME/aperture/config.jsonc)
  --addr HOST:PORT   Override server.addr (serve, send) or health.addr (health)
  --out PATH         Where send writes an IMAGE response (default: %[2]s)
  -h, --help         Show help
  --version          Show version
`, binaryName, DefaultOutPath)
}
