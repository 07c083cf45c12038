// Package protocol defines the remote-control command set and the length-framed response wire format.
package protocol

import "strings"

// Command is one name from the closed set of remote-control commands.
type Command string

const (
	CommandOpenCamera Command = "OPEN_CAMERA"
	CommandTakePhoto  Command = "TAKE_PHOTO"
	CommandGetProp    Command = "GET_PROP"
)

var knownCommands = map[Command]struct{}{
	CommandOpenCamera: {},
	CommandTakePhoto:  {},
	CommandGetProp:    {},
}

// ParseCommand trims and upper-cases raw and reports whether it names a known command.
func ParseCommand(raw string) (Command, bool) {
	cmd := Command(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := knownCommands[cmd]; !ok {
		return "", false
	}
	return cmd, true
}

// Commands returns every known command in a stable order.
func Commands() []Command {
	return []Command{CommandOpenCamera, CommandTakePhoto, CommandGetProp}
}
