package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDefaultsToHelp(t *testing.T) {
	parsed, err := Parse(nil)
	require.NoError(t, err)
	require.True(t, parsed.ShowHelp)
	require.Equal(t, CommandHelp, parsed.Command)
	require.Equal(t, DefaultOutPath, parsed.OutPath)
}

func TestParseCommandWithConfig(t *testing.T) {
	parsed, err := Parse([]string{"--config", "/tmp/aperture.jsonc", "doctor"})
	require.NoError(t, err)
	require.Equal(t, CommandDoctor, parsed.Command)
	require.Equal(t, "/tmp/aperture.jsonc", parsed.ConfigPath)
	require.False(t, parsed.ShowHelp)
}

func TestParseSendWithFlags(t *testing.T) {
	parsed, err := Parse([]string{"--addr", "10.0.0.5:8888", "--out", "/tmp/p.jpg", "send", "take_photo"})
	require.NoError(t, err)
	require.Equal(t, CommandSend, parsed.Command)
	require.Equal(t, "take_photo", parsed.Arg)
	require.Equal(t, "10.0.0.5:8888", parsed.Addr)
	require.Equal(t, "/tmp/p.jpg", parsed.OutPath)
}

func TestParseArgMatrix(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantErr  string
		wantCmd  Command
		wantHelp bool
		wantPath string
	}{
		{name: "help short flag", args: []string{"-h"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "help long flag", args: []string{"--help"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "version flag", args: []string{"--version"}, wantCmd: CommandVersion},
		{name: "config after command", args: []string{"status", "--config", "/tmp/cfg"}, wantErr: "unexpected arguments after command"},
		{name: "missing config path", args: []string{"--config"}, wantErr: "--config requires a value"},
		{name: "blank addr", args: []string{"--addr", " ", "serve"}, wantErr: "--addr requires a value"},
		{name: "unknown flag", args: []string{"--bogus"}, wantErr: "unknown flag"},
		{name: "unknown command", args: []string{"bogus"}, wantErr: "unknown command"},
		{name: "extra args after command", args: []string{"doctor", "extra"}, wantErr: "unexpected arguments"},
		{name: "send without command", args: []string{"send"}, wantErr: "requires an argument"},
		{name: "send blank command", args: []string{"send", "  "}, wantErr: "non-empty command"},
		{name: "send too many", args: []string{"send", "GET_PROP", "x"}, wantErr: "unexpected arguments"},
		{name: "grant", args: []string{"grant"}, wantCmd: CommandGrant},
		{name: "serve with config", args: []string{"--config", "/tmp/cfg", "serve"}, wantCmd: CommandServe, wantPath: "/tmp/cfg"},
		{name: "help command", args: []string{"help"}, wantCmd: CommandHelp, wantHelp: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := Parse(tc.args)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.wantCmd, parsed.Command)
			require.Equal(t, tc.wantHelp, parsed.ShowHelp)
			require.Equal(t, tc.wantPath, parsed.ConfigPath)
		})
	}
}

func TestHelpTextIncludesCoreCommands(t *testing.T) {
	text := HelpText("aperture")
	for _, want := range []string{"serve", "send", "grant", "deny", "revoke", "health", "doctor", "--config PATH", "--out PATH"} {
		require.Contains(t, text, want)
	}
}
