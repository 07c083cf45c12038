package props

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/rbright/aperture/internal/audio"
	"github.com/rbright/aperture/internal/config"
	"github.com/stretchr/testify/require"
)

func TestFormatAndParseAgree(t *testing.T) {
	props := []Prop{
		{Key: "ro.product.brand", Value: "aperture"},
		{Key: "ro.product.model", Value: "café ☕"},
		{Key: "empty", Value: ""},
	}
	text := Format(props)
	require.Equal(t, "[ro.product.brand]: [aperture]\n[ro.product.model]: [café ☕]\n[empty]: []\n", text)
	require.Equal(t, props, Parse(text))
}

func TestParseSkipsMalformedLines(t *testing.T) {
	got := Parse("garbage\n[no.separator]\n  [ok]: [yes]  \n[value]: [with ]: [inside]\n")
	require.Equal(t, []Prop{
		{Key: "ok", Value: "yes"},
		{Key: "value", Value: "with ]: [inside"},
	}, got)
}

func TestFilterKeepsKeyOrderAndMarksMissing(t *testing.T) {
	props := []Prop{{Key: "a", Value: "1"}, {Key: "b", Value: " "}, {Key: "c", Value: "3"}}
	require.Equal(t, []Prop{
		{Key: "c", Value: "3"},
		{Key: "b", Value: NotAvailable},
		{Key: "missing", Value: NotAvailable},
		{Key: "a", Value: "1"},
	}, Filter(props, []string{"c", "b", "missing", "a"}))
}

func newTestCollector(t *testing.T, cfg config.PropsConfig) *Collector {
	t.Helper()
	c := NewCollector(cfg, nil)
	c.listAudio = func(context.Context) ([]audio.Device, error) {
		return nil, errors.New("no pulse in tests")
	}
	return c
}

func TestCollectCommandVerbatim(t *testing.T) {
	raw := "[ro.product.brand]: [aperture]\n[ro.build.version.release]: [14]\n"
	c := newTestCollector(t, config.PropsConfig{
		Command: config.CommandConfig{Argv: []string{"printf", "%s", raw}},
	})

	out, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.Equal(t, raw, out)
}

func TestCollectCommandFilteredByKeys(t *testing.T) {
	raw := "[ro.product.brand]: [aperture]\n[ro.product.model]: [Pi 5]\n"
	c := newTestCollector(t, config.PropsConfig{
		Command: config.CommandConfig{Argv: []string{"printf", "%s", raw}},
		Keys:    []string{"ro.product.model", "dolby"},
	})

	out, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.Equal(t, "[ro.product.model]: [Pi 5]\n[dolby]: [N/A]\n", out)
}

func TestCollectCommandFailureIncludesStderr(t *testing.T) {
	c := newTestCollector(t, config.PropsConfig{
		Command: config.CommandConfig{Argv: []string{"sh", "-c", "echo permission denied >&2; exit 1"}},
	})

	_, err := c.Collect(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "sh:")
	require.Contains(t, err.Error(), "permission denied")
}

func TestCollectCommandMissingBinary(t *testing.T) {
	c := newTestCollector(t, config.PropsConfig{
		Command: config.CommandConfig{Argv: []string{"aperture-no-such-getprop"}},
	})

	_, err := c.Collect(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "aperture-no-such-getprop")
}

func TestCollectHostProps(t *testing.T) {
	release := filepath.Join(t.TempDir(), "os-release")
	require.NoError(t, os.WriteFile(release, []byte(`# comment
PRETTY_NAME="Debian GNU/Linux 12 (bookworm)"
NAME="Debian GNU/Linux"
VERSION_ID="12"
ID=debian
`), 0o644))

	c := newTestCollector(t, config.PropsConfig{})
	c.osReleasePath = release

	out, err := c.Collect(context.Background())
	require.NoError(t, err)

	props := Parse(out)
	values := make(map[string]string, len(props))
	for _, p := range props {
		values[p.Key] = p.Value
	}
	require.Equal(t, runtime.GOOS, values["os.name"])
	require.Equal(t, runtime.GOARCH, values["os.arch"])
	require.Equal(t, "Debian GNU/Linux 12 (bookworm)", values["os.release.pretty_name"])
	require.Equal(t, "12", values["os.release.version_id"])
	require.Equal(t, "debian", values["os.release.id"])
	require.NotContains(t, values, "os.release.name")
	require.NotEmpty(t, values["kernel.release"])
	require.NotContains(t, out, "audio.source")
}

func TestCollectHostPropsWithKeysAndAudio(t *testing.T) {
	c := newTestCollector(t, config.PropsConfig{
		Keys:  []string{"os.arch", "audio.source.default", "audio.source.0.muted", "nope"},
		Audio: true,
	})
	c.listAudio = func(context.Context) ([]audio.Device, error) {
		return []audio.Device{
			{ID: "usb-cam-mic", Description: "USB Camera", State: "idle", Available: true, Muted: true, Default: true},
		}, nil
	}

	out, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.Equal(t, strings.Join([]string{
		"[os.arch]: [" + runtime.GOARCH + "]",
		"[audio.source.default]: [usb-cam-mic]",
		"[audio.source.0.muted]: [true]",
		"[nope]: [N/A]",
	}, "\n")+"\n", out)
}

func TestCollectSkipsAudioWhenUnavailable(t *testing.T) {
	c := newTestCollector(t, config.PropsConfig{Audio: true})
	out, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.NotContains(t, out, "audio.source")
	require.Contains(t, out, "[host.name]: [")
}
