// Package indicator surfaces camera permission prompts and capture results as
// desktop notifications and audio cues.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/aperture/internal/config"
)

// Desktop is the concrete indicator used by the server runtime. Notifications
// replace each other so a prompt and its answer share one bubble.
type Desktop struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages

	mu             sync.Mutex
	notificationID uint32
	soundMu        sync.Mutex
	cues           sync.WaitGroup
}

// NewDesktop creates an indicator from config.
func NewDesktop(cfg config.IndicatorConfig, logger *slog.Logger) *Desktop {
	return &Desktop{
		cfg:      cfg,
		logger:   logger,
		messages: indicatorMessagesFromEnv(),
	}
}

// PermissionRequested announces a pending camera access prompt.
func (d *Desktop) PermissionRequested(ctx context.Context, reason string) {
	d.playCue(cuePrompt)
	text := d.messages.prompt
	if reason = strings.TrimSpace(reason); reason != "" {
		text += " (" + reason + ")"
	}
	d.show(ctx, text, 0)
}

// PermissionResolved replaces the prompt with the operator's answer.
func (d *Desktop) PermissionResolved(ctx context.Context, granted bool) {
	text := d.messages.denied
	if granted {
		text = d.messages.granted
	}
	d.show(ctx, text, d.cfg.TimeoutMS)
}

// PhotoCaptured plays the shutter cue and reports where the photo went.
func (d *Desktop) PhotoCaptured(ctx context.Context, where string) {
	d.playCue(cueShutter)
	text := d.messages.captured
	if where = strings.TrimSpace(where); where != "" {
		text += ": " + where
	}
	d.show(ctx, text, d.cfg.TimeoutMS)
}

// CaptureFailed displays an error message. An empty text uses the generic one.
func (d *Desktop) CaptureFailed(ctx context.Context, text string) {
	d.playCue(cueError)
	if strings.TrimSpace(text) == "" {
		text = d.messages.errorText
	}
	d.show(ctx, text, d.cfg.TimeoutMS)
}

// Hide dismisses the current notification, if any.
func (d *Desktop) Hide(ctx context.Context) {
	if !d.cfg.Enable {
		return
	}
	d.run(ctx, d.dismiss)
}

// Wait blocks until queued cues have finished playing.
func (d *Desktop) Wait() {
	d.cues.Wait()
}

func (d *Desktop) show(ctx context.Context, text string, timeoutMS int) {
	if !d.cfg.Enable {
		return
	}
	d.run(ctx, func(ctx context.Context) error {
		return d.notify(ctx, text, timeoutMS)
	})
}

// notify sends a replaceable desktop notification and stores its ID.
func (d *Desktop) notify(ctx context.Context, text string, timeoutMS int) error {
	d.mu.Lock()
	replaceID := d.notificationID
	d.mu.Unlock()

	appName := strings.TrimSpace(d.cfg.DesktopAppName)
	if appName == "" {
		appName = "aperture"
	}

	id, err := desktopNotify(ctx, appName, replaceID, text, timeoutMS)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.notificationID = id
	d.mu.Unlock()
	return nil
}

func (d *Desktop) dismiss(ctx context.Context) error {
	d.mu.Lock()
	id := d.notificationID
	d.notificationID = 0
	d.mu.Unlock()

	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

// run executes an indicator operation with a bounded timeout.
func (d *Desktop) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	if err := fn(runCtx); err != nil {
		d.log("indicator dispatch failed", err)
	}
}

// playCue serializes cue playback and emits audio asynchronously.
func (d *Desktop) playCue(kind cueKind) {
	if !d.cfg.SoundEnable {
		return
	}
	d.cues.Add(1)
	go func() {
		defer d.cues.Done()
		d.soundMu.Lock()
		defer d.soundMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
		defer cancel()
		if err := emitCue(ctx, kind, d.cfg); err != nil {
			d.log("indicator audio cue failed", err)
		}
	}()
}

func (d *Desktop) log(message string, err error) {
	if d.logger == nil || err == nil {
		return
	}
	d.logger.Debug(message, "error", err.Error())
}
