// Package commands implements the OPEN_CAMERA, TAKE_PHOTO and GET_PROP handlers.
package commands

import (
	"context"
	"log/slog"

	"github.com/rbright/aperture/internal/camera"
	"github.com/rbright/aperture/internal/dispatch"
	"github.com/rbright/aperture/internal/protocol"
)

// Response texts shared with clients.
const (
	NotAuthorized     = "Camera access not authorized"
	PermissionDenied  = "Camera permission denied."
	captureFailedText = "Failed to capture photo: "
	propsFailedText   = "Failed to fetch device properties: "
)

// Gate is the permission surface the handlers need.
type Gate interface {
	Granted() bool
	EnsurePermission(onGranted func(), onDenied func()) (withdraw func())
	Prompt(reason string)
}

// Opener launches the camera viewer.
type Opener interface {
	DeviceExists() bool
	Open(ctx context.Context) string
}

// Props produces the GET_PROP text block.
type Props interface {
	Collect(ctx context.Context) (string, error)
}

// Indicator is told about capture outcomes. It may be nil.
type Indicator interface {
	PhotoCaptured(ctx context.Context, where string)
	CaptureFailed(ctx context.Context, text string)
}

// Deps groups the collaborators behind the handlers.
type Deps struct {
	Gate      Gate
	Capturer  camera.Capturer
	Opener    Opener
	Props     Props
	Indicator Indicator
	Logger    *slog.Logger
}

// Handlers answers the three remote-control commands.
type Handlers struct {
	gate      Gate
	capturer  camera.Capturer
	opener    Opener
	props     Props
	indicator Indicator
	logger    *slog.Logger
}

func New(deps Deps) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handlers{
		gate:      deps.Gate,
		capturer:  deps.Capturer,
		opener:    deps.Opener,
		props:     deps.Props,
		indicator: deps.Indicator,
		logger:    logger,
	}
}

// Register binds every command whose collaborator is present.
func (h *Handlers) Register(r *dispatch.Registry) {
	if h.opener != nil && h.gate != nil {
		r.Register(protocol.CommandOpenCamera, dispatch.HandlerFunc(h.OpenCamera))
	}
	if h.capturer != nil && h.gate != nil {
		r.Register(protocol.CommandTakePhoto, dispatch.HandlerFunc(h.TakePhoto))
	}
	if h.props != nil {
		r.Register(protocol.CommandGetProp, dispatch.HandlerFunc(h.GetProp))
	}
}

// OpenCamera starts the viewer when the device exists and access is granted.
// Without a grant it raises a prompt and answers immediately.
func (h *Handlers) OpenCamera(ctx context.Context, req dispatch.Request) dispatch.Result {
	if !h.opener.DeviceExists() {
		return dispatch.Respond(protocol.Text(camera.StatusNoDevice))
	}
	if !h.gate.Granted() {
		h.gate.Prompt("open camera")
		return dispatch.Respond(protocol.Text(NotAuthorized))
	}
	status := h.opener.Open(ctx)
	h.logger.Info("open camera", "exchange_id", req.ID, "status", status)
	return dispatch.Respond(protocol.Text(status))
}

// TakePhoto answers later: after the capture when access is granted, or once
// the operator answers the prompt otherwise. A parked capture is withdrawn when
// the listener stops waiting for it.
func (h *Handlers) TakePhoto(ctx context.Context, req dispatch.Request) dispatch.Result {
	d := dispatch.NewDeferred()
	withdraw := h.gate.EnsurePermission(
		func() { h.capture(ctx, req, d) },
		func() { d.Resolve(protocol.Error(PermissionDenied)) },
	)
	d.OnAbandon(withdraw)
	return dispatch.Defer(d)
}

func (h *Handlers) capture(ctx context.Context, req dispatch.Request, d *dispatch.Deferred) {
	if d.Abandoned() {
		h.logger.Info("skipping capture for abandoned request", "exchange_id", req.ID)
		return
	}

	h.capturer.Capture(ctx,
		func(photo camera.Photo) {
			if photo.Path == "" {
				d.Resolve(protocol.Text(photo.Note))
				h.captured(ctx, photo.Note)
				return
			}
			src, err := protocol.OpenImage(photo.Path)
			if err != nil {
				h.failed(ctx, req, d, err)
				return
			}
			if !d.Resolve(protocol.Image(src)) {
				h.logger.Warn("photo captured after request ended", "exchange_id", req.ID, "path", photo.Path)
			}
			h.captured(ctx, photo.Path)
		},
		func(err error) { h.failed(ctx, req, d, err) },
	)
}

func (h *Handlers) captured(ctx context.Context, where string) {
	if h.indicator != nil {
		h.indicator.PhotoCaptured(ctx, where)
	}
}

func (h *Handlers) failed(ctx context.Context, req dispatch.Request, d *dispatch.Deferred, err error) {
	text := captureFailedText + err.Error()
	h.logger.Error("capture failed", "exchange_id", req.ID, "error", err.Error())
	d.Resolve(protocol.Error(text))
	if h.indicator != nil {
		h.indicator.CaptureFailed(ctx, text)
	}
}

// GetProp returns the property block as TEXT.
func (h *Handlers) GetProp(ctx context.Context, req dispatch.Request) dispatch.Result {
	text, err := h.props.Collect(ctx)
	if err != nil {
		h.logger.Error("collect properties failed", "exchange_id", req.ID, "error", err.Error())
		return dispatch.Respond(protocol.Error(propsFailedText + err.Error()))
	}
	return dispatch.Respond(protocol.Text(text))
}
