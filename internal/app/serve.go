package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/rbright/aperture/internal/camera"
	"github.com/rbright/aperture/internal/commands"
	"github.com/rbright/aperture/internal/config"
	"github.com/rbright/aperture/internal/dispatch"
	"github.com/rbright/aperture/internal/fsm"
	"github.com/rbright/aperture/internal/health"
	"github.com/rbright/aperture/internal/indicator"
	"github.com/rbright/aperture/internal/ipc"
	"github.com/rbright/aperture/internal/permission"
	"github.com/rbright/aperture/internal/props"
	"github.com/rbright/aperture/internal/server"
)

// service is one running endpoint: command listener, permission gate, and the
// optional health endpoint.
type service struct {
	logger    *slog.Logger
	gate      *permission.Gate
	indicator *indicator.Desktop
	server    *server.Server
	listener  net.Listener

	health         *health.Server
	healthListener net.Listener
	closeCapturer  func() error
}

func newService(ctx context.Context, cfg config.Config, logger *slog.Logger) (*service, error) {
	ind := indicator.NewDesktop(cfg.Indicator, logger)
	gate := permission.NewGate(nil, cfg.Permission.GrantOnStart, logger, ind)

	capturer, closeCapturer, err := camera.NewCapturer(cfg.Camera, logger)
	if err != nil {
		return nil, err
	}

	registry := dispatch.NewRegistry(logger)
	commands.New(commands.Deps{
		Gate:      gate,
		Capturer:  capturer,
		Opener:    camera.NewOpener(cfg.Camera, logger),
		Props:     props.NewCollector(cfg.Props, logger),
		Indicator: ind,
		Logger:    logger,
	}).Register(registry)

	svc := &service{
		logger:        logger,
		gate:          gate,
		indicator:     ind,
		closeCapturer: closeCapturer,
	}

	if cfg.Health.Addr != "" {
		svc.healthListener, err = server.Listen(ctx, cfg.Health.Addr)
		if err != nil {
			_ = closeCapturer()
			return nil, fmt.Errorf("health endpoint: %w", err)
		}
		svc.health = health.NewServer(logger)
	}

	listener, err := server.Listen(ctx, cfg.Server.Addr)
	if err != nil {
		svc.close()
		return nil, err
	}

	svc.listener = listener
	svc.server = server.New(listener, registry, logger, server.Options{
		ReadTimeout:     cfg.Server.ReadTimeout(),
		WriteTimeout:    cfg.Server.WriteTimeout(),
		ResponseTimeout: cfg.Server.ResponseTimeout(),
		OnState:         svc.observeState,
	})
	return svc, nil
}

func (s *service) observeState(state fsm.State) {
	if s.health != nil {
		s.health.SetState(state)
	}
}

// run serves the command listener, the control socket, and the health endpoint
// until ctx ends or the command listener fails.
func (s *service) run(ctx context.Context, control net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, 3)
	pending := 1
	go func() { errs <- ipc.Serve(ctx, control, ipc.HandlerFunc(s.handleControl)) }()
	if s.health != nil {
		pending++
		go func() { errs <- s.health.Serve(ctx, s.healthListener) }()
	}

	serveErr := s.server.Serve(ctx)
	cancel()

	var result error
	if serveErr != nil {
		result = serveErr
	}
	for range pending {
		if err := <-errs; err != nil {
			result = errors.Join(result, err)
		}
	}

	s.indicator.Hide(context.Background())
	s.indicator.Wait()
	s.close()
	return result
}

func (s *service) close() {
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.healthListener != nil {
		_ = s.healthListener.Close()
	}
	if s.closeCapturer != nil {
		if err := s.closeCapturer(); err != nil {
			s.logger.Warn("close capture backend failed", "error", err.Error())
		}
	}
}

// handleControl answers one control socket request.
func (s *service) handleControl(_ context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		return s.status("")
	case ipc.CommandGrant:
		if s.gate.Grant() {
			return s.status("camera access granted; resumed pending capture")
		}
		return s.status("camera access granted")
	case ipc.CommandDeny:
		if s.gate.Deny() {
			return s.status("camera access denied; pending capture refused")
		}
		return s.status("camera access denied")
	case ipc.CommandRevoke:
		s.gate.Revoke()
		return s.status("camera access revoked")
	default:
		return ipc.Response{OK: false, Error: fmt.Sprintf("unknown control command %q", req.Command)}
	}
}

func (s *service) status(message string) ipc.Response {
	gs := s.gate.Status()
	stats := s.server.Stats()
	return ipc.Response{
		OK:      true,
		State:   string(s.server.State()),
		Message: message,
		Permission: &ipc.Permission{
			Granted:   gs.Granted,
			Prompting: gs.Prompting,
			Waiting:   gs.Waiting,
			Prompts:   gs.Prompts,
		},
		Exchanges: &ipc.Exchanges{
			Accepted:  stats.Accepted,
			Completed: stats.Completed,
			Aborted:   stats.Aborted,
		},
	}
}
