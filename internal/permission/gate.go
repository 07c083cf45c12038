// Package permission tracks camera access and resumes work that waited on the answer.
package permission

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rbright/aperture/internal/pending"
)

// Notifier surfaces prompt activity to the operator.
type Notifier interface {
	PermissionRequested(ctx context.Context, reason string)
	PermissionResolved(ctx context.Context, granted bool)
}

// Status is a point-in-time view of the gate.
type Status struct {
	Granted   bool
	Prompting bool
	Waiting   bool
	Prompts   uint64
}

// Gate owns the grant flag and the single outstanding prompt. Work waiting on a
// prompt lives in the pending slot and runs when Grant or Deny fires it.
type Gate struct {
	slot     *pending.Slot
	logger   *slog.Logger
	notifier Notifier

	mu        sync.Mutex
	granted   bool
	prompting bool
	prompts   uint64
}

func NewGate(slot *pending.Slot, granted bool, logger *slog.Logger, notifier Notifier) *Gate {
	if slot == nil {
		slot = &pending.Slot{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Gate{slot: slot, logger: logger, notifier: notifier, granted: granted}
}

// Granted reports whether camera access is currently allowed.
func (g *Gate) Granted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.granted
}

// EnsurePermission runs onGranted right away when access is allowed. Otherwise it
// parks a continuation in the pending slot, replacing any earlier one, and raises a
// prompt; the continuation runs onGranted or onDenied once the operator answers.
// The returned func withdraws the parked continuation if it is still waiting.
func (g *Gate) EnsurePermission(onGranted, onDenied func()) (withdraw func()) {
	g.mu.Lock()
	if g.granted {
		g.mu.Unlock()
		onGranted()
		return func() {}
	}
	ticket := g.slot.Arm(func() {
		if g.Granted() {
			onGranted()
			return
		}
		onDenied()
	})
	count := g.raisePromptLocked()
	g.mu.Unlock()

	g.announce("capture", count)
	return func() { g.withdraw(ticket) }
}

// Prompt records an outstanding permission request without parking any work.
func (g *Gate) Prompt(reason string) {
	g.mu.Lock()
	count := g.raisePromptLocked()
	g.mu.Unlock()

	g.announce(reason, count)
}

func (g *Gate) raisePromptLocked() uint64 {
	g.prompting = true
	g.prompts++
	return g.prompts
}

func (g *Gate) announce(reason string, count uint64) {
	g.logger.Info("camera permission requested", "reason", reason, "prompts", count)
	if g.notifier != nil {
		g.notifier.PermissionRequested(context.Background(), reason)
	}
}

func (g *Gate) withdraw(ticket pending.Ticket) {
	g.mu.Lock()
	cleared := g.slot.ClearIf(ticket)
	if cleared {
		g.prompting = false
	}
	g.mu.Unlock()

	if cleared {
		g.logger.Info("withdrew parked capture")
	}
}

// Grant allows camera access and resumes parked work. It reports whether any ran.
func (g *Gate) Grant() bool {
	return g.answer(true)
}

// Deny refuses access and resumes parked work through its denial path.
func (g *Gate) Deny() bool {
	return g.answer(false)
}

// Revoke withdraws a previous grant. Parked work is left in place.
func (g *Gate) Revoke() {
	g.mu.Lock()
	g.granted = false
	g.mu.Unlock()
	g.logger.Info("camera permission revoked")
}

func (g *Gate) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Status{
		Granted:   g.granted,
		Prompting: g.prompting,
		Waiting:   g.slot.Armed(),
		Prompts:   g.prompts,
	}
}

func (g *Gate) answer(granted bool) bool {
	g.mu.Lock()
	g.granted = granted
	g.prompting = false
	g.mu.Unlock()

	if granted {
		g.logger.Info("camera permission granted")
	} else {
		g.logger.Info("camera permission denied")
	}
	if g.notifier != nil {
		g.notifier.PermissionResolved(context.Background(), granted)
	}

	return g.slot.Fire()
}
