package permission

import (
	"context"
	"sync"
	"testing"

	"github.com/rbright/aperture/internal/pending"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu        sync.Mutex
	requested []string
	resolved  []bool
}

func (n *recordingNotifier) PermissionRequested(_ context.Context, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requested = append(n.requested, reason)
}

func (n *recordingNotifier) PermissionResolved(_ context.Context, granted bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resolved = append(n.resolved, granted)
}

func TestEnsurePermissionRunsImmediatelyWhenGranted(t *testing.T) {
	slot := &pending.Slot{}
	gate := NewGate(slot, true, nil, nil)

	var granted, denied int
	gate.EnsurePermission(func() { granted++ }, func() { denied++ })

	require.Equal(t, 1, granted)
	require.Zero(t, denied)
	require.False(t, slot.Armed())
	require.False(t, gate.Status().Prompting)
}

func TestEnsurePermissionParksUntilGrant(t *testing.T) {
	slot := &pending.Slot{}
	notifier := &recordingNotifier{}
	gate := NewGate(slot, false, nil, notifier)

	var granted, denied int
	gate.EnsurePermission(func() { granted++ }, func() { denied++ })

	require.Zero(t, granted)
	require.True(t, slot.Armed())
	status := gate.Status()
	require.True(t, status.Prompting)
	require.True(t, status.Waiting)
	require.Equal(t, uint64(1), status.Prompts)

	require.True(t, gate.Grant())
	require.Equal(t, 1, granted)
	require.Zero(t, denied)
	require.False(t, slot.Armed())
	require.True(t, gate.Granted())

	require.False(t, gate.Grant())
	require.Equal(t, 1, granted)

	require.Equal(t, []string{"capture"}, notifier.requested)
	require.Equal(t, []bool{true, true}, notifier.resolved)
}

func TestEnsurePermissionDenyRunsDenialPath(t *testing.T) {
	gate := NewGate(nil, false, nil, nil)

	var granted, denied int
	gate.EnsurePermission(func() { granted++ }, func() { denied++ })
	require.True(t, gate.Deny())

	require.Zero(t, granted)
	require.Equal(t, 1, denied)
	require.False(t, gate.Granted())
	require.False(t, gate.Status().Waiting)
}

func TestEnsurePermissionSecondRequestReplacesFirst(t *testing.T) {
	gate := NewGate(nil, false, nil, nil)

	var first, second int
	gate.EnsurePermission(func() { first++ }, func() {})
	gate.EnsurePermission(func() { second++ }, func() {})
	require.True(t, gate.Grant())

	require.Zero(t, first)
	require.Equal(t, 1, second)
	require.Equal(t, uint64(2), gate.Status().Prompts)
}

func TestRevokeKeepsParkedWork(t *testing.T) {
	gate := NewGate(nil, true, nil, nil)
	gate.Revoke()
	require.False(t, gate.Granted())

	var ran int
	gate.EnsurePermission(func() { ran++ }, func() {})
	gate.Revoke()
	require.True(t, gate.Status().Waiting)
	require.True(t, gate.Grant())
	require.Equal(t, 1, ran)
}

func TestPromptWithoutParkedWork(t *testing.T) {
	notifier := &recordingNotifier{}
	gate := NewGate(nil, false, nil, notifier)

	gate.Prompt("open camera")
	status := gate.Status()
	require.True(t, status.Prompting)
	require.False(t, status.Waiting)

	require.False(t, gate.Grant())
	require.True(t, gate.Granted())
	require.Equal(t, []string{"open camera"}, notifier.requested)
}

func TestWithdrawClearsParkedWork(t *testing.T) {
	gate := NewGate(nil, false, nil, nil)

	var ran int
	withdraw := gate.EnsurePermission(func() { ran++ }, func() { ran++ })
	withdraw()

	status := gate.Status()
	require.False(t, status.Waiting)
	require.False(t, status.Prompting)
	require.Equal(t, uint64(1), status.Prompts)

	require.False(t, gate.Grant())
	require.Zero(t, ran)
}

func TestWithdrawLeavesNewerRequestParked(t *testing.T) {
	gate := NewGate(nil, false, nil, nil)

	var first, second int
	withdrawFirst := gate.EnsurePermission(func() { first++ }, func() {})
	gate.EnsurePermission(func() { second++ }, func() {})
	withdrawFirst()

	require.True(t, gate.Status().Waiting)
	require.True(t, gate.Grant())
	require.Zero(t, first)
	require.Equal(t, 1, second)
}

func TestWithdrawAfterImmediateGrantIsNoop(t *testing.T) {
	gate := NewGate(nil, true, nil, nil)

	var ran int
	withdraw := gate.EnsurePermission(func() { ran++ }, func() {})
	withdraw()
	require.Equal(t, 1, ran)
	require.False(t, gate.Status().Waiting)
}

func TestEnsurePermissionConcurrentWithGrantAlwaysRuns(t *testing.T) {
	for range 200 {
		gate := NewGate(nil, false, nil, nil)

		var mu sync.Mutex
		ran := 0
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			gate.EnsurePermission(func() {
				mu.Lock()
				ran++
				mu.Unlock()
			}, func() {})
		}()
		go func() {
			defer wg.Done()
			gate.Grant()
		}()
		wg.Wait()

		mu.Lock()
		require.Equal(t, 1, ran)
		mu.Unlock()
		require.False(t, gate.Status().Waiting)
	}
}
