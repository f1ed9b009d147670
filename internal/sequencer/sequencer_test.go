package sequencer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/CometPilot/backend/internal/command"
	"github.com/GriffinCanCode/CometPilot/backend/internal/permissions"
)

func cmd(t command.Type, v string) command.Command {
	return command.Command{Type: t, Value: v}
}

func okHandler() (Handler, *[]command.Command) {
	var mu sync.Mutex
	var seen []command.Command
	return HandlerFunc(func(_ context.Context, c command.Command) (string, error) {
		mu.Lock()
		seen = append(seen, c)
		mu.Unlock()
		return "done " + string(c.Type), nil
	}), &seen
}

func statuses(p Progress) []Status {
	out := make([]Status, len(p.Items))
	for i, it := range p.Items {
		out[i] = it.Status
	}
	return out
}

func TestQueueHaltsOnFailure(t *testing.T) {
	h, seen := okHandler()
	q := NewQueue([]command.Command{
		cmd(command.Navigate, "https://example.com"),
		cmd(command.SetVolume, "loud"),
		cmd(command.Reload, ""),
	}, h, permissions.New(""), Options{}, nil, nil)

	final := q.Run(context.Background())

	assert.Equal(t, []Status{StatusCompleted, StatusFailed, StatusPending}, statuses(final))
	assert.Equal(t, "done NAVIGATE", final.Items[0].Output)
	assert.NotEmpty(t, final.Items[1].Error)
	assert.True(t, final.Done)
	assert.False(t, final.Cancelled)
	assert.Len(t, *seen, 1)
}

func TestQueueContinueOnError(t *testing.T) {
	h, _ := okHandler()
	q := NewQueue([]command.Command{
		cmd(command.Navigate, ""),
		cmd(command.Reload, ""),
	}, h, permissions.New(""), Options{ContinueOnError: true}, nil, nil)

	final := q.Run(context.Background())
	assert.Equal(t, []Status{StatusFailed, StatusCompleted}, statuses(final))
}

func TestQueueProgressAfterEveryTransition(t *testing.T) {
	h, _ := okHandler()
	var events []Progress
	q := NewQueue([]command.Command{
		cmd(command.Reload, ""),
		cmd(command.GoBack, ""),
	}, h, permissions.New(""), Options{Observer: func(p Progress) { events = append(events, p) }}, nil, nil)

	q.Run(context.Background())

	// two transitions per command plus the final snapshot
	require.Len(t, events, 5)
	assert.Equal(t, []Status{StatusExecuting, StatusPending}, statuses(events[0]))
	assert.Equal(t, []Status{StatusCompleted, StatusPending}, statuses(events[1]))
	assert.Equal(t, 1, events[2].Current)
	assert.Equal(t, []Status{StatusCompleted, StatusExecuting}, statuses(events[2]))
	assert.False(t, events[3].Done)
	assert.True(t, events[4].Done)
}

func TestQueuePermissionGate(t *testing.T) {
	h, seen := okHandler()
	store := permissions.New(t.TempDir())
	q := NewQueue([]command.Command{cmd(command.ShellCommand, "ls")}, h, store, Options{}, nil, nil)

	final := q.Run(context.Background())
	assert.Equal(t, StatusFailed, final.Items[0].Status)
	assert.Equal(t, "Permission not granted: shell", final.Items[0].Error)
	assert.Empty(t, *seen)

	entries := store.AuditLog(0)
	require.Len(t, entries, 1)
	assert.Equal(t, "command.permission_denied: SHELL_COMMAND — shell", entries[0].Entry)

	require.NoError(t, store.Grant(command.KeyShell, permissions.LevelExecute, "", false))
	final = NewQueue([]command.Command{cmd(command.ShellCommand, "ls")}, h, store, Options{}, nil, nil).Run(context.Background())
	assert.Equal(t, StatusCompleted, final.Items[0].Status)
}

func TestQueueHandlerError(t *testing.T) {
	h := HandlerFunc(func(context.Context, command.Command) (string, error) {
		return "partial", errors.New("boom")
	})
	final := NewQueue([]command.Command{cmd(command.Reload, "")}, h, permissions.New(""), Options{}, nil, nil).Run(context.Background())

	assert.Equal(t, StatusFailed, final.Items[0].Status)
	assert.Equal(t, "partial", final.Items[0].Output)
	assert.Equal(t, "boom", final.Items[0].Error)
}

func TestQueueCancelAtBoundary(t *testing.T) {
	var q *Queue
	h := HandlerFunc(func(_ context.Context, c command.Command) (string, error) {
		if c.Type == command.GoBack {
			q.Cancel()
		}
		return "", nil
	})
	q = NewQueue([]command.Command{
		cmd(command.Reload, ""),
		cmd(command.GoBack, ""),
		cmd(command.GoForward, ""),
		cmd(command.Reload, ""),
	}, h, permissions.New(""), Options{}, nil, nil)

	final := q.Run(context.Background())
	assert.True(t, final.Cancelled)
	assert.Equal(t, []Status{StatusCompleted, StatusCompleted, StatusPending, StatusPending}, statuses(final))
}

func TestQueueContextCancelled(t *testing.T) {
	h, seen := okHandler()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	final := NewQueue([]command.Command{cmd(command.Reload, "")}, h, permissions.New(""), Options{}, nil, nil).Run(ctx)
	assert.True(t, final.Cancelled)
	assert.Equal(t, []Status{StatusPending}, statuses(final))
	assert.Empty(t, *seen)
}

func TestQueueRunsOnce(t *testing.T) {
	h, seen := okHandler()
	q := NewQueue([]command.Command{cmd(command.Reload, "")}, h, permissions.New(""), Options{}, nil, nil)
	q.Run(context.Background())
	q.Run(context.Background())
	assert.Len(t, *seen, 1)
}

func TestManagerReplacesQueue(t *testing.T) {
	release := make(chan struct{})
	h := HandlerFunc(func(ctx context.Context, c command.Command) (string, error) {
		if c.Type == command.Wait {
			select {
			case <-release:
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		return "ok", nil
	})
	m := NewManager(h, permissions.New(""), nil, nil)

	var mu sync.Mutex
	var events int
	m.OnProgress(func(Progress) {
		mu.Lock()
		events++
		mu.Unlock()
	})

	first := m.Start([]command.Command{cmd(command.Wait, "1000"), cmd(command.Reload, "")}, Options{})
	require.Eventually(t, func() bool {
		p := first.Snapshot()
		return p.Items[0].Status == StatusExecuting
	}, time.Second, 5*time.Millisecond)

	final := m.Run(context.Background(), []command.Command{cmd(command.Reload, "")}, Options{})
	assert.Equal(t, []Status{StatusCompleted}, statuses(final))

	// the replaced queue keeps its in-flight command and stops at the boundary
	assert.Equal(t, StatusExecuting, first.Snapshot().Items[0].Status)
	close(release)
	require.Eventually(t, func() bool { return first.Snapshot().Done }, time.Second, 5*time.Millisecond)
	old := first.Snapshot()
	assert.True(t, old.Cancelled)
	assert.Equal(t, StatusCompleted, old.Items[0].Status)
	assert.Equal(t, StatusPending, old.Items[1].Status)

	cur, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, final.QueueID, cur.QueueID)

	mu.Lock()
	assert.Greater(t, events, 3)
	mu.Unlock()

	assert.True(t, m.Cancel())
	m.Clear()
	_, ok = m.Current()
	assert.False(t, ok)
	assert.False(t, m.Cancel())
}
