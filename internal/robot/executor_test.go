package robot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/CometPilot/backend/internal/command"
	"github.com/GriffinCanCode/CometPilot/backend/internal/desktop/desktoptest"
	"github.com/GriffinCanCode/CometPilot/backend/internal/permissions"
)

func f(v float64) *float64 { return &v }

func newExecutor(t *testing.T, confirmer Confirmer) (*Executor, *desktoptest.Fake, *permissions.Store) {
	t.Helper()
	store := permissions.New(t.TempDir())
	require.NoError(t, store.Grant(command.KeyRobot, permissions.LevelInteract, "test", false))
	fake := desktoptest.New()
	return New(fake, store, Config{Confirmer: confirmer}), fake, store
}

func auditEntries(store *permissions.Store) []string {
	var out []string
	for _, e := range store.AuditLog(0) {
		out = append(out, e.Entry)
	}
	return out
}

func hasPrefix(entries []string, prefix string) bool {
	for _, e := range entries {
		if strings.HasPrefix(e, prefix) {
			return true
		}
	}
	return false
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		raw     RawAction
		wantErr string
		check   func(t *testing.T, a Action)
	}{
		{
			name: "click defaults",
			raw:  RawAction{Type: "click", X: f(10.4), Y: f(20.6)},
			check: func(t *testing.T, a Action) {
				assert.Equal(t, 10, a.X)
				assert.Equal(t, 21, a.Y)
				assert.Equal(t, "left", a.Button)
				assert.Equal(t, "No reason provided", a.Reason)
			},
		},
		{name: "click unknown button", raw: RawAction{Type: "click", X: f(1), Y: f(1), Button: "side"},
			check: func(t *testing.T, a Action) { assert.Equal(t, "left", a.Button) }},
		{name: "click missing y", raw: RawAction{Type: "click", X: f(1)}, wantErr: "Invalid coordinates: (1, missing)"},
		{name: "click negative", raw: RawAction{Type: "click", X: f(-5), Y: f(1)}, wantErr: "Invalid coordinates"},
		{name: "type empty", raw: RawAction{Type: "type"}, wantErr: "Type action requires non-empty text"},
		{name: "type too long", raw: RawAction{Type: "type", Text: strings.Repeat("a", 2001)}, wantErr: "exceeds 2000 char limit"},
		{name: "type at limit", raw: RawAction{Type: "type", Text: strings.Repeat("é", 2000)}},
		{name: "key missing", raw: RawAction{Type: "key", Key: " "}, wantErr: "Key action requires a key"},
		{
			name: "key modifiers filtered",
			raw:  RawAction{Type: "key", Key: "s", Modifiers: []string{"cmd", "hyper", "shift"}},
			check: func(t *testing.T, a Action) {
				assert.Equal(t, []string{"command", "shift"}, a.Modifiers)
			},
		},
		{name: "scroll bad direction", raw: RawAction{Type: "scroll", Direction: "sideways"}, wantErr: "Invalid scroll direction: sideways"},
		{
			name: "scroll defaults",
			raw:  RawAction{Type: "scroll", Direction: "down"},
			check: func(t *testing.T, a Action) {
				assert.Equal(t, 3, a.Amount)
				assert.Equal(t, 0, a.X)
			},
		},
		{name: "scroll clamped high", raw: RawAction{Type: "scroll", Direction: "up", Amount: f(99)},
			check: func(t *testing.T, a Action) { assert.Equal(t, 20, a.Amount) }},
		{name: "scroll clamped low", raw: RawAction{Type: "scroll", Direction: "up", Amount: f(-4)},
			check: func(t *testing.T, a Action) { assert.Equal(t, 1, a.Amount) }},
		{name: "unknown type", raw: RawAction{Type: "drag"}, wantErr: "Invalid action type: drag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Validate(tt.raw)
			if tt.wantErr != "" {
				require.ErrorIs(t, err, ErrInvalidAction)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, a)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, `Click "left" at (5, 6) (double-click)`, Describe(Action{Kind: KindClick, Button: "left", X: 5, Y: 6, Double: true}))
	assert.Equal(t, "Press key: command+shift+s", Describe(Action{Kind: KindKey, Key: "s", Modifiers: []string{"command", "shift"}}))
	assert.Equal(t, "Scroll down (3x) at (0, 0)", Describe(Action{Kind: KindScroll, Direction: "down", Amount: 3}))

	long := Describe(Action{Kind: KindType, Text: strings.Repeat("x", 150)})
	assert.Equal(t, `Type text: "`+strings.Repeat("x", 100)+`..."`, long)
}

func TestExecuteClick(t *testing.T) {
	e, fake, store := newExecutor(t, Static(true))

	res, err := e.Execute(context.Background(), Click(100, 200, "press Save"), Options{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, KindClick, res.Action)

	clicks := fake.Clicks()
	require.Len(t, clicks, 1)
	assert.Equal(t, 100, clicks[0].X)
	assert.Equal(t, 200, clicks[0].Y)
	assert.Equal(t, "left", clicks[0].Button)
	assert.Contains(t, auditEntries(store), "robot.execute: click — press Save")
}

func TestExecuteSpacing(t *testing.T) {
	e, fake, _ := newExecutor(t, nil)

	for i := 0; i < 3; i++ {
		_, err := e.Execute(context.Background(), RawAction{Type: "key", Key: "a"}, Options{SkipConfirm: true})
		require.NoError(t, err)
	}

	calls := fake.Calls()
	require.Len(t, calls, 3)
	for i := 1; i < len(calls); i++ {
		gap := calls[i].At.Sub(calls[i-1].At)
		assert.GreaterOrEqual(t, gap, DefaultMinDelay-5*time.Millisecond, "gap %d", i)
	}
}

func TestExecuteSpacingAfterClick(t *testing.T) {
	e, fake, _ := newExecutor(t, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := e.Execute(ctx, Click(10+i, 10, "spacing"), Options{SkipConfirm: true})
		require.NoError(t, err)
	}

	calls := fake.Calls()
	require.Len(t, calls, 4)
	assert.Equal(t, []string{"move", "click", "move", "click"},
		[]string{calls[0].Op, calls[1].Op, calls[2].Op, calls[3].Op})
	assert.GreaterOrEqual(t, calls[1].At.Sub(calls[0].At), clickSettle-5*time.Millisecond)
	// measured from the end of the first click, not from its start
	assert.GreaterOrEqual(t, calls[2].At.Sub(calls[1].At), DefaultMinDelay-5*time.Millisecond)
}

func TestConfirmedActionIgnoresCancel(t *testing.T) {
	e, fake, _ := newExecutor(t, Static(true))

	_, err := e.Execute(context.Background(), Click(1, 1, "first"), Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	res, err := e.Execute(ctx, Click(2, 2, "second"), Options{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Len(t, fake.Clicks(), 2)
}

func TestExecutePermissionDenied(t *testing.T) {
	e, fake, store := newExecutor(t, Static(true))
	store.Revoke(command.KeyRobot)

	res, err := e.Execute(context.Background(), Click(1, 1, "try"), Options{})
	require.ErrorIs(t, err, ErrPermissionDenied)
	assert.False(t, res.Success)
	assert.Equal(t, "Robot permission not granted. Enable in Settings > Permissions.", res.Error)
	assert.Empty(t, fake.Calls())

	entries := auditEntries(store)
	assert.True(t, hasPrefix(entries, "robot.permission_denied: click"))
	assert.False(t, hasPrefix(entries, "robot.execute"))
}

func TestExecuteOutOfBounds(t *testing.T) {
	e, fake, _ := newExecutor(t, Static(true))

	for _, pt := range [][2]int{{1920, 10}, {10, 1080}, {5000, 5000}} {
		res, err := e.Execute(context.Background(), Click(pt[0], pt[1], "edge"), Options{})
		require.ErrorIs(t, err, ErrOutOfBounds)
		assert.Contains(t, res.Error, "outside all display bounds")
	}
	assert.Empty(t, fake.Calls())

	_, err := e.Execute(context.Background(), Click(1919, 1079, "corner"), Options{})
	assert.NoError(t, err)
}

func TestExecuteUserDenied(t *testing.T) {
	e, fake, store := newExecutor(t, Static(false))

	res, err := e.Execute(context.Background(), RawAction{Type: "type", Text: "hello", Reason: "fill name"}, Options{})
	require.ErrorIs(t, err, ErrUserDenied)
	assert.Equal(t, "User denied the robot action", res.Error)
	assert.Empty(t, fake.Calls())
	assert.Contains(t, auditEntries(store), "robot.denied: type — fill name")
	assert.False(t, hasPrefix(auditEntries(store), "robot.execute"))
}

func TestScrollSkipsConfirmation(t *testing.T) {
	e, fake, _ := newExecutor(t, Static(false))

	_, err := e.Execute(context.Background(), RawAction{Type: "scroll", X: f(50), Y: f(50), Direction: "down"}, Options{})
	require.NoError(t, err)
	calls := fake.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "move", calls[0].Op)
	assert.Equal(t, "scroll", calls[1].Op)
	assert.Equal(t, "down", calls[1].Direction)
	assert.Equal(t, 3, calls[1].Amount)
}

func TestKillSwitch(t *testing.T) {
	e, fake, store := newExecutor(t, Static(true))

	e.Kill()
	assert.True(t, e.Killed())
	assert.False(t, store.IsGranted(command.KeyRobot))

	res, err := e.Execute(context.Background(), Click(1, 1, "after kill"), Options{})
	require.ErrorIs(t, err, ErrKillSwitch)
	assert.Equal(t, "Robot actions are disabled (kill switch active)", res.Error)
	assert.Empty(t, fake.Calls())

	entries := auditEntries(store)
	assert.Contains(t, entries, "robot.kill: Emergency kill switch activated")
	assert.Contains(t, entries, "robot.blocked: click")

	e.ResetKill()
	assert.False(t, e.Killed())
	_, err = e.Execute(context.Background(), Click(1, 1, "after reset"), Options{})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestKillDuringDelay(t *testing.T) {
	e, fake, _ := newExecutor(t, nil)
	ctx := context.Background()

	_, err := e.Execute(ctx, RawAction{Type: "key", Key: "a"}, Options{SkipConfirm: true})
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		e.Kill()
	}()
	res, err := e.Execute(ctx, RawAction{Type: "key", Key: "b"}, Options{SkipConfirm: true})
	require.ErrorIs(t, err, ErrKillSwitch)
	assert.Equal(t, "Robot actions aborted (kill switch activated during delay)", res.Error)
	assert.Len(t, fake.Calls(), 1)
}

func TestExecuteSequence(t *testing.T) {
	t.Run("stops on error", func(t *testing.T) {
		e, fake, _ := newExecutor(t, nil)
		results := e.ExecuteSequence(context.Background(), []RawAction{
			{Type: "key", Key: "a"},
			{Type: "bogus"},
			{Type: "key", Key: "c"},
		}, SequenceOptions{SkipConfirm: true})

		require.Len(t, results, 3)
		assert.True(t, results[0].Success)
		assert.Equal(t, "Invalid action type: bogus", results[1].Error)
		assert.True(t, results[2].Skipped)
		assert.Len(t, fake.Calls(), 1)
	})

	t.Run("continue on error", func(t *testing.T) {
		e, fake, _ := newExecutor(t, nil)
		results := e.ExecuteSequence(context.Background(), []RawAction{
			{Type: "bogus"},
			{Type: "key", Key: "c"},
		}, SequenceOptions{SkipConfirm: true, ContinueOnError: true})

		require.Len(t, results, 2)
		assert.False(t, results[0].Success)
		assert.True(t, results[1].Success)
		assert.Len(t, fake.Calls(), 1)
	})

	t.Run("kill aborts the rest", func(t *testing.T) {
		q := NewQueue()
		e, fake, _ := newExecutor(t, q)
		q.OnRequest(func(req Request) {
			if req.Action.Key == "b" {
				go e.Kill()
				return
			}
			go func() { _ = q.Answer(req.ID, true) }()
		})

		results := e.ExecuteSequence(context.Background(), []RawAction{
			{Type: "key", Key: "a"},
			{Type: "key", Key: "b"},
			{Type: "key", Key: "c"},
			{Type: "key", Key: "d"},
		}, SequenceOptions{ContinueOnError: true})

		require.Len(t, results, 4)
		assert.True(t, results[0].Success)
		for _, r := range results[1:] {
			assert.False(t, r.Success)
			assert.True(t, r.Aborted)
		}
		assert.Equal(t, "Aborted by kill switch", results[3].Error)
		assert.Len(t, fake.Calls(), 1)
	})
}

func TestUnavailable(t *testing.T) {
	store := permissions.New("")
	fake := desktoptest.New()
	fake.Unavailable = true
	e := New(fake, store, Config{})

	assert.False(t, e.IsAvailable())
	_, err := e.Execute(context.Background(), Click(1, 1, ""), Options{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestQueueConfirmer(t *testing.T) {
	q := NewQueue()
	req := NewRequest(Action{Kind: KindClick, Button: "left", X: 3, Y: 4, Reason: "<b>open</b> menu"})
	assert.Equal(t, "open menu", req.Reason)

	seen := make(chan Request, 1)
	q.OnRequest(func(r Request) { seen <- r })

	done := make(chan bool, 1)
	go func() {
		ok, err := q.Confirm(context.Background(), req)
		assert.NoError(t, err)
		done <- ok
	}()

	got := <-seen
	assert.Equal(t, req.ID, got.ID)
	assert.Len(t, q.Pending(), 1)
	require.NoError(t, q.Answer(got.ID, true))
	assert.True(t, <-done)
	assert.Empty(t, q.Pending())

	assert.ErrorIs(t, q.Answer(got.ID, true), ErrUnknownConfirmation)
}

func TestQueueConfirmerCancel(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	q.OnRequest(func(Request) { cancel() })

	ok, err := q.Confirm(ctx, NewRequest(Action{Kind: KindKey, Key: "a"}))
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, q.Pending())
}

func TestQueueDenyAll(t *testing.T) {
	q := NewQueue()
	started := make(chan struct{}, 2)
	q.OnRequest(func(Request) { started <- struct{}{} })

	results := make(chan bool, 2)
	for i := 0; i < 2; i++ {
		go func() {
			ok, _ := q.Confirm(context.Background(), NewRequest(Action{Kind: KindKey, Key: "a"}))
			results <- ok
		}()
	}
	<-started
	<-started
	q.DenyAll()

	assert.False(t, <-results)
	assert.False(t, <-results)
}
