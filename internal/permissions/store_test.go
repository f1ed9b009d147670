package permissions

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func TestGrantAndQuery(t *testing.T) {
	s := New(t.TempDir())

	require.NoError(t, s.Grant("robot", LevelInteract, "desktop control", true))

	assert.True(t, s.IsGranted("robot"))
	lvl, ok := s.Level("robot")
	assert.True(t, ok)
	assert.Equal(t, LevelInteract, lvl)

	assert.False(t, s.IsGranted("shell"))
	_, ok = s.Level("shell")
	assert.False(t, ok)
}

func TestGrantRejectsUnknownLevel(t *testing.T) {
	s := New(t.TempDir())

	err := s.Grant("robot", Level("admin"), "nope", true)
	assert.ErrorIs(t, err, ErrInvalidLevel)
	assert.False(t, s.IsGranted("robot"))
	assert.Empty(t, s.AuditLog(0))
}

func TestGrantOverwrites(t *testing.T) {
	s := New(t.TempDir())

	require.NoError(t, s.Grant("robot", LevelRead, "first", true))
	require.NoError(t, s.Grant("robot", LevelExecute, "second", false))

	all := s.All()
	require.Len(t, all, 1)
	assert.Equal(t, LevelExecute, all[0].Level)
	assert.Equal(t, "second", all[0].Description)
	assert.Nil(t, all[0].ExpiresAt)
}

func TestSessionExpiryMonotonic(t *testing.T) {
	clock := newFakeClock()
	s := New(t.TempDir(), WithClock(clock))
	start := clock.Now()

	require.NoError(t, s.Grant("robot", LevelInteract, "session", true))

	for _, offset := range []time.Duration{0, time.Minute, 4 * time.Hour, SessionTTL - time.Millisecond} {
		clock.Set(start.Add(offset))
		assert.True(t, s.IsGranted("robot"), "should be granted at +%s", offset)
	}

	clock.Set(start.Add(SessionTTL))
	assert.False(t, s.IsGranted("robot"))

	// evicted, stays gone
	clock.Set(start.Add(time.Minute))
	assert.False(t, s.IsGranted("robot"))
}

func TestPermanentGrantNeverExpires(t *testing.T) {
	clock := newFakeClock()
	s := New(t.TempDir(), WithClock(clock))

	require.NoError(t, s.Grant("shell", LevelExecute, "forever", false))
	clock.Set(clock.Now().Add(1000 * time.Hour))

	assert.True(t, s.IsGranted("shell"))
}

func TestAllEvictsExpired(t *testing.T) {
	clock := newFakeClock()
	s := New(t.TempDir(), WithClock(clock))

	require.NoError(t, s.Grant("b", LevelRead, "", false))
	require.NoError(t, s.Grant("a", LevelRead, "", true))
	require.NoError(t, s.Grant("c", LevelWrite, "", false))

	clock.Set(clock.Now().Add(9 * time.Hour))
	all := s.All()

	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].Key)
	assert.Equal(t, "c", all[1].Key)
}

func TestRevoke(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Grant("robot", LevelInteract, "", true))
	require.NoError(t, s.Grant("shell", LevelExecute, "", true))

	s.Revoke("robot")
	assert.False(t, s.IsGranted("robot"))
	assert.True(t, s.IsGranted("shell"))

	s.RevokeAll()
	assert.Empty(t, s.All())
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	clock := newFakeClock()

	s := New(dir, WithClock(clock))
	require.NoError(t, s.Grant("robot", LevelInteract, "session", true))
	require.NoError(t, s.Grant("shell", LevelExecute, "permanent", false))

	data, err := os.ReadFile(filepath.Join(dir, PermissionsFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"granted_at"`)
	assert.Contains(t, string(data), `"expires_at": null`)

	reloaded := New(dir, WithClock(clock))
	reloaded.Load()
	assert.True(t, reloaded.IsGranted("robot"))
	assert.True(t, reloaded.IsGranted("shell"))
	lvl, _ := reloaded.Level("shell")
	assert.Equal(t, LevelExecute, lvl)

	// expired rows are skipped at load time
	clock.Set(clock.Now().Add(SessionTTL + time.Second))
	later := New(dir, WithClock(clock))
	later.Load()
	assert.False(t, later.IsGranted("robot"))
	assert.True(t, later.IsGranted("shell"))
}

func TestLoadToleratesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, PermissionsFile), []byte("{not json"), 0o600))

	s := New(dir)
	s.Load()
	assert.Empty(t, s.All())
}

func TestAuditLog(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	require.NoError(t, s.Grant("robot", LevelInteract, "desktop control", true))
	s.Revoke("robot")
	s.RevokeAll()
	s.LogAudit("robot.kill: Emergency kill switch activated")

	entries := s.AuditLog(0)
	require.Len(t, entries, 4)
	assert.Equal(t, "permission.grant: robot (interact) — desktop control", entries[0].Entry)
	assert.Equal(t, "permission.revoke: robot", entries[1].Entry)
	assert.Equal(t, "permission.revokeAll", entries[2].Entry)
	assert.Equal(t, "robot.kill: Emergency kill switch activated", entries[3].Entry)
	assert.NotZero(t, entries[0].Timestamp)
	assert.NotEmpty(t, entries[0].Date)

	tail := s.AuditLog(2)
	require.Len(t, tail, 2)
	assert.Equal(t, "permission.revokeAll", tail[0].Entry)
}

func TestAuditLogKeepsUnparsableLines(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	s.LogAudit("first")

	f, err := os.OpenFile(filepath.Join(dir, AuditFile), os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("garbage line\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	entries := s.AuditLog(10)
	require.Len(t, entries, 2)
	assert.Equal(t, "garbage line", entries[1].Entry)
	assert.Zero(t, entries[1].Timestamp)
}

func TestAuditNeverFailsCaller(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing", "nested")
	s := New(dir)

	assert.NotPanics(t, func() {
		s.LogAudit("dropped")
		require.NoError(t, s.Grant("robot", LevelRead, "", true))
	})
	assert.True(t, s.IsGranted("robot"))
	assert.Empty(t, s.AuditLog(10))
}

func TestMemoryStore(t *testing.T) {
	s := New("")
	require.NoError(t, s.Grant("robot", LevelRead, "", true))
	assert.True(t, s.IsGranted("robot"))
	assert.Empty(t, s.AuditLog(5))

	var buf bytes.Buffer
	require.NoError(t, s.ExportAudit(&buf))
	assert.Zero(t, buf.Len())
}

func TestExportAudit(t *testing.T) {
	s := New(t.TempDir())
	s.LogAudit("one")
	s.LogAudit("two")

	var buf bytes.Buffer
	require.NoError(t, s.ExportAudit(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[1], `"entry":"two"`)
}

func TestOpenCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Grant("robot", LevelRead, "", false))

	_, err = os.Stat(filepath.Join(dir, PermissionsFile))
	assert.NoError(t, err)
}

func TestConcurrentAccess(t *testing.T) {
	s := New(t.TempDir())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Grant("robot", LevelInteract, "", i%2 == 0)
			_ = s.IsGranted("robot")
			_ = s.All()
		}(i)
	}
	wg.Wait()
	assert.Len(t, s.AuditLog(100), 8)
}
