package permissions

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/CometPilot/backend/internal/infrastructure/monitoring"
)

const (
	// PermissionsFile holds one JSON object keyed by permission key.
	PermissionsFile = "comet-permissions.json"
	// AuditFile holds one JSON object per line.
	AuditFile = "comet-audit.jsonl"

	// SessionTTL bounds session-only grants.
	SessionTTL = 8 * time.Hour

	// DefaultAuditLimit is the tail length returned when no limit is given.
	DefaultAuditLimit = 100
)

// ErrInvalidLevel is returned when granting an unknown level.
var ErrInvalidLevel = errors.New("invalid permission level")

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Record is one permission grant.
type Record struct {
	Key         string     `json:"key"`
	Level       Level      `json:"level"`
	GrantedAt   time.Time  `json:"granted_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Description string     `json:"description"`
}

func (r Record) expired(now time.Time) bool {
	return r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}

// fileRecord is the on-disk shape: epoch milliseconds, null for no expiry.
type fileRecord struct {
	Key         string `json:"key"`
	Level       Level  `json:"level"`
	GrantedAt   int64  `json:"granted_at"`
	ExpiresAt   *int64 `json:"expires_at"`
	Description string `json:"description"`
}

func toFile(r Record) fileRecord {
	fr := fileRecord{
		Key:         r.Key,
		Level:       r.Level,
		GrantedAt:   r.GrantedAt.UnixMilli(),
		Description: r.Description,
	}
	if r.ExpiresAt != nil {
		ms := r.ExpiresAt.UnixMilli()
		fr.ExpiresAt = &ms
	}
	return fr
}

func fromFile(key string, fr fileRecord) Record {
	r := Record{
		Key:         key,
		Level:       fr.Level,
		GrantedAt:   time.UnixMilli(fr.GrantedAt),
		Description: fr.Description,
	}
	if fr.ExpiresAt != nil {
		t := time.UnixMilli(*fr.ExpiresAt)
		r.ExpiresAt = &t
	}
	return r
}

// AuditEntry is one line of the audit log.
type AuditEntry struct {
	Entry     string `json:"entry"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Date      string `json:"date,omitempty"`
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithLogger sets the logger used for audit echo and persistence failures.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics records gate decisions.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// Store is the process-wide capability registry.
//
// Every method holds one mutex for its whole duration, including the
// write-through to disk, so a mutation is persisted before any later call can
// observe it. Methods must not call each other while holding the lock.
type Store struct {
	mu      sync.Mutex
	records map[string]Record

	permPath  string
	auditPath string

	clock   Clock
	log     *zap.Logger
	metrics *monitoring.Metrics
}

// New creates a store persisting under dir. An empty dir keeps everything
// in memory and drops audit lines after logging them.
func New(dir string, opts ...Option) *Store {
	s := &Store{
		records: make(map[string]Record),
		clock:   systemClock{},
		log:     zap.NewNop(),
	}
	if dir != "" {
		s.permPath = filepath.Join(dir, PermissionsFile)
		s.auditPath = filepath.Join(dir, AuditFile)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates dir if needed and loads persisted grants.
func Open(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create permission dir: %w", err)
	}
	s := New(dir, opts...)
	s.Load()
	return s, nil
}

// Load reads the permission file, skipping rows that have already expired.
// A missing or unreadable file leaves the store empty.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.permPath == "" {
		return
	}
	data, err := os.ReadFile(s.permPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("failed to load permissions", zap.Error(err))
		}
		return
	}

	var raw map[string]fileRecord
	if err := sonic.Unmarshal(data, &raw); err != nil {
		s.log.Warn("failed to parse permissions", zap.String("path", s.permPath), zap.Error(err))
		return
	}

	now := s.clock.Now()
	for key, fr := range raw {
		r := fromFile(key, fr)
		if r.expired(now) {
			continue
		}
		s.records[key] = r
	}
	s.log.Info("permissions loaded", zap.Int("count", len(s.records)))
}

// Grant records key at level, replacing any previous grant. Session-only
// grants expire SessionTTL after now.
func (s *Store) Grant(key string, level Level, description string, sessionOnly bool) error {
	if !level.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidLevel, level)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	r := Record{
		Key:         key,
		Level:       level,
		GrantedAt:   now,
		Description: description,
	}
	if sessionOnly {
		exp := now.Add(SessionTTL)
		r.ExpiresAt = &exp
	}
	s.records[key] = r
	s.save()
	s.audit(fmt.Sprintf("permission.grant: %s (%s) — %s", key, level, description))
	return nil
}

// Revoke removes key.
func (s *Store) Revoke(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, key)
	s.save()
	s.audit("permission.revoke: " + key)
}

// RevokeAll removes every grant.
func (s *Store) RevokeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]Record)
	s.save()
	s.audit("permission.revokeAll")
}

// IsGranted reports whether key holds a live grant, evicting it if expired.
func (s *Store) IsGranted(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.live(key)
	s.metrics.RecordPermissionCheck(key, ok)
	return ok
}

// Level returns the granted level for key.
func (s *Store) Level(key string) (Level, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.live(key)
	if !ok {
		return "", false
	}
	return r.Level, true
}

// All returns live grants ordered by key, evicting expired ones.
func (s *Store) All() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	evicted := false
	out := make([]Record, 0, len(s.records))
	for key, r := range s.records {
		if r.expired(now) {
			delete(s.records, key)
			evicted = true
			continue
		}
		out = append(out, r)
	}
	if evicted {
		s.save()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// LogAudit appends entry to the audit log. It never fails the caller.
func (s *Store) LogAudit(entry string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audit(entry)
}

// AuditLog returns the last limit entries, oldest first. Lines that do not
// parse come back with only Entry set to the raw line.
func (s *Store) AuditLog(limit int) []AuditEntry {
	if limit <= 0 {
		limit = DefaultAuditLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.auditPath == "" {
		return []AuditEntry{}
	}
	data, err := os.ReadFile(s.auditPath)
	if err != nil {
		return []AuditEntry{}
	}

	lines := bytes.Split(bytes.TrimSpace(data), []byte{'\n'})
	if len(lines) == 1 && len(lines[0]) == 0 {
		return []AuditEntry{}
	}
	if len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}

	out := make([]AuditEntry, 0, len(lines))
	for _, line := range lines {
		var e AuditEntry
		if err := sonic.Unmarshal(line, &e); err != nil {
			e = AuditEntry{Entry: string(line)}
		}
		out = append(out, e)
	}
	return out
}

// ExportAudit copies the raw audit log to w.
func (s *Store) ExportAudit(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.auditPath == "" {
		return nil
	}
	f, err := os.Open(s.auditPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, bufio.NewReader(f)); err != nil {
		return fmt.Errorf("export audit log: %w", err)
	}
	return nil
}

// live returns the record for key, evicting it when expired. Caller holds mu.
func (s *Store) live(key string) (Record, bool) {
	r, ok := s.records[key]
	if !ok {
		return Record{}, false
	}
	if r.expired(s.clock.Now()) {
		delete(s.records, key)
		s.save()
		return Record{}, false
	}
	return r, true
}

// save writes the permission file through a temp file. Caller holds mu.
func (s *Store) save() {
	if s.permPath == "" {
		return
	}

	obj := make(map[string]fileRecord, len(s.records))
	for key, r := range s.records {
		obj[key] = toFile(r)
	}
	data, err := sonic.MarshalIndent(obj, "", "  ")
	if err != nil {
		s.log.Error("failed to encode permissions", zap.Error(err))
		return
	}

	tmp := s.permPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		s.log.Error("failed to save permissions", zap.Error(err))
		return
	}
	if err := os.Rename(tmp, s.permPath); err != nil {
		s.log.Error("failed to save permissions", zap.Error(err))
	}
}

// audit appends one JSONL line. Caller holds mu.
func (s *Store) audit(entry string) {
	now := s.clock.Now()
	s.log.Info("audit", zap.String("entry", entry))

	if s.auditPath == "" {
		return
	}
	line, err := sonic.Marshal(AuditEntry{
		Entry:     entry,
		Timestamp: now.UnixMilli(),
		Date:      now.UTC().Format("2006-01-02T15:04:05.000Z"),
	})
	if err != nil {
		s.log.Error("audit encode failed", zap.Error(err))
		return
	}

	f, err := os.OpenFile(s.auditPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		s.log.Error("audit write failed", zap.Error(err))
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		s.log.Error("audit write failed", zap.Error(err))
	}
}
