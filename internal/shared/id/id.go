// Package id provides ULID generation for queue runs, queued commands,
// confirmation requests and bridge devices.
//
// IDs are prefixed by kind (cmd_*, queue_*, cfm_*, dev_*) so log lines and
// audit entries can be read without a lookup table. ULIDs sort by creation
// time, which keeps queued commands in enqueue order when listed by ID.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// CommandID identifies a queued command.
type CommandID string

// QueueID identifies one sequencer run.
type QueueID string

// ConfirmationID identifies a pending confirmation request.
type ConfirmationID string

// DeviceID identifies a bridge client.
type DeviceID string

const (
	CommandPrefix      = "cmd"
	QueuePrefix        = "queue"
	ConfirmationPrefix = "cfm"
	DevicePrefix       = "dev"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator with monotonic entropy so IDs minted in
// the same millisecond still sort in creation order.
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewCommandID generates a queued command ID
func NewCommandID() CommandID {
	return CommandID(Default().GenerateWithPrefix(CommandPrefix))
}

// NewQueueID generates a queue run ID
func NewQueueID() QueueID {
	return QueueID(Default().GenerateWithPrefix(QueuePrefix))
}

// NewConfirmationID generates a confirmation request ID
func NewConfirmationID() ConfirmationID {
	return ConfirmationID(Default().GenerateWithPrefix(ConfirmationPrefix))
}

// NewDeviceID generates a bridge device ID
func NewDeviceID() DeviceID {
	return DeviceID(Default().GenerateWithPrefix(DevicePrefix))
}

func (id CommandID) String() string { return string(id) }
func (id QueueID) String() string { return string(id) }
func (id ConfirmationID) String() string { return string(id) }
func (id DeviceID) String() string { return string(id) }

// IsValid checks if an ID string is a valid ULID, with or without prefix.
func IsValid(id string) bool {
	_, err := Parse(id)
	return err == nil
}

// Parse parses a ULID string, stripping a kind prefix when present.
func Parse(id string) (ulid.ULID, error) {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	return ulid.Parse(id)
}

// Timestamp extracts the creation time from an ID.
func Timestamp(id string) (time.Time, error) {
	parsed, err := Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
