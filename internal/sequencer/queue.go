package sequencer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/CometPilot/backend/internal/command"
	"github.com/GriffinCanCode/CometPilot/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/CometPilot/backend/internal/shared/id"
)

// Status is a queued command's position in its lifecycle. Transitions only
// move forward: pending, executing, then completed or failed.
type Status string

const (
	StatusPending   Status = "pending"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether s is completed or failed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// QueuedCommand is one command and its outcome.
type QueuedCommand struct {
	ID         id.CommandID    `json:"id"`
	Command    command.Command `json:"command"`
	Label      string          `json:"label"`
	Status     Status          `json:"status"`
	Output     string          `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
	StartedAt  *time.Time      `json:"startedAt,omitempty"`
	FinishedAt *time.Time      `json:"finishedAt,omitempty"`
}

// Progress is a snapshot of a queue delivered after every transition.
type Progress struct {
	QueueID   id.QueueID      `json:"queueId"`
	Current   int             `json:"current"`
	Items     []QueuedCommand `json:"items"`
	Done      bool            `json:"done"`
	Cancelled bool            `json:"cancelled"`
}

// Counts tallies items by status.
func (p Progress) Counts() map[Status]int {
	out := make(map[Status]int, 4)
	for _, it := range p.Items {
		out[it.Status]++
	}
	return out
}

// Handler executes one validated, permitted command and returns its output.
type Handler interface {
	Handle(ctx context.Context, cmd command.Command) (string, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, cmd command.Command) (string, error)

func (f HandlerFunc) Handle(ctx context.Context, cmd command.Command) (string, error) {
	return f(ctx, cmd)
}

// Gate answers capability checks.
type Gate interface {
	IsGranted(key string) bool
	LogAudit(entry string)
}

// Options tunes a run.
type Options struct {
	// ContinueOnError runs later commands after a failure.
	ContinueOnError bool `json:"continueOnError"`
	// Observer receives a snapshot after every transition. It runs on the
	// queue's goroutine and must not block for long.
	Observer func(Progress) `json:"-"`
}

// Queue runs commands in order, one at a time.
type Queue struct {
	handler Handler
	gate    Gate
	opts    Options
	log     *zap.Logger
	metrics *monitoring.Metrics
	now     func() time.Time

	mu        sync.Mutex
	id        id.QueueID
	items     []QueuedCommand
	current   int
	started   bool
	done      bool
	cancelled bool
}

// NewQueue builds a queue with every command pending.
func NewQueue(cmds []command.Command, handler Handler, gate Gate, opts Options, log *zap.Logger, metrics *monitoring.Metrics) *Queue {
	if log == nil {
		log = zap.NewNop()
	}
	now := time.Now()
	items := make([]QueuedCommand, len(cmds))
	for i, c := range cmds {
		items[i] = QueuedCommand{
			ID:         id.NewCommandID(),
			Command:    c,
			Label:      command.Describe(c),
			Status:     StatusPending,
			EnqueuedAt: now,
		}
	}
	return &Queue{
		handler: handler,
		gate:    gate,
		opts:    opts,
		log:     log,
		metrics: metrics,
		now:     time.Now,
		id:      id.NewQueueID(),
		items:   items,
	}
}

// ID returns the queue's id.
func (q *Queue) ID() id.QueueID {
	return q.id
}

// Cancel stops the queue at the next command boundary. The command in
// flight finishes; it and everything after it that has not started stays
// pending.
func (q *Queue) Cancel() {
	q.mu.Lock()
	q.cancelled = true
	q.mu.Unlock()
}

// Snapshot returns the current progress.
func (q *Queue) Snapshot() Progress {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

func (q *Queue) snapshotLocked() Progress {
	items := make([]QueuedCommand, len(q.items))
	copy(items, q.items)
	return Progress{
		QueueID:   q.id,
		Current:   q.current,
		Items:     items,
		Done:      q.done,
		Cancelled: q.cancelled,
	}
}

// Run executes the queue and returns the final snapshot. A queue runs once;
// later calls return the snapshot without doing anything.
func (q *Queue) Run(ctx context.Context) Progress {
	q.mu.Lock()
	if q.started {
		defer q.mu.Unlock()
		return q.snapshotLocked()
	}
	q.started = true
	q.mu.Unlock()

	q.metrics.QueueStarted()
	defer q.metrics.QueueFinished()

	q.log.Info("command queue started", zap.String("queue_id", q.id.String()), zap.Int("commands", len(q.items)))

	for i := range q.items {
		if q.stopRequested(ctx) {
			break
		}

		q.mu.Lock()
		q.current = i
		cmd := q.items[i].Command
		q.mu.Unlock()

		if !q.step(ctx, i, cmd) && !q.opts.ContinueOnError {
			break
		}
	}

	q.mu.Lock()
	q.done = true
	q.mu.Unlock()
	final := q.emit()

	counts := final.Counts()
	q.log.Info("command queue finished",
		zap.String("queue_id", q.id.String()),
		zap.Int("completed", counts[StatusCompleted]),
		zap.Int("failed", counts[StatusFailed]),
		zap.Int("pending", counts[StatusPending]),
		zap.Bool("cancelled", final.Cancelled))
	return final
}

func (q *Queue) stopRequested(ctx context.Context) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if ctx.Err() != nil {
		q.cancelled = true
	}
	return q.cancelled
}

// step runs item i and reports whether it completed.
func (q *Queue) step(ctx context.Context, i int, cmd command.Command) bool {
	q.transition(i, StatusExecuting, "", "")

	if v := command.Validate(cmd); !v.Valid {
		q.transition(i, StatusFailed, "", v.Error)
		return false
	}

	if key, gated := command.RequiredPermission(cmd.Type); gated && !q.gate.IsGranted(key) {
		q.gate.LogAudit(fmt.Sprintf("command.permission_denied: %s — %s", cmd.Type, key))
		q.transition(i, StatusFailed, "", fmt.Sprintf("Permission not granted: %s", key))
		return false
	}

	out, err := q.handler.Handle(ctx, cmd)
	if err != nil {
		q.log.Warn("command failed", zap.String("type", string(cmd.Type)), zap.Error(err))
		q.transition(i, StatusFailed, out, err.Error())
		return false
	}
	q.transition(i, StatusCompleted, out, "")
	return true
}

func (q *Queue) transition(i int, status Status, output, errMsg string) {
	now := q.now()

	q.mu.Lock()
	it := &q.items[i]
	it.Status = status
	it.Output = output
	it.Error = errMsg
	if status == StatusExecuting {
		it.StartedAt = &now
	} else {
		it.FinishedAt = &now
	}
	cmdType := it.Command.Type
	q.mu.Unlock()

	if status.Terminal() {
		q.metrics.RecordCommand(string(cmdType), string(status))
	}
	q.emit()
}

func (q *Queue) emit() Progress {
	p := q.Snapshot()
	if q.opts.Observer != nil {
		q.opts.Observer(p)
	}
	return p
}
