package sequencer

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/CometPilot/backend/internal/command"
	"github.com/GriffinCanCode/CometPilot/backend/internal/infrastructure/monitoring"
)

// Manager owns the single active queue. Starting a new queue cancels the
// previous one at its next command boundary; the command in flight finishes.
type Manager struct {
	handler Handler
	gate    Gate
	log     *zap.Logger
	metrics *monitoring.Metrics

	mu        sync.Mutex
	current   *Queue
	observers []func(Progress)
}

// NewManager creates a manager with no active queue.
func NewManager(handler Handler, gate Gate, log *zap.Logger, metrics *monitoring.Metrics) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{handler: handler, gate: gate, log: log, metrics: metrics}
}

// OnProgress registers fn for progress of every queue the manager runs.
func (m *Manager) OnProgress(fn func(Progress)) {
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

func (m *Manager) prepare(cmds []command.Command, opts Options) *Queue {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		m.current.Cancel()
	}

	observers := append([]func(Progress){}, m.observers...)
	if opts.Observer != nil {
		observers = append(observers, opts.Observer)
	}
	opts.Observer = func(p Progress) {
		for _, fn := range observers {
			fn(p)
		}
	}

	q := NewQueue(cmds, m.handler, m.gate, opts, m.log, m.metrics)
	m.current = q
	return q
}

// Run executes cmds as the active queue and waits for it to finish.
func (m *Manager) Run(ctx context.Context, cmds []command.Command, opts Options) Progress {
	return m.prepare(cmds, opts).Run(ctx)
}

// Start executes cmds as the active queue in the background. The queue
// outlives the caller's request; Cancel stops it.
func (m *Manager) Start(cmds []command.Command, opts Options) *Queue {
	q := m.prepare(cmds, opts)
	go q.Run(context.Background())
	return q
}

// Current returns the active queue's progress.
func (m *Manager) Current() (Progress, bool) {
	m.mu.Lock()
	q := m.current
	m.mu.Unlock()

	if q == nil {
		return Progress{}, false
	}
	return q.Snapshot(), true
}

// Cancel stops the active queue at its next boundary.
func (m *Manager) Cancel() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return false
	}
	m.current.Cancel()
	return true
}

// Clear cancels and forgets the active queue.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		m.current.Cancel()
	}
	m.current = nil
}
