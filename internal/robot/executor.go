package robot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/CometPilot/backend/internal/command"
	"github.com/GriffinCanCode/CometPilot/backend/internal/desktop"
	"github.com/GriffinCanCode/CometPilot/backend/internal/infrastructure/monitoring"
)

var (
	ErrUnavailable      = errors.New("desktop automation not available")
	ErrKillSwitch       = errors.New("kill switch active")
	ErrKilledDuringWait = fmt.Errorf("%w: aborted during delay", ErrKillSwitch)
	ErrInvalidAction    = errors.New("invalid robot action")
	ErrPermissionDenied = errors.New("robot permission not granted")
	ErrOutOfBounds      = errors.New("coordinates outside all display bounds")
	ErrUserDenied       = errors.New("user denied the robot action")
)

// DefaultMinDelay is the minimum spacing between two synthesised actions.
const DefaultMinDelay = 300 * time.Millisecond

const clickSettle = 80 * time.Millisecond

// Result texts shown to the operator.
const (
	msgUnavailable     = "Desktop automation is not available on this system"
	msgKilled          = "Robot actions are disabled (kill switch active)"
	msgKillDuringDelay = "Robot actions aborted (kill switch activated during delay)"
	msgNotGranted      = "Robot permission not granted. Enable in Settings > Permissions."
	msgUserDenied      = "User denied the robot action"
	msgAborted         = "Aborted by kill switch"
	msgSkipped         = "Skipped after earlier failure"
)

// Permissions is the slice of the permission store the executor needs.
type Permissions interface {
	IsGranted(key string) bool
	Revoke(key string)
	LogAudit(entry string)
}

// Result reports one action. Aborted and Skipped are only set by
// ExecuteSequence.
type Result struct {
	Success bool   `json:"success"`
	Action  Kind   `json:"action,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
	Aborted bool   `json:"aborted,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
}

// Options tunes a single Execute call.
type Options struct {
	SkipConfirm bool `json:"skipConfirm"`
}

// SequenceOptions tunes ExecuteSequence.
type SequenceOptions struct {
	SkipConfirm     bool `json:"skipConfirm"`
	ContinueOnError bool `json:"continueOnError"`
}

// Config wires an Executor.
type Config struct {
	MinDelay  time.Duration
	Confirmer Confirmer
	Logger    *zap.Logger
	Metrics   *monitoring.Metrics
}

// Status is the executor state reported to clients.
type Status struct {
	Available bool `json:"available"`
	Killed    bool `json:"killed"`
	Granted   bool `json:"granted"`
}

// Executor synthesises validated desktop input behind the kill switch,
// the robot permission, display bounds and operator confirmation.
type Executor struct {
	driver    desktop.Driver
	perms     Permissions
	confirmer Confirmer
	log       *zap.Logger
	metrics   *monitoring.Metrics

	// runMu serialises the wait-and-synthesise phase so spacing holds across
	// concurrent callers. lastAction is when the previous synthesis returned.
	runMu      sync.Mutex
	minDelay   time.Duration
	lastAction time.Time

	killMu sync.Mutex
	killed bool
	killCh chan struct{}
}

// New creates an executor. A nil confirmer denies every confirmation.
func New(driver desktop.Driver, perms Permissions, cfg Config) *Executor {
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = DefaultMinDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Confirmer == nil {
		cfg.Confirmer = Static(false)
	}
	return &Executor{
		driver:    driver,
		perms:     perms,
		confirmer: cfg.Confirmer,
		log:       cfg.Logger,
		metrics:   cfg.Metrics,
		minDelay:  cfg.MinDelay,
		killCh:    make(chan struct{}),
	}
}

// IsAvailable reports whether input synthesis works on this machine.
func (e *Executor) IsAvailable() bool {
	return e.driver != nil && e.driver.Available()
}

// Killed reports whether the kill switch is engaged.
func (e *Executor) Killed() bool {
	e.killMu.Lock()
	defer e.killMu.Unlock()
	return e.killed
}

// Status returns availability, kill switch and permission state.
func (e *Executor) Status() Status {
	return Status{
		Available: e.IsAvailable(),
		Killed:    e.Killed(),
		Granted:   e.perms.IsGranted(command.KeyRobot),
	}
}

// Kill engages the kill switch. Waiting actions abort, pending confirmations
// are denied and the robot permission is revoked.
func (e *Executor) Kill() {
	e.killMu.Lock()
	if !e.killed {
		e.killed = true
		close(e.killCh)
	}
	e.killMu.Unlock()

	e.perms.Revoke(command.KeyRobot)
	e.perms.LogAudit("robot.kill: Emergency kill switch activated")
	e.metrics.SetKillSwitch(true)

	if d, ok := e.confirmer.(interface{ DenyAll() }); ok {
		d.DenyAll()
	}
	e.log.Warn("robot kill switch engaged")
}

// ResetKill disengages the kill switch. The robot permission stays revoked.
func (e *Executor) ResetKill() {
	e.killMu.Lock()
	if e.killed {
		e.killed = false
		e.killCh = make(chan struct{})
	}
	e.killMu.Unlock()

	e.perms.LogAudit("robot.reset: Kill switch reset")
	e.metrics.SetKillSwitch(false)
	e.log.Info("robot kill switch reset")
}

func (e *Executor) killState() (bool, <-chan struct{}) {
	e.killMu.Lock()
	defer e.killMu.Unlock()
	return e.killed, e.killCh
}

// Execute runs one action. The error is nil exactly when the result
// succeeded.
func (e *Executor) Execute(ctx context.Context, raw RawAction, opts Options) (Result, error) {
	if !e.IsAvailable() {
		return e.fail(raw.Type, "unavailable", ErrUnavailable, msgUnavailable)
	}

	if killed, _ := e.killState(); killed {
		e.perms.LogAudit("robot.blocked: " + raw.Type)
		return e.fail(raw.Type, "blocked", ErrKillSwitch, msgKilled)
	}

	action, err := Validate(raw)
	if err != nil {
		return e.fail(raw.Type, "invalid", err, validationText(err))
	}

	if !e.perms.IsGranted(command.KeyRobot) {
		e.perms.LogAudit(fmt.Sprintf("robot.permission_denied: %s — %s", action.Kind, action.Reason))
		return e.fail(raw.Type, "permission_denied", ErrPermissionDenied, msgNotGranted)
	}

	if action.Positional() {
		if err := e.checkBounds(ctx, action); err != nil {
			return e.fail(raw.Type, "out_of_bounds", err, validationText(err))
		}
	}

	if action.NeedsConfirmation() && !opts.SkipConfirm {
		allowed, err := e.confirmer.Confirm(ctx, NewRequest(action))
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			e.log.Warn("confirmation failed", zap.Error(err))
		}
		if !allowed {
			if killed, _ := e.killState(); killed {
				return e.fail(raw.Type, "blocked", ErrKillSwitch, msgKilled)
			}
			e.perms.LogAudit(fmt.Sprintf("robot.denied: %s — %s", action.Kind, action.Reason))
			return e.fail(raw.Type, "denied", ErrUserDenied, msgUserDenied)
		}
	}

	return e.run(action)
}

// run waits out the spacing and synthesises a. Once here the action is
// confirmed: only the kill switch can stop it, and only before synthesis.
func (e *Executor) run(action Action) (Result, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	_, killCh := e.killState()
	if !e.lastAction.IsZero() {
		if d := e.minDelay - time.Since(e.lastAction); d > 0 {
			t := time.NewTimer(d)
			select {
			case <-t.C:
			case <-killCh:
				t.Stop()
				return e.fail(string(action.Kind), "blocked", ErrKilledDuringWait, msgKillDuringDelay)
			}
		}
	}

	if killed, _ := e.killState(); killed {
		return e.fail(string(action.Kind), "blocked", ErrKilledDuringWait, msgKillDuringDelay)
	}

	err := e.synthesize(action)
	e.lastAction = time.Now()
	if err != nil {
		e.perms.LogAudit(fmt.Sprintf("robot.failed: %s — %v", action.Kind, err))
		e.log.Error("robot action failed", zap.String("type", string(action.Kind)), zap.Error(err))
		return e.fail(string(action.Kind), "failed", err, err.Error())
	}

	e.perms.LogAudit(fmt.Sprintf("robot.execute: %s — %s", action.Kind, action.Reason))
	e.metrics.RecordRobotAction(string(action.Kind), "executed")
	e.log.Info("robot action executed",
		zap.String("type", string(action.Kind)),
		zap.String("reason", action.Reason))

	return Result{Success: true, Action: action.Kind, Reason: action.Reason}, nil
}

func (e *Executor) synthesize(a Action) error {
	switch a.Kind {
	case KindClick:
		if err := e.driver.MoveMouse(a.X, a.Y); err != nil {
			return err
		}
		time.Sleep(clickSettle)
		return e.driver.Click(a.Button, a.Double)
	case KindType:
		return e.driver.TypeString(a.Text)
	case KindKey:
		return e.driver.KeyTap(a.Key, a.Modifiers)
	case KindScroll:
		if err := e.driver.MoveMouse(a.X, a.Y); err != nil {
			return err
		}
		return e.driver.Scroll(a.Direction, a.Amount)
	}
	return fmt.Errorf("%w: Invalid action type: %s", ErrInvalidAction, a.Kind)
}

func (e *Executor) checkBounds(ctx context.Context, a Action) error {
	displays, err := e.driver.Displays(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	for _, d := range displays {
		if d.Bounds.Contains(a.X, a.Y) {
			return nil
		}
	}
	return fmt.Errorf("%w: Coordinates (%d, %d) are outside all display bounds", ErrOutOfBounds, a.X, a.Y)
}

// ExecuteSequence runs actions in order and returns one result per action.
// Once the kill switch is seen, the current and remaining actions are marked
// aborted. Without ContinueOnError the first failure marks the rest skipped.
func (e *Executor) ExecuteSequence(ctx context.Context, raws []RawAction, opts SequenceOptions) []Result {
	results := make([]Result, 0, len(raws))
	stopped := false

	for _, raw := range raws {
		kind := Kind(raw.Type)
		if killed, _ := e.killState(); killed {
			results = append(results, Result{Action: kind, Error: msgAborted, Aborted: true})
			continue
		}
		if stopped {
			results = append(results, Result{Action: kind, Error: msgSkipped, Skipped: true})
			continue
		}

		res, err := e.Execute(ctx, raw, Options{SkipConfirm: opts.SkipConfirm})
		if errors.Is(err, ErrKillSwitch) {
			res.Aborted = true
		}
		results = append(results, res)
		if err != nil && !opts.ContinueOnError {
			stopped = true
		}
	}
	return results
}

func (e *Executor) fail(kind, outcome string, err error, msg string) (Result, error) {
	e.metrics.RecordRobotAction(kind, outcome)
	return Result{Success: false, Action: Kind(kind), Error: msg}, err
}

// validationText strips the sentinel prefix from wrapped validation errors.
func validationText(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{ErrInvalidAction, ErrOutOfBounds} {
		if rest, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
			return rest
		}
	}
	return msg
}
