package robot

import (
	"context"
	"errors"
	"html"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/GriffinCanCode/CometPilot/backend/internal/shared/id"
)

// ErrUnknownConfirmation is returned when answering a request that is not
// pending.
var ErrUnknownConfirmation = errors.New("no pending confirmation with that id")

// Request is a pending yes/no decision shown to the operator.
type Request struct {
	ID        id.ConfirmationID `json:"id"`
	Action    Action            `json:"action"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Reason    string            `json:"reason"`
	CreatedAt time.Time         `json:"created_at"`
}

// Detail is the two-part prompt body.
func (r Request) Detail() string {
	return r.Message + "\n\nReason: " + r.Reason
}

// Confirmer obtains an allow/deny decision. It may block indefinitely; the
// only way out besides an answer is ctx.
type Confirmer interface {
	Confirm(ctx context.Context, req Request) (bool, error)
}

var plain = bluemonday.StrictPolicy()

// plainText strips markup that a model may have put into a reason or text
// before it is displayed in the shell.
func plainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(plain.Sanitize(s)))
}

// NewRequest builds the prompt for a.
func NewRequest(a Action) Request {
	return Request{
		ID:        id.NewConfirmationID(),
		Action:    a,
		Title:     "AI wants to perform a desktop action:",
		Message:   plainText(Describe(a)),
		Reason:    plainText(a.Reason),
		CreatedAt: time.Now(),
	}
}

// Static answers every request the same way.
type Static bool

func (s Static) Confirm(ctx context.Context, _ Request) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return bool(s), nil
}

// Queue holds requests until they are answered by id, typically from the
// HTTP API or the bridge.
type Queue struct {
	mu        sync.Mutex
	pending   map[id.ConfirmationID]*pendingRequest
	listeners []func(Request)
}

type pendingRequest struct {
	req    Request
	answer chan bool
}

// NewQueue creates an empty confirmation queue.
func NewQueue() *Queue {
	return &Queue{pending: make(map[id.ConfirmationID]*pendingRequest)}
}

// OnRequest registers fn to be called for every new request.
func (q *Queue) OnRequest(fn func(Request)) {
	q.mu.Lock()
	q.listeners = append(q.listeners, fn)
	q.mu.Unlock()
}

// Confirm parks req until Answer or ctx cancellation.
func (q *Queue) Confirm(ctx context.Context, req Request) (bool, error) {
	p := &pendingRequest{req: req, answer: make(chan bool, 1)}

	q.mu.Lock()
	q.pending[req.ID] = p
	listeners := append([]func(Request){}, q.listeners...)
	q.mu.Unlock()

	for _, fn := range listeners {
		fn(req)
	}

	select {
	case allow := <-p.answer:
		return allow, nil
	case <-ctx.Done():
		q.mu.Lock()
		delete(q.pending, req.ID)
		q.mu.Unlock()
		return false, ctx.Err()
	}
}

// Answer resolves a pending request.
func (q *Queue) Answer(reqID id.ConfirmationID, allow bool) error {
	q.mu.Lock()
	p, ok := q.pending[reqID]
	if ok {
		delete(q.pending, reqID)
	}
	q.mu.Unlock()

	if !ok {
		return ErrUnknownConfirmation
	}
	p.answer <- allow
	return nil
}

// DenyAll denies every pending request.
func (q *Queue) DenyAll() {
	q.mu.Lock()
	pending := q.pending
	q.pending = make(map[id.ConfirmationID]*pendingRequest)
	q.mu.Unlock()

	for _, p := range pending {
		p.answer <- false
	}
}

// Pending lists open requests, oldest first.
func (q *Queue) Pending() []Request {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Request, 0, len(q.pending))
	for _, p := range q.pending {
		out = append(out, p.req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
