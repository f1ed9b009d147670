// Package aitest provides a scripted chat engine for tests.
package aitest

import (
	"context"
	"sync"

	"github.com/GriffinCanCode/CometPilot/backend/internal/ai"
)

// Fake returns Reply (or Err) and records every request.
type Fake struct {
	mu sync.Mutex

	Reply string
	Err   error
	// Respond overrides Reply and Err when set.
	Respond func(req ai.Request) (string, error)

	requests []ai.Request
}

func (f *Fake) Chat(_ context.Context, req ai.Request) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	respond := f.Respond
	reply, err := f.Reply, f.Err
	f.mu.Unlock()

	if respond != nil {
		return respond(req)
	}
	return reply, err
}

// Requests returns the recorded requests.
func (f *Fake) Requests() []ai.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ai.Request, len(f.requests))
	copy(out, f.requests)
	return out
}

var _ ai.ChatEngine = (*Fake)(nil)
