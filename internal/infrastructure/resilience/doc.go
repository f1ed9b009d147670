/*
Package resilience provides a circuit breaker for model provider calls.

# Overview

Model calls are made exactly once. When a provider keeps failing, the
breaker opens and further calls fail immediately with ErrCircuitOpen instead
of waiting on a dead endpoint. After Timeout one trial call is admitted.

# Usage

	breaker := resilience.New("groq", resilience.Settings{
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
	})

	text, err := resilience.Do(ctx, breaker, func(ctx context.Context) (string, error) {
		return provider.Chat(ctx, req)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[success]-> Closed
	                                            |
	                                        [failure]
	                                            v
	                                          Open
*/
package resilience
