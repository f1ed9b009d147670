/*
Package tracing tags each API request with a trace id and logs a span for it.

Trace ids travel in the X-Trace-ID header: a caller's id is reused, otherwise
a new one is minted. The span for the request is written to the log by a
background collector so handlers never wait on logging.

	tracer := tracing.New("api", logger)
	defer tracer.Close()
	router.Use(tracing.HTTPMiddleware(tracer))

Handlers read the id back with GetTraceID(c.Request.Context()).
*/
package tracing
