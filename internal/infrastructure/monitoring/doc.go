/*
Package monitoring provides Prometheus metrics for the automation backend.

# Overview

Collectors cover the HTTP API, the command sequencer, the robot executor,
OCR passes and click resolution, permission gate decisions, model calls and
bridge connections. They are registered on a private registry owned by the
Metrics value.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics)
	// ... capture and recognize ...
	timer.StopOCR(len(words))

A nil *Metrics is valid and records nothing.
*/
package monitoring
