// Package main is the entry point for the CometPilot backend.
//
// The server exposes the desktop assistant over a loopback HTTP API and a
// WebSocket bridge for the browser shell:
//
//	Browser shell ⇄ /bridge (WebSocket) ⇄ command queue → dispatcher
//	                                                    → robot / OCR / model providers
//
// Configuration:
//   - Defaults
//   - Optional YAML or TOML file (-config or COMET_CONFIG)
//   - Environment variables
//   - CLI flags (override everything)
//
// Usage:
//
//	# Production mode
//	./server -port 8000
//
//	# Development mode (colored logs, debug level), confirm robot actions on stdin
//	./server -dev -confirm terminal
//
//	# Print a pairing code for the browser shell
//	./server -pair
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
