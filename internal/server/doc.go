// Package server assembles the backend.
//
// NewServer wires configuration, logging, metrics, the permission store, the
// desktop driver, the OCR engine, the robot executor, the model providers,
// the command queue, the HTTP API and the companion bridge into one
// gin router. Run serves it; Shutdown stops it.
package server
