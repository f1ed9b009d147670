// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for log shipping
//   - Development: colored console output
//
// Every automation service receives a *zap.Logger through its constructor,
// obtained from Logger.Component so entries carry "service" and "component".
// Audit entries are mirrored to the log under the "audit" message so an
// operator tailing stdout sees the same trail that is written to disk.
//
// Example Usage:
//
//	logger, _ := logging.New(logging.Config{Level: "info", Service: "comet-pilot"})
//	ocrLog := logger.Component("ocr")
//	ocrLog.Error("capture failed", zap.Error(err))
package logging
