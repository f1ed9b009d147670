// Package config provides 12-factor configuration for the automation backend.
//
// Values are layered: built-in defaults, then an optional YAML or TOML file
// named by COMET_CONFIG, then environment variables.
//
// Configuration Sections:
//   - Server: HTTP listen address
//   - Logging: level and output format
//   - RateLimit: API request limiting
//   - Storage: directory for the permission file and audit log
//   - Robot: input synthesis toggle, minimum action spacing, confirmation mode
//   - OCR: recognition language, confidence floor, preprocessing geometry
//   - AI: model names and provider keys
//   - Bridge: companion WebSocket bridge
//   - Shell: SHELL_COMMAND runner
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("listening on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
package config
