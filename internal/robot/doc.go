// Package robot executes desktop input on behalf of the assistant.
//
// Every action passes the same gates in order: availability, the kill
// switch, structural validation, the "robot" permission, display bounds for
// positional actions and operator confirmation for click, type and key.
// Synthesis is spaced by a minimum delay and every outcome is written to the
// audit trail.
package robot
