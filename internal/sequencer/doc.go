// Package sequencer runs parsed commands one after another.
//
// Each command is validated, checked against the permission it needs and
// handed to a Handler. A failure stops the queue unless ContinueOnError is
// set. Cancellation is only observed between commands.
package sequencer
