/*
Package command extracts and validates tagged commands from model output.

Model replies carry instructions as bracket tags:

	Opening the docs now. [NAVIGATE: https://go.dev/doc] then [WAIT: 500]

Parse finds every tag from the closed vocabulary, case-insensitively and in
order, and returns the prose with the tags removed. Validate applies the
per-type value rules. Both are pure and safe for concurrent use.

	prepared := command.Prepare(reply)
	for _, bad := range prepared.Invalid {
		log.Warn("rejected command", zap.String("error", bad.Error))
	}
*/
package command
