// Package dispatch turns validated commands into work.
//
// Desktop commands go to the OCR engine, the click resolver and the robot
// executor. Host commands run through SystemControl or the pty shell
// runner. Everything that acts on the browser surface is forwarded to the
// connected shells.
package dispatch
