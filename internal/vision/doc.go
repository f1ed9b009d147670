// Package vision connects screen OCR to clicks and descriptions.
//
// Resolver finds a described element among the recognised words and clicks
// its centre through the robot executor. Describer summarises the screen
// for the assistant.
package vision
