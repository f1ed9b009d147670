// Package desktop abstracts the host's display enumeration, screen capture
// and input synthesis. The robotgo driver is compiled in with -tags robotgo;
// other builds get Unavailable, and the executor reports itself unavailable.
package desktop
