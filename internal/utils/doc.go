// Package utils hosts shared infrastructure for the command-line application:
// the zap logger factory, the viper-backed configuration loader, and the
// accessor for values carried through command execution contexts.
package utils
