// Package execshell provides structured helpers for invoking external tools.
//
// It wraps os/exec with lifecycle logging via ShellExecutor, exposes
// OSCommandRunner for default process execution, and defines the abstractions
// used throughout the application to run git and gh in a testable manner.
package execshell
