// Package provision creates organization repositories with the house merge
// policy applied.
package provision
