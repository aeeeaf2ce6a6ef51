// Package render classifies dependency graph nodes by migration status and
// renders the graph to Graphviz DOT, SVG, and PNG.
package render
