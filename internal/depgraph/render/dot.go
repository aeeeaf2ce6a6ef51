package render

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/goccy/go-graphviz"

	"github.com/chris11-taylor-nttd/org-migration-script/internal/depgraph"
)

const (
	deprecatedFillColorConstant = "red"
	migratedFillColorConstant   = "darkolivegreen2"
	exampleFillColorConstant    = "darkolivegreen1"
	defaultFillColorConstant    = "white"
)

// ToDOT converts a dependency graph to Graphviz DOT, coloring each node by
// its classified status. Edges point from dependency to dependent, so arrows
// read as "is consumed by". Output is deterministic for a fixed input graph.
func ToDOT(graph depgraph.DependencyGraph, classifier *Classifier) string {
	nodeNames := make(map[string]bool, len(graph))
	for moduleName, dependencyNames := range graph {
		nodeNames[moduleName] = true
		for dependencyName := range dependencyNames {
			nodeNames[dependencyName] = true
		}
	}

	var buf bytes.Buffer
	buf.WriteString("digraph modules {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white];\n")
	buf.WriteString("\n")

	for _, nodeName := range slices.Sorted(maps.Keys(nodeNames)) {
		fmt.Fprintf(&buf, "  %q [fillcolor=%s];\n", nodeName, fillColorForStatus(classifier.Classify(nodeName)))
	}

	buf.WriteString("\n")
	for _, moduleName := range slices.Sorted(maps.Keys(graph)) {
		for _, dependencyName := range slices.Sorted(maps.Keys(graph[moduleName])) {
			fmt.Fprintf(&buf, "  %q -> %q;\n", dependencyName, moduleName)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fillColorForStatus(status NodeStatus) string {
	switch status {
	case NodeStatusDeprecated:
		return deprecatedFillColorConstant
	case NodeStatusMigrated:
		return migratedFillColorConstant
	case NodeStatusExample:
		return exampleFillColorConstant
	default:
		return defaultFillColorConstant
	}
}

// RenderSVG renders a DOT graph to SVG bytes.
func RenderSVG(executionContext context.Context, dot string) ([]byte, error) {
	return renderWithFormat(executionContext, dot, graphviz.SVG)
}

// RenderPNG renders a DOT graph to PNG bytes.
func RenderPNG(executionContext context.Context, dot string) ([]byte, error) {
	return renderWithFormat(executionContext, dot, graphviz.PNG)
}

func renderWithFormat(executionContext context.Context, dot string, format graphviz.Format) ([]byte, error) {
	graphvizInstance, initializationError := graphviz.New(executionContext)
	if initializationError != nil {
		return nil, fmt.Errorf("init graphviz: %w", initializationError)
	}
	defer graphvizInstance.Close()

	parsedGraph, parseError := graphviz.ParseBytes([]byte(dot))
	if parseError != nil {
		return nil, fmt.Errorf("parse DOT: %w", parseError)
	}
	defer parsedGraph.Close()

	var buf bytes.Buffer
	if renderError := graphvizInstance.Render(executionContext, parsedGraph, format, &buf); renderError != nil {
		return nil, fmt.Errorf("render: %w", renderError)
	}
	return buf.Bytes(), nil
}
