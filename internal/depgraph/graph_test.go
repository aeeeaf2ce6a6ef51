package depgraph_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chris11-taylor-nttd/org-migration-script/internal/depgraph"
)

func TestBuildDependencyGraphFlattensModuleTree(testInstance *testing.T) {
	moduleC := &depgraph.ManagedModule{Name: "C"}
	moduleB := &depgraph.ManagedModule{
		Name: "B",
		Dependencies: []depgraph.Dependency{
			{Kind: depgraph.DependencyKindManaged, Managed: moduleC},
		},
	}
	moduleA := &depgraph.ManagedModule{
		Name: "A",
		Dependencies: []depgraph.Dependency{
			{Kind: depgraph.DependencyKindManaged, Managed: moduleB},
			{Kind: depgraph.DependencyKindExternal, External: &depgraph.ExternalModule{Name: "E"}},
		},
	}

	graph := depgraph.BuildDependencyGraph(moduleA)

	require.Equal(testInstance, depgraph.DependencyGraph{
		"A": {"B": {}, "E": {}},
		"B": {"C": {}},
		"C": {},
	}, graph)
}

func TestBuildDependencyGraphIncludesExamplesAsAdditionalRoots(testInstance *testing.T) {
	moduleB := &depgraph.ManagedModule{Name: "B"}
	exampleModule := &depgraph.ManagedModule{
		Name: "A/examples/basic",
		Dependencies: []depgraph.Dependency{
			{Kind: depgraph.DependencyKindManaged, Managed: moduleB},
		},
	}
	moduleA := &depgraph.ManagedModule{
		Name:     "A",
		Examples: []*depgraph.ManagedModule{exampleModule},
		Dependencies: []depgraph.Dependency{
			{Kind: depgraph.DependencyKindManaged, Managed: moduleB},
		},
	}

	graph := depgraph.BuildDependencyGraph(moduleA)

	require.Equal(testInstance, depgraph.DependencyGraph{
		"A":                {"B": {}},
		"A/examples/basic": {"B": {}},
		"B":                {},
	}, graph)
}

func TestBuildDependencyGraphDoesNotExpandDependencyExamples(testInstance *testing.T) {
	dependencyExample := &depgraph.ManagedModule{Name: "B/examples/basic"}
	moduleB := &depgraph.ManagedModule{
		Name:     "B",
		Examples: []*depgraph.ManagedModule{dependencyExample},
	}
	moduleA := &depgraph.ManagedModule{
		Name: "A",
		Dependencies: []depgraph.Dependency{
			{Kind: depgraph.DependencyKindManaged, Managed: moduleB},
		},
	}

	graph := depgraph.BuildDependencyGraph(moduleA)

	require.NotContains(testInstance, graph, "B/examples/basic")
	require.Contains(testInstance, graph, "B")
}
