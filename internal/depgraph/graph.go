package depgraph

// DependencyGraph maps a module name to the set of its direct dependency
// names. External dependencies appear as edge targets only, never as keys.
type DependencyGraph map[string]map[string]struct{}

// BuildDependencyGraph flattens a resolved module tree into a DependencyGraph.
// The root's examples contribute additional roots; examples of transitive
// dependencies are not expanded.
func BuildDependencyGraph(rootModule *ManagedModule) DependencyGraph {
	graph := make(DependencyGraph)
	visitedModules := make(map[string]bool)
	addModuleToGraph(graph, visitedModules, rootModule, true)
	return graph
}

func addModuleToGraph(graph DependencyGraph, visitedModules map[string]bool, module *ManagedModule, includeExamples bool) {
	if visitedModules[module.Name] {
		return
	}
	visitedModules[module.Name] = true

	dependencyNames := make(map[string]struct{}, len(module.Dependencies))
	for _, dependency := range module.Dependencies {
		dependencyNames[dependency.Name()] = struct{}{}
	}
	graph[module.Name] = dependencyNames

	if includeExamples {
		for _, exampleModule := range module.Examples {
			addModuleToGraph(graph, visitedModules, exampleModule, false)
		}
	}
	for _, dependency := range module.Dependencies {
		if dependency.Kind == DependencyKindManaged {
			addModuleToGraph(graph, visitedModules, dependency.Managed, false)
		}
	}
}
