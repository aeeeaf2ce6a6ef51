package depgraph

// DependencyKind tags the two dependency variants.
type DependencyKind string

// Dependency kind enumerations.
const (
	DependencyKindManaged  DependencyKind = "managed"
	DependencyKindExternal DependencyKind = "external"
)

// ExternalModule is a dependency the resolver does not manage. The raw
// declared source string serves as both identity and display label.
type ExternalModule struct {
	Name string
}

// ManagedModule is a fully resolved, version controlled module. Records are
// never mutated after construction and are shared through the resolution
// cache, so repeated references to the same repository reuse one record.
type ManagedModule struct {
	Name         string
	SourceURL    string
	LocalPath    string
	Revision     string
	Tags         []string
	Examples     []*ManagedModule
	Dependencies []Dependency
}

// Dependency is a tagged variant holding either a managed or an external
// module. Consumers switch on Kind rather than probing the pointers.
type Dependency struct {
	Kind     DependencyKind
	Managed  *ManagedModule
	External *ExternalModule
}

// Name returns the display identity of the dependency regardless of variant.
func (dependency Dependency) Name() string {
	switch dependency.Kind {
	case DependencyKindManaged:
		return dependency.Managed.Name
	case DependencyKindExternal:
		return dependency.External.Name
	default:
		return ""
	}
}
