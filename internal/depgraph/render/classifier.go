package render

import "strings"

const (
	defaultDeprecatedMarkerConstant   = "depr"
	moduleNameSeparatorConstant       = "/"
	exampleNameSeparatorCountConstant = 2
)

// NodeStatus is the heuristic classification of one graph node.
type NodeStatus string

// Node status enumerations.
const (
	NodeStatusDeprecated NodeStatus = "deprecated"
	NodeStatusMigrated   NodeStatus = "migrated"
	NodeStatusExample    NodeStatus = "example"
	NodeStatusOther      NodeStatus = "other"
)

// Classifier assigns a status to node names using name heuristics. Deprecated
// detection wins over migrated membership, which wins over the example shape.
type Classifier struct {
	deprecatedMarker string
	migratedNames    map[string]bool
}

// NewClassifier builds a classifier. An empty marker falls back to the
// default deprecated marker.
func NewClassifier(deprecatedMarker string, migratedNames []string) *Classifier {
	if len(deprecatedMarker) == 0 {
		deprecatedMarker = defaultDeprecatedMarkerConstant
	}
	migratedNameSet := make(map[string]bool, len(migratedNames))
	for _, migratedName := range migratedNames {
		migratedNameSet[migratedName] = true
	}
	return &Classifier{deprecatedMarker: deprecatedMarker, migratedNames: migratedNameSet}
}

// Classify returns the status for a node name.
func (classifier *Classifier) Classify(nodeName string) NodeStatus {
	if strings.Contains(nodeName, classifier.deprecatedMarker) {
		return NodeStatusDeprecated
	}
	if classifier.migratedNames[nodeName] {
		return NodeStatusMigrated
	}
	if strings.Count(nodeName, moduleNameSeparatorConstant) == exampleNameSeparatorCountConstant {
		return NodeStatusExample
	}
	return NodeStatusOther
}
