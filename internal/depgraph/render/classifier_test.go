package render_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chris11-taylor-nttd/org-migration-script/internal/depgraph/render"
)

func TestClassifierClassify(testInstance *testing.T) {
	classifier := render.NewClassifier("depr", []string{"repoB"})

	testCases := []struct {
		name           string
		nodeName       string
		expectedStatus render.NodeStatus
	}{
		{name: "deprecated_marker_in_name", nodeName: "repoA-deprecated", expectedStatus: render.NodeStatusDeprecated},
		{name: "migrated_membership", nodeName: "repoB", expectedStatus: render.NodeStatusMigrated},
		{name: "example_shape", nodeName: "repoA/examples/basic", expectedStatus: render.NodeStatusExample},
		{name: "plain_module", nodeName: "repoC", expectedStatus: render.NodeStatusOther},
		{name: "deprecated_wins_over_example_shape", nodeName: "depr-module/examples/basic", expectedStatus: render.NodeStatusDeprecated},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expectedStatus, classifier.Classify(testCase.nodeName))
		})
	}
}
