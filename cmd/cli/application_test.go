package cli_test

import (
	"bytes"
	"testing"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/chris11-taylor-nttd/org-migration-script/cmd/cli"
	depgraphcmd "github.com/chris11-taylor-nttd/org-migration-script/cmd/cli/depgraph"
	"github.com/chris11-taylor-nttd/org-migration-script/internal/permissions"
	"github.com/chris11-taylor-nttd/org-migration-script/internal/workflows"
)

const (
	depgraphSectionKeyConstant    = "tools.depgraph"
	workflowsSectionKeyConstant   = "tools.workflows"
	permissionsSectionKeyConstant = "tools.permissions"
)

func TestEmbeddedDefaultConfigurationDecodesIntoToolConfigurations(testInstance *testing.T) {
	configurationContent, configurationType := cli.EmbeddedDefaultConfiguration()
	require.NotEmpty(testInstance, configurationContent)

	viperInstance := viper.New()
	viperInstance.SetConfigType(configurationType)
	require.NoError(testInstance, viperInstance.ReadConfig(bytes.NewReader(configurationContent)))

	var depgraphConfiguration depgraphcmd.CommandConfiguration
	decodeConfigurationSection(testInstance, viperInstance, depgraphSectionKeyConstant, &depgraphConfiguration)
	require.Equal(testInstance, depgraphcmd.DefaultCommandConfiguration().RepositoryPrefix, depgraphConfiguration.RepositoryPrefix)
	require.Equal(testInstance, depgraphcmd.DefaultCommandConfiguration().WorkingDirectory, depgraphConfiguration.WorkingDirectory)
	require.Equal(testInstance, depgraphcmd.DefaultCommandConfiguration().DiagramDirectory, depgraphConfiguration.DiagramDirectory)
	require.Equal(testInstance, depgraphcmd.DefaultCommandConfiguration().DeprecatedMarker, depgraphConfiguration.DeprecatedMarker)
	require.True(testInstance, depgraphConfiguration.KeepGoing)

	var workflowsConfiguration workflows.CommandConfiguration
	decodeConfigurationSection(testInstance, viperInstance, workflowsSectionKeyConstant, &workflowsConfiguration)
	require.Equal(testInstance, workflows.DefaultCommandConfiguration().TemplatesDirectory, workflowsConfiguration.TemplatesDirectory)
	require.Equal(testInstance, workflows.DefaultCommandConfiguration().CommitMessage, workflowsConfiguration.CommitMessage)

	var permissionsConfiguration permissions.CommandConfiguration
	decodeConfigurationSection(testInstance, viperInstance, permissionsSectionKeyConstant, &permissionsConfiguration)
	require.Len(testInstance, permissionsConfiguration.Assignments, 3)
	require.Equal(testInstance, "platform-team", permissionsConfiguration.Assignments[0].Team)
	require.Equal(testInstance, "maintain", permissionsConfiguration.Assignments[0].Permission)
	require.Equal(testInstance, "tf-", permissionsConfiguration.Assignments[2].RepositoryPrefix)
}

func decodeConfigurationSection(testInstance *testing.T, viperInstance *viper.Viper, sectionKey string, target any) {
	decoder, decoderCreationError := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  target,
		TagName: "mapstructure",
	})
	require.NoError(testInstance, decoderCreationError)
	require.NoError(testInstance, decoder.Decode(viperInstance.GetStringMap(sectionKey)))
}
