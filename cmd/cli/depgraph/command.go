package depgraph

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	resolver "github.com/chris11-taylor-nttd/org-migration-script/internal/depgraph"
	"github.com/chris11-taylor-nttd/org-migration-script/internal/depgraph/render"
	"github.com/chris11-taylor-nttd/org-migration-script/internal/execshell"
	"github.com/chris11-taylor-nttd/org-migration-script/internal/githubcli"
	"github.com/chris11-taylor-nttd/org-migration-script/internal/gitrepo"
)

const (
	commandUseConstant                       = "depgraph"
	commandShortDescriptionConstant          = "Render Terraform module dependency diagrams"
	commandLongDescriptionConstant           = "depgraph resolves the transitive module dependencies of each matching repository and renders one dependency diagram per repository, coloring nodes by migration status."
	organizationFlagNameConstant             = "org"
	organizationFlagUsageConstant            = "GitHub organization owning the module repositories"
	repositoryFlagNameConstant               = "repo"
	repositoryFlagUsageConstant              = "Resolve a single repository instead of the whole organization"
	prefixFlagNameConstant                   = "prefix"
	prefixFlagUsageConstant                  = "Only resolve repositories whose name carries this prefix"
	renderDirectoryFlagNameConstant          = "render-dir"
	renderDirectoryFlagUsageConstant         = "Directory receiving the rendered diagrams"
	keepGoingFlagNameConstant                = "keep-going"
	keepGoingFlagUsageConstant               = "Continue across repositories and dependency edges when one fails to resolve"
	organizationMissingMessageConstant       = "organization not configured"
	repositoryManagerCreationErrorTemplate   = "unable to construct repository manager: %w"
	githubClientCreationErrorTemplate        = "unable to construct GitHub client: %w"
	resolverCreationErrorTemplateConstant    = "unable to construct dependency resolver: %w"
	repositoryListErrorTemplateConstant      = "unable to list organization repositories: %w"
	resolutionFailureMessageTemplateConstant = "dependency resolution failed for %s: %w"
	renderingFailureMessageTemplateConstant  = "diagram rendering failed for %s: %w"
	diagramFileNameTemplateConstant          = "tf-dag-%s.png"
	diagramFilePermissionsConstant           = 0o644
	diagramDirectoryPermissionsConstant      = 0o755
	repositoryLogFieldConstant               = "repository"
	diagramPathLogFieldConstant              = "diagram"
	nodeCountLogFieldConstant                = "nodes"
	edgeCountLogFieldConstant                = "edges"
	diagramRenderedMessageConstant           = "Dependency diagram rendered"
	emptyGraphSkippedMessageConstant         = "Dependency graph has no edges, skipping diagram"
	resolutionFailedMessageConstant          = "Dependency resolution failed"
	defaultRepositoryPrefixConstant          = "tf-"
	defaultWorkingDirectoryConstant          = "work"
	defaultDiagramDirectoryConstant          = "dependency_diagrams"
	defaultDeprecatedMarkerConstant          = "depr"
	repositoryPrefixConfigurationKeySuffix   = ".repository_prefix"
	workingDirectoryConfigurationKeySuffix   = ".working_directory"
	diagramDirectoryConfigurationKeySuffix   = ".diagram_directory"
	deprecatedMarkerConfigurationKeySuffix   = ".deprecated_marker"
	keepGoingConfigurationKeySuffix          = ".keep_going"
)

// ErrOrganizationNotConfigured indicates no organization was supplied.
var ErrOrganizationNotConfigured = errors.New(organizationMissingMessageConstant)

// CommandConfiguration captures the configurable depgraph settings.
type CommandConfiguration struct {
	Organization         string   `mapstructure:"organization"`
	RepositoryPrefix     string   `mapstructure:"repository_prefix"`
	WorkingDirectory     string   `mapstructure:"working_directory"`
	DiagramDirectory     string   `mapstructure:"diagram_directory"`
	DeprecatedMarker     string   `mapstructure:"deprecated_marker"`
	MigratedRepositories []string `mapstructure:"migrated_repositories"`
	KeepGoing            bool     `mapstructure:"keep_going"`
}

// DefaultCommandConfiguration returns the depgraph defaults.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		RepositoryPrefix: defaultRepositoryPrefixConstant,
		WorkingDirectory: defaultWorkingDirectoryConstant,
		DiagramDirectory: defaultDiagramDirectoryConstant,
		DeprecatedMarker: defaultDeprecatedMarkerConstant,
		KeepGoing:        true,
	}
}

// Sanitize trims whitespace from configured values.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	configuration.Organization = strings.TrimSpace(configuration.Organization)
	configuration.RepositoryPrefix = strings.TrimSpace(configuration.RepositoryPrefix)
	configuration.WorkingDirectory = strings.TrimSpace(configuration.WorkingDirectory)
	configuration.DiagramDirectory = strings.TrimSpace(configuration.DiagramDirectory)
	configuration.DeprecatedMarker = strings.TrimSpace(configuration.DeprecatedMarker)
	return configuration
}

// DefaultConfigurationValues exposes viper defaults under the provided key prefix.
func DefaultConfigurationValues(configurationKeyPrefix string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		configurationKeyPrefix + repositoryPrefixConfigurationKeySuffix: defaults.RepositoryPrefix,
		configurationKeyPrefix + workingDirectoryConfigurationKeySuffix: defaults.WorkingDirectory,
		configurationKeyPrefix + diagramDirectoryConfigurationKeySuffix: defaults.DiagramDirectory,
		configurationKeyPrefix + deprecatedMarkerConfigurationKeySuffix: defaults.DeprecatedMarker,
		configurationKeyPrefix + keepGoingConfigurationKeySuffix:        defaults.KeepGoing,
	}
}

// CommandExecutor runs git and gh commands for the resolver's collaborators.
type CommandExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
	ExecuteGitHubCLI(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// DiagramRenderer converts DOT text to image bytes.
type DiagramRenderer func(executionContext context.Context, dot string) ([]byte, error)

type commandOptions struct {
	configuration    CommandConfiguration
	singleRepository string
}

// CommandBuilder assembles the depgraph Cobra command.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	Executor                     CommandExecutor
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() CommandConfiguration
	DiagramRenderer              DiagramRenderer
}

// Build constructs the depgraph command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:           commandUseConstant,
		Short:         commandShortDescriptionConstant,
		Long:          commandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE:          builder.runDepgraph,
	}

	command.Flags().String(organizationFlagNameConstant, "", organizationFlagUsageConstant)
	command.Flags().String(repositoryFlagNameConstant, "", repositoryFlagUsageConstant)
	command.Flags().String(prefixFlagNameConstant, "", prefixFlagUsageConstant)
	command.Flags().String(renderDirectoryFlagNameConstant, "", renderDirectoryFlagUsageConstant)
	command.Flags().Bool(keepGoingFlagNameConstant, true, keepGoingFlagUsageConstant)

	return command, nil
}

func (builder *CommandBuilder) runDepgraph(command *cobra.Command, _ []string) error {
	options := builder.parseOptions(command)
	if len(options.configuration.Organization) == 0 {
		return ErrOrganizationNotConfigured
	}

	logger := builder.resolveLogger()

	executor, executorError := builder.resolveExecutor(logger)
	if executorError != nil {
		return executorError
	}

	repositoryManager, managerError := gitrepo.NewRepositoryManager(executor)
	if managerError != nil {
		return fmt.Errorf(repositoryManagerCreationErrorTemplate, managerError)
	}

	githubClient, githubClientError := githubcli.NewClient(executor)
	if githubClientError != nil {
		return fmt.Errorf(githubClientCreationErrorTemplate, githubClientError)
	}

	failurePolicy := resolver.FailurePolicyFailFast
	if options.configuration.KeepGoing {
		failurePolicy = resolver.FailurePolicyContinue
	}

	dependencyResolver, resolverError := resolver.NewResolver(
		resolver.ResolverDependencies{
			Logger:           logger,
			MetadataResolver: githubClient,
			WorkingCopies:    repositoryManager,
		},
		resolver.ResolverConfiguration{
			WorkingRoot:   options.configuration.WorkingDirectory,
			FailurePolicy: failurePolicy,
		},
	)
	if resolverError != nil {
		return fmt.Errorf(resolverCreationErrorTemplateConstant, resolverError)
	}

	repositoryNames, repositoryNamesError := builder.resolveTargetRepositories(command.Context(), githubClient, options)
	if repositoryNamesError != nil {
		return repositoryNamesError
	}

	classifier := render.NewClassifier(options.configuration.DeprecatedMarker, options.configuration.MigratedRepositories)
	if makeError := os.MkdirAll(options.configuration.DiagramDirectory, diagramDirectoryPermissionsConstant); makeError != nil {
		return makeError
	}

	var renderingErrors []error
	for _, repositoryName := range repositoryNames {
		renderingError := builder.renderRepositoryDiagram(command.Context(), logger, dependencyResolver, classifier, options.configuration, repositoryName)
		if renderingError == nil {
			continue
		}
		if !options.configuration.KeepGoing {
			return renderingError
		}
		logger.Warn(resolutionFailedMessageConstant,
			zap.String(repositoryLogFieldConstant, repositoryName),
			zap.Error(renderingError),
		)
		renderingErrors = append(renderingErrors, renderingError)
	}

	return errors.Join(renderingErrors...)
}

func (builder *CommandBuilder) renderRepositoryDiagram(executionContext context.Context, logger *zap.Logger, dependencyResolver *resolver.Resolver, classifier *render.Classifier, configuration CommandConfiguration, repositoryName string) error {
	resolvedModule, resolutionError := dependencyResolver.ResolveRepository(executionContext, configuration.Organization, repositoryName, "")
	if resolutionError != nil {
		return fmt.Errorf(resolutionFailureMessageTemplateConstant, repositoryName, resolutionError)
	}

	graph := resolver.BuildDependencyGraph(resolvedModule)
	edgeCount := 0
	for _, dependencyNames := range graph {
		edgeCount += len(dependencyNames)
	}
	if edgeCount == 0 {
		logger.Info(emptyGraphSkippedMessageConstant,
			zap.String(repositoryLogFieldConstant, repositoryName),
		)
		return nil
	}

	diagramBytes, renderError := builder.resolveDiagramRenderer()(executionContext, render.ToDOT(graph, classifier))
	if renderError != nil {
		return fmt.Errorf(renderingFailureMessageTemplateConstant, repositoryName, renderError)
	}

	diagramPath := filepath.Join(configuration.DiagramDirectory, fmt.Sprintf(diagramFileNameTemplateConstant, repositoryName))
	if writeError := os.WriteFile(diagramPath, diagramBytes, diagramFilePermissionsConstant); writeError != nil {
		return fmt.Errorf(renderingFailureMessageTemplateConstant, repositoryName, writeError)
	}

	logger.Info(diagramRenderedMessageConstant,
		zap.String(repositoryLogFieldConstant, repositoryName),
		zap.String(diagramPathLogFieldConstant, diagramPath),
		zap.Int(nodeCountLogFieldConstant, len(graph)),
		zap.Int(edgeCountLogFieldConstant, edgeCount),
	)
	return nil
}

func (builder *CommandBuilder) resolveTargetRepositories(executionContext context.Context, githubClient *githubcli.Client, options commandOptions) ([]string, error) {
	if len(options.singleRepository) > 0 {
		return []string{options.singleRepository}, nil
	}

	repositories, listError := githubClient.ListOrganizationRepositories(executionContext, options.configuration.Organization)
	if listError != nil {
		return nil, fmt.Errorf(repositoryListErrorTemplateConstant, listError)
	}

	var repositoryNames []string
	for _, repository := range repositories {
		if strings.HasPrefix(repository.Name, options.configuration.RepositoryPrefix) {
			repositoryNames = append(repositoryNames, repository.Name)
		}
	}
	return repositoryNames, nil
}

func (builder *CommandBuilder) parseOptions(command *cobra.Command) commandOptions {
	configuration := builder.resolveConfiguration()

	applyStringFlagOverride(command, organizationFlagNameConstant, &configuration.Organization)
	applyStringFlagOverride(command, prefixFlagNameConstant, &configuration.RepositoryPrefix)
	applyStringFlagOverride(command, renderDirectoryFlagNameConstant, &configuration.DiagramDirectory)
	if command.Flags().Changed(keepGoingFlagNameConstant) {
		keepGoingValue, _ := command.Flags().GetBool(keepGoingFlagNameConstant)
		configuration.KeepGoing = keepGoingValue
	}

	singleRepository := ""
	if command.Flags().Changed(repositoryFlagNameConstant) {
		repositoryValue, _ := command.Flags().GetString(repositoryFlagNameConstant)
		singleRepository = strings.TrimSpace(repositoryValue)
	}

	return commandOptions{
		configuration:    configuration,
		singleRepository: singleRepository,
	}
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider().Sanitize()
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider != nil {
		if logger := builder.LoggerProvider(); logger != nil {
			return logger
		}
	}
	return zap.NewNop()
}

func (builder *CommandBuilder) resolveExecutor(logger *zap.Logger) (CommandExecutor, error) {
	if builder.Executor != nil {
		return builder.Executor, nil
	}

	humanReadableLogging := false
	if builder.HumanReadableLoggingProvider != nil {
		humanReadableLogging = builder.HumanReadableLoggingProvider()
	}
	return execshell.NewShellExecutor(logger, execshell.NewOSCommandRunner(), humanReadableLogging)
}

func (builder *CommandBuilder) resolveDiagramRenderer() DiagramRenderer {
	if builder.DiagramRenderer != nil {
		return builder.DiagramRenderer
	}
	return render.RenderPNG
}

func applyStringFlagOverride(command *cobra.Command, flagName string, target *string) {
	if command == nil || !command.Flags().Changed(flagName) {
		return
	}
	flagValue, _ := command.Flags().GetString(flagName)
	*target = strings.TrimSpace(flagValue)
}
