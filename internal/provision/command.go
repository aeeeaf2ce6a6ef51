package provision

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chris11-taylor-nttd/org-migration-script/internal/execshell"
	"github.com/chris11-taylor-nttd/org-migration-script/internal/githubcli"
)

const (
	parentCommandUseConstant              = "repo"
	parentCommandShortDescriptionConstant = "Manage organization repositories"
	createCommandUseConstant              = "create <name>"
	createCommandShortDescriptionConstant = "Create an organization repository with the house merge policy"
	createCommandLongDescriptionConstant  = "create provisions a repository with internal visibility, squash-only merges, branch auto-update, and branch deletion on merge."
	organizationFlagNameConstant          = "org"
	organizationFlagUsageConstant         = "GitHub organization receiving the repository"
	createExecutionErrorTemplateConstant  = "repository creation failed: %w"
	githubClientCreationErrorTemplate     = "unable to construct GitHub client: %w"
)

// CommandConfiguration captures the configurable provisioning settings.
type CommandConfiguration struct {
	Organization string `mapstructure:"organization"`
}

// DefaultCommandConfiguration returns the provisioning defaults.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{}
}

// Sanitize trims whitespace from configured values.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	configuration.Organization = strings.TrimSpace(configuration.Organization)
	return configuration
}

// CommandExecutor runs gh commands for the repository creator.
type CommandExecutor interface {
	ExecuteGitHubCLI(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// RepositoryProvisioner executes one provisioning request.
type RepositoryProvisioner interface {
	Execute(executionContext context.Context, options CreateOptions) (githubcli.CreatedRepository, error)
}

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ServiceProvider constructs a provisioner from dependencies.
type ServiceProvider func(dependencies ServiceDependencies) (RepositoryProvisioner, error)

// CommandBuilder assembles the repo command tree.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	Executor                     CommandExecutor
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() CommandConfiguration
	ServiceProvider              ServiceProvider
}

// Build constructs the repo command with its create subcommand.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	parentCommand := &cobra.Command{
		Use:           parentCommandUseConstant,
		Short:         parentCommandShortDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	createCommand := &cobra.Command{
		Use:           createCommandUseConstant,
		Short:         createCommandShortDescriptionConstant,
		Long:          createCommandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.ExactArgs(1),
		RunE:          builder.runCreate,
	}

	createCommand.Flags().String(organizationFlagNameConstant, "", organizationFlagUsageConstant)

	parentCommand.AddCommand(createCommand)
	return parentCommand, nil
}

func (builder *CommandBuilder) runCreate(command *cobra.Command, arguments []string) error {
	configuration := builder.resolveConfiguration()
	if command.Flags().Changed(organizationFlagNameConstant) {
		flagValue, _ := command.Flags().GetString(organizationFlagNameConstant)
		configuration.Organization = strings.TrimSpace(flagValue)
	}

	logger := builder.resolveLogger()

	executor, executorError := builder.resolveExecutor(logger)
	if executorError != nil {
		return executorError
	}

	githubClient, githubClientError := githubcli.NewClient(executor)
	if githubClientError != nil {
		return fmt.Errorf(githubClientCreationErrorTemplate, githubClientError)
	}

	service, serviceError := builder.resolveService(ServiceDependencies{
		Logger:            logger,
		RepositoryCreator: githubClient,
	})
	if serviceError != nil {
		return serviceError
	}

	createdRepository, executionError := service.Execute(command.Context(), CreateOptions{
		Organization:   configuration.Organization,
		RepositoryName: arguments[0],
	})
	if executionError != nil {
		return fmt.Errorf(createExecutionErrorTemplateConstant, executionError)
	}

	fmt.Fprintln(command.OutOrStdout(), createdRepository.HTMLURL)
	return nil
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

func (builder *CommandBuilder) resolveService(dependencies ServiceDependencies) (RepositoryProvisioner, error) {
	if builder.ServiceProvider != nil {
		return builder.ServiceProvider(dependencies)
	}
	return NewService(dependencies)
}
