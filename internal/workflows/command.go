package workflows

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chris11-taylor-nttd/org-migration-script/internal/execshell"
	"github.com/chris11-taylor-nttd/org-migration-script/internal/githubcli"
	"github.com/chris11-taylor-nttd/org-migration-script/internal/gitrepo"
)

const (
	parentCommandUseConstant                 = "workflows"
	parentCommandShortDescriptionConstant    = "Manage standard GitHub Actions workflows"
	installCommandUseConstant                = "install"
	installCommandShortDescriptionConstant   = "Install workflow templates across organization repositories"
	installCommandLongDescriptionConstant    = "install clones each matching repository, copies the configured workflow templates into .github/workflows, and pushes a commit when files changed."
	organizationFlagNameConstant             = "org"
	organizationFlagUsageConstant            = "GitHub organization owning the repositories"
	prefixFlagNameConstant                   = "prefix"
	prefixFlagUsageConstant                  = "Only install into repositories whose name carries this prefix"
	templatesFlagNameConstant                = "templates"
	templatesFlagUsageConstant               = "Directory containing the workflow templates"
	commitMessageFlagNameConstant            = "message"
	commitMessageFlagUsageConstant           = "Commit message used when workflows change"
	installExecutionErrorTemplateConstant    = "workflow installation run failed: %w"
	repositoryManagerCreationErrorTemplate   = "unable to construct repository manager: %w"
	githubClientCreationErrorTemplate        = "unable to construct GitHub client: %w"
	installSummaryMessageConstant            = "Workflow installation run completed"
	repositoriesProcessedLogFieldConstant    = "repositories_processed"
	defaultTemplatesDirectoryConstant        = "templates"
	defaultWorkingDirectoryConstant          = "work"
	templatesDirectoryConfigurationKeySuffix = ".templates_directory"
	workingDirectoryConfigurationKeySuffix   = ".working_directory"
	commitMessageConfigurationKeySuffix      = ".commit_message"
)

// CommandConfiguration captures the configurable installer settings.
type CommandConfiguration struct {
	Organization       string `mapstructure:"organization"`
	RepositoryPrefix   string `mapstructure:"repository_prefix"`
	TemplatesDirectory string `mapstructure:"templates_directory"`
	WorkingDirectory   string `mapstructure:"working_directory"`
	CommitMessage      string `mapstructure:"commit_message"`
}

// DefaultCommandConfiguration returns the installer defaults.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		TemplatesDirectory: defaultTemplatesDirectoryConstant,
		WorkingDirectory:   defaultWorkingDirectoryConstant,
		CommitMessage:      defaultCommitMessageConstant,
	}
}

// Sanitize trims whitespace from configured values.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	configuration.Organization = strings.TrimSpace(configuration.Organization)
	configuration.RepositoryPrefix = strings.TrimSpace(configuration.RepositoryPrefix)
	configuration.TemplatesDirectory = strings.TrimSpace(configuration.TemplatesDirectory)
	configuration.WorkingDirectory = strings.TrimSpace(configuration.WorkingDirectory)
	configuration.CommitMessage = strings.TrimSpace(configuration.CommitMessage)
	return configuration
}

// DefaultConfigurationValues exposes viper defaults under the provided key prefix.
func DefaultConfigurationValues(configurationKeyPrefix string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		configurationKeyPrefix + templatesDirectoryConfigurationKeySuffix: defaults.TemplatesDirectory,
		configurationKeyPrefix + workingDirectoryConfigurationKeySuffix:   defaults.WorkingDirectory,
		configurationKeyPrefix + commitMessageConfigurationKeySuffix:      defaults.CommitMessage,
	}
}

// CommandExecutor runs git and gh commands for the installer's collaborators.
type CommandExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
	ExecuteGitHubCLI(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// WorkflowInstaller executes one installation run.
type WorkflowInstaller interface {
	Execute(executionContext context.Context, options InstallOptions) (InstallResult, error)
}

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ServiceProvider constructs an installer from dependencies.
type ServiceProvider func(dependencies ServiceDependencies) (WorkflowInstaller, error)

// CommandBuilder assembles the workflows command tree.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	Executor                     CommandExecutor
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() CommandConfiguration
	ServiceProvider              ServiceProvider
}

// Build constructs the workflows command with its install subcommand.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	parentCommand := &cobra.Command{
		Use:           parentCommandUseConstant,
		Short:         parentCommandShortDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	installCommand := &cobra.Command{
		Use:           installCommandUseConstant,
		Short:         installCommandShortDescriptionConstant,
		Long:          installCommandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE:          builder.runInstall,
	}

	installCommand.Flags().String(organizationFlagNameConstant, "", organizationFlagUsageConstant)
	installCommand.Flags().String(prefixFlagNameConstant, "", prefixFlagUsageConstant)
	installCommand.Flags().String(templatesFlagNameConstant, "", templatesFlagUsageConstant)
	installCommand.Flags().String(commitMessageFlagNameConstant, "", commitMessageFlagUsageConstant)

	parentCommand.AddCommand(installCommand)
	return parentCommand, nil
}

func (builder *CommandBuilder) runInstall(command *cobra.Command, _ []string) error {
	configuration := builder.resolveConfiguration()
	applyStringFlagOverride(command, organizationFlagNameConstant, &configuration.Organization)
	applyStringFlagOverride(command, prefixFlagNameConstant, &configuration.RepositoryPrefix)
	applyStringFlagOverride(command, templatesFlagNameConstant, &configuration.TemplatesDirectory)
	applyStringFlagOverride(command, commitMessageFlagNameConstant, &configuration.CommitMessage)

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

	service, serviceError := builder.resolveService(ServiceDependencies{
		Logger:           logger,
		RepositoryLister: githubClient,
		RepositoryEditor: repositoryManager,
	})
	if serviceError != nil {
		return serviceError
	}

	result, executionError := service.Execute(command.Context(), InstallOptions{
		Organization:       configuration.Organization,
		RepositoryPrefix:   configuration.RepositoryPrefix,
		TemplatesDirectory: configuration.TemplatesDirectory,
		WorkingDirectory:   configuration.WorkingDirectory,
		CommitMessage:      configuration.CommitMessage,
	})
	if executionError != nil {
		return fmt.Errorf(installExecutionErrorTemplateConstant, executionError)
	}

	logger.Info(installSummaryMessageConstant,
		zap.Int(repositoriesProcessedLogFieldConstant, len(result.Outcomes)),
	)
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

func (builder *CommandBuilder) resolveService(dependencies ServiceDependencies) (WorkflowInstaller, error) {
	if builder.ServiceProvider != nil {
		return builder.ServiceProvider(dependencies)
	}
	return NewService(dependencies)
}

func applyStringFlagOverride(command *cobra.Command, flagName string, target *string) {
	if command == nil || !command.Flags().Changed(flagName) {
		return
	}
	flagValue, _ := command.Flags().GetString(flagName)
	*target = strings.TrimSpace(flagValue)
}
