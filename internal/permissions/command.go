package permissions

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
	parentCommandUseConstant              = "permissions"
	parentCommandShortDescriptionConstant = "Manage team permissions on organization repositories"
	applyCommandUseConstant               = "apply"
	applyCommandShortDescriptionConstant  = "Apply configured team permission assignments"
	applyCommandLongDescriptionConstant   = "apply grants each configured team its permission on every matching repository, skipping grants that are already satisfied."
	organizationFlagNameConstant          = "org"
	organizationFlagUsageConstant         = "GitHub organization owning the repositories"
	prefixFlagNameConstant                = "prefix"
	prefixFlagUsageConstant               = "Only consider repositories whose name carries this prefix"
	applyExecutionErrorTemplateConstant   = "permission application run failed: %w"
	githubClientCreationErrorTemplate     = "unable to construct GitHub client: %w"
	applySummaryMessageConstant           = "Permission application run completed"
	updatedGrantsLogFieldConstant         = "updated_grants"
	unchangedGrantsLogFieldConstant       = "unchanged_grants"
)

// AssignmentConfiguration is one configured team grant.
type AssignmentConfiguration struct {
	Team             string `mapstructure:"team"`
	Permission       string `mapstructure:"permission"`
	RepositoryPrefix string `mapstructure:"repository_prefix"`
}

// CommandConfiguration captures the configurable permission settings.
type CommandConfiguration struct {
	Organization     string                    `mapstructure:"organization"`
	RepositoryPrefix string                    `mapstructure:"repository_prefix"`
	Assignments      []AssignmentConfiguration `mapstructure:"assignments"`
}

// DefaultCommandConfiguration returns the permission defaults.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{}
}

// Sanitize trims whitespace from configured values.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	configuration.Organization = strings.TrimSpace(configuration.Organization)
	configuration.RepositoryPrefix = strings.TrimSpace(configuration.RepositoryPrefix)
	for assignmentIndex := range configuration.Assignments {
		configuration.Assignments[assignmentIndex].Team = strings.TrimSpace(configuration.Assignments[assignmentIndex].Team)
		configuration.Assignments[assignmentIndex].Permission = strings.TrimSpace(configuration.Assignments[assignmentIndex].Permission)
		configuration.Assignments[assignmentIndex].RepositoryPrefix = strings.TrimSpace(configuration.Assignments[assignmentIndex].RepositoryPrefix)
	}
	return configuration
}

// CommandExecutor runs gh commands for the permission client.
type CommandExecutor interface {
	ExecuteGitHubCLI(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// PermissionApplier executes one application run.
type PermissionApplier interface {
	Execute(executionContext context.Context, options ApplyOptions) (ApplyResult, error)
}

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ServiceProvider constructs an applier from dependencies.
type ServiceProvider func(dependencies ServiceDependencies) (PermissionApplier, error)

// CommandBuilder assembles the permissions command tree.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	Executor                     CommandExecutor
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() CommandConfiguration
	ServiceProvider              ServiceProvider
}

// Build constructs the permissions command with its apply subcommand.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	parentCommand := &cobra.Command{
		Use:           parentCommandUseConstant,
		Short:         parentCommandShortDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	applyCommand := &cobra.Command{
		Use:           applyCommandUseConstant,
		Short:         applyCommandShortDescriptionConstant,
		Long:          applyCommandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE:          builder.runApply,
	}

	applyCommand.Flags().String(organizationFlagNameConstant, "", organizationFlagUsageConstant)
	applyCommand.Flags().String(prefixFlagNameConstant, "", prefixFlagUsageConstant)

	parentCommand.AddCommand(applyCommand)
	return parentCommand, nil
}

func (builder *CommandBuilder) runApply(command *cobra.Command, _ []string) error {
	configuration := builder.resolveConfiguration()
	applyStringFlagOverride(command, organizationFlagNameConstant, &configuration.Organization)
	applyStringFlagOverride(command, prefixFlagNameConstant, &configuration.RepositoryPrefix)

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
		Logger:           logger,
		PermissionClient: githubClient,
	})
	if serviceError != nil {
		return serviceError
	}

	assignments := make([]Assignment, 0, len(configuration.Assignments))
	for _, assignmentConfiguration := range configuration.Assignments {
		assignments = append(assignments, Assignment{
			TeamSlug:         assignmentConfiguration.Team,
			Permission:       githubcli.TeamPermission(assignmentConfiguration.Permission),
			RepositoryPrefix: assignmentConfiguration.RepositoryPrefix,
		})
	}

	result, executionError := service.Execute(command.Context(), ApplyOptions{
		Organization:     configuration.Organization,
		RepositoryPrefix: configuration.RepositoryPrefix,
		Assignments:      assignments,
	})
	if executionError != nil {
		return fmt.Errorf(applyExecutionErrorTemplateConstant, executionError)
	}

	logger.Info(applySummaryMessageConstant,
		zap.Int(updatedGrantsLogFieldConstant, len(result.UpdatedGrants)),
		zap.Int(unchangedGrantsLogFieldConstant, len(result.UnchangedGrants)),
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

func (builder *CommandBuilder) resolveService(dependencies ServiceDependencies) (PermissionApplier, error) {
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
