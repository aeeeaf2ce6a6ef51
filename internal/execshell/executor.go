package execshell

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	loggerNotConfiguredMessageConstant        = "shell executor logger not configured"
	commandRunnerNotConfiguredMessageConstant = "shell command runner not configured"
	commandFailedErrorTemplateConstant        = "%s exited with code %d%s"
	commandExecutionErrorTemplateConstant     = "%s could not be executed: %s"
	standardErrorDetailTemplateConstant       = ": %s"
	commandArgumentsSeparatorConstant         = " "
	logFieldCommandNameConstant               = "command"
	logFieldCommandArgumentsConstant          = "arguments"
	logFieldWorkingDirectoryConstant          = "working_directory"
	logFieldExitCodeConstant                  = "exit_code"
)

// CommandName identifies an external executable supported by the executor.
type CommandName string

// Supported executables.
const (
	CommandGit    CommandName = "git"
	CommandGitHub CommandName = "gh"
)

// CommandDetails describes the invocation parameters for a shell command.
type CommandDetails struct {
	Arguments            []string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
	StandardInput        []byte
}

// ShellCommand pairs an executable name with its invocation details.
type ShellCommand struct {
	Name    CommandName
	Details CommandDetails
}

// ExecutionResult captures the observable outputs of a completed command.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
}

// CommandRunner executes shell commands and reports their results.
type CommandRunner interface {
	Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error)
}

// Sentinel construction errors.
var (
	// ErrLoggerNotConfigured indicates the executor was constructed without a logger.
	ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)
	// ErrCommandRunnerNotConfigured indicates the executor was constructed without a runner.
	ErrCommandRunnerNotConfigured = errors.New(commandRunnerNotConfiguredMessageConstant)
)

// CommandFailedError reports a command that completed with a non-zero exit code.
type CommandFailedError struct {
	Command ShellCommand
	Result  ExecutionResult
}

// Error describes the failed command including captured standard error output.
func (failedError CommandFailedError) Error() string {
	standardErrorDetail := ""
	trimmedStandardError := strings.TrimSpace(failedError.Result.StandardError)
	if len(trimmedStandardError) > 0 {
		standardErrorDetail = fmt.Sprintf(standardErrorDetailTemplateConstant, trimmedStandardError)
	}
	return fmt.Sprintf(commandFailedErrorTemplateConstant, describeCommand(failedError.Command), failedError.Result.ExitCode, standardErrorDetail)
}

// CommandExecutionError reports a command that never produced an execution result.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

// Error describes the execution failure.
func (executionError CommandExecutionError) Error() string {
	return fmt.Sprintf(commandExecutionErrorTemplateConstant, describeCommand(executionError.Command), executionError.Cause)
}

// Unwrap exposes the underlying cause.
func (executionError CommandExecutionError) Unwrap() error {
	return executionError.Cause
}

func describeCommand(command ShellCommand) string {
	commandParts := append([]string{string(command.Name)}, command.Details.Arguments...)
	return strings.Join(commandParts, commandArgumentsSeparatorConstant)
}

// ShellExecutor coordinates external tool invocations with lifecycle logging.
type ShellExecutor struct {
	logger               *zap.Logger
	commandRunner        CommandRunner
	messageFormatter     CommandMessageFormatter
	humanReadableLogging bool
	eventObserver        CommandEventObserver
}

// NewShellExecutor constructs a ShellExecutor with the supplied logger and runner.
func NewShellExecutor(logger *zap.Logger, commandRunner CommandRunner, humanReadableLogging bool) (*ShellExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if commandRunner == nil {
		return nil, ErrCommandRunnerNotConfigured
	}

	executor := &ShellExecutor{
		logger:               logger,
		commandRunner:        commandRunner,
		messageFormatter:     CommandMessageFormatter{},
		humanReadableLogging: humanReadableLogging,
		eventObserver:        noopCommandEventObserver{},
	}

	return executor, nil
}

// SetEventObserver replaces the observer notified of command lifecycle events.
func (executor *ShellExecutor) SetEventObserver(observer CommandEventObserver) {
	if observer == nil {
		executor.eventObserver = noopCommandEventObserver{}
		return
	}
	executor.eventObserver = observer
}

// ExecuteGit runs git with the provided details.
func (executor *ShellExecutor) ExecuteGit(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.execute(executionContext, ShellCommand{Name: CommandGit, Details: details})
}

// ExecuteGitHubCLI runs the GitHub CLI with the provided details.
func (executor *ShellExecutor) ExecuteGitHubCLI(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.execute(executionContext, ShellCommand{Name: CommandGitHub, Details: details})
}

func (executor *ShellExecutor) execute(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	executor.logCommandStarted(command)
	executor.eventObserver.CommandStarted(command)

	executionResult, runnerError := executor.commandRunner.Run(executionContext, command)
	if runnerError != nil {
		executionFailure := CommandExecutionError{Command: command, Cause: runnerError}
		executor.logExecutionFailure(command, runnerError)
		executor.eventObserver.CommandExecutionFailed(command, runnerError)
		return ExecutionResult{}, executionFailure
	}

	executor.eventObserver.CommandCompleted(command, executionResult)

	if executionResult.ExitCode != 0 {
		commandFailure := CommandFailedError{Command: command, Result: executionResult}
		executor.logCommandFailure(command, executionResult)
		return ExecutionResult{}, commandFailure
	}

	executor.logCommandSuccess(command)
	return executionResult, nil
}

func (executor *ShellExecutor) logCommandStarted(command ShellCommand) {
	if executor.humanReadableLogging {
		executor.logger.Debug(executor.messageFormatter.BuildStartedMessage(command))
		return
	}
	executor.logger.Debug(
		executor.messageFormatter.BuildStartedMessage(command),
		zap.String(logFieldCommandNameConstant, string(command.Name)),
		zap.Strings(logFieldCommandArgumentsConstant, command.Details.Arguments),
		zap.String(logFieldWorkingDirectoryConstant, command.Details.WorkingDirectory),
	)
}

func (executor *ShellExecutor) logCommandSuccess(command ShellCommand) {
	executor.logger.Debug(executor.messageFormatter.BuildSuccessMessage(command))
}

func (executor *ShellExecutor) logCommandFailure(command ShellCommand, result ExecutionResult) {
	if executor.humanReadableLogging {
		executor.logger.Warn(executor.messageFormatter.BuildFailureMessage(command, result))
		return
	}
	executor.logger.Warn(
		executor.messageFormatter.BuildFailureMessage(command, result),
		zap.String(logFieldCommandNameConstant, string(command.Name)),
		zap.Int(logFieldExitCodeConstant, result.ExitCode),
	)
}

func (executor *ShellExecutor) logExecutionFailure(command ShellCommand, failure error) {
	executor.logger.Error(
		executor.messageFormatter.BuildExecutionFailureMessage(command, failure),
		zap.String(logFieldCommandNameConstant, string(command.Name)),
		zap.Error(failure),
	)
}
