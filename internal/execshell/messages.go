package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	commandArgumentsJoinSeparatorConstant   = " "
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	defaultWorkingDirectoryLabelConstant    = "current directory"
	fallbackUnknownValueLabelConstant       = "unknown"
)

const (
	gitCloneSubcommandNameConstant    = "clone"
	gitCheckoutSubcommandNameConstant = "checkout"
	gitTagSubcommandNameConstant      = "tag"
	gitRevParseSubcommandNameConstant = "rev-parse"
	gitAbbrevRefFlagConstant          = "--abbrev-ref"
)

const (
	gitCloneStartTemplateConstant               = "Cloning %s into %s"
	gitCloneSuccessTemplateConstant             = "Cloned %s into %s"
	gitCloneFailureTemplateConstant             = "Failed to clone %s into %s (exit code %d%s)"
	gitCloneExecutionFailureTemplateConstant    = "Unable to clone %s into %s: %s"
	gitCheckoutStartTemplateConstant            = "Checking out %s in %s"
	gitCheckoutSuccessTemplateConstant          = "Checked out %s in %s"
	gitCheckoutFailureTemplateConstant          = "Failed to check out %s in %s (exit code %d%s)"
	gitCheckoutExecutionFailureTemplateConstant = "Unable to check out %s in %s: %s"
	gitTagStartTemplateConstant                 = "Listing tags in %s"
	gitTagSuccessTemplateConstant               = "Listed tags in %s"
	gitTagFailureTemplateConstant               = "Failed to list tags in %s (exit code %d%s)"
	gitTagExecutionFailureTemplateConstant      = "Unable to list tags in %s: %s"
	gitBranchStartTemplateConstant              = "Identifying current branch in %s"
	gitBranchSuccessTemplateConstant            = "Identified current branch in %s"
	gitBranchFailureTemplateConstant            = "Failed to identify current branch in %s (exit code %d%s)"
	gitBranchExecutionFailureTemplateConstant   = "Unable to identify current branch in %s: %s"
	gitRevisionStartTemplateConstant            = "Resolving %s in %s"
	gitRevisionSuccessTemplateConstant          = "Resolved %s in %s"
	gitRevisionFailureTemplateConstant          = "Failed to resolve %s in %s (exit code %d%s)"
	gitRevisionExecutionFailureTemplateConstant = "Unable to resolve %s in %s: %s"
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	if command.Name == CommandGit && len(command.Details.Arguments) > 0 {
		return formatter.describeGitMessage(command, result, failure, stage)
	}
	return formatter.buildGenericMessage(command, result, failure, stage)
}

func (formatter CommandMessageFormatter) describeGitMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	subcommand := strings.TrimSpace(command.Details.Arguments[0])
	workingDirectory := formatter.describeWorkingDirectory(command)

	switch subcommand {
	case gitCloneSubcommandNameConstant:
		cloneURL := formatter.ensureValue(formatter.argumentAtIndex(command.Details.Arguments, 1))
		clonePath := formatter.ensureValue(formatter.argumentAtIndex(command.Details.Arguments, 2))
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitCloneStartTemplateConstant, cloneURL, clonePath)
		case messageStageSuccess:
			return fmt.Sprintf(gitCloneSuccessTemplateConstant, cloneURL, clonePath)
		case messageStageFailure:
			return fmt.Sprintf(gitCloneFailureTemplateConstant, cloneURL, clonePath, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
		case messageStageExecutionFailure:
			return fmt.Sprintf(gitCloneExecutionFailureTemplateConstant, cloneURL, clonePath, formatter.describeFailure(failure))
		}
	case gitCheckoutSubcommandNameConstant:
		revision := formatter.ensureValue(formatter.argumentAtIndex(command.Details.Arguments, 1))
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitCheckoutStartTemplateConstant, revision, workingDirectory)
		case messageStageSuccess:
			return fmt.Sprintf(gitCheckoutSuccessTemplateConstant, revision, workingDirectory)
		case messageStageFailure:
			return fmt.Sprintf(gitCheckoutFailureTemplateConstant, revision, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
		case messageStageExecutionFailure:
			return fmt.Sprintf(gitCheckoutExecutionFailureTemplateConstant, revision, workingDirectory, formatter.describeFailure(failure))
		}
	case gitTagSubcommandNameConstant:
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitTagStartTemplateConstant, workingDirectory)
		case messageStageSuccess:
			return fmt.Sprintf(gitTagSuccessTemplateConstant, workingDirectory)
		case messageStageFailure:
			return fmt.Sprintf(gitTagFailureTemplateConstant, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
		case messageStageExecutionFailure:
			return fmt.Sprintf(gitTagExecutionFailureTemplateConstant, workingDirectory, formatter.describeFailure(failure))
		}
	case gitRevParseSubcommandNameConstant:
		if containsArgument(command.Details.Arguments, gitAbbrevRefFlagConstant) {
			switch stage {
			case messageStageStart:
				return fmt.Sprintf(gitBranchStartTemplateConstant, workingDirectory)
			case messageStageSuccess:
				return fmt.Sprintf(gitBranchSuccessTemplateConstant, workingDirectory)
			case messageStageFailure:
				return fmt.Sprintf(gitBranchFailureTemplateConstant, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
			case messageStageExecutionFailure:
				return fmt.Sprintf(gitBranchExecutionFailureTemplateConstant, workingDirectory, formatter.describeFailure(failure))
			}
		}
		reference := formatter.ensureValue(formatter.lastArgument(command.Details.Arguments))
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitRevisionStartTemplateConstant, reference, workingDirectory)
		case messageStageSuccess:
			return fmt.Sprintf(gitRevisionSuccessTemplateConstant, reference, workingDirectory)
		case messageStageFailure:
			return fmt.Sprintf(gitRevisionFailureTemplateConstant, reference, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
		case messageStageExecutionFailure:
			return fmt.Sprintf(gitRevisionExecutionFailureTemplateConstant, reference, workingDirectory, formatter.describeFailure(failure))
		}
	}

	return formatter.buildGenericMessage(command, result, failure, stage)
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := formatter.formatCommandLabel(command) + formatter.formatWorkingDirectorySuffix(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	default:
		return commandLabel
	}
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	if len(command.Details.Arguments) == 0 {
		return string(command.Name)
	}
	return string(command.Name) + commandArgumentsJoinSeparatorConstant + strings.Join(command.Details.Arguments, commandArgumentsJoinSeparatorConstant)
}

func (formatter CommandMessageFormatter) formatWorkingDirectorySuffix(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return ""
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmedWorkingDirectory
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return ""
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func (formatter CommandMessageFormatter) argumentAtIndex(arguments []string, index int) string {
	if index < 0 || index >= len(arguments) {
		return ""
	}
	return arguments[index]
}

func (formatter CommandMessageFormatter) lastArgument(arguments []string) string {
	if len(arguments) == 0 {
		return ""
	}
	return arguments[len(arguments)-1]
}

func (formatter CommandMessageFormatter) ensureValue(value string) string {
	trimmedValue := strings.TrimSpace(value)
	if len(trimmedValue) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return trimmedValue
}

func containsArgument(arguments []string, expectedArgument string) bool {
	for _, argument := range arguments {
		if strings.TrimSpace(argument) == expectedArgument {
			return true
		}
	}
	return false
}
