package execshell

// CommandEventObserver is notified at each stage of a shell command's lifecycle.
type CommandEventObserver interface {
	// CommandStarted fires immediately before the command process launches.
	CommandStarted(command ShellCommand)
	// CommandCompleted fires once the process exits and a result is available.
	CommandCompleted(command ShellCommand, result ExecutionResult)
	// CommandExecutionFailed fires when the process could not run at all.
	CommandExecutionFailed(command ShellCommand, failure error)
}

// noopCommandEventObserver satisfies CommandEventObserver while ignoring every event.
type noopCommandEventObserver struct{}

func (noopCommandEventObserver) CommandStarted(ShellCommand) {}

func (noopCommandEventObserver) CommandCompleted(ShellCommand, ExecutionResult) {}

func (noopCommandEventObserver) CommandExecutionFailed(ShellCommand, error) {}
