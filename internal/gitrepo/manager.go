package gitrepo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/chris11-taylor-nttd/org-migration-script/internal/execshell"
)

const (
	gitExecutorMissingMessageConstant     = "git executor not configured"
	repositoryRootNotFoundMessageConstant = "no git repository found between directory and search boundary"
	gitMetadataDirectoryNameConstant      = ".git"
	gitCloneSubcommandConstant            = "clone"
	gitCheckoutSubcommandConstant         = "checkout"
	gitRemoteSubcommandConstant           = "remote"
	gitRemoteGetURLSubcommandConstant     = "get-url"
	gitRevParseSubcommandConstant         = "rev-parse"
	gitAbbrevRefFlagNameConstant          = "--abbrev-ref"
	gitHeadReferenceConstant              = "HEAD"
	gitTagSubcommandConstant              = "tag"
	gitTagListFlagConstant                = "--list"
	gitTagPointsAtFlagConstant            = "--points-at"
	gitTagSortFlagConstant                = "--sort=creatordate"
	gitAddSubcommandConstant              = "add"
	gitPathspecSeparatorConstant          = "--"
	gitCommitSubcommandConstant           = "commit"
	gitCommitMessageFlagConstant          = "-m"
	gitPushSubcommandConstant             = "push"
	gitStatusSubcommandConstant           = "status"
	gitStatusPorcelainFlagConstant        = "--porcelain"
	repositoryLineSeparatorConstant       = "\n"
)

// Sentinel errors surfaced by RepositoryManager.
var (
	// ErrGitExecutorMissing indicates the manager was constructed without an executor.
	ErrGitExecutorMissing = errors.New(gitExecutorMissingMessageConstant)
	// ErrRepositoryRootNotFound indicates no .git directory exists between a path and the search boundary.
	ErrRepositoryRootNotFound = errors.New(repositoryRootNotFoundMessageConstant)
)

// GitCommandExecutor is the minimal interface required from execshell.ShellExecutor.
type GitCommandExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// RepositoryManager performs git operations against local working copies.
type RepositoryManager struct {
	executor GitCommandExecutor
}

// NewRepositoryManager constructs a RepositoryManager around the provided executor.
func NewRepositoryManager(executor GitCommandExecutor) (*RepositoryManager, error) {
	if executor == nil {
		return nil, ErrGitExecutorMissing
	}
	return &RepositoryManager{executor: executor}, nil
}

// CloneRepository clones the remote located at cloneURL into targetPath.
func (manager *RepositoryManager) CloneRepository(executionContext context.Context, cloneURL string, targetPath string) error {
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments: []string{gitCloneSubcommandConstant, cloneURL, targetPath},
	})
	return executionError
}

// CheckoutRevision checks out the requested revision inside repositoryPath.
func (manager *RepositoryManager) CheckoutRevision(executionContext context.Context, repositoryPath string, revision string) error {
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitCheckoutSubcommandConstant, revision},
		WorkingDirectory: repositoryPath,
	})
	return executionError
}

// GetRemoteURL reads the URL configured for the named remote.
func (manager *RepositoryManager) GetRemoteURL(executionContext context.Context, repositoryPath string, remoteName string) (string, error) {
	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitRemoteSubcommandConstant, gitRemoteGetURLSubcommandConstant, remoteName},
		WorkingDirectory: repositoryPath,
	})
	if executionError != nil {
		return "", executionError
	}
	return strings.TrimSpace(executionResult.StandardOutput), nil
}

// GetCurrentBranch reports the branch the working copy is checked out to, or HEAD when detached.
func (manager *RepositoryManager) GetCurrentBranch(executionContext context.Context, repositoryPath string) (string, error) {
	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitRevParseSubcommandConstant, gitAbbrevRefFlagNameConstant, gitHeadReferenceConstant},
		WorkingDirectory: repositoryPath,
	})
	if executionError != nil {
		return "", executionError
	}
	return strings.TrimSpace(executionResult.StandardOutput), nil
}

// ListTags returns the repository tags ordered by creation date.
func (manager *RepositoryManager) ListTags(executionContext context.Context, repositoryPath string) ([]string, error) {
	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitTagSubcommandConstant, gitTagListFlagConstant, gitTagSortFlagConstant},
		WorkingDirectory: repositoryPath,
	})
	if executionError != nil {
		return nil, executionError
	}
	return splitNonEmptyLines(executionResult.StandardOutput), nil
}

// TagsPointingAtHead returns the tags whose commit matches the current HEAD.
func (manager *RepositoryManager) TagsPointingAtHead(executionContext context.Context, repositoryPath string) ([]string, error) {
	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitTagSubcommandConstant, gitTagPointsAtFlagConstant, gitHeadReferenceConstant},
		WorkingDirectory: repositoryPath,
	})
	if executionError != nil {
		return nil, executionError
	}
	return splitNonEmptyLines(executionResult.StandardOutput), nil
}

// StageFiles stages the provided paths inside repositoryPath.
func (manager *RepositoryManager) StageFiles(executionContext context.Context, repositoryPath string, paths []string) error {
	arguments := append([]string{gitAddSubcommandConstant, gitPathspecSeparatorConstant}, paths...)
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        arguments,
		WorkingDirectory: repositoryPath,
	})
	return executionError
}

// CreateCommit records a commit with the provided message.
func (manager *RepositoryManager) CreateCommit(executionContext context.Context, repositoryPath string, message string) error {
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitCommitSubcommandConstant, gitCommitMessageFlagConstant, message},
		WorkingDirectory: repositoryPath,
	})
	return executionError
}

// PushCurrentBranch pushes the checked-out branch to the named remote.
func (manager *RepositoryManager) PushCurrentBranch(executionContext context.Context, repositoryPath string, remoteName string) error {
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitPushSubcommandConstant, remoteName, gitHeadReferenceConstant},
		WorkingDirectory: repositoryPath,
	})
	return executionError
}

// HasUncommittedChanges reports whether the working tree has staged or
// unstaged modifications.
func (manager *RepositoryManager) HasUncommittedChanges(executionContext context.Context, repositoryPath string) (bool, error) {
	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitStatusSubcommandConstant, gitStatusPorcelainFlagConstant},
		WorkingDirectory: repositoryPath,
	})
	if executionError != nil {
		return false, executionError
	}
	return len(splitNonEmptyLines(executionResult.StandardOutput)) > 0, nil
}

// FindRepositoryRoot walks from startPath toward searchBoundary looking for a
// directory containing .git. The boundary itself is inspected before the
// search fails with ErrRepositoryRootNotFound.
func (manager *RepositoryManager) FindRepositoryRoot(startPath string, searchBoundary string) (string, error) {
	currentPath := filepath.Clean(startPath)
	boundaryPath := filepath.Clean(searchBoundary)

	for {
		metadataPath := filepath.Join(currentPath, gitMetadataDirectoryNameConstant)
		if pathInformation, statError := os.Stat(metadataPath); statError == nil && pathInformation.IsDir() {
			return currentPath, nil
		}
		if currentPath == boundaryPath {
			return "", ErrRepositoryRootNotFound
		}
		parentPath := filepath.Dir(currentPath)
		if parentPath == currentPath {
			return "", ErrRepositoryRootNotFound
		}
		currentPath = parentPath
	}
}

func splitNonEmptyLines(commandOutput string) []string {
	var lines []string
	for _, line := range strings.Split(commandOutput, repositoryLineSeparatorConstant) {
		trimmedLine := strings.TrimSpace(line)
		if len(trimmedLine) > 0 {
			lines = append(lines, trimmedLine)
		}
	}
	return lines
}
