package workflows

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/chris11-taylor-nttd/org-migration-script/internal/githubcli"
)

const (
	loggerMissingMessageConstant             = "logger not configured"
	repositoryListerMissingMessageConstant   = "repository lister not configured"
	repositoryEditorMissingMessageConstant   = "repository editor not configured"
	organizationMissingMessageConstant       = "organization not configured"
	templatesDirectoryMissingMessageConstant = "templates directory not configured"
	workingDirectoryMissingMessageConstant   = "working directory not configured"
	invalidTemplateMessageTemplateConstant   = "workflow template %s is not valid YAML: %s"
	installFailureMessageTemplateConstant    = "workflow installation failed for %s: %w"
	defaultRemoteNameConstant                = "origin"
	defaultCommitMessageConstant             = "ci: install standard workflows"
	githubDirectoryNameConstant              = ".github"
	workflowsDirectoryNameConstant           = "workflows"
	yamlExtensionConstant                    = ".yaml"
	ymlExtensionConstant                     = ".yml"
	repositoryLogFieldConstant               = "repository"
	installedFilesLogFieldConstant           = "installed_files"
	committedLogFieldConstant                = "committed"
	workflowsInstalledMessageConstant        = "Workflows installed"
	workflowsUnchangedMessageConstant        = "Workflows already up to date"
	installationFailedMessageConstant        = "Workflow installation failed"
)

// Sentinel errors surfaced by the service.
var (
	ErrLoggerNotConfigured             = errors.New(loggerMissingMessageConstant)
	ErrRepositoryListerNotConfigured   = errors.New(repositoryListerMissingMessageConstant)
	ErrRepositoryEditorNotConfigured   = errors.New(repositoryEditorMissingMessageConstant)
	ErrOrganizationNotConfigured       = errors.New(organizationMissingMessageConstant)
	ErrTemplatesDirectoryNotConfigured = errors.New(templatesDirectoryMissingMessageConstant)
	ErrWorkingDirectoryNotConfigured   = errors.New(workingDirectoryMissingMessageConstant)
)

// InvalidWorkflowTemplateError reports a template that failed YAML validation.
type InvalidWorkflowTemplateError struct {
	TemplatePath string
	Cause        error
}

// Error describes the invalid template.
func (templateError InvalidWorkflowTemplateError) Error() string {
	return fmt.Sprintf(invalidTemplateMessageTemplateConstant, templateError.TemplatePath, templateError.Cause)
}

// Unwrap exposes the underlying YAML error.
func (templateError InvalidWorkflowTemplateError) Unwrap() error {
	return templateError.Cause
}

// RepositoryLister enumerates the repositories of an organization.
type RepositoryLister interface {
	ListOrganizationRepositories(executionContext context.Context, organization string) ([]githubcli.RepositoryHandle, error)
}

// RepositoryEditor performs the git operations needed to install workflows.
type RepositoryEditor interface {
	CloneRepository(executionContext context.Context, cloneURL string, targetPath string) error
	StageFiles(executionContext context.Context, repositoryPath string, paths []string) error
	HasUncommittedChanges(executionContext context.Context, repositoryPath string) (bool, error)
	CreateCommit(executionContext context.Context, repositoryPath string, message string) error
	PushCurrentBranch(executionContext context.Context, repositoryPath string, remoteName string) error
}

// ServiceDependencies bundles the collaborators required by the service.
type ServiceDependencies struct {
	Logger           *zap.Logger
	RepositoryLister RepositoryLister
	RepositoryEditor RepositoryEditor
}

// InstallOptions configures one installation run.
type InstallOptions struct {
	Organization       string
	RepositoryPrefix   string
	TemplatesDirectory string
	WorkingDirectory   string
	RemoteName         string
	CommitMessage      string
}

// RepositoryOutcome reports the result for one repository.
type RepositoryOutcome struct {
	Repository     string
	InstalledFiles []string
	Committed      bool
}

// InstallResult aggregates per repository outcomes.
type InstallResult struct {
	Outcomes []RepositoryOutcome
}

type workflowTemplate struct {
	fileName string
	content  []byte
}

// Service installs workflow templates across organization repositories.
type Service struct {
	logger           *zap.Logger
	repositoryLister RepositoryLister
	repositoryEditor RepositoryEditor
}

// NewService validates dependencies and constructs a Service.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.Logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if dependencies.RepositoryLister == nil {
		return nil, ErrRepositoryListerNotConfigured
	}
	if dependencies.RepositoryEditor == nil {
		return nil, ErrRepositoryEditorNotConfigured
	}
	return &Service{
		logger:           dependencies.Logger,
		repositoryLister: dependencies.RepositoryLister,
		repositoryEditor: dependencies.RepositoryEditor,
	}, nil
}

// Execute validates the templates, then clones each matching repository,
// installs the templates, and commits and pushes when the working tree
// changed. Per repository failures are aggregated and do not stop the run.
func (service *Service) Execute(executionContext context.Context, options InstallOptions) (InstallResult, error) {
	if len(strings.TrimSpace(options.Organization)) == 0 {
		return InstallResult{}, ErrOrganizationNotConfigured
	}
	if len(strings.TrimSpace(options.TemplatesDirectory)) == 0 {
		return InstallResult{}, ErrTemplatesDirectoryNotConfigured
	}
	if len(strings.TrimSpace(options.WorkingDirectory)) == 0 {
		return InstallResult{}, ErrWorkingDirectoryNotConfigured
	}
	remoteName := options.RemoteName
	if len(remoteName) == 0 {
		remoteName = defaultRemoteNameConstant
	}
	commitMessage := options.CommitMessage
	if len(commitMessage) == 0 {
		commitMessage = defaultCommitMessageConstant
	}

	templates, templatesError := loadTemplates(options.TemplatesDirectory)
	if templatesError != nil {
		return InstallResult{}, templatesError
	}

	repositories, listError := service.repositoryLister.ListOrganizationRepositories(executionContext, options.Organization)
	if listError != nil {
		return InstallResult{}, listError
	}

	var result InstallResult
	var installationErrors []error

	for _, repository := range repositories {
		if !strings.HasPrefix(repository.Name, options.RepositoryPrefix) {
			continue
		}

		outcome, installError := service.installIntoRepository(executionContext, repository, templates, options.WorkingDirectory, remoteName, commitMessage)
		if installError != nil {
			wrappedError := fmt.Errorf(installFailureMessageTemplateConstant, repository.Name, installError)
			service.logger.Warn(installationFailedMessageConstant,
				zap.String(repositoryLogFieldConstant, repository.Name),
				zap.Error(installError),
			)
			installationErrors = append(installationErrors, wrappedError)
			continue
		}

		service.logOutcome(outcome)
		result.Outcomes = append(result.Outcomes, outcome)
	}

	return result, errors.Join(installationErrors...)
}

func (service *Service) installIntoRepository(executionContext context.Context, repository githubcli.RepositoryHandle, templates []workflowTemplate, workingDirectory string, remoteName string, commitMessage string) (RepositoryOutcome, error) {
	targetPath := filepath.Join(workingDirectory, repository.Name)
	if removeError := os.RemoveAll(targetPath); removeError != nil {
		return RepositoryOutcome{}, removeError
	}
	if cloneError := service.repositoryEditor.CloneRepository(executionContext, repository.CloneURL, targetPath); cloneError != nil {
		return RepositoryOutcome{}, cloneError
	}

	workflowsPath := filepath.Join(targetPath, githubDirectoryNameConstant, workflowsDirectoryNameConstant)
	if makeError := os.MkdirAll(workflowsPath, 0o755); makeError != nil {
		return RepositoryOutcome{}, makeError
	}

	var installedFiles []string
	for _, template := range templates {
		relativePath := filepath.Join(githubDirectoryNameConstant, workflowsDirectoryNameConstant, template.fileName)
		if writeError := os.WriteFile(filepath.Join(targetPath, relativePath), template.content, 0o644); writeError != nil {
			return RepositoryOutcome{}, writeError
		}
		installedFiles = append(installedFiles, relativePath)
	}

	if stageError := service.repositoryEditor.StageFiles(executionContext, targetPath, installedFiles); stageError != nil {
		return RepositoryOutcome{}, stageError
	}

	hasChanges, statusError := service.repositoryEditor.HasUncommittedChanges(executionContext, targetPath)
	if statusError != nil {
		return RepositoryOutcome{}, statusError
	}
	if !hasChanges {
		return RepositoryOutcome{Repository: repository.Name, InstalledFiles: installedFiles}, nil
	}

	if commitError := service.repositoryEditor.CreateCommit(executionContext, targetPath, commitMessage); commitError != nil {
		return RepositoryOutcome{}, commitError
	}
	if pushError := service.repositoryEditor.PushCurrentBranch(executionContext, targetPath, remoteName); pushError != nil {
		return RepositoryOutcome{}, pushError
	}

	return RepositoryOutcome{Repository: repository.Name, InstalledFiles: installedFiles, Committed: true}, nil
}

func (service *Service) logOutcome(outcome RepositoryOutcome) {
	message := workflowsUnchangedMessageConstant
	if outcome.Committed {
		message = workflowsInstalledMessageConstant
	}
	service.logger.Info(message,
		zap.String(repositoryLogFieldConstant, outcome.Repository),
		zap.Strings(installedFilesLogFieldConstant, outcome.InstalledFiles),
		zap.Bool(committedLogFieldConstant, outcome.Committed),
	)
}

// loadTemplates reads and YAML-validates every workflow template before any
// repository is touched.
func loadTemplates(templatesDirectory string) ([]workflowTemplate, error) {
	directoryEntries, readError := os.ReadDir(templatesDirectory)
	if readError != nil {
		return nil, readError
	}

	var templates []workflowTemplate
	for _, directoryEntry := range directoryEntries {
		if directoryEntry.IsDir() {
			continue
		}
		extension := strings.ToLower(filepath.Ext(directoryEntry.Name()))
		if extension != yamlExtensionConstant && extension != ymlExtensionConstant {
			continue
		}

		templatePath := filepath.Join(templatesDirectory, directoryEntry.Name())
		templateContent, contentError := os.ReadFile(templatePath)
		if contentError != nil {
			return nil, contentError
		}

		var parsedDocument any
		if unmarshalError := yaml.Unmarshal(templateContent, &parsedDocument); unmarshalError != nil {
			return nil, InvalidWorkflowTemplateError{TemplatePath: templatePath, Cause: unmarshalError}
		}

		templates = append(templates, workflowTemplate{fileName: directoryEntry.Name(), content: templateContent})
	}

	return templates, nil
}
