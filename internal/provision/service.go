package provision

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/chris11-taylor-nttd/org-migration-script/internal/githubcli"
)

const (
	loggerMissingMessageConstant            = "logger not configured"
	repositoryCreatorMissingMessageConstant = "repository creator not configured"
	organizationMissingMessageConstant      = "organization not configured"
	repositoryNameMissingMessageConstant    = "repository name not configured"
	internalVisibilityConstant              = "internal"
	repositoryLogFieldConstant              = "repository"
	repositoryURLLogFieldConstant           = "url"
	repositoryCreatedMessageConstant        = "Repository created"
)

// Sentinel errors surfaced by the service.
var (
	ErrLoggerNotConfigured            = errors.New(loggerMissingMessageConstant)
	ErrRepositoryCreatorNotConfigured = errors.New(repositoryCreatorMissingMessageConstant)
	ErrOrganizationNotConfigured      = errors.New(organizationMissingMessageConstant)
	ErrRepositoryNameNotConfigured    = errors.New(repositoryNameMissingMessageConstant)
)

// RepositoryCreator provisions repositories through the GitHub API.
type RepositoryCreator interface {
	CreateRepository(executionContext context.Context, organization string, options githubcli.CreateRepositoryOptions) (githubcli.CreatedRepository, error)
}

// ServiceDependencies bundles the collaborators required by the service.
type ServiceDependencies struct {
	Logger            *zap.Logger
	RepositoryCreator RepositoryCreator
}

// CreateOptions configures one provisioning request.
type CreateOptions struct {
	Organization   string
	RepositoryName string
}

// Service creates repositories with squash-only merges, branch auto-update,
// branch deletion on merge, and internal visibility.
type Service struct {
	logger            *zap.Logger
	repositoryCreator RepositoryCreator
}

// NewService validates dependencies and constructs a Service.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.Logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if dependencies.RepositoryCreator == nil {
		return nil, ErrRepositoryCreatorNotConfigured
	}
	return &Service{logger: dependencies.Logger, repositoryCreator: dependencies.RepositoryCreator}, nil
}

// Execute creates the repository with the house policy and returns it.
func (service *Service) Execute(executionContext context.Context, options CreateOptions) (githubcli.CreatedRepository, error) {
	if len(strings.TrimSpace(options.Organization)) == 0 {
		return githubcli.CreatedRepository{}, ErrOrganizationNotConfigured
	}
	repositoryName := strings.TrimSpace(options.RepositoryName)
	if len(repositoryName) == 0 {
		return githubcli.CreatedRepository{}, ErrRepositoryNameNotConfigured
	}

	createdRepository, creationError := service.repositoryCreator.CreateRepository(executionContext, options.Organization, githubcli.CreateRepositoryOptions{
		Name:                repositoryName,
		Visibility:          internalVisibilityConstant,
		AllowSquashMerge:    true,
		AllowUpdateBranch:   true,
		DeleteBranchOnMerge: true,
	})
	if creationError != nil {
		return githubcli.CreatedRepository{}, creationError
	}

	service.logger.Info(repositoryCreatedMessageConstant,
		zap.String(repositoryLogFieldConstant, createdRepository.Name),
		zap.String(repositoryURLLogFieldConstant, createdRepository.HTMLURL),
	)
	return createdRepository, nil
}
