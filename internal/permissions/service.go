package permissions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/chris11-taylor-nttd/org-migration-script/internal/githubcli"
)

const (
	loggerMissingMessageConstant           = "logger not configured"
	permissionClientMissingMessageConstant = "permission client not configured"
	organizationMissingMessageConstant     = "organization not configured"
	assignmentsMissingMessageConstant      = "no permission assignments configured"
	grantFailureMessageTemplateConstant    = "permission grant failed for %s on %s: %w"
	repositoryLogFieldConstant             = "repository"
	teamLogFieldConstant                   = "team"
	permissionLogFieldConstant             = "permission"
	grantUpdatedMessageConstant            = "Team permission updated"
	grantUnchangedMessageConstant          = "Team permission already satisfied"
	grantFailedMessageConstant             = "Team permission update failed"
)

// Sentinel errors surfaced by the service.
var (
	ErrLoggerNotConfigured           = errors.New(loggerMissingMessageConstant)
	ErrPermissionClientNotConfigured = errors.New(permissionClientMissingMessageConstant)
	ErrOrganizationNotConfigured     = errors.New(organizationMissingMessageConstant)
	ErrAssignmentsNotConfigured      = errors.New(assignmentsMissingMessageConstant)
)

// PermissionClient performs the GitHub operations needed to apply grants.
type PermissionClient interface {
	ListOrganizationRepositories(executionContext context.Context, organization string) ([]githubcli.RepositoryHandle, error)
	GetTeamRepositoryPermission(executionContext context.Context, organization string, teamSlug string, repository string) (githubcli.TeamPermission, error)
	UpdateTeamRepositoryPermission(executionContext context.Context, organization string, teamSlug string, repository string, permission githubcli.TeamPermission) error
}

// Assignment grants one team a permission, optionally scoped to repositories
// matching a name prefix.
type Assignment struct {
	TeamSlug         string
	Permission       githubcli.TeamPermission
	RepositoryPrefix string
}

// ServiceDependencies bundles the collaborators required by the service.
type ServiceDependencies struct {
	Logger           *zap.Logger
	PermissionClient PermissionClient
}

// ApplyOptions configures one application run.
type ApplyOptions struct {
	Organization     string
	RepositoryPrefix string
	Assignments      []Assignment
}

// GrantRecord identifies one applied or verified grant.
type GrantRecord struct {
	Repository string
	TeamSlug   string
	Permission githubcli.TeamPermission
}

// ApplyResult aggregates grant outcomes.
type ApplyResult struct {
	UpdatedGrants   []GrantRecord
	UnchangedGrants []GrantRecord
}

// Service applies team permission assignments.
type Service struct {
	logger           *zap.Logger
	permissionClient PermissionClient
}

// NewService validates dependencies and constructs a Service.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.Logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if dependencies.PermissionClient == nil {
		return nil, ErrPermissionClientNotConfigured
	}
	return &Service{logger: dependencies.Logger, permissionClient: dependencies.PermissionClient}, nil
}

// Execute lists the organization repositories and applies every matching
// assignment, skipping grants the repository already satisfies. Per grant
// failures are aggregated and do not stop the run.
func (service *Service) Execute(executionContext context.Context, options ApplyOptions) (ApplyResult, error) {
	if len(strings.TrimSpace(options.Organization)) == 0 {
		return ApplyResult{}, ErrOrganizationNotConfigured
	}
	if len(options.Assignments) == 0 {
		return ApplyResult{}, ErrAssignmentsNotConfigured
	}

	repositories, listError := service.permissionClient.ListOrganizationRepositories(executionContext, options.Organization)
	if listError != nil {
		return ApplyResult{}, listError
	}

	var result ApplyResult
	var grantErrors []error

	for _, repository := range repositories {
		if !strings.HasPrefix(repository.Name, options.RepositoryPrefix) {
			continue
		}

		for _, assignment := range options.Assignments {
			if !strings.HasPrefix(repository.Name, assignment.RepositoryPrefix) {
				continue
			}

			grantRecord := GrantRecord{
				Repository: repository.Name,
				TeamSlug:   assignment.TeamSlug,
				Permission: assignment.Permission,
			}

			currentPermission, readError := service.permissionClient.GetTeamRepositoryPermission(executionContext, options.Organization, assignment.TeamSlug, repository.Name)
			if readError == nil && currentPermission == assignment.Permission {
				service.logGrant(grantUnchangedMessageConstant, grantRecord)
				result.UnchangedGrants = append(result.UnchangedGrants, grantRecord)
				continue
			}

			updateError := service.permissionClient.UpdateTeamRepositoryPermission(executionContext, options.Organization, assignment.TeamSlug, repository.Name, assignment.Permission)
			if updateError != nil {
				wrappedError := fmt.Errorf(grantFailureMessageTemplateConstant, assignment.TeamSlug, repository.Name, updateError)
				service.logger.Warn(grantFailedMessageConstant,
					zap.String(repositoryLogFieldConstant, repository.Name),
					zap.String(teamLogFieldConstant, assignment.TeamSlug),
					zap.Error(updateError),
				)
				grantErrors = append(grantErrors, wrappedError)
				continue
			}

			service.logGrant(grantUpdatedMessageConstant, grantRecord)
			result.UpdatedGrants = append(result.UpdatedGrants, grantRecord)
		}
	}

	return result, errors.Join(grantErrors...)
}

func (service *Service) logGrant(message string, grantRecord GrantRecord) {
	service.logger.Info(message,
		zap.String(repositoryLogFieldConstant, grantRecord.Repository),
		zap.String(teamLogFieldConstant, grantRecord.TeamSlug),
		zap.String(permissionLogFieldConstant, string(grantRecord.Permission)),
	)
}
