package githubcli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/chris11-taylor-nttd/org-migration-script/internal/execshell"
)

const (
	repoSubcommandConstant                    = "repo"
	viewSubcommandConstant                    = "view"
	listSubcommandConstant                    = "list"
	apiSubcommandConstant                     = "api"
	jsonFlagConstant                          = "--json"
	limitFlagConstant                         = "--limit"
	methodFlagConstant                        = "-X"
	inputFlagConstant                         = "--input"
	stdinReferenceConstant                    = "-"
	fieldFlagConstant                         = "-f"
	acceptHeaderFlagConstant                  = "-H"
	acceptHeaderValueConstant                 = "Accept: application/vnd.github+json"
	teamRepositoryAcceptHeaderValueConstant   = "Accept: application/vnd.github.v3.repository+json"
	httpMethodPostConstant                    = "POST"
	httpMethodPutConstant                     = "PUT"
	repositoryFieldNameConstant               = "repository"
	organizationFieldNameConstant             = "organization"
	teamSlugFieldNameConstant                 = "team_slug"
	permissionFieldNameConstant               = "permission"
	requiredValueMessageConstant              = "value required"
	executorNotConfiguredMessageConstant      = "github cli executor not configured"
	operationErrorMessageTemplateConstant     = "%s operation failed"
	operationErrorWithCauseTemplateConstant   = "%s operation failed: %s"
	responseDecodingErrorTemplateConstant     = "%s response decoding failed: %s"
	payloadEncodingErrorTemplateConstant      = "%s payload encoding failed: %s"
	invalidInputErrorTemplateConstant         = "%s: %s"
	repositoryListLimitDefaultValueConstant   = 1000
	repoViewJSONFieldsConstant                = "name,nameWithOwner,description,url,defaultBranchRef"
	repoListJSONFieldsConstant                = "name,url"
	gitSuffixConstant                         = ".git"
	organizationReposEndpointTemplateConstant = "orgs/%s/repos"
	teamRepositoryEndpointTemplateConstant    = "orgs/%s/teams/%s/repos/%s/%s"
	permissionFieldAssignmentTemplateConstant = "permission=%s"
	repositoryMetadataOperationNameConstant   = OperationName("ResolveRepoMetadata")
	listRepositoriesOperationNameConstant     = OperationName("ListOrganizationRepositories")
	createRepositoryOperationNameConstant     = OperationName("CreateRepository")
	updateTeamPermissionOperationNameConstant = OperationName("UpdateTeamRepositoryPermission")
	readTeamPermissionOperationNameConstant   = OperationName("GetTeamRepositoryPermission")
)

// OperationName describes a named GitHub CLI workflow supported by the client.
type OperationName string

// TeamPermission enumerates permission levels assignable to a team on a repository.
type TeamPermission string

// Team permission enumerations.
const (
	TeamPermissionPull     TeamPermission = "pull"
	TeamPermissionTriage   TeamPermission = "triage"
	TeamPermissionPush     TeamPermission = "push"
	TeamPermissionMaintain TeamPermission = "maintain"
	TeamPermissionAdmin    TeamPermission = "admin"
)

// RepositoryMetadata contains key details resolved from GitHub.
type RepositoryMetadata struct {
	Name          string
	NameWithOwner string
	Description   string
	CloneURL      string
	DefaultBranch string
}

// RepositoryHandle identifies a repository returned by organization listings.
type RepositoryHandle struct {
	Name     string
	CloneURL string
}

// CreateRepositoryOptions configures organization repository creation.
type CreateRepositoryOptions struct {
	Name                string
	Visibility          string
	Private             bool
	AllowMergeCommit    bool
	AllowRebaseMerge    bool
	AllowSquashMerge    bool
	AllowUpdateBranch   bool
	DeleteBranchOnMerge bool
}

// CreatedRepository reports the outcome of repository creation.
type CreatedRepository struct {
	Name     string
	HTMLURL  string
	CloneURL string
}

// GitHubCommandExecutor is the minimal interface required from execshell.ShellExecutor.
type GitHubCommandExecutor interface {
	ExecuteGitHubCLI(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Client coordinates GitHub CLI invocations through execshell.
type Client struct {
	executor GitHubCommandExecutor
}

// ErrExecutorNotConfigured indicates the client was constructed without an executor.
var ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)

// InvalidInputError surfaces validation issues for operation inputs.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// OperationError wraps execution issues for GitHub CLI operations.
type OperationError struct {
	Operation OperationName
	Cause     error
}

// Error describes the operation failure.
func (operationError OperationError) Error() string {
	if operationError.Cause == nil {
		return fmt.Sprintf(operationErrorMessageTemplateConstant, operationError.Operation)
	}
	return fmt.Sprintf(operationErrorWithCauseTemplateConstant, operationError.Operation, operationError.Cause)
}

// Unwrap exposes the underlying cause.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// ResponseDecodingError indicates JSON decoding failures.
type ResponseDecodingError struct {
	Operation OperationName
	Cause     error
}

// Error describes the decoding failure.
func (decodingError ResponseDecodingError) Error() string {
	return fmt.Sprintf(responseDecodingErrorTemplateConstant, decodingError.Operation, decodingError.Cause)
}

// Unwrap exposes the underlying JSON error.
func (decodingError ResponseDecodingError) Unwrap() error {
	return decodingError.Cause
}

// PayloadEncodingError indicates JSON encoding issues.
type PayloadEncodingError struct {
	Operation OperationName
	Cause     error
}

// Error describes the encoding failure.
func (encodingError PayloadEncodingError) Error() string {
	return fmt.Sprintf(payloadEncodingErrorTemplateConstant, encodingError.Operation, encodingError.Cause)
}

// Unwrap exposes the underlying error.
func (encodingError PayloadEncodingError) Unwrap() error {
	return encodingError.Cause
}

// NewClient constructs a GitHub CLI client.
func NewClient(executor GitHubCommandExecutor) (*Client, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	return &Client{executor: executor}, nil
}

// ResolveRepoMetadata retrieves canonical metadata for a repository using gh repo view.
func (client *Client) ResolveRepoMetadata(executionContext context.Context, repository string) (RepositoryMetadata, error) {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return RepositoryMetadata{}, InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}

	commandDetails := execshell.CommandDetails{
		Arguments: []string{
			repoSubcommandConstant,
			viewSubcommandConstant,
			repositoryIdentifier,
			jsonFlagConstant,
			repoViewJSONFieldsConstant,
		},
	}

	executionResult, executionError := client.executor.ExecuteGitHubCLI(executionContext, commandDetails)
	if executionError != nil {
		return RepositoryMetadata{}, OperationError{Operation: repositoryMetadataOperationNameConstant, Cause: executionError}
	}

	var response struct {
		Name             string `json:"name"`
		NameWithOwner    string `json:"nameWithOwner"`
		Description      string `json:"description"`
		URL              string `json:"url"`
		DefaultBranchRef struct {
			Name string `json:"name"`
		} `json:"defaultBranchRef"`
	}

	decodingError := json.Unmarshal([]byte(executionResult.StandardOutput), &response)
	if decodingError != nil {
		return RepositoryMetadata{}, ResponseDecodingError{Operation: repositoryMetadataOperationNameConstant, Cause: decodingError}
	}

	return RepositoryMetadata{
		Name:          response.Name,
		NameWithOwner: response.NameWithOwner,
		Description:   response.Description,
		CloneURL:      cloneURLFromWebURL(response.URL),
		DefaultBranch: response.DefaultBranchRef.Name,
	}, nil
}

// ListOrganizationRepositories enumerates repositories owned by an organization using gh repo list.
func (client *Client) ListOrganizationRepositories(executionContext context.Context, organization string) ([]RepositoryHandle, error) {
	organizationName := strings.TrimSpace(organization)
	if len(organizationName) == 0 {
		return nil, InvalidInputError{FieldName: organizationFieldNameConstant, Message: requiredValueMessageConstant}
	}

	commandDetails := execshell.CommandDetails{
		Arguments: []string{
			repoSubcommandConstant,
			listSubcommandConstant,
			organizationName,
			limitFlagConstant,
			strconv.Itoa(repositoryListLimitDefaultValueConstant),
			jsonFlagConstant,
			repoListJSONFieldsConstant,
		},
	}

	executionResult, executionError := client.executor.ExecuteGitHubCLI(executionContext, commandDetails)
	if executionError != nil {
		return nil, OperationError{Operation: listRepositoriesOperationNameConstant, Cause: executionError}
	}

	var response []struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}

	decodingError := json.Unmarshal([]byte(executionResult.StandardOutput), &response)
	if decodingError != nil {
		return nil, ResponseDecodingError{Operation: listRepositoriesOperationNameConstant, Cause: decodingError}
	}

	repositoryHandles := make([]RepositoryHandle, 0, len(response))
	for _, repositoryEntry := range response {
		repositoryHandles = append(repositoryHandles, RepositoryHandle{
			Name:     repositoryEntry.Name,
			CloneURL: cloneURLFromWebURL(repositoryEntry.URL),
		})
	}

	return repositoryHandles, nil
}

// CreateRepository provisions an organization repository using gh api.
func (client *Client) CreateRepository(executionContext context.Context, organization string, options CreateRepositoryOptions) (CreatedRepository, error) {
	organizationName := strings.TrimSpace(organization)
	if len(organizationName) == 0 {
		return CreatedRepository{}, InvalidInputError{FieldName: organizationFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(options.Name)) == 0 {
		return CreatedRepository{}, InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}

	payload := struct {
		Name                string `json:"name"`
		Visibility          string `json:"visibility,omitempty"`
		Private             bool   `json:"private"`
		AllowMergeCommit    bool   `json:"allow_merge_commit"`
		AllowRebaseMerge    bool   `json:"allow_rebase_merge"`
		AllowSquashMerge    bool   `json:"allow_squash_merge"`
		AllowUpdateBranch   bool   `json:"allow_update_branch"`
		DeleteBranchOnMerge bool   `json:"delete_branch_on_merge"`
	}{
		Name:                options.Name,
		Visibility:          options.Visibility,
		Private:             options.Private,
		AllowMergeCommit:    options.AllowMergeCommit,
		AllowRebaseMerge:    options.AllowRebaseMerge,
		AllowSquashMerge:    options.AllowSquashMerge,
		AllowUpdateBranch:   options.AllowUpdateBranch,
		DeleteBranchOnMerge: options.DeleteBranchOnMerge,
	}

	payloadBytes, encodingError := json.Marshal(payload)
	if encodingError != nil {
		return CreatedRepository{}, PayloadEncodingError{Operation: createRepositoryOperationNameConstant, Cause: encodingError}
	}

	commandDetails := execshell.CommandDetails{
		Arguments: []string{
			apiSubcommandConstant,
			fmt.Sprintf(organizationReposEndpointTemplateConstant, organizationName),
			methodFlagConstant,
			httpMethodPostConstant,
			inputFlagConstant,
			stdinReferenceConstant,
			acceptHeaderFlagConstant,
			acceptHeaderValueConstant,
		},
		StandardInput: payloadBytes,
	}

	executionResult, executionError := client.executor.ExecuteGitHubCLI(executionContext, commandDetails)
	if executionError != nil {
		return CreatedRepository{}, OperationError{Operation: createRepositoryOperationNameConstant, Cause: executionError}
	}

	var response struct {
		Name     string `json:"name"`
		HTMLURL  string `json:"html_url"`
		CloneURL string `json:"clone_url"`
	}

	decodingError := json.Unmarshal([]byte(executionResult.StandardOutput), &response)
	if decodingError != nil {
		return CreatedRepository{}, ResponseDecodingError{Operation: createRepositoryOperationNameConstant, Cause: decodingError}
	}

	return CreatedRepository{
		Name:     response.Name,
		HTMLURL:  response.HTMLURL,
		CloneURL: response.CloneURL,
	}, nil
}

// UpdateTeamRepositoryPermission grants a team the requested permission on a repository using gh api.
func (client *Client) UpdateTeamRepositoryPermission(executionContext context.Context, organization string, teamSlug string, repository string, permission TeamPermission) error {
	organizationName := strings.TrimSpace(organization)
	if len(organizationName) == 0 {
		return InvalidInputError{FieldName: organizationFieldNameConstant, Message: requiredValueMessageConstant}
	}
	trimmedTeamSlug := strings.TrimSpace(teamSlug)
	if len(trimmedTeamSlug) == 0 {
		return InvalidInputError{FieldName: teamSlugFieldNameConstant, Message: requiredValueMessageConstant}
	}
	repositoryName := strings.TrimSpace(repository)
	if len(repositoryName) == 0 {
		return InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(permission) == 0 {
		return InvalidInputError{FieldName: permissionFieldNameConstant, Message: requiredValueMessageConstant}
	}

	commandDetails := execshell.CommandDetails{
		Arguments: []string{
			apiSubcommandConstant,
			fmt.Sprintf(teamRepositoryEndpointTemplateConstant, organizationName, trimmedTeamSlug, organizationName, repositoryName),
			methodFlagConstant,
			httpMethodPutConstant,
			fieldFlagConstant,
			fmt.Sprintf(permissionFieldAssignmentTemplateConstant, permission),
		},
	}

	_, executionError := client.executor.ExecuteGitHubCLI(executionContext, commandDetails)
	if executionError != nil {
		return OperationError{Operation: updateTeamPermissionOperationNameConstant, Cause: executionError}
	}

	return nil
}

// GetTeamRepositoryPermission reads the effective permission a team holds on a repository.
func (client *Client) GetTeamRepositoryPermission(executionContext context.Context, organization string, teamSlug string, repository string) (TeamPermission, error) {
	organizationName := strings.TrimSpace(organization)
	if len(organizationName) == 0 {
		return "", InvalidInputError{FieldName: organizationFieldNameConstant, Message: requiredValueMessageConstant}
	}
	trimmedTeamSlug := strings.TrimSpace(teamSlug)
	if len(trimmedTeamSlug) == 0 {
		return "", InvalidInputError{FieldName: teamSlugFieldNameConstant, Message: requiredValueMessageConstant}
	}
	repositoryName := strings.TrimSpace(repository)
	if len(repositoryName) == 0 {
		return "", InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}

	commandDetails := execshell.CommandDetails{
		Arguments: []string{
			apiSubcommandConstant,
			fmt.Sprintf(teamRepositoryEndpointTemplateConstant, organizationName, trimmedTeamSlug, organizationName, repositoryName),
			acceptHeaderFlagConstant,
			teamRepositoryAcceptHeaderValueConstant,
		},
	}

	executionResult, executionError := client.executor.ExecuteGitHubCLI(executionContext, commandDetails)
	if executionError != nil {
		return "", OperationError{Operation: readTeamPermissionOperationNameConstant, Cause: executionError}
	}

	var response struct {
		Permissions struct {
			Admin    bool `json:"admin"`
			Maintain bool `json:"maintain"`
			Push     bool `json:"push"`
			Triage   bool `json:"triage"`
			Pull     bool `json:"pull"`
		} `json:"permissions"`
	}

	decodingError := json.Unmarshal([]byte(executionResult.StandardOutput), &response)
	if decodingError != nil {
		return "", ResponseDecodingError{Operation: readTeamPermissionOperationNameConstant, Cause: decodingError}
	}

	switch {
	case response.Permissions.Admin:
		return TeamPermissionAdmin, nil
	case response.Permissions.Maintain:
		return TeamPermissionMaintain, nil
	case response.Permissions.Push:
		return TeamPermissionPush, nil
	case response.Permissions.Triage:
		return TeamPermissionTriage, nil
	case response.Permissions.Pull:
		return TeamPermissionPull, nil
	default:
		return "", nil
	}
}

func cloneURLFromWebURL(webURL string) string {
	trimmedWebURL := strings.TrimSpace(webURL)
	if len(trimmedWebURL) == 0 {
		return ""
	}
	if strings.HasSuffix(trimmedWebURL, gitSuffixConstant) {
		return trimmedWebURL
	}
	return trimmedWebURL + gitSuffixConstant
}
