package workflows_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/chris11-taylor-nttd/org-migration-script/internal/githubcli"
	"github.com/chris11-taylor-nttd/org-migration-script/internal/workflows"
)

type fakeRepositoryLister struct {
	repositories []githubcli.RepositoryHandle
	listCalls    int
}

func (lister *fakeRepositoryLister) ListOrganizationRepositories(_ context.Context, _ string) ([]githubcli.RepositoryHandle, error) {
	lister.listCalls++
	return lister.repositories, nil
}

type fakeRepositoryEditor struct {
	cloneErrorsByRepository map[string]error
	cleanRepositories       map[string]bool
	cloneTargets            []string
	stagedPathsByRepository map[string][]string
	commitMessages          []string
	pushedRemotes           []string
}

func newFakeRepositoryEditor() *fakeRepositoryEditor {
	return &fakeRepositoryEditor{
		cloneErrorsByRepository: make(map[string]error),
		cleanRepositories:       make(map[string]bool),
		stagedPathsByRepository: make(map[string][]string),
	}
}

func (editor *fakeRepositoryEditor) CloneRepository(_ context.Context, _ string, targetPath string) error {
	editor.cloneTargets = append(editor.cloneTargets, targetPath)
	repositoryName := filepath.Base(targetPath)
	if cloneError, found := editor.cloneErrorsByRepository[repositoryName]; found {
		return cloneError
	}
	return os.MkdirAll(targetPath, 0o755)
}

func (editor *fakeRepositoryEditor) StageFiles(_ context.Context, repositoryPath string, paths []string) error {
	editor.stagedPathsByRepository[filepath.Base(repositoryPath)] = paths
	return nil
}

func (editor *fakeRepositoryEditor) HasUncommittedChanges(_ context.Context, repositoryPath string) (bool, error) {
	return !editor.cleanRepositories[filepath.Base(repositoryPath)], nil
}

func (editor *fakeRepositoryEditor) CreateCommit(_ context.Context, _ string, message string) error {
	editor.commitMessages = append(editor.commitMessages, message)
	return nil
}

func (editor *fakeRepositoryEditor) PushCurrentBranch(_ context.Context, _ string, remoteName string) error {
	editor.pushedRemotes = append(editor.pushedRemotes, remoteName)
	return nil
}

func writeTemplate(testInstance *testing.T, templatesDirectory string, fileName string, content string) {
	require.NoError(testInstance, os.WriteFile(filepath.Join(templatesDirectory, fileName), []byte(content), 0o644))
}

func newServiceForTest(testInstance *testing.T, lister *fakeRepositoryLister, editor *fakeRepositoryEditor) *workflows.Service {
	service, creationError := workflows.NewService(workflows.ServiceDependencies{
		Logger:           zaptest.NewLogger(testInstance),
		RepositoryLister: lister,
		RepositoryEditor: editor,
	})
	require.NoError(testInstance, creationError)
	return service
}

func TestNewServiceValidatesDependencies(testInstance *testing.T) {
	service, creationError := workflows.NewService(workflows.ServiceDependencies{})
	require.Nil(testInstance, service)
	require.ErrorIs(testInstance, creationError, workflows.ErrLoggerNotConfigured)
}

func TestExecuteInstallsTemplatesIntoMatchingRepositories(testInstance *testing.T) {
	templatesDirectory := testInstance.TempDir()
	writeTemplate(testInstance, templatesDirectory, "ci.yml", "name: ci\non: push\n")
	writeTemplate(testInstance, templatesDirectory, "release.yaml", "name: release\non: push\n")
	writeTemplate(testInstance, templatesDirectory, "README.md", "not a workflow")

	lister := &fakeRepositoryLister{repositories: []githubcli.RepositoryHandle{
		{Name: "tf-module-a", CloneURL: "https://github.com/org1/tf-module-a.git"},
		{Name: "unrelated", CloneURL: "https://github.com/org1/unrelated.git"},
	}}
	editor := newFakeRepositoryEditor()
	service := newServiceForTest(testInstance, lister, editor)

	workingDirectory := testInstance.TempDir()
	result, executionError := service.Execute(context.Background(), workflows.InstallOptions{
		Organization:       "org1",
		RepositoryPrefix:   "tf-",
		TemplatesDirectory: templatesDirectory,
		WorkingDirectory:   workingDirectory,
		CommitMessage:      "ci: install standard workflows",
	})
	require.NoError(testInstance, executionError)

	require.Len(testInstance, result.Outcomes, 1)
	outcome := result.Outcomes[0]
	require.Equal(testInstance, "tf-module-a", outcome.Repository)
	require.True(testInstance, outcome.Committed)
	require.Equal(testInstance, []string{
		filepath.Join(".github", "workflows", "ci.yml"),
		filepath.Join(".github", "workflows", "release.yaml"),
	}, outcome.InstalledFiles)

	require.Len(testInstance, editor.cloneTargets, 1)
	require.Equal(testInstance, outcome.InstalledFiles, editor.stagedPathsByRepository["tf-module-a"])
	require.Equal(testInstance, []string{"ci: install standard workflows"}, editor.commitMessages)
	require.Equal(testInstance, []string{"origin"}, editor.pushedRemotes)

	installedContent, readError := os.ReadFile(filepath.Join(workingDirectory, "tf-module-a", ".github", "workflows", "ci.yml"))
	require.NoError(testInstance, readError)
	require.Equal(testInstance, "name: ci\non: push\n", string(installedContent))
}

func TestExecuteSkipsCommitWhenWorkingTreeIsClean(testInstance *testing.T) {
	templatesDirectory := testInstance.TempDir()
	writeTemplate(testInstance, templatesDirectory, "ci.yml", "name: ci\n")

	lister := &fakeRepositoryLister{repositories: []githubcli.RepositoryHandle{
		{Name: "tf-module-a", CloneURL: "https://github.com/org1/tf-module-a.git"},
	}}
	editor := newFakeRepositoryEditor()
	editor.cleanRepositories["tf-module-a"] = true
	service := newServiceForTest(testInstance, lister, editor)

	result, executionError := service.Execute(context.Background(), workflows.InstallOptions{
		Organization:       "org1",
		TemplatesDirectory: templatesDirectory,
		WorkingDirectory:   testInstance.TempDir(),
	})
	require.NoError(testInstance, executionError)
	require.Len(testInstance, result.Outcomes, 1)
	require.False(testInstance, result.Outcomes[0].Committed)
	require.Empty(testInstance, editor.commitMessages)
	require.Empty(testInstance, editor.pushedRemotes)
}

func TestExecuteRejectsInvalidTemplateBeforeTouchingRepositories(testInstance *testing.T) {
	templatesDirectory := testInstance.TempDir()
	writeTemplate(testInstance, templatesDirectory, "broken.yml", "name: [unclosed\n")

	lister := &fakeRepositoryLister{}
	editor := newFakeRepositoryEditor()
	service := newServiceForTest(testInstance, lister, editor)

	_, executionError := service.Execute(context.Background(), workflows.InstallOptions{
		Organization:       "org1",
		TemplatesDirectory: templatesDirectory,
		WorkingDirectory:   testInstance.TempDir(),
	})
	require.ErrorAs(testInstance, executionError, &workflows.InvalidWorkflowTemplateError{})
	require.Zero(testInstance, lister.listCalls)
	require.Empty(testInstance, editor.cloneTargets)
}

func TestExecuteIsolatesPerRepositoryFailures(testInstance *testing.T) {
	templatesDirectory := testInstance.TempDir()
	writeTemplate(testInstance, templatesDirectory, "ci.yml", "name: ci\n")

	lister := &fakeRepositoryLister{repositories: []githubcli.RepositoryHandle{
		{Name: "tf-broken", CloneURL: "https://github.com/org1/tf-broken.git"},
		{Name: "tf-healthy", CloneURL: "https://github.com/org1/tf-healthy.git"},
	}}
	editor := newFakeRepositoryEditor()
	editor.cloneErrorsByRepository["tf-broken"] = errors.New("clone rejected")
	service := newServiceForTest(testInstance, lister, editor)

	result, executionError := service.Execute(context.Background(), workflows.InstallOptions{
		Organization:       "org1",
		RepositoryPrefix:   "tf-",
		TemplatesDirectory: templatesDirectory,
		WorkingDirectory:   testInstance.TempDir(),
	})
	require.Error(testInstance, executionError)
	require.Contains(testInstance, executionError.Error(), "tf-broken")
	require.Len(testInstance, result.Outcomes, 1)
	require.Equal(testInstance, "tf-healthy", result.Outcomes[0].Repository)
}
