package provision_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/chris11-taylor-nttd/org-migration-script/internal/githubcli"
	"github.com/chris11-taylor-nttd/org-migration-script/internal/provision"
)

type fakeRepositoryCreator struct {
	recordedOrganization string
	recordedOptions      githubcli.CreateRepositoryOptions
}

func (creator *fakeRepositoryCreator) CreateRepository(_ context.Context, organization string, options githubcli.CreateRepositoryOptions) (githubcli.CreatedRepository, error) {
	creator.recordedOrganization = organization
	creator.recordedOptions = options
	return githubcli.CreatedRepository{
		Name:     options.Name,
		HTMLURL:  "https://github.com/" + organization + "/" + options.Name,
		CloneURL: "https://github.com/" + organization + "/" + options.Name + ".git",
	}, nil
}

func TestNewServiceValidatesDependencies(testInstance *testing.T) {
	service, creationError := provision.NewService(provision.ServiceDependencies{})
	require.Nil(testInstance, service)
	require.ErrorIs(testInstance, creationError, provision.ErrLoggerNotConfigured)
}

func TestExecuteAppliesHouseMergePolicy(testInstance *testing.T) {
	creator := &fakeRepositoryCreator{}
	service, creationError := provision.NewService(provision.ServiceDependencies{
		Logger:            zaptest.NewLogger(testInstance),
		RepositoryCreator: creator,
	})
	require.NoError(testInstance, creationError)

	createdRepository, executionError := service.Execute(context.Background(), provision.CreateOptions{
		Organization:   "org1",
		RepositoryName: " tf-module-new ",
	})
	require.NoError(testInstance, executionError)
	require.Equal(testInstance, "tf-module-new", createdRepository.Name)
	require.Equal(testInstance, "org1", creator.recordedOrganization)
	require.Equal(testInstance, githubcli.CreateRepositoryOptions{
		Name:                "tf-module-new",
		Visibility:          "internal",
		AllowSquashMerge:    true,
		AllowUpdateBranch:   true,
		DeleteBranchOnMerge: true,
	}, creator.recordedOptions)
}

func TestExecuteValidatesOptions(testInstance *testing.T) {
	creator := &fakeRepositoryCreator{}
	service, creationError := provision.NewService(provision.ServiceDependencies{
		Logger:            zaptest.NewLogger(testInstance),
		RepositoryCreator: creator,
	})
	require.NoError(testInstance, creationError)

	testCases := []struct {
		name          string
		options       provision.CreateOptions
		expectedError error
	}{
		{name: "missing_organization", options: provision.CreateOptions{RepositoryName: "tf-x"}, expectedError: provision.ErrOrganizationNotConfigured},
		{name: "missing_repository_name", options: provision.CreateOptions{Organization: "org1"}, expectedError: provision.ErrRepositoryNameNotConfigured},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			_, executionError := service.Execute(context.Background(), testCase.options)
			require.ErrorIs(testInstance, executionError, testCase.expectedError)
		})
	}
}
