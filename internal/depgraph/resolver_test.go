package depgraph_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/chris11-taylor-nttd/org-migration-script/internal/depgraph"
	"github.com/chris11-taylor-nttd/org-migration-script/internal/githubcli"
)

type fakeMetadataResolver struct {
	metadataByIdentity map[string]githubcli.RepositoryMetadata
	callCounts         map[string]int
}

func newFakeMetadataResolver(identities ...string) *fakeMetadataResolver {
	metadataByIdentity := make(map[string]githubcli.RepositoryMetadata, len(identities))
	for _, identity := range identities {
		metadataByIdentity[identity] = githubcli.RepositoryMetadata{
			NameWithOwner: identity,
			CloneURL:      fmt.Sprintf("https://github.com/%s.git", identity),
			DefaultBranch: "main",
		}
	}
	return &fakeMetadataResolver{metadataByIdentity: metadataByIdentity, callCounts: make(map[string]int)}
}

func (resolver *fakeMetadataResolver) ResolveRepoMetadata(_ context.Context, repository string) (githubcli.RepositoryMetadata, error) {
	resolver.callCounts[repository]++
	metadata, found := resolver.metadataByIdentity[repository]
	if !found {
		return githubcli.RepositoryMetadata{}, fmt.Errorf("unknown repository %s", repository)
	}
	return metadata, nil
}

// fakeWorkingCopyManager materializes working copies on the real filesystem so
// the resolver's entry point and examples scanning runs against actual files.
type fakeWorkingCopyManager struct {
	entryPointContents     map[string]string
	exampleContents        map[string]map[string]string
	headTagsByRepository   map[string][]string
	tagsByRepository       map[string][]string
	remoteURLByPath        map[string]string
	cloneFailuresRemaining map[string]int
	cloneTargets           []string
	checkedOutRevisions    []string
}

func newFakeWorkingCopyManager() *fakeWorkingCopyManager {
	return &fakeWorkingCopyManager{
		entryPointContents:     make(map[string]string),
		exampleContents:        make(map[string]map[string]string),
		headTagsByRepository:   make(map[string][]string),
		tagsByRepository:       make(map[string][]string),
		remoteURLByPath:        make(map[string]string),
		cloneFailuresRemaining: make(map[string]int),
	}
}

func (manager *fakeWorkingCopyManager) CloneRepository(_ context.Context, _ string, targetPath string) error {
	manager.cloneTargets = append(manager.cloneTargets, targetPath)
	repositoryName := filepath.Base(targetPath)
	if manager.cloneFailuresRemaining[repositoryName] > 0 {
		manager.cloneFailuresRemaining[repositoryName]--
		return fmt.Errorf("transient clone failure for %s", repositoryName)
	}
	if makeError := os.MkdirAll(targetPath, 0o755); makeError != nil {
		return makeError
	}
	if entryPointContent, found := manager.entryPointContents[repositoryName]; found {
		if writeError := os.WriteFile(filepath.Join(targetPath, "main.tf"), []byte(entryPointContent), 0o644); writeError != nil {
			return writeError
		}
	}
	for exampleName, exampleContent := range manager.exampleContents[repositoryName] {
		examplePath := filepath.Join(targetPath, "examples", exampleName)
		if makeError := os.MkdirAll(examplePath, 0o755); makeError != nil {
			return makeError
		}
		if writeError := os.WriteFile(filepath.Join(examplePath, "main.tf"), []byte(exampleContent), 0o644); writeError != nil {
			return writeError
		}
	}
	return nil
}

func (manager *fakeWorkingCopyManager) CheckoutRevision(_ context.Context, _ string, revision string) error {
	manager.checkedOutRevisions = append(manager.checkedOutRevisions, revision)
	return nil
}

func (manager *fakeWorkingCopyManager) GetRemoteURL(_ context.Context, repositoryPath string, _ string) (string, error) {
	remoteURL, found := manager.remoteURLByPath[repositoryPath]
	if !found {
		return "", fmt.Errorf("no remote configured for %s", repositoryPath)
	}
	return remoteURL, nil
}

func (manager *fakeWorkingCopyManager) GetCurrentBranch(_ context.Context, _ string) (string, error) {
	return "main", nil
}

func (manager *fakeWorkingCopyManager) ListTags(_ context.Context, repositoryPath string) ([]string, error) {
	return manager.tagsByRepository[filepath.Base(repositoryPath)], nil
}

func (manager *fakeWorkingCopyManager) TagsPointingAtHead(_ context.Context, repositoryPath string) ([]string, error) {
	return manager.headTagsByRepository[filepath.Base(repositoryPath)], nil
}

func (manager *fakeWorkingCopyManager) FindRepositoryRoot(startPath string, searchBoundary string) (string, error) {
	currentPath := filepath.Clean(startPath)
	boundaryPath := filepath.Clean(searchBoundary)
	for {
		if pathInformation, statError := os.Stat(filepath.Join(currentPath, ".git")); statError == nil && pathInformation.IsDir() {
			return currentPath, nil
		}
		if currentPath == boundaryPath {
			return "", errors.New("no repository root found")
		}
		parentPath := filepath.Dir(currentPath)
		if parentPath == currentPath {
			return "", errors.New("no repository root found")
		}
		currentPath = parentPath
	}
}

func newResolverForTest(testInstance *testing.T, metadataResolver *fakeMetadataResolver, workingCopies *fakeWorkingCopyManager, workingRoot string, failurePolicy depgraph.FailurePolicy) *depgraph.Resolver {
	resolver, creationError := depgraph.NewResolver(
		depgraph.ResolverDependencies{
			Logger:           zaptest.NewLogger(testInstance),
			MetadataResolver: metadataResolver,
			WorkingCopies:    workingCopies,
		},
		depgraph.ResolverConfiguration{WorkingRoot: workingRoot, FailurePolicy: failurePolicy},
	)
	require.NoError(testInstance, creationError)
	return resolver
}

func TestNewResolverValidatesDependencies(testInstance *testing.T) {
	testCases := []struct {
		name          string
		dependencies  depgraph.ResolverDependencies
		configuration depgraph.ResolverConfiguration
		expectedError error
	}{
		{
			name:          "missing_logger",
			dependencies:  depgraph.ResolverDependencies{MetadataResolver: newFakeMetadataResolver(), WorkingCopies: newFakeWorkingCopyManager()},
			configuration: depgraph.ResolverConfiguration{WorkingRoot: "work"},
			expectedError: depgraph.ErrLoggerNotConfigured,
		},
		{
			name:          "missing_working_root",
			dependencies:  depgraph.ResolverDependencies{Logger: zaptest.NewLogger(testInstance), MetadataResolver: newFakeMetadataResolver(), WorkingCopies: newFakeWorkingCopyManager()},
			configuration: depgraph.ResolverConfiguration{},
			expectedError: depgraph.ErrWorkingRootNotConfigured,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			resolver, creationError := depgraph.NewResolver(testCase.dependencies, testCase.configuration)
			require.Nil(testInstance, resolver)
			require.ErrorIs(testInstance, creationError, testCase.expectedError)
		})
	}
}

func TestResolveRepositoryMemoizesByIdentity(testInstance *testing.T) {
	workingRoot := testInstance.TempDir()
	metadataResolver := newFakeMetadataResolver("org1/repoA")
	workingCopies := newFakeWorkingCopyManager()
	resolver := newResolverForTest(testInstance, metadataResolver, workingCopies, workingRoot, depgraph.FailurePolicyFailFast)

	firstResult, firstError := resolver.ResolveRepository(context.Background(), "org1", "repoA", "")
	require.NoError(testInstance, firstError)
	secondResult, secondError := resolver.ResolveRepository(context.Background(), "org1", "repoA", "")
	require.NoError(testInstance, secondError)

	require.Same(testInstance, firstResult, secondResult)
	require.Len(testInstance, workingCopies.cloneTargets, 1)
	require.Equal(testInstance, 1, metadataResolver.callCounts["org1/repoA"])
}

func TestResolveRepositoryResolvesTransitiveDependenciesInOrder(testInstance *testing.T) {
	workingRoot := testInstance.TempDir()
	metadataResolver := newFakeMetadataResolver("org1/repoA", "org1/repoB")
	workingCopies := newFakeWorkingCopyManager()
	workingCopies.entryPointContents["repoA"] = `
source = "git::https://github.com/org1/repoB.git?ref=v1.0.0"
source = "registry.example.com/module/aws"
`
	workingCopies.entryPointContents["repoB"] = `source = "./local"`
	resolver := newResolverForTest(testInstance, metadataResolver, workingCopies, workingRoot, depgraph.FailurePolicyFailFast)

	resolvedModule, resolutionError := resolver.ResolveRepository(context.Background(), "org1", "repoA", "")
	require.NoError(testInstance, resolutionError)

	require.Len(testInstance, resolvedModule.Dependencies, 2)
	require.Equal(testInstance, depgraph.DependencyKindManaged, resolvedModule.Dependencies[0].Kind)
	require.Equal(testInstance, "repoB", resolvedModule.Dependencies[0].Name())
	require.Equal(testInstance, depgraph.DependencyKindExternal, resolvedModule.Dependencies[1].Kind)
	require.Equal(testInstance, "registry.example.com/module/aws", resolvedModule.Dependencies[1].Name())

	require.Len(testInstance, resolvedModule.Dependencies[0].Managed.Dependencies, 1)
	require.Equal(testInstance, "./local", resolvedModule.Dependencies[0].Managed.Dependencies[0].Name())
	require.Contains(testInstance, workingCopies.checkedOutRevisions, "v1.0.0")
}

func TestResolveRepositoryPrefersTagOverBranchHead(testInstance *testing.T) {
	workingRoot := testInstance.TempDir()
	metadataResolver := newFakeMetadataResolver("org1/repoA")
	workingCopies := newFakeWorkingCopyManager()
	workingCopies.headTagsByRepository["repoA"] = []string{"v2.0.0"}
	workingCopies.tagsByRepository["repoA"] = []string{"v1.0.0", "v2.0.0"}
	resolver := newResolverForTest(testInstance, metadataResolver, workingCopies, workingRoot, depgraph.FailurePolicyFailFast)

	resolvedModule, resolutionError := resolver.ResolveRepository(context.Background(), "org1", "repoA", "")
	require.NoError(testInstance, resolutionError)
	require.Equal(testInstance, "v2.0.0", resolvedModule.Revision)
	require.Equal(testInstance, []string{"v1.0.0", "v2.0.0"}, resolvedModule.Tags)
}

func TestResolveRepositoryRetriesCloneOnce(testInstance *testing.T) {
	testCases := []struct {
		name          string
		cloneFailures int
		expectError   bool
	}{
		{name: "transient_failure_recovers", cloneFailures: 1},
		{name: "persistent_failure_surfaces", cloneFailures: 2, expectError: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			workingRoot := testInstance.TempDir()
			metadataResolver := newFakeMetadataResolver("org1/repoA")
			workingCopies := newFakeWorkingCopyManager()
			workingCopies.cloneFailuresRemaining["repoA"] = testCase.cloneFailures
			resolver := newResolverForTest(testInstance, metadataResolver, workingCopies, workingRoot, depgraph.FailurePolicyFailFast)

			resolvedModule, resolutionError := resolver.ResolveRepository(context.Background(), "org1", "repoA", "")
			require.Len(testInstance, workingCopies.cloneTargets, 2)
			if testCase.expectError {
				require.Nil(testInstance, resolvedModule)
				require.ErrorAs(testInstance, resolutionError, &depgraph.FetchFailureError{})
				return
			}
			require.NoError(testInstance, resolutionError)
			require.Equal(testInstance, "repoA", resolvedModule.Name)
		})
	}
}

func TestResolveRepositoryFailedResolutionIsNotCached(testInstance *testing.T) {
	workingRoot := testInstance.TempDir()
	metadataResolver := newFakeMetadataResolver("org1/repoA")
	workingCopies := newFakeWorkingCopyManager()
	workingCopies.cloneFailuresRemaining["repoA"] = 2
	resolver := newResolverForTest(testInstance, metadataResolver, workingCopies, workingRoot, depgraph.FailurePolicyFailFast)

	_, firstError := resolver.ResolveRepository(context.Background(), "org1", "repoA", "")
	require.Error(testInstance, firstError)

	resolvedModule, secondError := resolver.ResolveRepository(context.Background(), "org1", "repoA", "")
	require.NoError(testInstance, secondError)
	require.Equal(testInstance, "repoA", resolvedModule.Name)
}

func TestResolveRepositoryExpandsOneLevelOfExamples(testInstance *testing.T) {
	workingRoot := testInstance.TempDir()
	metadataResolver := newFakeMetadataResolver("org1/repoA", "org1/repoB")
	workingCopies := newFakeWorkingCopyManager()
	workingCopies.exampleContents["repoA"] = map[string]string{
		"basic": `
source = "../.."
source = "git::https://github.com/org1/repoB.git?ref=v1.0.0"
`,
	}
	resolver := newResolverForTest(testInstance, metadataResolver, workingCopies, workingRoot, depgraph.FailurePolicyFailFast)

	resolvedModule, resolutionError := resolver.ResolveRepository(context.Background(), "org1", "repoA", "")
	require.NoError(testInstance, resolutionError)

	require.Len(testInstance, resolvedModule.Examples, 1)
	exampleModule := resolvedModule.Examples[0]
	require.Equal(testInstance, "repoA/examples/basic", exampleModule.Name)
	require.Empty(testInstance, exampleModule.Examples)
	require.Len(testInstance, exampleModule.Dependencies, 1)
	require.Equal(testInstance, "repoB", exampleModule.Dependencies[0].Name())
}

func TestResolveRepositoryDetectsDependencyCycle(testInstance *testing.T) {
	workingRoot := testInstance.TempDir()
	metadataResolver := newFakeMetadataResolver("org1/repoA", "org1/repoB")
	workingCopies := newFakeWorkingCopyManager()
	workingCopies.entryPointContents["repoA"] = `source = "git::https://github.com/org1/repoB.git?ref=v1.0.0"`
	workingCopies.entryPointContents["repoB"] = `source = "git::https://github.com/org1/repoA.git?ref=v1.0.0"`

	testInstance.Run("fail_fast_surfaces_cycle_error", func(testInstance *testing.T) {
		resolver := newResolverForTest(testInstance, metadataResolver, workingCopies, workingRoot, depgraph.FailurePolicyFailFast)
		resolvedModule, resolutionError := resolver.ResolveRepository(context.Background(), "org1", "repoA", "")
		require.Nil(testInstance, resolvedModule)
		require.ErrorAs(testInstance, resolutionError, &depgraph.CycleDetectedError{})
	})

	testInstance.Run("continue_policy_skips_cycle_edge", func(testInstance *testing.T) {
		resolver := newResolverForTest(testInstance, metadataResolver, workingCopies, workingRoot, depgraph.FailurePolicyContinue)
		resolvedModule, resolutionError := resolver.ResolveRepository(context.Background(), "org1", "repoA", "")
		require.NoError(testInstance, resolutionError)
		require.Len(testInstance, resolvedModule.Dependencies, 1)
		require.Equal(testInstance, "repoB", resolvedModule.Dependencies[0].Name())
		require.Empty(testInstance, resolvedModule.Dependencies[0].Managed.Dependencies)
	})
}

func TestResolveRepositoryFailureIsolationWithContinuePolicy(testInstance *testing.T) {
	workingRoot := testInstance.TempDir()
	metadataResolver := newFakeMetadataResolver("org1/repoA", "org1/repoC")
	workingCopies := newFakeWorkingCopyManager()
	workingCopies.entryPointContents["repoA"] = `
source = "git::https://github.com/org1"
source = "git::https://github.com/org1/repoC.git?ref=v1.0.0"
source = "registry.example.com/module/aws"
`
	resolver := newResolverForTest(testInstance, metadataResolver, workingCopies, workingRoot, depgraph.FailurePolicyContinue)

	resolvedModule, resolutionError := resolver.ResolveRepository(context.Background(), "org1", "repoA", "")
	require.NoError(testInstance, resolutionError)
	require.Len(testInstance, resolvedModule.Dependencies, 2)
	require.Equal(testInstance, "repoC", resolvedModule.Dependencies[0].Name())
	require.Equal(testInstance, "registry.example.com/module/aws", resolvedModule.Dependencies[1].Name())
}

func TestResolveDirectoryGuardsRootAgainstReentrantResolution(testInstance *testing.T) {
	setupDirectoryCycle := func(testInstance *testing.T) (string, string, *fakeMetadataResolver, *fakeWorkingCopyManager) {
		workingRoot := testInstance.TempDir()
		repositoryPath := filepath.Join(workingRoot, "repoA")
		require.NoError(testInstance, os.MkdirAll(filepath.Join(repositoryPath, ".git"), 0o755))
		require.NoError(testInstance, os.WriteFile(
			filepath.Join(repositoryPath, "main.tf"),
			[]byte(`source = "git::https://github.com/org1/repoB.git?ref=v1.0.0"`),
			0o644,
		))

		metadataResolver := newFakeMetadataResolver("org1/repoB")
		workingCopies := newFakeWorkingCopyManager()
		workingCopies.remoteURLByPath[repositoryPath] = "https://github.com/org1/repoA.git"
		workingCopies.entryPointContents["repoB"] = `source = "git::https://github.com/org1/repoA.git?ref=v1.0.0"`
		return workingRoot, repositoryPath, metadataResolver, workingCopies
	}

	testInstance.Run("fail_fast_surfaces_cycle_error", func(testInstance *testing.T) {
		workingRoot, repositoryPath, metadataResolver, workingCopies := setupDirectoryCycle(testInstance)
		resolver := newResolverForTest(testInstance, metadataResolver, workingCopies, workingRoot, depgraph.FailurePolicyFailFast)

		resolvedModule, resolutionError := resolver.ResolveDirectory(context.Background(), repositoryPath)
		require.Nil(testInstance, resolvedModule)
		require.ErrorAs(testInstance, resolutionError, &depgraph.CycleDetectedError{})
		require.NotContains(testInstance, workingCopies.cloneTargets, repositoryPath)
	})

	testInstance.Run("continue_policy_skips_cycle_edge", func(testInstance *testing.T) {
		workingRoot, repositoryPath, metadataResolver, workingCopies := setupDirectoryCycle(testInstance)
		resolver := newResolverForTest(testInstance, metadataResolver, workingCopies, workingRoot, depgraph.FailurePolicyContinue)

		resolvedModule, resolutionError := resolver.ResolveDirectory(context.Background(), repositoryPath)
		require.NoError(testInstance, resolutionError)
		require.Len(testInstance, resolvedModule.Dependencies, 1)
		require.Equal(testInstance, "repoB", resolvedModule.Dependencies[0].Name())
		require.Empty(testInstance, resolvedModule.Dependencies[0].Managed.Dependencies)

		require.Equal(testInstance, []string{filepath.Join(workingRoot, "repoB")}, workingCopies.cloneTargets)
	})
}

func TestResolveDirectoryDerivesIdentityFromRemote(testInstance *testing.T) {
	workingRoot := testInstance.TempDir()
	repositoryPath := filepath.Join(workingRoot, "repoA")
	nestedPath := filepath.Join(repositoryPath, "modules", "inner")
	require.NoError(testInstance, os.MkdirAll(filepath.Join(repositoryPath, ".git"), 0o755))
	require.NoError(testInstance, os.MkdirAll(nestedPath, 0o755))
	require.NoError(testInstance, os.WriteFile(filepath.Join(repositoryPath, "main.tf"), []byte(`source = "./local"`), 0o644))

	metadataResolver := newFakeMetadataResolver()
	workingCopies := newFakeWorkingCopyManager()
	workingCopies.remoteURLByPath[repositoryPath] = "https://github.com/org1/repoA.git"
	resolver := newResolverForTest(testInstance, metadataResolver, workingCopies, workingRoot, depgraph.FailurePolicyFailFast)

	resolvedModule, resolutionError := resolver.ResolveDirectory(context.Background(), nestedPath)
	require.NoError(testInstance, resolutionError)
	require.Equal(testInstance, "repoA", resolvedModule.Name)
	require.Equal(testInstance, repositoryPath, resolvedModule.LocalPath)
	require.Len(testInstance, resolvedModule.Dependencies, 1)
	require.Empty(testInstance, workingCopies.cloneTargets)

	cachedModule, cachedError := resolver.ResolveRepository(context.Background(), "org1", "repoA", "")
	require.NoError(testInstance, cachedError)
	require.Same(testInstance, resolvedModule, cachedModule)
}
