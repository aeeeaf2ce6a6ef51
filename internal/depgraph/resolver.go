package depgraph

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/chris11-taylor-nttd/org-migration-script/internal/githubcli"
	"github.com/chris11-taylor-nttd/org-migration-script/internal/gitrepo"
)

const (
	loggerMissingMessageConstant             = "logger not configured"
	metadataResolverMissingMessageConstant   = "repository metadata resolver not configured"
	workingCopyManagerMissingMessageConstant = "working copy manager not configured"
	workingRootMissingMessageConstant        = "working root not configured"
	defaultEntryPointFileNameConstant        = "main.tf"
	defaultExamplesDirectoryNameConstant     = "examples"
	originRemoteNameConstant                 = "origin"
	mainBranchNameConstant                   = "main"
	masterBranchNameConstant                 = "master"
	repositoryIdentityTemplateConstant       = "%s/%s"
	exampleModuleNameTemplateConstant        = "%s/examples/%s"
	fetchFailureMessageTemplateConstant      = "fetch failed for %s: %s"
	cycleDetectedMessageTemplateConstant     = "dependency cycle detected at %s"
	repositoryLogFieldConstant               = "repository"
	moduleLogFieldConstant                   = "module"
	localPathLogFieldConstant                = "local_path"
	resolvingRepositoryMessageConstant       = "Resolving repository"
	retryingCloneMessageConstant             = "Retrying clone after failure"
	skippingReferenceMessageConstant         = "Skipping unparsable source reference"
	skippingDependencyMessageConstant        = "Skipping unresolvable dependency"
)

// FailurePolicy selects how dependency edge failures propagate.
type FailurePolicy string

// Failure policy enumerations.
const (
	// FailurePolicyFailFast aborts the traversal on the first edge failure.
	FailurePolicyFailFast FailurePolicy = "fail-fast"
	// FailurePolicyContinue logs edge failures and keeps resolving siblings.
	FailurePolicyContinue FailurePolicy = "continue"
)

// Sentinel errors surfaced during resolver construction.
var (
	ErrLoggerNotConfigured             = errors.New(loggerMissingMessageConstant)
	ErrMetadataResolverNotConfigured   = errors.New(metadataResolverMissingMessageConstant)
	ErrWorkingCopyManagerNotConfigured = errors.New(workingCopyManagerMissingMessageConstant)
	ErrWorkingRootNotConfigured        = errors.New(workingRootMissingMessageConstant)
)

// FetchFailureError reports a repository whose working copy could not be
// materialized after the single retry.
type FetchFailureError struct {
	RepositoryIdentity string
	Cause              error
}

// Error describes the fetch failure.
func (fetchError FetchFailureError) Error() string {
	return fmt.Sprintf(fetchFailureMessageTemplateConstant, fetchError.RepositoryIdentity, fetchError.Cause)
}

// Unwrap exposes the underlying cause.
func (fetchError FetchFailureError) Unwrap() error {
	return fetchError.Cause
}

// CycleDetectedError reports a declared dependency cycle. A repository whose
// resolution is still in progress when re-requested is part of a cycle.
type CycleDetectedError struct {
	RepositoryIdentity string
}

// Error describes the detected cycle.
func (cycleError CycleDetectedError) Error() string {
	return fmt.Sprintf(cycleDetectedMessageTemplateConstant, cycleError.RepositoryIdentity)
}

// RepositoryMetadataResolver resolves a repository identity to clone metadata.
type RepositoryMetadataResolver interface {
	ResolveRepoMetadata(executionContext context.Context, repository string) (githubcli.RepositoryMetadata, error)
}

// WorkingCopyManager performs git operations against local working copies.
type WorkingCopyManager interface {
	CloneRepository(executionContext context.Context, cloneURL string, targetPath string) error
	CheckoutRevision(executionContext context.Context, repositoryPath string, revision string) error
	GetRemoteURL(executionContext context.Context, repositoryPath string, remoteName string) (string, error)
	GetCurrentBranch(executionContext context.Context, repositoryPath string) (string, error)
	ListTags(executionContext context.Context, repositoryPath string) ([]string, error)
	TagsPointingAtHead(executionContext context.Context, repositoryPath string) ([]string, error)
	FindRepositoryRoot(startPath string, searchBoundary string) (string, error)
}

// ResolverDependencies bundles the collaborators required by the resolver.
type ResolverDependencies struct {
	Logger           *zap.Logger
	MetadataResolver RepositoryMetadataResolver
	WorkingCopies    WorkingCopyManager
}

// ResolverConfiguration captures per run settings.
type ResolverConfiguration struct {
	WorkingRoot           string
	EntryPointFileName    string
	ExamplesDirectoryName string
	FailurePolicy         FailurePolicy
}

// Resolver builds fully resolved module records with process scoped
// memoization. It is not safe for concurrent use.
type Resolver struct {
	logger           *zap.Logger
	metadataResolver RepositoryMetadataResolver
	workingCopies    WorkingCopyManager
	configuration    ResolverConfiguration
	repositoryCache  map[string]*ManagedModule
	pathCache        map[string]*ManagedModule
	inProgress       map[string]bool
}

// NewResolver validates dependencies and configuration and returns a resolver.
func NewResolver(dependencies ResolverDependencies, configuration ResolverConfiguration) (*Resolver, error) {
	if dependencies.Logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if dependencies.MetadataResolver == nil {
		return nil, ErrMetadataResolverNotConfigured
	}
	if dependencies.WorkingCopies == nil {
		return nil, ErrWorkingCopyManagerNotConfigured
	}
	if len(configuration.WorkingRoot) == 0 {
		return nil, ErrWorkingRootNotConfigured
	}
	if len(configuration.EntryPointFileName) == 0 {
		configuration.EntryPointFileName = defaultEntryPointFileNameConstant
	}
	if len(configuration.ExamplesDirectoryName) == 0 {
		configuration.ExamplesDirectoryName = defaultExamplesDirectoryNameConstant
	}
	if len(configuration.FailurePolicy) == 0 {
		configuration.FailurePolicy = FailurePolicyFailFast
	}

	return &Resolver{
		logger:           dependencies.Logger,
		metadataResolver: dependencies.MetadataResolver,
		workingCopies:    dependencies.WorkingCopies,
		configuration:    configuration,
		repositoryCache:  make(map[string]*ManagedModule),
		pathCache:        make(map[string]*ManagedModule),
		inProgress:       make(map[string]bool),
	}, nil
}

// ResolveRepository resolves a remote repository identity, fetching a fresh
// working copy when the repository has not been seen in this run.
func (resolver *Resolver) ResolveRepository(executionContext context.Context, organization string, repository string, revision string) (*ManagedModule, error) {
	repositoryIdentity := fmt.Sprintf(repositoryIdentityTemplateConstant, organization, repository)
	if cachedModule, found := resolver.repositoryCache[repositoryIdentity]; found {
		return cachedModule, nil
	}
	if resolver.inProgress[repositoryIdentity] {
		return nil, CycleDetectedError{RepositoryIdentity: repositoryIdentity}
	}

	localPath := filepath.Join(resolver.configuration.WorkingRoot, repository)
	if cachedModule, found := resolver.pathCache[localPath]; found {
		resolver.repositoryCache[repositoryIdentity] = cachedModule
		return cachedModule, nil
	}

	resolver.inProgress[repositoryIdentity] = true
	defer delete(resolver.inProgress, repositoryIdentity)

	resolver.logger.Debug(resolvingRepositoryMessageConstant,
		zap.String(repositoryLogFieldConstant, repositoryIdentity),
		zap.String(localPathLogFieldConstant, localPath),
	)

	metadata, metadataError := resolver.metadataResolver.ResolveRepoMetadata(executionContext, repositoryIdentity)
	if metadataError != nil {
		return nil, FetchFailureError{RepositoryIdentity: repositoryIdentity, Cause: metadataError}
	}

	fetchError := resolver.fetchWorkingCopy(executionContext, repositoryIdentity, metadata.CloneURL, localPath, revision)
	if fetchError != nil {
		return nil, fetchError
	}

	resolvedModule, buildError := resolver.buildModuleFromWorkingCopy(executionContext, repository, metadata.CloneURL, localPath)
	if buildError != nil {
		return nil, buildError
	}

	resolver.repositoryCache[repositoryIdentity] = resolvedModule
	resolver.pathCache[localPath] = resolvedModule
	return resolvedModule, nil
}

// ResolveDirectory resolves the repository containing an existing local
// directory without fetching, deriving identity from the checkout's remote.
func (resolver *Resolver) ResolveDirectory(executionContext context.Context, directoryPath string) (*ManagedModule, error) {
	repositoryRoot, rootError := resolver.workingCopies.FindRepositoryRoot(directoryPath, resolver.configuration.WorkingRoot)
	if rootError != nil {
		return nil, rootError
	}

	cleanedPath := filepath.Clean(repositoryRoot)
	if cachedModule, found := resolver.pathCache[cleanedPath]; found {
		return cachedModule, nil
	}
	if resolver.inProgress[cleanedPath] {
		return nil, CycleDetectedError{RepositoryIdentity: cleanedPath}
	}

	resolver.inProgress[cleanedPath] = true
	defer delete(resolver.inProgress, cleanedPath)

	remoteURL, remoteError := resolver.workingCopies.GetRemoteURL(executionContext, cleanedPath, originRemoteNameConstant)
	if remoteError != nil {
		return nil, remoteError
	}
	parsedRemote, parseError := gitrepo.ParseRemoteURL(remoteURL)
	if parseError != nil {
		return nil, parseError
	}

	repositoryIdentity := fmt.Sprintf(repositoryIdentityTemplateConstant, parsedRemote.Owner, parsedRemote.Repository)
	if cachedModule, found := resolver.repositoryCache[repositoryIdentity]; found {
		resolver.pathCache[cleanedPath] = cachedModule
		return cachedModule, nil
	}
	if resolver.inProgress[repositoryIdentity] {
		return nil, CycleDetectedError{RepositoryIdentity: repositoryIdentity}
	}

	// The derived identity is marked in progress alongside the path so a
	// transitive dependency declaring this repository hits the cycle guard
	// instead of re-fetching over the checkout being resolved.
	resolver.inProgress[repositoryIdentity] = true
	defer delete(resolver.inProgress, repositoryIdentity)

	resolvedModule, buildError := resolver.buildModuleFromWorkingCopy(executionContext, parsedRemote.Repository, remoteURL, cleanedPath)
	if buildError != nil {
		return nil, buildError
	}

	resolver.repositoryCache[repositoryIdentity] = resolvedModule
	resolver.pathCache[cleanedPath] = resolvedModule
	return resolvedModule, nil
}

// fetchWorkingCopy destroys any existing target path, clones with one retry,
// and checks out the requested revision or the main/master fallback chain.
func (resolver *Resolver) fetchWorkingCopy(executionContext context.Context, repositoryIdentity string, cloneURL string, targetPath string, revision string) error {
	if removeError := os.RemoveAll(targetPath); removeError != nil {
		return FetchFailureError{RepositoryIdentity: repositoryIdentity, Cause: removeError}
	}

	cloneError := resolver.workingCopies.CloneRepository(executionContext, cloneURL, targetPath)
	if cloneError != nil {
		resolver.logger.Warn(retryingCloneMessageConstant,
			zap.String(repositoryLogFieldConstant, repositoryIdentity),
			zap.Error(cloneError),
		)
		if removeError := os.RemoveAll(targetPath); removeError != nil {
			return FetchFailureError{RepositoryIdentity: repositoryIdentity, Cause: removeError}
		}
		cloneError = resolver.workingCopies.CloneRepository(executionContext, cloneURL, targetPath)
	}
	if cloneError != nil {
		return FetchFailureError{RepositoryIdentity: repositoryIdentity, Cause: cloneError}
	}

	if len(revision) > 0 {
		if checkoutError := resolver.workingCopies.CheckoutRevision(executionContext, targetPath, revision); checkoutError != nil {
			return FetchFailureError{RepositoryIdentity: repositoryIdentity, Cause: checkoutError}
		}
		return nil
	}

	mainCheckoutError := resolver.workingCopies.CheckoutRevision(executionContext, targetPath, mainBranchNameConstant)
	if mainCheckoutError == nil {
		return nil
	}
	masterCheckoutError := resolver.workingCopies.CheckoutRevision(executionContext, targetPath, masterBranchNameConstant)
	if masterCheckoutError != nil {
		return FetchFailureError{RepositoryIdentity: repositoryIdentity, Cause: errors.Join(mainCheckoutError, masterCheckoutError)}
	}
	return nil
}

// buildModuleFromWorkingCopy assembles a resolved record from a checked out
// working copy, expanding one level of examples.
func (resolver *Resolver) buildModuleFromWorkingCopy(executionContext context.Context, moduleName string, sourceURL string, repositoryPath string) (*ManagedModule, error) {
	revision, revisionError := resolver.determineCheckedOutRevision(executionContext, repositoryPath)
	if revisionError != nil {
		return nil, revisionError
	}
	tags, tagsError := resolver.workingCopies.ListTags(executionContext, repositoryPath)
	if tagsError != nil {
		return nil, tagsError
	}

	exampleModules, examplesError := resolver.resolveExamples(executionContext, moduleName, sourceURL, repositoryPath, revision, tags)
	if examplesError != nil {
		return nil, examplesError
	}

	dependencies, dependenciesError := resolver.resolveDependencies(executionContext, moduleName, repositoryPath)
	if dependenciesError != nil {
		return nil, dependenciesError
	}

	return &ManagedModule{
		Name:         moduleName,
		SourceURL:    sourceURL,
		LocalPath:    repositoryPath,
		Revision:     revision,
		Tags:         tags,
		Examples:     exampleModules,
		Dependencies: dependencies,
	}, nil
}

// determineCheckedOutRevision prefers a tag pointing at HEAD over the branch
// name so tag checkouts reached via branch names report the tag.
func (resolver *Resolver) determineCheckedOutRevision(executionContext context.Context, repositoryPath string) (string, error) {
	currentBranch, branchError := resolver.workingCopies.GetCurrentBranch(executionContext, repositoryPath)
	if branchError != nil {
		return "", branchError
	}
	headTags, tagsError := resolver.workingCopies.TagsPointingAtHead(executionContext, repositoryPath)
	if tagsError != nil {
		return "", tagsError
	}
	if len(headTags) > 0 {
		return headTags[0], nil
	}
	return currentBranch, nil
}

// resolveExamples builds child records for examples/* directories containing
// an entry point. Example children share the parent checkout and are not
// expanded for examples of their own.
func (resolver *Resolver) resolveExamples(executionContext context.Context, parentName string, sourceURL string, repositoryPath string, revision string, tags []string) ([]*ManagedModule, error) {
	examplesPath := filepath.Join(repositoryPath, resolver.configuration.ExamplesDirectoryName)
	directoryEntries, readError := os.ReadDir(examplesPath)
	if readError != nil {
		if errors.Is(readError, os.ErrNotExist) {
			return nil, nil
		}
		return nil, readError
	}

	var exampleModules []*ManagedModule
	for _, directoryEntry := range directoryEntries {
		if !directoryEntry.IsDir() {
			continue
		}
		examplePath := filepath.Join(examplesPath, directoryEntry.Name())
		if !resolver.hasEntryPoint(examplePath) {
			continue
		}
		exampleName := fmt.Sprintf(exampleModuleNameTemplateConstant, parentName, directoryEntry.Name())
		exampleDependencies, dependenciesError := resolver.resolveDependencies(executionContext, exampleName, examplePath)
		if dependenciesError != nil {
			return nil, dependenciesError
		}
		exampleModules = append(exampleModules, &ManagedModule{
			Name:         exampleName,
			SourceURL:    sourceURL,
			LocalPath:    examplePath,
			Revision:     revision,
			Tags:         tags,
			Dependencies: exampleDependencies,
		})
	}
	return exampleModules, nil
}

// resolveDependencies parses the module entry point and resolves every
// declared reference. A missing entry point means zero dependencies.
func (resolver *Resolver) resolveDependencies(executionContext context.Context, moduleName string, modulePath string) ([]Dependency, error) {
	entryPointPath := filepath.Join(modulePath, resolver.configuration.EntryPointFileName)
	configurationBytes, readError := os.ReadFile(entryPointPath)
	if readError != nil {
		if errors.Is(readError, os.ErrNotExist) {
			return nil, nil
		}
		return nil, readError
	}

	references, extractionError := ExtractSourceReferences(string(configurationBytes))
	if extractionError != nil {
		if resolver.configuration.FailurePolicy == FailurePolicyFailFast {
			return nil, extractionError
		}
		resolver.logger.Warn(skippingReferenceMessageConstant,
			zap.String(moduleLogFieldConstant, moduleName),
			zap.Error(extractionError),
		)
	}

	var dependencies []Dependency
	for _, reference := range references {
		if reference.Kind == ReferenceKindExternal {
			dependencies = append(dependencies, Dependency{
				Kind:     DependencyKindExternal,
				External: &ExternalModule{Name: reference.Raw},
			})
			continue
		}

		dependencyModule, resolutionError := resolver.ResolveRepository(executionContext, reference.Organization, reference.Repository, reference.Revision)
		if resolutionError != nil {
			if resolver.configuration.FailurePolicy == FailurePolicyFailFast {
				return nil, resolutionError
			}
			resolver.logger.Warn(skippingDependencyMessageConstant,
				zap.String(moduleLogFieldConstant, moduleName),
				zap.String(repositoryLogFieldConstant, reference.Raw),
				zap.Error(resolutionError),
			)
			continue
		}
		dependencies = append(dependencies, Dependency{
			Kind:    DependencyKindManaged,
			Managed: dependencyModule,
		})
	}
	return dependencies, nil
}

func (resolver *Resolver) hasEntryPoint(modulePath string) bool {
	entryPointPath := filepath.Join(modulePath, resolver.configuration.EntryPointFileName)
	pathInformation, statError := os.Stat(entryPointPath)
	return statError == nil && !pathInformation.IsDir()
}
