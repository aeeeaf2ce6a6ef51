// Package gitrepo manipulates local git working copies and remote URL text.
// RepositoryManager shells out to git through execshell; ParseRemoteURL and
// FormatRemoteURL convert between textual and structured remote locations.
package gitrepo
