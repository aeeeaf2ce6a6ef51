// Package githubcli drives the GitHub CLI (gh) for repository metadata
// resolution, organization listings, repository creation, and team permission
// management.
package githubcli
