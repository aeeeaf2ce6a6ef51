// Package workflows installs standard GitHub Actions workflow templates
// across the repositories of an organization.
package workflows
