// Package permissions applies configured team permission assignments across
// the repositories of an organization.
package permissions
