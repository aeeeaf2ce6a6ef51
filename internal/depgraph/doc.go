// Package depgraph resolves the transitive dependency closure of Terraform
// modules hosted on GitHub. It parses declared source references, fetches
// working copies on demand, memoizes resolution per repository, and flattens
// the resolved tree into a graph suitable for rendering.
package depgraph
