// Package registry provides in-memory directories of flow definitions and named actions.
package registry
