// Package middleware wraps conversation stores with cross-cutting behavior such as
// encryption at rest.
package middleware
