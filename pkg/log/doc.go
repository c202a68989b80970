// Package log provides a package-global zerolog.Logger, initialized once
// from Config, plus a composable Scope for building a child logger
// scoped to a component and any combination of cluster, node and zone
// IDs.
package log
