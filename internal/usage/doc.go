// Package usage defines the per-application usage and network telemetry
// model shared by the resolver, the analyzer and the raw sources.
//
// Instants are epoch milliseconds exactly as the platform accounting
// services report them. Raw sources are injected through the narrow read
// contracts in source.go so the analyzer never touches a concrete
// platform handle.
package usage
