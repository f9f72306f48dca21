// Package logging configures structured slog output for searchkit. The CLI
// logs JSON to stderr; with --debug it also writes a size-rotated file
// under ~/.searchkit/logs that `searchkit logs` can tail and filter.
package logging
