// Package preflight checks that searchkit can run before a build starts:
// the configuration and schema are valid, the state and data directories
// are writable with room to spare, the process may open enough files for
// the embedded index, and the backend answers.
//
// Checks never return errors. Each produces a CheckResult, and only
// required checks that fail block an operation.
package preflight
