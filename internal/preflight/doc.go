// Package preflight checks that zapzap can run: directories are writable and
// remote credentials are accepted.
//
// Checks never fail hard; each returns a Result so the daemon can log them
// at startup and the status command can render them as a table.
package preflight
