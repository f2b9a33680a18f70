// Package services defines shared utilities consumed by the pipeline driver
// and the remote service clients.
//
// Key responsibilities:
//   - Context helpers that stamp video IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can tell a
//     transient remote failure from a configuration problem.
//
// The clients for the metadata source, the conversion service, and the
// archive provider live in subpackages.
package services
