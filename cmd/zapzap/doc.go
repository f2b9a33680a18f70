// Command zapzap is the operator CLI for the translated-video archive
// pipeline. It runs the daemon in the foreground and offers one-shot sync,
// queue, and sweep runs plus record inspection and repair against the local
// record store.
package main
