// Package cli provides the interactive snapboard command-line client.
//
// It wires configuration, the local session database and the gateway client,
// then runs a REPL over the board store, the gallery flow and the session
// mirror. A background watcher pings the gateway and switches between online
// and offline mode.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
