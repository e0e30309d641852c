// Command groupbot runs the group chat bot: the daily fortune and lottery
// commands behind a gateway HTTP API.
//
// It:
//   - Loads .env (local dev convenience), configuration and the optional
//     settings file.
//   - Initializes structured logging and, when enabled, OTLP tracing.
//   - Opens SQLite, migrates the schema and selects the record store
//     backend.
//   - Serves the gateway and ops API and purges expired events.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"os"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
