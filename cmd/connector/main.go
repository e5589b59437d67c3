// Command connector subscribes to the live timing hub, follows the session
// state and forwards every message to the configured sinks. The mockhub
// subcommand serves a recorded or synthetic feed for local testing.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
