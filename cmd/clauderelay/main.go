// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// clauderelay serves Claude CLI sessions to remote clients and ships a
// terminal client for a running relay.
package main

import (
	"fmt"
	"os"
)

var (
	version = "0.3.0"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
