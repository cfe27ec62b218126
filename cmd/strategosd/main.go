package main

import (
	"fmt"
	"os"
)

// Build information injected via ldflags at build time.
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

func main() {
	versionString := fmt.Sprintf("%s (commit: %s, built: %s)", buildVersion, buildCommit, buildDate)
	SetVersion(versionString)
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
