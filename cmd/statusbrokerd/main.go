// cmd/statusbrokerd/main.go
package main

import (
	"fmt"
	"os"

	"github.com/tamzrod/status-broker/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := cli.NewRootCmd(version, cli.Env{}).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "statusbrokerd: %v\n", err)
		os.Exit(1)
	}
}
