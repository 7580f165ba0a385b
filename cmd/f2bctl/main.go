package main

import (
	"fmt"
	"os"

	"github.com/difyz9/fail2ban-web/internal/config"
)

var (
	// Version info (set by build)
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	a := newApp(os.Stdout, os.Stderr)
	err := a.root().Execute()
	a.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", describeError(err))
		os.Exit(1)
	}
}
