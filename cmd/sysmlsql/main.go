// Package main provides the CLI for sysmlsql.
package main

import (
	"os"

	"github.com/leapstack-labs/sysmlsql/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
