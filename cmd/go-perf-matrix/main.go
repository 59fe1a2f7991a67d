// Package main provides the entry point for the performance test matrix CLI
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mrz1836/go-perf-matrix/cmd/go-perf-matrix/cmd"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes the CLI and returns the process exit code
func run(args []string) int {
	buildInfo := NewBuildInfo()

	version := buildInfo.Version()
	if buildInfo.IsModified() && !strings.HasSuffix(version, "-dirty") {
		version += "-dirty"
	}

	app := cmd.NewCLIApp(version, buildInfo.Commit(), buildInfo.BuildDate())
	builder := cmd.NewCommandBuilder(app)

	if err := builder.Execute(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
