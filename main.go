package main

import (
	"fmt"
	"os"

	"github.com/chris11-taylor-nttd/org-migration-script/cmd/cli"
)

const (
	exitErrorTemplateConstant = "%v\n"
)

// main executes the org-admin command-line application.
func main() {
	if executionError := cli.Execute(); executionError != nil {
		fmt.Fprintf(os.Stderr, exitErrorTemplateConstant, executionError)
		os.Exit(1)
	}
}
