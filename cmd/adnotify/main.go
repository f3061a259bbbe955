// Package main provides the adnotify command line tool.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mitchellh/cli"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the CLI and returns an exit code. It is separate from main
// for testing.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	ui := &cli.BasicUi{Reader: stdin, Writer: stdout, ErrorWriter: stderr}

	c := cli.NewCLI("adnotify", version)
	c.Args = args
	c.Commands = commands(ui, stdin)
	c.HelpWriter = stdout
	c.ErrorWriter = stderr

	code, err := c.Run()
	if err != nil {
		fmt.Fprintf(stderr, "Error executing CLI: %v\n", err)
		return 1
	}
	return code
}

func commands(ui cli.Ui, stdin io.Reader) map[string]cli.CommandFactory {
	return map[string]cli.CommandFactory{
		"watch": func() (cli.Command, error) {
			return newWatchCommand(ui, stdin, nil), nil
		},
		"lookup": func() (cli.Command, error) {
			return newLookupCommand(ui), nil
		},
		"decode": func() (cli.Command, error) {
			return newDecodeCommand(ui), nil
		},
		"version": func() (cli.Command, error) {
			return newVersionCommand(ui), nil
		},
	}
}
