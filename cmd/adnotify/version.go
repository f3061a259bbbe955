package main

import (
	"flag"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/mitchellh/cli"
)

// Version information - these can be set at build time using ldflags.
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version   = "0.3.0"
	commit    = "unknown"
	buildDate = "unknown"
)

type versionCommand struct {
	UI    cli.Ui
	flags *flag.FlagSet
	short bool
	help  string
}

func newVersionCommand(ui cli.Ui) *versionCommand {
	c := &versionCommand{UI: ui}
	c.flags = flag.NewFlagSet("version", flag.ContinueOnError)
	c.flags.BoolVar(&c.short, "short", false, "Show only the version number.")
	c.help = usage(versionHelp, c.flags)
	return c
}

func (c *versionCommand) Run(args []string) int {
	c.flags.SetOutput(io.Discard)
	if err := c.flags.Parse(args); err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	if c.short {
		c.UI.Output(version)
		return 0
	}

	var b strings.Builder
	fmt.Fprintf(&b, "adnotify version %s\n", version)
	fmt.Fprintf(&b, "  Commit:     %s\n", commit)
	fmt.Fprintf(&b, "  Built:      %s\n", buildDate)
	fmt.Fprintf(&b, "  Go version: %s\n", runtime.Version())
	fmt.Fprintf(&b, "  OS/Arch:    %s/%s", runtime.GOOS, runtime.GOARCH)
	c.UI.Output(b.String())
	return 0
}

func (c *versionCommand) Synopsis() string {
	return "Show version information"
}

func (c *versionCommand) Help() string {
	return c.help
}

const versionHelp = `
Usage: adnotify version [options]

  Prints the version, commit and build information.
`
