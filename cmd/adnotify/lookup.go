package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/mitchellh/cli"

	"github.com/KilimcininKorOglu/adnotify/internal/notify"
)

type lookupCommand struct {
	UI    cli.Ui
	flags *flag.FlagSet
	dir   directoryFlags
	zone  bool
	help  string
}

func newLookupCommand(ui cli.Ui) *lookupCommand {
	c := &lookupCommand{UI: ui}
	c.flags = c.dir.flagSet("lookup")
	c.flags.BoolVar(&c.zone, "zone", false,
		"Print A records as zone file lines.")
	c.help = usage(lookupHelp, c.flags)
	return c
}

func (c *lookupCommand) Run(args []string) int {
	c.flags.SetOutput(io.Discard)
	if err := c.flags.Parse(args); err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	target, err := singleTarget(c.flags.Args())
	if err != nil {
		c.UI.Error(err.Error())
		c.UI.Error(c.Help())
		return 1
	}
	cfg, err := c.dir.load(c.flags, target)
	if err != nil {
		c.UI.Error(fmt.Sprintf("Error loading configuration: %s", err))
		return 1
	}

	logger := newLogger(cfg)
	out := newPrinter(c.UI)
	ctx := context.Background()

	conn, err := connect(ctx, c.UI, cfg, logger)
	if err != nil {
		out.warn(fmt.Sprintf("Bind failed: %s", err))
		return 1
	}
	defer conn.Close()
	out.info(msgBind)

	lctx, cancel := requestContext(ctx, cfg)
	defer cancel()
	entry, err := notify.Lookup(lctx, conn, cfg.Watch.Target, cfg.Watch.Attributes)
	switch {
	case errors.Is(err, notify.ErrNoSuchObject):
		out.warn(msgNoObject)
		return 1
	case errors.Is(err, notify.ErrNoReadableAttributes):
		out.warn(msgNoReadEvent)
		return 2
	case err != nil:
		out.warn(fmt.Sprintf("Search failed: %s", err))
		return 1
	}

	records := &recordPrinter{p: out, zone: c.zone || cfg.Watch.ZoneFormat}
	if !records.printRecords(entry, msgIP) {
		out.info(msgNoA)
	}
	return 0
}

func (c *lookupCommand) Synopsis() string {
	return "Print the A records of a dnsNode"
}

func (c *lookupCommand) Help() string {
	return c.help
}

const lookupHelp = `
Usage: adnotify lookup [options] DN

  Binds to a domain controller, reads the dnsRecord attribute of a dnsNode
  once and prints its A records.

  Exits 1 if the node does not exist or the directory cannot be reached,
  and 2 if the node exists but its attributes cannot be read.
`
