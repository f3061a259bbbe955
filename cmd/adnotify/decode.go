package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/mitchellh/cli"

	"github.com/KilimcininKorOglu/adnotify/internal/dnsrecord"
)

type decodeCommand struct {
	UI      cli.Ui
	flags   *flag.FlagSet
	base64  bool
	owner   string
	verbose bool
	help    string
}

func newDecodeCommand(ui cli.Ui) *decodeCommand {
	c := &decodeCommand{UI: ui}
	c.flags = flag.NewFlagSet("decode", flag.ContinueOnError)
	c.flags.BoolVar(&c.base64, "base64", false,
		"Values are base64, as printed by ldapsearch, instead of hex.")
	c.flags.StringVar(&c.owner, "owner", "",
		"Print A records as zone file lines owned by this `name`.")
	c.flags.BoolVar(&c.verbose, "v", false,
		"Also print the record header: serial, TTL and aging timestamp.")
	c.help = usage(decodeHelp, c.flags)
	return c
}

func (c *decodeCommand) Run(args []string) int {
	c.flags.SetOutput(io.Discard)
	if err := c.flags.Parse(args); err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	values := c.flags.Args()
	if len(values) == 0 {
		c.UI.Error("At least one dnsRecord value is required")
		c.UI.Error(c.Help())
		return 1
	}

	code := 0
	for i, v := range values {
		raw, err := c.parse(v)
		if err != nil {
			c.UI.Error(fmt.Sprintf("value %d: %s", i+1, err))
			code = 1
			continue
		}
		rec, err := dnsrecord.Decode(raw)
		if err != nil {
			c.UI.Error(fmt.Sprintf("value %d: %s", i+1, err))
			code = 1
			continue
		}
		c.UI.Output(c.format(rec))
	}
	return code
}

func (c *decodeCommand) parse(v string) ([]byte, error) {
	if c.base64 {
		return dnsrecord.ParseBase64(v)
	}
	return dnsrecord.ParseHex(v)
}

func (c *decodeCommand) format(rec dnsrecord.Record) string {
	line := rec.String()
	if c.owner != "" {
		if rr := rec.RR(c.owner, 0); rr != nil {
			line = rr.String()
		}
	}
	if !c.verbose || rec.Header == nil {
		return line
	}

	h := rec.Header
	var b strings.Builder
	b.WriteString(line)
	fmt.Fprintf(&b, "\n  Type:    %s (%d)", rec.TypeName(), rec.Type)
	fmt.Fprintf(&b, "\n  Serial:  %d", h.Serial)
	fmt.Fprintf(&b, "\n  TTL:     %d", h.TTL)
	if h.Static() {
		b.WriteString("\n  Aging:   static")
	} else {
		fmt.Fprintf(&b, "\n  Aging:   %s", h.Time().UTC().Format("2006-01-02 15:04 MST"))
	}
	return b.String()
}

func (c *decodeCommand) Synopsis() string {
	return "Decode dnsRecord attribute values"
}

func (c *decodeCommand) Help() string {
	return c.help
}

const decodeHelp = `
Usage: adnotify decode [options] VALUE...

  Decodes dnsRecord values given in hex (or base64 with -base64) without
  contacting a domain controller. A records print their IPv4 address,
  other types print their type name.

  Example:

    adnotify decode 0400010005f000000000000000000e100000000000000000c0a80101
`
