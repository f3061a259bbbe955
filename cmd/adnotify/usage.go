package main

import (
	"bytes"
	"flag"
	"fmt"
	"strings"
)

// usage appends the flag defaults of fs to the help text.
func usage(help string, fs *flag.FlagSet) string {
	var b bytes.Buffer
	b.WriteString(strings.TrimSpace(help))
	b.WriteString("\n")

	first := true
	fs.VisitAll(func(f *flag.Flag) {
		if first {
			b.WriteString("\nOptions:\n")
			first = false
		}
		name, text := flag.UnquoteUsage(f)
		fmt.Fprintf(&b, "\n  -%s", f.Name)
		if name != "" {
			fmt.Fprintf(&b, "=<%s>", name)
		}
		if f.DefValue != "" && f.DefValue != "false" {
			fmt.Fprintf(&b, "\n     Default: %s", f.DefValue)
		}
		for _, line := range strings.Split(text, "\n") {
			fmt.Fprintf(&b, "\n     %s", line)
		}
		b.WriteString("\n")
	})
	return strings.TrimRight(b.String(), "\n")
}
