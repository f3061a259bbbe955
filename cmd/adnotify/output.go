package main

import (
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/mitchellh/cli"

	"github.com/KilimcininKorOglu/adnotify/internal/dnsrecord"
	"github.com/KilimcininKorOglu/adnotify/internal/metrics"
	"github.com/KilimcininKorOglu/adnotify/internal/notify"
)

// printer writes the "[*]" and "[!]" status lines.
type printer struct {
	ui   cli.Ui
	good *color.Color
	bad  *color.Color
}

func newPrinter(ui cli.Ui) *printer {
	return &printer{
		ui:   ui,
		good: color.New(color.FgGreen),
		bad:  color.New(color.FgRed, color.Bold),
	}
}

func (p *printer) info(msg string) {
	p.ui.Output(p.good.Sprint("[*]") + " " + msg)
}

func (p *printer) warn(msg string) {
	p.ui.Output(p.bad.Sprint("[!]") + " " + msg)
}

// recordPrinter reports the A records found in an entry.
type recordPrinter struct {
	p       *printer
	zone    bool
	metrics *metrics.Metrics
}

// printRecords prints one line per A record in entry and reports whether
// any was found.
func (r *recordPrinter) printRecords(entry notify.Entry, prefix string) bool {
	found := false
	names := make([]string, 0, len(entry.Attributes))
	for name := range entry.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, raw := range entry.Attributes[name] {
			rec, err := dnsrecord.Decode(raw)
			if err != nil {
				r.metrics.RecordDecoded("Truncated")
				continue
			}
			r.metrics.RecordDecoded(rec.Kind.String())
			if rec.Kind != dnsrecord.KindA {
				continue
			}
			found = true
			if r.zone {
				if rr := rec.RR(ownerName(entry.DN), 0); rr != nil {
					r.p.info(prefix + rr.String())
					continue
				}
			}
			r.p.info(prefix + rec.Address.String())
		}
	}
	return found
}

// ownerName turns a dnsNode DN such as
// DC=srv5,DC=test.local,CN=MicrosoftDNS,... into srv5.test.local. The
// zone apex node "@" maps to the zone name.
func ownerName(dn string) string {
	var labels []string
	for _, rdn := range strings.Split(dn, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(rdn), "=")
		if !ok || !strings.EqualFold(k, "DC") {
			break
		}
		labels = append(labels, v)
		if len(labels) == 2 {
			break
		}
	}
	switch {
	case len(labels) == 0:
		return dn
	case labels[0] == "@" && len(labels) == 2:
		return labels[1]
	default:
		return strings.Join(labels, ".")
	}
}
