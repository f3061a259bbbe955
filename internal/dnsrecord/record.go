// Package dnsrecord decodes the binary dnsRecord attribute that Active
// Directory integrated DNS stores on dnsNode objects.
//
// Each value starts with a little-endian data length and record type. For A
// records the IPv4 address is always the last four bytes of the value, so
// the decoder indexes from the end rather than trusting a fixed header size.
package dnsrecord

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"

	"github.com/miekg/dns"
)

// MinLength is the shortest value that carries a record type.
const MinLength = 4

// ErrTruncated is returned for values too short to hold a record type.
var ErrTruncated = errors.New("dnsrecord: value truncated")

// DecodeError records the length of a value that could not be decoded.
type DecodeError struct {
	Length int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("dnsrecord: cannot decode %d byte value: %v", e.Length, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Kind tells A records apart from everything else.
type Kind int

const (
	KindOther Kind = iota
	KindA
)

func (k Kind) String() string {
	if k == KindA {
		return "A"
	}
	return "Other"
}

// Record is one decoded dnsRecord value.
type Record struct {
	Kind Kind
	// Type is the raw record type code.
	Type uint16
	// Address is set for KindA.
	Address net.IP
	// Header is nil for values shorter than HeaderLength.
	Header *Header
}

// Decode decodes one dnsRecord value. Values of at least MinLength bytes
// always decode; anything that is not an A record is KindOther.
func Decode(raw []byte) (Record, error) {
	if len(raw) < MinLength {
		return Record{}, &DecodeError{Length: len(raw), Err: ErrTruncated}
	}

	rec := Record{
		Kind: KindOther,
		Type: binary.LittleEndian.Uint16(raw[2:4]),
	}
	if len(raw) >= HeaderLength {
		rec.Header = parseHeader(raw)
	}
	if rec.Type == dns.TypeA {
		rec.Kind = KindA
		addr := make(net.IP, net.IPv4len)
		copy(addr, raw[len(raw)-net.IPv4len:])
		rec.Address = addr
	}
	return rec, nil
}

// TypeName returns the mnemonic for the record type, such as "SOA".
func (r Record) TypeName() string {
	if name, ok := dns.TypeToString[r.Type]; ok {
		return name
	}
	return fmt.Sprintf("TYPE%d", r.Type)
}

func (r Record) String() string {
	if r.Kind == KindA {
		return "A " + r.Address.String()
	}
	return "Other(" + r.TypeName() + ")"
}

// RR converts an A record to a *dns.A owned by owner. The TTL from the
// header is used when ttl is zero. It returns nil for other kinds.
func (r Record) RR(owner string, ttl uint32) dns.RR {
	if r.Kind != KindA {
		return nil
	}
	if ttl == 0 && r.Header != nil {
		ttl = r.Header.TTL
	}
	rr := new(dns.A)
	rr.Hdr = dns.RR_Header{Name: dns.Fqdn(owner), Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: ttl}
	rr.A = r.Address.To4()
	return rr
}

// DecodeAll returns the addresses of every A record in values. Other and
// truncated values are counted as skipped.
func DecodeAll(values [][]byte) (addrs []net.IP, skipped int) {
	for _, v := range values {
		rec, err := Decode(v)
		if err != nil || rec.Kind != KindA {
			skipped++
			continue
		}
		addrs = append(addrs, rec.Address)
	}
	return addrs, skipped
}
