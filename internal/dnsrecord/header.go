package dnsrecord

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// HeaderLength is the size of the fixed DNS_RPC_RECORD header that precedes
// the record data in values written by Windows DNS servers.
const HeaderLength = 24

// epoch1601 is the zero of the header timestamp.
var epoch1601 = time.Date(1601, time.January, 1, 0, 0, 0, 0, time.UTC)

// Header is the fixed part of a DNS_RPC_RECORD.
//
//	0  DataLength  uint16 LE
//	2  Type        uint16 LE
//	4  Version     uint8
//	5  Rank        uint8
//	6  Flags       uint16 LE
//	8  Serial      uint32 LE
//	12 TTL         uint32 BE
//	16 Reserved    uint32
//	20 Timestamp   uint32 LE, hours since 1601-01-01, 0 for static records
type Header struct {
	DataLength uint16
	Version    uint8
	Rank       uint8
	Flags      uint16
	Serial     uint32
	TTL        uint32
	Timestamp  uint32
}

func parseHeader(raw []byte) *Header {
	return &Header{
		DataLength: binary.LittleEndian.Uint16(raw[0:2]),
		Version:    raw[4],
		Rank:       raw[5],
		Flags:      binary.LittleEndian.Uint16(raw[6:8]),
		Serial:     binary.LittleEndian.Uint32(raw[8:12]),
		TTL:        binary.BigEndian.Uint32(raw[12:16]),
		Timestamp:  binary.LittleEndian.Uint32(raw[20:24]),
	}
}

// Static reports whether the record has no aging timestamp.
func (h *Header) Static() bool {
	return h.Timestamp == 0
}

// Time converts the aging timestamp. It returns the zero time for static
// records.
func (h *Header) Time() time.Time {
	if h.Static() {
		return time.Time{}
	}
	// Hours since 1601 overflow a time.Duration; add whole days first.
	days, hours := h.Timestamp/24, h.Timestamp%24
	return epoch1601.AddDate(0, 0, int(days)).Add(time.Duration(hours) * time.Hour)
}

// ParseHex decodes a hex dump such as "0400010005f00000...". Whitespace and
// colons are ignored.
func ParseHex(s string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', ':':
			return -1
		}
		return r
	}, s)
	clean = strings.TrimPrefix(strings.TrimPrefix(clean, "0x"), "0X")
	b, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("dnsrecord: invalid hex value: %w", err)
	}
	return b, nil
}

// ParseBase64 decodes a base64 value as printed by ldapsearch ("dnsRecord:: ...").
func ParseBase64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("dnsrecord: invalid base64 value: %w", err)
	}
	return b, nil
}
