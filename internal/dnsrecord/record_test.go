package dnsrecord

import (
	"errors"
	"math/rand"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// aRecord is a dnsRecord value for 192.168.1.1 with a 3600s TTL, as
// written by a Windows DNS server.
var aRecord = []byte{
	0x04, 0x00, 0x01, 0x00, 0x05, 0xF0, 0x00, 0x00,
	0x2A, 0x00, 0x00, 0x00, 0x00, 0x00, 0x0E, 0x10,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0xC0, 0xA8, 0x01, 0x01,
}

// soaRecord carries type 6 and a truncated payload.
var soaRecord = []byte{
	0x10, 0x00, 0x06, 0x00, 0x05, 0xF0, 0x00, 0x00,
	0x2A, 0x00, 0x00, 0x00, 0x00, 0x00, 0x0E, 0x10,
	0x00, 0x00, 0x00, 0x00, 0x9C, 0x4A, 0x36, 0x00,
	0x00, 0x00, 0x00, 0x01,
}

func TestDecodeTruncated(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for n := 0; n < MinLength; n++ {
		for i := 0; i < 50; i++ {
			raw := make([]byte, n)
			rng.Read(raw)

			_, err := Decode(raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrTruncated)

			var de *DecodeError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, n, de.Length)
		}
	}
}

func TestDecodeOtherTypes(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 500; i++ {
		raw := make([]byte, MinLength+rng.Intn(64))
		rng.Read(raw)
		if raw[2] == 0x01 && raw[3] == 0x00 {
			raw[3] = 0x01
		}

		rec, err := Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, KindOther, rec.Kind)
		assert.Nil(t, rec.Address)
	}
}

func TestDecodeAddressFromEnd(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	want := net.IPv4(10, 0, 0, 5).To4()
	for i := 0; i < 500; i++ {
		raw := make([]byte, 8+rng.Intn(64))
		rng.Read(raw)
		raw[2], raw[3] = 0x01, 0x00
		copy(raw[len(raw)-4:], want)

		rec, err := Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, KindA, rec.Kind)
		assert.Equal(t, want, rec.Address)
	}
}

func TestDecodeShortARecord(t *testing.T) {
	// Type A with no payload: the last four bytes are the type header itself.
	rec, err := Decode([]byte{0x00, 0x00, 0x01, 0x00})
	require.NoError(t, err)
	assert.Equal(t, KindA, rec.Kind)
	assert.Equal(t, "0.0.1.0", rec.Address.String())
	assert.Nil(t, rec.Header)
}

func TestDecodeDoesNotAlias(t *testing.T) {
	raw := append([]byte(nil), aRecord...)
	rec, err := Decode(raw)
	require.NoError(t, err)
	raw[len(raw)-1] = 0xFF
	assert.Equal(t, "192.168.1.1", rec.Address.String())
}

func TestRecordHeader(t *testing.T) {
	rec, err := Decode(aRecord)
	require.NoError(t, err)
	require.NotNil(t, rec.Header)
	assert.EqualValues(t, 4, rec.Header.DataLength)
	assert.EqualValues(t, 5, rec.Header.Version)
	assert.EqualValues(t, 0xF0, rec.Header.Rank)
	assert.EqualValues(t, 42, rec.Header.Serial)
	assert.EqualValues(t, 3600, rec.Header.TTL)
	assert.True(t, rec.Header.Static())
	assert.True(t, rec.Header.Time().IsZero())

	other, err := Decode(soaRecord)
	require.NoError(t, err)
	require.NotNil(t, other.Header)
	assert.False(t, other.Header.Static())
	assert.EqualValues(t, 0x00364A9C, other.Header.Timestamp)
	assert.Equal(t, time.Date(2006, time.November, 25, 20, 0, 0, 0, time.UTC), other.Header.Time())
}

func TestRecordString(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want string
	}{
		{"a", aRecord, "A 192.168.1.1"},
		{"soa", soaRecord, "Other(SOA)"},
		{"unknown type", []byte{0x00, 0x00, 0xFE, 0xFE}, "Other(TYPE65278)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Decode(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.String())
		})
	}
}

func TestRecordRR(t *testing.T) {
	rec, err := Decode(aRecord)
	require.NoError(t, err)

	rr := rec.RR("srv5.test.local", 0)
	require.NotNil(t, rr)
	a, ok := rr.(*dns.A)
	require.True(t, ok)
	assert.Equal(t, "srv5.test.local.", a.Hdr.Name)
	assert.EqualValues(t, 3600, a.Hdr.Ttl)
	assert.Equal(t, "192.168.1.1", a.A.String())

	assert.EqualValues(t, 60, rec.RR("srv5.test.local.", 60).Header().Ttl)

	other, err := Decode(soaRecord)
	require.NoError(t, err)
	assert.Nil(t, other.RR("srv5.test.local", 0))
}

func TestDecodeAll(t *testing.T) {
	addrs, skipped := DecodeAll([][]byte{aRecord, soaRecord, {0x01}})
	require.Len(t, addrs, 1)
	assert.Equal(t, "192.168.1.1", addrs[0].String())
	assert.Equal(t, 2, skipped)

	addrs, skipped = DecodeAll(nil)
	assert.Empty(t, addrs)
	assert.Zero(t, skipped)
}

func TestParseValues(t *testing.T) {
	b, err := ParseHex("0x04 00 01:00 c0a80101")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x04, 0x00, 0x01, 0x00, 0xC0, 0xA8, 0x01, 0x01}, b)

	_, err = ParseHex("zz")
	assert.Error(t, err)

	b, err = ParseBase64(" BAABAMCoAQE= ")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x04, 0x00, 0x01, 0x00, 0xC0, 0xA8, 0x01, 0x01}, b)

	_, err = ParseBase64("!!")
	assert.Error(t, err)
}
