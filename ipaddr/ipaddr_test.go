package ipaddr_test

import (
	"net/netip"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paepcke.de/ipmatch/ipaddr"
)

func TestParseAddress(t *testing.T) {
	testCases := map[string]struct {
		in     string
		family ipaddr.Family
		err    error
	}{
		"ipv4":           {in: "192.168.1.1", family: ipaddr.IPv4},
		"ipv6":           {in: "fd00:a0b7::10:11:112:214", family: ipaddr.IPv6},
		"ipv4 mapped":    {in: "::ffff:192.0.2.1", family: ipaddr.IPv6},
		"empty":          {in: "", err: ipaddr.ErrInvalidAddress},
		"garbage":        {in: "not.an.ip", err: ipaddr.ErrInvalidAddress},
		"octet overflow": {in: "256.1.1.1", err: ipaddr.ErrInvalidAddress},
		"zone":           {in: "fe80::1%eth0", err: ipaddr.ErrInvalidAddress},
		"with length":    {in: "10.0.0.0/8", err: ipaddr.ErrInvalidAddress},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			a, err := ipaddr.ParseAddress(tc.in)
			if tc.err != nil {
				assert.True(t, errors.Is(err, tc.err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.family, a.Family())
		})
	}
}

func TestParsePrefix(t *testing.T) {
	testCases := map[string]struct {
		in   string
		want string
		err  bool
	}{
		"ipv4":            {in: "217.31.48.0/20", want: "217.31.48.0/20"},
		"ipv6":            {in: "fd00:a0b7::/64", want: "fd00:a0b7::/64"},
		"host bits":       {in: "192.168.1.77/24", want: "192.168.1.0/24"},
		"default ipv4":    {in: "0.0.0.0/0", want: "0.0.0.0/0"},
		"default ipv6":    {in: "::/0", want: "::/0"},
		"missing length":  {in: "10.0.0.0", err: true},
		"empty length":    {in: "10.0.0.0/", err: true},
		"non numeric":     {in: "10.0.0.0/x", err: true},
		"signed":          {in: "10.0.0.0/+8", err: true},
		"ipv4 too long":   {in: "10.0.0.0/33", err: true},
		"ipv6 too long":   {in: "::/129", err: true},
		"bad address":     {in: "10.0.0/8", err: true},
		"negative length": {in: "10.0.0.0/-1", err: true},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			p, err := ipaddr.ParsePrefix(tc.in)
			if tc.err {
				assert.True(t, errors.Is(err, ipaddr.ErrInvalidPrefix), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, p.String())
		})
	}
}

func TestParseHostOrPrefix(t *testing.T) {
	p, err := ipaddr.ParseHostOrPrefix("10.1.2.3")
	require.NoError(t, err)
	assert.Equal(t, "10.1.2.3/32", p.String())
	assert.True(t, p.IsHost())

	p, err = ipaddr.ParseHostOrPrefix("2001:db8::1")
	require.NoError(t, err)
	assert.Equal(t, 128, p.Bits())

	p, err = ipaddr.ParseHostOrPrefix("10.0.0.0/8")
	require.NoError(t, err)
	assert.False(t, p.IsHost())

	_, err = ipaddr.ParseHostOrPrefix("bogus")
	assert.True(t, errors.Is(err, ipaddr.ErrInvalidAddress))
}

func TestCovers(t *testing.T) {
	testCases := []struct {
		prefix string
		addr   string
		want   bool
	}{
		{"192.168.1.0/24", "192.168.1.1", true},
		{"192.168.1.0/24", "192.168.2.1", false},
		{"0.0.0.0/0", "8.8.8.8", true},
		{"0.0.0.0/0", "2001:db8::1", false},
		{"::/0", "2001:db8::1", true},
		{"::/0", "8.8.8.8", false},
		{"::/0", "::ffff:8.8.8.8", true},
		{"fd00:a0b7::/64", "fd00:a0b7::10:11:112:214", true},
		{"fd00:a0b7::/64", "fd00:a0b8::1", false},
		{"10.0.0.1/32", "10.0.0.1", true},
		{"10.0.0.1/32", "10.0.0.2", false},
	}
	for _, tc := range testCases {
		t.Run(tc.prefix+" "+tc.addr, func(t *testing.T) {
			p := ipaddr.MustParsePrefix(tc.prefix)
			a := ipaddr.MustParseAddress(tc.addr)
			assert.Equal(t, tc.want, p.Covers(a))
		})
	}
}

// top L bits equal, checked bit by bit against Covers
func TestCoversMatchesLeadingBits(t *testing.T) {
	a := ipaddr.MustParseAddress("203.0.113.77")
	raw := a.Netip().As4()
	for l := 0; l <= 32; l++ {
		p := ipaddr.PrefixFrom(a, l)
		for flip := 0; flip < 32; flip++ {
			b := raw
			b[flip/8] ^= 0x80 >> (flip % 8)
			other := ipaddr.MustParseAddress(netipFrom4(b))
			assert.Equal(t, flip >= l, p.Covers(other), "len %d flip %d", l, flip)
		}
	}
}

func TestCoversPrefix(t *testing.T) {
	outer := ipaddr.MustParsePrefix("217.31.48.0/20")
	assert.True(t, outer.CoversPrefix(ipaddr.MustParsePrefix("217.31.48.0/20")))
	assert.True(t, outer.CoversPrefix(ipaddr.MustParsePrefix("217.31.49.0/24")))
	assert.False(t, outer.CoversPrefix(ipaddr.MustParsePrefix("217.31.0.0/16")))
	assert.False(t, outer.CoversPrefix(ipaddr.MustParsePrefix("::/0")))
}

func TestFamilyDefault(t *testing.T) {
	p, ok := ipaddr.IPv4.Default()
	require.True(t, ok)
	assert.Equal(t, "0.0.0.0/0", p.String())
	p, ok = ipaddr.IPv6.Default()
	require.True(t, ok)
	assert.Equal(t, "::/0", p.String())
	_, ok = ipaddr.Unspecified.Default()
	assert.False(t, ok)
}

func TestMoreSpecific(t *testing.T) {
	a := ipaddr.MustParsePrefix("10.0.0.0/8")
	b := ipaddr.MustParsePrefix("10.1.0.0/16")
	assert.True(t, b.MoreSpecific(a))
	assert.False(t, a.MoreSpecific(b))
	assert.False(t, a.MoreSpecific(ipaddr.MustParsePrefix("11.0.0.0/8")))
}

func TestRangePrefixes(t *testing.T) {
	got, err := ipaddr.RangePrefixes(
		ipaddr.MustParseAddress("1.0.0.0"),
		ipaddr.MustParseAddress("1.0.2.255"),
	)
	require.NoError(t, err)
	var s []string
	for _, p := range got {
		s = append(s, p.String())
	}
	assert.Equal(t, []string{"1.0.0.0/23", "1.0.2.0/24"}, s)

	_, err = ipaddr.RangePrefixes(
		ipaddr.MustParseAddress("1.0.0.0"),
		ipaddr.MustParseAddress("::1"),
	)
	assert.Error(t, err)

	_, err = ipaddr.RangePrefixes(
		ipaddr.MustParseAddress("1.0.0.9"),
		ipaddr.MustParseAddress("1.0.0.1"),
	)
	assert.Error(t, err)
}

func netipFrom4(b [4]byte) string {
	return netip.AddrFrom4(b).String()
}
