// package ipaddr is the address and prefix model shared by all table parsers
package ipaddr

import (
	"net/netip"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go4.org/netipx"
)

//
// EXTERNAL INTERFACE
//

// Family of an address or prefix.
type Family uint8

const (
	Unspecified Family = iota
	IPv4
	IPv6
)

// errors
var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidPrefix  = errors.New("invalid prefix")
)

// Width is the number of address bits of the family.
func (f Family) Width() int {
	switch f {
	case IPv4:
		return 32
	case IPv6:
		return 128
	}
	return 0
}

// Default returns the zero length prefix (default route) of the family.
func (f Family) Default() (Prefix, bool) {
	switch f {
	case IPv4:
		return Prefix{p: netip.PrefixFrom(netip.IPv4Unspecified(), 0)}, true
	case IPv6:
		return Prefix{p: netip.PrefixFrom(netip.IPv6Unspecified(), 0)}, true
	}
	return Prefix{}, false
}

func (f Family) String() string {
	switch f {
	case IPv4:
		return "ipv4"
	case IPv6:
		return "ipv6"
	}
	return "unspecified"
}

// Address is an immutable IPv4 or IPv6 address.
type Address struct {
	a netip.Addr
}

// Prefix is an address with a prefix length, host bits are always zero.
type Prefix struct {
	p netip.Prefix
}

// ParseAddress accepts dotted-decimal IPv4 or colon-hex IPv6 text.
// Zoned addresses are rejected. An IPv4-mapped IPv6 address stays IPv6.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return Address{}, errors.Wrap(ErrInvalidAddress, "empty address")
	}
	a, err := netip.ParseAddr(s)
	if err != nil {
		return Address{}, errors.Wrapf(ErrInvalidAddress, "[%s] %v", s, err)
	}
	if a.Zone() != "" {
		return Address{}, errors.Wrapf(ErrInvalidAddress, "[%s] zoned addresses are not supported", s)
	}
	return Address{a: a}, nil
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// ParsePrefix accepts address/length text. The length is mandatory.
func ParsePrefix(s string) (Prefix, error) {
	i := strings.LastIndexByte(s, '/')
	if i < 0 {
		return Prefix{}, errors.Wrapf(ErrInvalidPrefix, "[%s] missing prefix length", s)
	}
	a, err := ParseAddress(s[:i])
	if err != nil {
		return Prefix{}, errors.Wrapf(ErrInvalidPrefix, "[%s] %v", s, err)
	}
	bits := s[i+1:]
	l, err := strconv.Atoi(bits)
	if err != nil || bits[0] == '+' || bits[0] == '-' {
		return Prefix{}, errors.Wrapf(ErrInvalidPrefix, "[%s] non-numeric prefix length", s)
	}
	if l < 0 || l > a.Family().Width() {
		return Prefix{}, errors.Wrapf(ErrInvalidPrefix, "[%s] prefix length out of range 0..%d", s, a.Family().Width())
	}
	return PrefixFrom(a, l), nil
}

// MustParsePrefix is ParsePrefix for constants and tests.
func MustParsePrefix(s string) Prefix {
	p, err := ParsePrefix(s)
	if err != nil {
		panic(err)
	}
	return p
}

// ParseHostOrPrefix accepts either address/length or a bare address,
// the latter becomes the host prefix of its family.
func ParseHostOrPrefix(s string) (Prefix, error) {
	if strings.IndexByte(s, '/') >= 0 {
		return ParsePrefix(s)
	}
	a, err := ParseAddress(s)
	if err != nil {
		return Prefix{}, err
	}
	return Host(a), nil
}

// PrefixFrom masks the address to l bits. l must be valid for the family.
func PrefixFrom(a Address, l int) Prefix {
	return Prefix{p: netip.PrefixFrom(a.a, l).Masked()}
}

// Host is the single address prefix (/32 or /128).
func Host(a Address) Prefix {
	return Prefix{p: netip.PrefixFrom(a.a, a.a.BitLen())}
}

// RangePrefixes returns the minimal list of prefixes covering [from, to].
func RangePrefixes(from, to Address) ([]Prefix, error) {
	if from.Family() != to.Family() {
		return nil, errors.Wrapf(ErrInvalidAddress, "[%s-%s] address family mismatch", from, to)
	}
	r := netipx.IPRangeFrom(from.a, to.a)
	if !r.IsValid() {
		return nil, errors.Wrapf(ErrInvalidAddress, "[%s-%s] invalid range", from, to)
	}
	nets := r.Prefixes()
	out := make([]Prefix, 0, len(nets))
	for _, n := range nets {
		out = append(out, Prefix{p: n})
	}
	return out, nil
}

//
// ADDRESS
//

// Family of the address, Unspecified for the zero value.
func (a Address) Family() Family {
	switch {
	case a.a.Is4():
		return IPv4
	case a.a.Is6():
		return IPv6
	}
	return Unspecified
}

// IsValid reports whether a was parsed, not zero.
func (a Address) IsValid() bool { return a.a.IsValid() }

// Netip exposes the underlying value.
func (a Address) Netip() netip.Addr { return a.a }

func (a Address) String() string { return a.a.String() }

//
// PREFIX
//

// Addr is the network address.
func (p Prefix) Addr() Address { return Address{a: p.p.Addr()} }

// Bits is the prefix length L.
func (p Prefix) Bits() int { return p.p.Bits() }

// Family of the prefix.
func (p Prefix) Family() Family { return p.Addr().Family() }

// IsValid reports whether p was parsed, not zero.
func (p Prefix) IsValid() bool { return p.p.IsValid() }

// IsHost reports whether p spans exactly one address.
func (p Prefix) IsHost() bool { return p.p.IsValid() && p.p.IsSingleIP() }

// Netip exposes the underlying value.
func (p Prefix) Netip() netip.Prefix { return p.p }

// Covers reports whether the leading Bits() of a equal those of p.
// Addresses of another family are never covered.
func (p Prefix) Covers(a Address) bool {
	if !p.IsValid() || !a.IsValid() || p.Family() != a.Family() {
		return false
	}
	return p.p.Contains(a.a)
}

// CoversPrefix reports whether q lies completely inside p.
func (p Prefix) CoversPrefix(q Prefix) bool {
	return q.Bits() >= p.Bits() && p.Covers(q.Addr())
}

// MoreSpecific orders prefixes by length only, longer first.
func (p Prefix) MoreSpecific(q Prefix) bool { return p.Bits() > q.Bits() }

func (p Prefix) String() string { return p.p.String() }
