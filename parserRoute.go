package ipmatch

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"paepcke.de/ipmatch/ipaddr"
)

// const
const (
	_default = "default"
	_nexthop = "nexthop"
	_via     = "via"
	_metric  = "metric"
	_type    = "type"
	_lock    = "lock"
)

// leading route type keywords of ip route
var routeTypes = map[string]bool{
	"unicast":     true,
	"local":       true,
	"broadcast":   true,
	"multicast":   true,
	"throw":       true,
	"unreachable": true,
	"prohibit":    true,
	"blackhole":   true,
	"nat":         true,
	"anycast":     true,
}

// valueless flags of ip route
var routeFlags = map[string]bool{
	"onlink":            true,
	"linkdown":          true,
	"dead":              true,
	"pervasive":         true,
	"offload":           true,
	"trap":              true,
	"rt_offload":        true,
	"rt_trap":           true,
	"rt_offload_failed": true,
	"notify":            true,
}

// parseRouteTable reads the text output of ip route / ip -6 route.
func parseRouteTable(ctx context.Context, r io.Reader, l *loader) ([]RouteEntry, error) {
	s := newLineScanner(r)
	var entries []RouteEntry
	last := -1 // entry receiving nexthop continuation lines
	for n := 1; s.Scan(); n++ {
		if err := checkCtx(ctx, n); err != nil {
			return nil, err
		}
		line := strings.TrimRight(s.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "" || trimmed[0] == '#':
			continue
		case line[0] == ' ' || line[0] == '\t' || strings.HasPrefix(trimmed, _nexthop+" "):
			if last < 0 {
				if err := l.skip(n, line, errors.New("nexthop without route")); err != nil {
					return nil, err
				}
				continue
			}
			entries[last].Nexthops = append(entries[last].Nexthops, trimmed)
			continue
		}
		e, err := parseRouteLine(line, l.o.family)
		if err != nil {
			last = -1
			if err := l.skip(n, line, err); err != nil {
				return nil, err
			}
			continue
		}
		entries = append(entries, e)
		last = len(entries) - 1
	}
	if err := s.Err(); err != nil {
		return nil, unreadable(err, "[route] scan")
	}
	return entries, nil
}

// parseRouteLine splits [type] dst [key value | flag]... into a RouteEntry.
func parseRouteLine(line string, family ipaddr.Family) (RouteEntry, error) {
	tok := strings.Fields(line)
	e := RouteEntry{RawLine: line}
	if routeTypes[tok[0]] {
		e.Attrs = append(e.Attrs, Attr{Key: _type, Value: tok[0]})
		tok = tok[1:]
		if len(tok) == 0 {
			return e, errors.New("route type without destination")
		}
	}

	dst, err := routeDestination(tok[0], family)
	if err != nil {
		return e, err
	}
	e.Prefix = dst

	for i := 1; i < len(tok); {
		key := tok[i]
		switch {
		case routeFlags[key]:
			e.Attrs = append(e.Attrs, Attr{Key: key})
			i++
			continue
		case i+1 >= len(tok):
			// unknown trailing keyword, keep it as flag
			e.Attrs = append(e.Attrs, Attr{Key: key})
			i++
			continue
		}
		val := tok[i+1]
		i += 2
		switch {
		case key == _via && (val == "inet" || val == "inet6") && i < len(tok):
			val += " " + tok[i]
			i++
		case val == _lock && i < len(tok):
			// mtu lock 1400
			val += " " + tok[i]
			i++
		}
		if key == _metric {
			if _, err := strconv.ParseUint(val, 10, 32); err != nil {
				return e, errors.Errorf("invalid metric [%s]", val)
			}
		}
		e.Attrs = append(e.Attrs, Attr{Key: key, Value: val})
	}
	return e, nil
}

// routeDestination resolves "default" by family, a bare address is a host route.
func routeDestination(s string, family ipaddr.Family) (ipaddr.Prefix, error) {
	if s == _default {
		p, ok := family.Default()
		if !ok {
			return p, errors.New("default route in table of unspecified address family")
		}
		return p, nil
	}
	p, err := ipaddr.ParseHostOrPrefix(s)
	if err != nil {
		return p, err
	}
	if family != ipaddr.Unspecified && p.Family() != family {
		return p, errors.Errorf("%s route in %s table", p.Family(), family)
	}
	return p, nil
}
