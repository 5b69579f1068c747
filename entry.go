package ipmatch

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"paepcke.de/ipmatch/ipaddr"
)

// Format of a table source.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatVRP            // VRP CSV export
	FormatVRPJSON        // VRP JSON export
	FormatRoute          // ip route / ip -6 route text dump
	FormatCSV            // arbitrary CSV, first CIDR column is the key
	FormatTSV            // tab separated range table, ip2asn style
)

func (f Format) String() string {
	switch f {
	case FormatVRP:
		return "vrp"
	case FormatVRPJSON:
		return "vrp-json"
	case FormatRoute:
		return "route"
	case FormatCSV:
		return "csv"
	case FormatTSV:
		return "tsv"
	}
	return "unknown"
}

// ParseFormat accepts the names printed by Format.String and common aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vrp", "vrps", "vrp-csv":
		return FormatVRP, nil
	case "vrp-json", "vrps-json", "json":
		return FormatVRPJSON, nil
	case "route", "routes", "routetable", "linux":
		return FormatRoute, nil
	case "csv":
		return FormatCSV, nil
	case "tsv", "ip2asn":
		return FormatTSV, nil
	}
	return FormatUnknown, errors.Wrapf(ErrUnknownFormat, "[%s]", s)
}

// VrpEntry is one validated ROA payload.
type VrpEntry struct {
	Prefix      ipaddr.Prefix
	MaxLength   int
	ASN         string // as exported, e.g. AS29134
	TrustAnchor string
}

// Attr is one key/value pair of a route line.
type Attr struct {
	Key   string
	Value string
}

// RouteEntry is one route of a Linux route table dump.
type RouteEntry struct {
	Prefix   ipaddr.Prefix
	Attrs    []Attr   // in line order
	RawLine  string   // verbatim source line
	Nexthops []string // multipath continuation lines, trimmed
}

// Attr returns the value of the first attribute named key.
func (e *RouteEntry) Attr(key string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// Metric is the numeric metric attribute, 0 when absent.
func (e *RouteEntry) Metric() uint64 {
	v, ok := e.Attr("metric")
	if !ok {
		return 0
	}
	m, _ := strconv.ParseUint(v, 10, 32)
	return m
}

// CsvRouteEntry is one row of a generic CSV or TSV table. A TSV range row
// yields one entry per covering prefix, all sharing RawFields.
type CsvRouteEntry struct {
	Prefix    ipaddr.Prefix
	RawFields []string // as read, whitespace intact
}
