package ipmatch

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"slices"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"paepcke.de/ipmatch/ipaddr"
	"paepcke.de/ipmatch/prefixindex"
)

// Table is a loaded source with its prefix index. It is immutable after
// Load and may be queried from many goroutines.
type Table struct {
	format   Format
	family   ipaddr.Family
	vrps     *prefixindex.Index[VrpEntry]
	routes   *prefixindex.Index[RouteEntry]
	rows     *prefixindex.Index[CsvRouteEntry]
	warnings []ParseWarning
}

// Load parses r as format f and builds the prefix index.
func Load(ctx context.Context, r io.Reader, f Format, opts ...Option) (*Table, error) {
	o := applyOptions(opts)
	l := &loader{o: o, format: f}
	t := &Table{format: f, family: o.family}
	var err error
	switch f {
	case FormatVRP:
		var entries []VrpEntry
		if entries, err = parseVRPCSV(ctx, r, l); err == nil {
			t.vrps = buildIndex(entries, func(e VrpEntry) ipaddr.Prefix { return e.Prefix })
		}
	case FormatVRPJSON:
		var entries []VrpEntry
		if entries, err = parseVRPJSON(ctx, r, l); err == nil {
			t.vrps = buildIndex(entries, func(e VrpEntry) ipaddr.Prefix { return e.Prefix })
		}
	case FormatRoute:
		var entries []RouteEntry
		if entries, err = parseRouteTable(ctx, r, l); err == nil {
			t.routes = buildIndex(entries, func(e RouteEntry) ipaddr.Prefix { return e.Prefix })
		}
	case FormatCSV:
		var entries []CsvRouteEntry
		if entries, err = parseCSVTable(ctx, r, l); err == nil {
			t.rows = buildIndex(entries, func(e CsvRouteEntry) ipaddr.Prefix { return e.Prefix })
		}
	case FormatTSV:
		var entries []CsvRouteEntry
		if entries, err = parseTSVTable(ctx, r, l); err == nil {
			t.rows = buildIndex(entries, func(e CsvRouteEntry) ipaddr.Prefix { return e.Prefix })
		}
	default:
		return nil, errors.Wrapf(ErrUnknownFormat, "[%d]", f)
	}
	if err != nil {
		return nil, err
	}
	t.warnings = l.warnings
	o.logger.Info("table loaded",
		zap.Stringer("format", f),
		zap.Int("entries", t.Len()),
		zap.Int("ipv4", t.LenFamily(ipaddr.IPv4)),
		zap.Int("ipv6", t.LenFamily(ipaddr.IPv6)),
		zap.Int("skipped", len(t.warnings)),
	)
	return t, nil
}

// LoadFile opens name with Open and loads it.
func LoadFile(ctx context.Context, name string, f Format, opts ...Option) (*Table, error) {
	rc, err := Open(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return Load(ctx, rc, f, opts...)
}

// Format of the loaded source.
func (t *Table) Format() Format { return t.format }

// Warnings lists the skipped lines of a lenient load.
func (t *Table) Warnings() []ParseWarning { return slices.Clone(t.warnings) }

// Len is the number of entries.
func (t *Table) Len() int {
	switch {
	case t.vrps != nil:
		return t.vrps.Len()
	case t.routes != nil:
		return t.routes.Len()
	case t.rows != nil:
		return t.rows.Len()
	}
	return 0
}

// LenFamily is the number of entries of one address family.
func (t *Table) LenFamily(f ipaddr.Family) int {
	switch {
	case t.vrps != nil:
		return t.vrps.LenFamily(f)
	case t.routes != nil:
		return t.routes.LenFamily(f)
	case t.rows != nil:
		return t.rows.LenFamily(f)
	}
	return 0
}

// VrpsCovering returns every VRP whose prefix covers q, in load order.
// A non-host q only matches VRPs whose max length allows it.
func (t *Table) VrpsCovering(q ipaddr.Prefix) []VrpEntry {
	if t.vrps == nil {
		return nil
	}
	var out []VrpEntry
	for _, it := range t.vrps.AllCovering(q) {
		if q.IsHost() || q.Bits() <= it.Entry.MaxLength {
			out = append(out, it.Entry)
		}
	}
	return out
}

// BestRoute is the route with the longest prefix covering q. Equal prefixes
// are ranked by lowest metric, then by table order.
func (t *Table) BestRoute(q ipaddr.Prefix) (RouteEntry, bool) {
	if t.routes == nil {
		return RouteEntry{}, false
	}
	_, bucket, ok := t.routes.Best(q)
	if !ok {
		return RouteEntry{}, false
	}
	best := bucket[0]
	for _, it := range bucket[1:] {
		if it.Entry.Metric() < best.Entry.Metric() {
			best = it
		}
	}
	return best.Entry, true
}

// BestRow is the CSV or TSV row with the longest prefix covering q, first
// seen wins.
func (t *Table) BestRow(q ipaddr.Prefix) (CsvRouteEntry, bool) {
	if t.rows == nil {
		return CsvRouteEntry{}, false
	}
	_, bucket, ok := t.rows.Best(q)
	if !ok {
		return CsvRouteEntry{}, false
	}
	return bucket[0].Entry, true
}

// Dump writes every entry in load order as prefix,result, the result
// rendered as a query matching only that entry would show it.
func (t *Table) Dump(w io.Writer) error {
	bw := bufio.NewWriter(w)
	var err error
	write := func(p ipaddr.Prefix, m Match) bool {
		_, err = bw.WriteString(p.String() + "," + m.Render() + "\n")
		return err == nil
	}
	switch {
	case t.vrps != nil:
		t.vrps.Walk(func(it prefixindex.Item[VrpEntry]) bool {
			return write(it.Prefix, &VrpMatch{Vrps: []VrpEntry{it.Entry}})
		})
	case t.routes != nil:
		t.routes.Walk(func(it prefixindex.Item[RouteEntry]) bool {
			return write(it.Prefix, &RouteMatch{Route: &it.Entry})
		})
	case t.rows != nil:
		t.rows.Walk(func(it prefixindex.Item[CsvRouteEntry]) bool {
			return write(it.Prefix, &CsvMatch{Row: &it.Entry})
		})
	}
	if err != nil {
		return err
	}
	return bw.Flush()
}

func buildIndex[E any](entries []E, key func(E) ipaddr.Prefix) *prefixindex.Index[E] {
	x := prefixindex.New[E]()
	for _, e := range entries {
		x.Insert(key(e), e)
	}
	return x
}

// loader carries the per-load parse state shared by all parsers.
type loader struct {
	o        options
	format   Format
	warnings []ParseWarning
}

// skip records a skipped line, in strict mode it is returned as error.
func (l *loader) skip(line int, text string, cause error) error {
	w := ParseWarning{Line: line, Text: text, Err: cause}
	if l.o.strict {
		return errors.Wrapf(&w, "[%s] strict parsing", l.format)
	}
	l.warnings = append(l.warnings, w)
	l.o.logger.Warn("skip line",
		zap.Stringer("format", l.format),
		zap.Int("line", line),
		zap.String("reason", cause.Error()),
	)
	return nil
}

// skipCSVError records an unreadable csv record, the reader keeps no raw
// text so the parse error stands in for it.
func (l *loader) skipCSVError(perr *csv.ParseError) error {
	return l.skip(perr.StartLine, perr.Error(), perr)
}

// checkCtx polls ctx on the first and then every 4096th line.
func checkCtx(ctx context.Context, n int) error {
	if n&0xfff != 1 {
		return nil
	}
	return ctx.Err()
}
