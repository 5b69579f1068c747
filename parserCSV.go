package ipmatch

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/pkg/errors"

	"paepcke.de/ipmatch/ipaddr"
)

// parseCSVTable keys each row by its first CIDR field. Fields are kept
// exactly as read, surrounding whitespace included.
func parseCSVTable(ctx context.Context, r io.Reader, l *loader) ([]CsvRouteEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var entries []CsvRouteEntry
	for n := 1; ; n++ {
		if err := checkCtx(ctx, n); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			if err := l.skipCSVError(perr); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, unreadable(err, "[csv] read record %d", n)
		}
		line, _ := cr.FieldPos(0)

		if p, ok := firstCIDR(rec); ok {
			entries = append(entries, CsvRouteEntry{Prefix: p, RawFields: rec})
			continue
		}
		if l.o.expandRanges {
			if prefixes, ok := firstRange(rec); ok {
				for _, p := range prefixes {
					entries = append(entries, CsvRouteEntry{Prefix: p, RawFields: rec})
				}
				continue
			}
		}
		// a header row is expected once, even when parsing strictly
		if n == 1 && l.o.strict {
			continue
		}
		if err := l.skip(line, strings.Join(rec, ","), errors.New("no prefix field")); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func firstCIDR(rec []string) (ipaddr.Prefix, bool) {
	for _, f := range rec {
		f = strings.TrimSpace(f)
		if strings.IndexByte(f, '/') < 0 {
			continue
		}
		if p, err := ipaddr.ParsePrefix(f); err == nil {
			return p, true
		}
	}
	return ipaddr.Prefix{}, false
}

// firstRange finds two adjacent address fields first,last.
func firstRange(rec []string) ([]ipaddr.Prefix, bool) {
	for i := 0; i+1 < len(rec); i++ {
		from, err := ipaddr.ParseAddress(strings.TrimSpace(rec[i]))
		if err != nil {
			continue
		}
		to, err := ipaddr.ParseAddress(strings.TrimSpace(rec[i+1]))
		if err != nil {
			continue
		}
		if prefixes, err := ipaddr.RangePrefixes(from, to); err == nil {
			return prefixes, true
		}
	}
	return nil, false
}
