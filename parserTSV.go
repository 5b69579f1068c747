package ipmatch

import (
	"context"
	"io"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"paepcke.de/ipmatch/ipaddr"
)

const (
	_tab          = "\t"
	_feedPerCPU   = 1000
	_tsvMinFields = 2
)

// feed is one raw source line
type feed struct {
	n    int
	line string
}

// tsvRow is a feed line after range expansion
type tsvRow struct {
	n        int
	line     string
	fields   []string
	prefixes []ipaddr.Prefix
	err      error
}

// parseTSVTable reads tab separated range tables such as ip2asn
// (first last asn country owner). Each row is keyed by its first CIDR field,
// else by its first,last address pair expanded into CIDRs. Range expansion
// runs on one worker per cpu, rows keep source order.
func parseTSVTable(ctx context.Context, r io.Reader, l *loader) ([]CsvRouteEntry, error) {
	worker := runtime.NumCPU()
	feedChan := make(chan feed, _feedPerCPU*worker)
	collectChan := make(chan tsvRow, _feedPerCPU*worker)
	g, gctx := errgroup.WithContext(ctx)

	// feeder
	g.Go(func() error {
		defer close(feedChan)
		s := newLineScanner(r)
		for n := 1; s.Scan(); n++ {
			line := strings.TrimRight(s.Text(), "\r")
			if t := strings.TrimSpace(line); t == "" || t[0] == '#' {
				continue
			}
			select {
			case feedChan <- feed{n: n, line: line}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		if err := s.Err(); err != nil {
			return unreadable(err, "[tsv] scan")
		}
		return nil
	})

	// worker
	bg := sync.WaitGroup{}
	bg.Add(worker)
	for i := 0; i < worker; i++ {
		g.Go(func() error {
			defer bg.Done()
			for f := range feedChan {
				row := tsvRow{n: f.n, line: f.line}
				row.fields, row.prefixes, row.err = tsvRange(f.line)
				select {
				case collectChan <- row:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		bg.Wait()
		close(collectChan)
	}()

	// collect
	var rows []tsvRow
	for row := range collectChan {
		rows = append(rows, row)
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slices.SortFunc(rows, func(a, b tsvRow) int { return a.n - b.n })
	var entries []CsvRouteEntry
	for _, row := range rows {
		if row.err != nil {
			if err := l.skip(row.n, row.line, row.err); err != nil {
				return nil, err
			}
			continue
		}
		for _, p := range row.prefixes {
			entries = append(entries, CsvRouteEntry{Prefix: p, RawFields: row.fields})
		}
	}
	return entries, nil
}

func tsvRange(line string) ([]string, []ipaddr.Prefix, error) {
	fields := strings.Split(line, _tab)
	if len(fields) < _tsvMinFields {
		return nil, nil, errors.Errorf("%d tab separated field(s), need %d", len(fields), _tsvMinFields)
	}
	if p, ok := firstCIDR(fields); ok {
		return fields, []ipaddr.Prefix{p}, nil
	}
	if prefixes, ok := firstRange(fields); ok {
		return fields, prefixes, nil
	}
	return nil, nil, errors.New("no prefix or address range field")
}
