package ipmatch

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"paepcke.de/ipmatch/ipaddr"
)

// Query is one address (or prefix) to look up with an optional label that is
// echoed back.
type Query struct {
	Text  string
	Label string
}

// Match is the format specific answer of a query: *VrpMatch, *RouteMatch or
// *CsvMatch.
type Match interface {
	// Render is the result field of the output line.
	Render() string
	// Found reports whether anything matched.
	Found() bool
	isMatch()
}

// VrpMatch holds every covering VRP in load order.
type VrpMatch struct {
	Vrps []VrpEntry
}

// RouteMatch holds the best route, Route is nil when nothing matched.
type RouteMatch struct {
	Route *RouteEntry
}

// CsvMatch holds the best row, Row is nil when nothing matched.
type CsvMatch struct {
	Row *CsvRouteEntry
}

func (m *VrpMatch) Render() string { return pyVrpList(m.Vrps) }
func (m *VrpMatch) Found() bool    { return len(m.Vrps) > 0 }
func (m *VrpMatch) isMatch()       {}

func (m *RouteMatch) Render() string {
	if m.Route == nil {
		return ""
	}
	return m.Route.RawLine
}
func (m *RouteMatch) Found() bool { return m.Route != nil }
func (m *RouteMatch) isMatch()    {}

func (m *CsvMatch) Render() string {
	if m.Row == nil {
		return ""
	}
	return pyStrList(m.Row.RawFields)
}
func (m *CsvMatch) Found() bool { return m.Row != nil }
func (m *CsvMatch) isMatch()    {}

// Result of one query. Err is set when the query text is not an address or
// prefix, Match is nil then.
type Result struct {
	Query Query
	Match Match
	Err   error
}

// Line renders address,label,result.
func (r Result) Line() string {
	var res string
	if r.Match != nil {
		res = r.Match.Render()
	}
	return r.Query.Text + "," + r.Query.Label + "," + res
}

// Resolve answers q with the matching policy of the table format.
func (t *Table) Resolve(q Query) Result {
	p, err := ipaddr.ParseHostOrPrefix(strings.TrimSpace(q.Text))
	if err != nil {
		return Result{Query: q, Err: err}
	}
	switch {
	case t.vrps != nil:
		return Result{Query: q, Match: &VrpMatch{Vrps: t.VrpsCovering(p)}}
	case t.routes != nil:
		m := &RouteMatch{}
		if e, ok := t.BestRoute(p); ok {
			m.Route = &e
		}
		return Result{Query: q, Match: m}
	case t.rows != nil:
		m := &CsvMatch{}
		if e, ok := t.BestRow(p); ok {
			m.Row = &e
		}
		return Result{Query: q, Match: m}
	}
	return Result{Query: q, Err: errors.Wrapf(ErrUnknownFormat, "[%s] table not loaded", t.format)}
}

// ResolveAll answers qs with up to workers goroutines. Results keep the
// order of qs. Per query errors live in the results, the returned error is
// only set when ctx ends first.
func (t *Table) ResolveAll(ctx context.Context, qs []Query, workers int) ([]Result, error) {
	if workers < 1 {
		workers = 1
	}
	out := make([]Result, len(qs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range qs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = t.Resolve(qs[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
