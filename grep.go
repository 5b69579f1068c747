package ipmatch

import (
	"bufio"
	"encoding/csv"
	"io"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"go.uber.org/zap"

	"paepcke.de/ipmatch/ipaddr"
	"paepcke.de/ipmatch/prefixindex"
)

// Grep filters lines by whether their address or prefix lies inside a
// pattern set.
type Grep struct {
	patterns *prefixindex.Index[struct{}]
	keyRe    *regexp.Regexp
	logger   *zap.Logger
}

// NewGrep ...
func NewGrep(logger *zap.Logger) *Grep {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Grep{patterns: prefixindex.New[struct{}](), logger: logger}
}

// AddPattern adds an address or prefix to the pattern set, repeated
// patterns are stored once.
func (g *Grep) AddPattern(s string) error {
	p, err := ipaddr.ParseHostOrPrefix(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	if len(g.patterns.Exact(p)) == 0 {
		g.patterns.Insert(p, struct{}{})
	}
	return nil
}

// ReadPatterns adds one pattern per line, unparsable lines are logged and
// skipped. It returns the number of new patterns.
func (g *Grep) ReadPatterns(r io.Reader) (int, error) {
	s := newLineScanner(r)
	before := g.Len()
	for n := 1; s.Scan(); n++ {
		line := strings.TrimSpace(s.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		if err := g.AddPattern(line); err != nil {
			g.logger.Warn("skip pattern", zap.Int("line", n), zap.String("reason", err.Error()))
			continue
		}
	}
	if err := s.Err(); err != nil {
		return g.Len() - before, unreadable(err, "[grep] scan patterns")
	}
	return g.Len() - before, nil
}

// Len is the number of patterns.
func (g *Grep) Len() int { return g.patterns.Len() }

// Match reports whether the address or prefix s lies inside any pattern.
func (g *Grep) Match(s string) bool {
	p, err := ipaddr.ParseHostOrPrefix(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	_, _, ok := g.patterns.Best(p)
	return ok
}

// SetKeyRegexp makes Filter key each line on the first capture group of
// expr. Lines that do not match are dropped.
func (g *Grep) SetKeyRegexp(expr string) error {
	re, err := regexp.Compile(expr)
	if err != nil {
		return errors.Wrapf(err, "[grep] regexp [%s]", expr)
	}
	if re.NumSubexp() < 1 {
		return errors.Errorf("[grep] regexp [%s] has no capture group", expr)
	}
	g.keyRe = re
	return nil
}

// Filter copies the matching lines of r to w, trimmed. The key of a line is
// the first capture group of the key regexp when one is set, else CSV column
// column when column >= 0, else the first whitespace separated token.
func (g *Grep) Filter(r io.Reader, w io.Writer, column int) (int, error) {
	s := newLineScanner(r)
	bw := bufio.NewWriter(w)
	matched := 0
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		key, ok := g.key(line, column)
		if !ok || !g.Match(key) {
			continue
		}
		matched++
		if _, err := bw.WriteString(line + "\n"); err != nil {
			return matched, err
		}
	}
	if err := s.Err(); err != nil {
		return matched, unreadable(err, "[grep] scan input")
	}
	return matched, bw.Flush()
}

func (g *Grep) key(line string, column int) (string, bool) {
	switch {
	case g.keyRe != nil:
		m := g.keyRe.FindStringSubmatch(line)
		if m == nil {
			return "", false
		}
		return m[1], true
	case column >= 0:
		rec, err := csv.NewReader(strings.NewReader(line)).Read()
		if err != nil || column >= len(rec) {
			return "", false
		}
		return rec[column], true
	}
	return strings.Fields(line)[0], true
}
