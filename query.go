package ipmatch

import (
	"io"
	"strings"
)

// input delimiters between address and label, tried in order
var _delimiters = [...]string{" ", ","}

// NormalizeInput splits a query line at the first space, else at the first
// comma, into address and label.
func NormalizeInput(line string) Query {
	line = strings.TrimSpace(line)
	for _, d := range _delimiters {
		if addr, label, ok := strings.Cut(line, d); ok {
			return Query{Text: addr, Label: label}
		}
	}
	return Query{Text: line}
}

// QueriesFromArgs ...
func QueriesFromArgs(args []string) []Query {
	qs := make([]Query, 0, len(args))
	for _, a := range args {
		if strings.TrimSpace(a) == "" {
			continue
		}
		qs = append(qs, NormalizeInput(a))
	}
	return qs
}

// ReadQueries reads one query per line, blank lines are ignored.
func ReadQueries(r io.Reader) ([]Query, error) {
	s := newLineScanner(r)
	var qs []Query
	for s.Scan() {
		if strings.TrimSpace(s.Text()) == "" {
			continue
		}
		qs = append(qs, NormalizeInput(s.Text()))
	}
	if err := s.Err(); err != nil {
		return nil, unreadable(err, "[query] scan")
	}
	return qs, nil
}
