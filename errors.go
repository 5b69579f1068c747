package ipmatch

import (
	"strconv"

	"github.com/pkg/errors"

	"paepcke.de/ipmatch/ipaddr"
)

// error taxonomy, match with errors.Is
var (
	ErrInvalidAddress   = ipaddr.ErrInvalidAddress
	ErrInvalidPrefix    = ipaddr.ErrInvalidPrefix
	ErrSourceUnreadable = errors.New("source unreadable")
	ErrMalformedSource  = errors.New("malformed source")
	ErrUnknownFormat    = errors.New("unknown table format")
)

// ParseWarning is a single skipped source line.
type ParseWarning struct {
	Line int    // 1-based line (or record) number in the source
	Text string // offending line, verbatim
	Err  error  // cause
}

func (w *ParseWarning) Error() string {
	return "line " + strconv.Itoa(w.Line) + ": " + w.Err.Error()
}

func (w *ParseWarning) Unwrap() error { return w.Err }

func unreadable(err error, format string, args ...any) error {
	return errors.Wrapf(ErrSourceUnreadable, format+" [%v]", append(args, err)...)
}
