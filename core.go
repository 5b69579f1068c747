// package ipmatch loads VRP, Linux route and CSV tables and answers
// longest-prefix-match queries against them
package ipmatch

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// const
const (
	_stdin       = "-"
	_maxLineSize = 1024 * 1024
)

// Open returns a reader for the named source, decompressing by file extension
// (.zst, .gz, .xz). The name "-" is stdin.
func Open(name string) (io.ReadCloser, error) {
	if name == _stdin {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, unreadable(err, "[open] unable to read file [%s]", name)
	}
	var r io.Reader
	switch {
	case strings.HasSuffix(name, ".zst"):
		var d *zstd.Decoder
		if d, err = zstd.NewReader(f); err == nil {
			return &sourceCloser{Reader: d, close: func() error { d.Close(); return f.Close() }}, nil
		}
	case strings.HasSuffix(name, ".gz"):
		var z *gzip.Reader
		if z, err = gzip.NewReader(f); err == nil {
			return &sourceCloser{Reader: z, close: func() error { z.Close(); return f.Close() }}, nil
		}
	case strings.HasSuffix(name, ".xz"):
		if r, err = xz.NewReader(f); err == nil {
			return &sourceCloser{Reader: r, close: f.Close}, nil
		}
	default:
		return f, nil
	}
	f.Close()
	return nil, unreadable(err, "[open] unable to decompress file [%s]", name)
}

type sourceCloser struct {
	io.Reader
	close func() error
}

func (s *sourceCloser) Close() error { return s.close() }

// newLineScanner ...
func newLineScanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), _maxLineSize)
	return s
}
