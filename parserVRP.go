package ipmatch

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"

	"paepcke.de/ipmatch/ipaddr"
)

// vrp column roles
const (
	_colASN = iota
	_colPrefix
	_colMaxLen
	_colTA
	_colCount
)

var vrpColNames = [_colCount]string{"asn", "prefix", "max length", "trust anchor"}

// header names used by routinator, rpki-client, fort, octorpki and the ripe
// validator, normalized by headerKey
var vrpHeaders = map[string]int{
	"asn":                _colASN,
	"as":                 _colASN,
	"originas":           _colASN,
	"originasn":          _colASN,
	"asnumber":           _colASN,
	"ipprefix":           _colPrefix,
	"prefix":             _colPrefix,
	"ipaddressprefix":    _colPrefix,
	"network":            _colPrefix,
	"maxlength":          _colMaxLen,
	"maxlen":             _colMaxLen,
	"maxprefixlength":    _colMaxLen,
	"maxprefixlen":       _colMaxLen,
	"trustanchor":        _colTA,
	"ta":                 _colTA,
	"tal":                _colTA,
	"trustanchorlocator": _colTA,
}

type vrpColumns [_colCount]int

// parseVRPCSV reads a relying party CSV export. The column layout comes from
// the header row, a headerless export is laid out after its first row.
func parseVRPCSV(ctx context.Context, r io.Reader, l *loader) ([]VrpEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var (
		cols    vrpColumns
		entries []VrpEntry
		header  = true
	)
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
			if header {
				return nil, errors.Wrapf(ErrMalformedSource, "[vrp] unreadable header [%v]", err)
			}
			if err := l.skipCSVError(perr); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, unreadable(err, "[vrp] read record %d", n)
		}
		if header {
			header = false
			hcols, herr := vrpHeaderColumns(rec)
			if herr == nil {
				cols = hcols
				continue
			}
			// no header, the first row is data
			icols, ierr := vrpInferColumns(rec)
			if ierr != nil {
				if icols[_colPrefix] < 0 {
					return nil, herr
				}
				return nil, ierr
			}
			cols = icols
		}
		line, _ := cr.FieldPos(0)
		e, err := vrpRecord(rec, cols)
		if err != nil {
			if err := l.skip(line, strings.Join(rec, ","), err); err != nil {
				return nil, err
			}
			continue
		}
		entries = append(entries, e)
	}
	if header {
		return nil, errors.Wrap(ErrMalformedSource, "[vrp] empty source, no header")
	}
	return entries, nil
}

// headerKey lowercases and drops everything but letters and digits.
func headerKey(s string) string {
	var b strings.Builder
	for _, c := range strings.ToLower(s) {
		if unicode.IsLetter(c) || unicode.IsDigit(c) {
			b.WriteRune(c)
		}
	}
	return b.String()
}

func vrpHeaderColumns(rec []string) (cols vrpColumns, err error) {
	for i := range cols {
		cols[i] = -1
	}
	for i, name := range rec {
		if role, ok := vrpHeaders[headerKey(name)]; ok && cols[role] < 0 {
			cols[role] = i
		}
	}
	var missing []string
	for role, i := range cols {
		if i < 0 {
			missing = append(missing, vrpColNames[role])
		}
	}
	if len(missing) > 0 {
		return cols, errors.Wrapf(ErrMalformedSource, "[vrp] header lacks column(s) [%s]", strings.Join(missing, ", "))
	}
	return cols, nil
}

// vrpInferColumns lays out a headerless export: the prefix column parses as
// CIDR, the asn column carries the AS token, the max length column is a bare
// number, the first remaining column is the trust anchor. With two bare
// numbers and no AS token the one fitting the prefix length range is the max
// length and the other the asn.
func vrpInferColumns(rec []string) (cols vrpColumns, err error) {
	for i := range cols {
		cols[i] = -1
	}
	taken := make([]bool, len(rec))
	var (
		pfx     ipaddr.Prefix
		numbers []int
	)
	for i, f := range rec {
		f = strings.TrimSpace(f)
		switch {
		case cols[_colPrefix] < 0 && strings.IndexByte(f, '/') > 0:
			if p, err := ipaddr.ParsePrefix(f); err == nil {
				cols[_colPrefix], taken[i], pfx = i, true, p
			}
		case cols[_colASN] < 0 && isASToken(f):
			cols[_colASN], taken[i] = i, true
		case isDigits(f):
			numbers = append(numbers, i)
		}
	}
	if len(numbers) > 0 {
		ml := numbers[0]
		var fits []int
		for _, i := range numbers {
			if fitsMaxLength(rec[i], pfx) {
				fits = append(fits, i)
			}
		}
		if len(fits) > 0 {
			ml = fits[0]
			for _, i := range fits {
				if i > cols[_colPrefix] {
					ml = i
					break
				}
			}
		}
		cols[_colMaxLen], taken[ml] = ml, true
		if cols[_colASN] < 0 {
			for _, i := range numbers {
				if i != ml {
					cols[_colASN], taken[i] = i, true
					break
				}
			}
		}
	}
	for i, f := range rec {
		if !taken[i] && strings.TrimSpace(f) != "" {
			cols[_colTA] = i
			break
		}
	}
	var missing []string
	for role, i := range cols {
		if i < 0 {
			missing = append(missing, vrpColNames[role])
		}
	}
	if len(missing) > 0 {
		return cols, errors.Wrapf(ErrMalformedSource, "[vrp] no header and no column(s) [%s] in first row", strings.Join(missing, ", "))
	}
	return cols, nil
}

func fitsMaxLength(s string, p ipaddr.Prefix) bool {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	return err == nil && p.IsValid() && n >= p.Bits() && n <= p.Family().Width()
}

func vrpRecord(rec []string, cols vrpColumns) (VrpEntry, error) {
	for _, i := range cols {
		if i >= len(rec) {
			return VrpEntry{}, errors.Errorf("short record, %d of %d column(s)", len(rec), i+1)
		}
	}
	field := func(role int) string { return strings.TrimSpace(rec[cols[role]]) }

	p, err := ipaddr.ParsePrefix(field(_colPrefix))
	if err != nil {
		return VrpEntry{}, err
	}
	return newVrpEntry(p, field(_colMaxLen), field(_colASN), field(_colTA))
}

func newVrpEntry(p ipaddr.Prefix, maxLen, asn, ta string) (VrpEntry, error) {
	ml, err := strconv.Atoi(maxLen)
	if err != nil {
		return VrpEntry{}, errors.Errorf("invalid max length [%s]", maxLen)
	}
	if ml < p.Bits() || ml > p.Family().Width() {
		return VrpEntry{}, errors.Errorf("max length %d out of range %d..%d", ml, p.Bits(), p.Family().Width())
	}
	if asn == "" {
		return VrpEntry{}, errors.New("empty asn")
	}
	return VrpEntry{Prefix: p, MaxLength: ml, ASN: asn, TrustAnchor: ta}, nil
}

func isASToken(s string) bool {
	return len(s) > 2 && strings.EqualFold(s[:2], "as") && isDigits(s[2:])
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
