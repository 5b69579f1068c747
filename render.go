package ipmatch

import (
	"strconv"
	"strings"
	"unicode"
)

// match results are printed as python literals: a list of str for csv rows,
// a list of tuples for vrps

// pyQuote renders s as a python str literal.
func pyQuote(s string) string {
	q := '\''
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		q = '"'
	}
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteRune(q)
	for _, c := range s {
		switch {
		case c == q || c == '\\':
			b.WriteByte('\\')
			b.WriteRune(c)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\r':
			b.WriteString(`\r`)
		case c == '\t':
			b.WriteString(`\t`)
		case c < 0x20 || c == 0x7f || !unicode.IsPrint(c):
			switch {
			case c < 0x100:
				b.WriteString(`\x`)
				writeHex(&b, uint32(c), 2)
			case c > 0xffff:
				b.WriteString(`\U`)
				writeHex(&b, uint32(c), 8)
			default:
				b.WriteString(`\u`)
				writeHex(&b, uint32(c), 4)
			}
		default:
			b.WriteRune(c)
		}
	}
	b.WriteRune(q)
	return b.String()
}

func writeHex(b *strings.Builder, v uint32, width int) {
	h := strconv.FormatUint(uint64(v), 16)
	for i := len(h); i < width; i++ {
		b.WriteByte('0')
	}
	b.WriteString(h)
}

// pyStrList renders ['a', ' b'].
func pyStrList(fields []string) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pyQuote(f))
	}
	b.WriteByte(']')
	return b.String()
}

// pyVrpList renders [('192.0.2.0/24', 24, 'AS64496', 'ripe'), ...].
func pyVrpList(vrps []VrpEntry) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vrps {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		b.WriteString(pyQuote(v.Prefix.String()))
		b.WriteString(", ")
		b.WriteString(strconv.Itoa(v.MaxLength))
		b.WriteString(", ")
		b.WriteString(pyQuote(v.ASN))
		b.WriteString(", ")
		b.WriteString(pyQuote(v.TrustAnchor))
		b.WriteByte(')')
	}
	b.WriteByte(']')
	return b.String()
}
