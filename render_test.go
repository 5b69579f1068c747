package ipmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"paepcke.de/ipmatch/ipaddr"
)

func TestPyQuote(t *testing.T) {
	testCases := map[string]string{
		"":            `''`,
		"bridge0":     `'bridge0'`,
		" bridge0 ":   `' bridge0 '`,
		"it's":        `"it's"`,
		`say "hi"`:    `'say "hi"'`,
		`it's "both"`: `'it\'s "both"'`,
		`back\slash`:  `'back\\slash'`,
		"tab\tnl\n":   `'tab\tnl\n'`,
		"cr\r":        `'cr\r'`,
		"bell\a":      `'bell\x07'`,
		"del\x7f":     `'del\x7f'`,
		"umlaut ä":    `'umlaut ä'`,
		"zwsp\u200b":  `'zwsp\u200b'`,
		"nbsp\u00a0":  `'nbsp\xa0'`,
	}
	for in, want := range testCases {
		assert.Equal(t, want, pyQuote(in), "%q", in)
	}
}

func TestPyLists(t *testing.T) {
	assert.Equal(t, "[]", pyStrList(nil))
	assert.Equal(t, "['a', ' b']", pyStrList([]string{"a", " b"}))

	assert.Equal(t, "[]", pyVrpList(nil))
	assert.Equal(t,
		"[('192.0.2.0/24', 24, 'AS64496', 'ripe'), ('2001:db8::/32', 48, 'AS64497', 'arin')]",
		pyVrpList([]VrpEntry{
			{Prefix: ipaddr.MustParsePrefix("192.0.2.0/24"), MaxLength: 24, ASN: "AS64496", TrustAnchor: "ripe"},
			{Prefix: ipaddr.MustParsePrefix("2001:db8::/32"), MaxLength: 48, ASN: "AS64497", TrustAnchor: "arin"},
		}))
}

func TestHeaderKey(t *testing.T) {
	assert.Equal(t, "ipprefix", headerKey(" IP Prefix "))
	assert.Equal(t, "maxlength", headerKey("max_length"))
	assert.Equal(t, "trustanchor", headerKey("Trust-Anchor"))
}
