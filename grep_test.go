package ipmatch_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"paepcke.de/ipmatch"
)

func TestGrepMatch(t *testing.T) {
	g := ipmatch.NewGrep(nil)
	require.NoError(t, g.AddPattern("10.0.0.0/8"))
	require.NoError(t, g.AddPattern("2001:db8::1"))
	require.NoError(t, g.AddPattern("10.1.2.3/8"))
	assert.Error(t, g.AddPattern("10.0.0.0/33"))
	assert.Equal(t, 2, g.Len())

	testCases := map[string]bool{
		"10.1.2.3":       true,
		"10.1.0.0/16":    true,
		"10.0.0.0/8":     true,
		"10.0.0.0/7":     false,
		"11.0.0.1":       false,
		"2001:db8::1":    true,
		"2001:db8::2":    false,
		"2001:db8::/127": false,
		"garbage":        false,
	}
	for in, want := range testCases {
		assert.Equal(t, want, g.Match(in), in)
	}
}

func TestGrepPatternsAndFilter(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	g := ipmatch.NewGrep(zap.New(core))
	n, err := g.ReadPatterns(strings.NewReader("# rfc1918\n10.0.0.0/8\n\nnope\n192.168.0.0/16\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, logs.FilterMessage("skip pattern").Len())

	input := "10.1.1.1\n8.8.8.8 10.0.0.1\n  192.168.5.0/24  \n\n172.16.0.1\n10.9.9.9 GET /index.html\n"
	var out bytes.Buffer
	matched, err := g.Filter(strings.NewReader(input), &out, -1)
	require.NoError(t, err)
	assert.Equal(t, 3, matched)
	assert.Equal(t, "10.1.1.1\n192.168.5.0/24\n10.9.9.9 GET /index.html\n", out.String())

	csv := "host,addr\nweb,10.0.0.5\ndns,8.8.8.8\nshort\n\"lb, front\",192.168.1.1\n"
	out.Reset()
	matched, err = g.Filter(strings.NewReader(csv), &out, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, matched)
	assert.Equal(t, "web,10.0.0.5\n\"lb, front\",192.168.1.1\n", out.String())
}

func TestGrepKeyRegexp(t *testing.T) {
	g := ipmatch.NewGrep(nil)
	require.NoError(t, g.AddPattern("10.0.0.0/8"))
	assert.Error(t, g.SetKeyRegexp(`client \S+`))
	assert.Error(t, g.SetKeyRegexp(`client (\S+`))
	require.NoError(t, g.SetKeyRegexp(`client=(\S+)`))

	input := "Oct 16 sshd: client=10.1.1.1 port=22\n" +
		"Oct 16 sshd: client=8.8.8.8 port=22\n" +
		"10.2.2.2 no key here\n" +
		"Oct 16 sshd: client=10.3.3.0/24\n"
	var out bytes.Buffer
	matched, err := g.Filter(strings.NewReader(input), &out, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, matched)
	assert.Equal(t, "Oct 16 sshd: client=10.1.1.1 port=22\nOct 16 sshd: client=10.3.3.0/24\n", out.String())
}
