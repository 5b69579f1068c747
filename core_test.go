package ipmatch_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	"paepcke.de/ipmatch"
)

func writeCompressed(t *testing.T, name string, data []byte) string {
	t.Helper()
	var buf bytes.Buffer
	switch filepath.Ext(name) {
	case ".gz":
		w := gzip.NewWriter(&buf)
		_, err := w.Write(data)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	case ".zst":
		w, err := zstd.NewWriter(&buf, zstd.WithEncoderConcurrency(1))
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	case ".xz":
		w, err := xz.NewWriter(&buf)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	default:
		buf.Write(data)
	}
	file := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(file, buf.Bytes(), 0o600))
	return file
}

func TestOpen(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "vrps.csv"))
	require.NoError(t, err)

	for _, name := range []string{"vrps.csv", "vrps.csv.gz", "vrps.csv.zst", "vrps.csv.xz"} {
		t.Run(name, func(t *testing.T) {
			file := writeCompressed(t, name, data)
			rc, err := ipmatch.Open(file)
			require.NoError(t, err)
			got, err := io.ReadAll(rc)
			require.NoError(t, err)
			require.NoError(t, rc.Close())
			assert.Equal(t, data, got)

			tbl, err := ipmatch.LoadFile(context.Background(), file, ipmatch.FormatVRP)
			require.NoError(t, err)
			assert.Equal(t, 6, tbl.Len())
		})
	}
}

func TestOpenBroken(t *testing.T) {
	for _, name := range []string{"broken.gz", "broken.xz"} {
		t.Run(name, func(t *testing.T) {
			file := filepath.Join(t.TempDir(), name)
			require.NoError(t, os.WriteFile(file, []byte("plain text"), 0o600))
			_, err := ipmatch.Open(file)
			assert.True(t, errors.Is(err, ipmatch.ErrSourceUnreadable), "got %v", err)
		})
	}
	_, err := ipmatch.Open(filepath.Join(t.TempDir(), "absent.zst"))
	assert.True(t, errors.Is(err, ipmatch.ErrSourceUnreadable), "got %v", err)
}
