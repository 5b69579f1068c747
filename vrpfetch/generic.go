package vrpfetch

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// isFresh reports whether filename exists and is younger than maxAge.
func isFresh(filename string, maxAge time.Duration) bool {
	if maxAge < 0 {
		return false
	}
	fi, err := os.Stat(filename)
	if err != nil || fi.Size() == 0 {
		return false
	}
	return time.Since(fi.ModTime()) < maxAge
}

// writeCache stores data zstd compressed, via rename so readers never see a
// partial file.
func writeCache(filename string, data []byte) error {
	out, err := compress(data, 19)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".*")
	if err != nil {
		return errors.Wrapf(ErrFetch, "unable to write cache [%v]", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return errors.Wrapf(ErrFetch, "unable to write cache [%v]", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(ErrFetch, "unable to write cache [%v]", err)
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return errors.Wrapf(ErrFetch, "unable to write cache [%v]", err)
	}
	return nil
}

// compress ...
func compress(data []byte, level int) ([]byte, error) {
	if level > 19 {
		level = 19
	}
	w, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithEncoderCRC(true),
		zstd.WithZeroFrames(false),
		zstd.WithSingleSegment(true),
		zstd.WithAllLitEntropyCompression(true))
	if err != nil {
		return nil, errors.Wrapf(ErrFetch, "unable to create zstd writer [%v]", err)
	}
	out := w.EncodeAll(data, nil)
	w.Close()
	return out, nil
}

// decompress ...
func decompress(data []byte) ([]byte, error) {
	r, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errors.Wrapf(ErrFetch, "unable to create zstd reader [%v]", err)
	}
	defer r.Close()
	out, err := r.DecodeAll(data, nil)
	if err != nil {
		return nil, errors.Wrapf(ErrFetch, "[decompress] [%v]", err)
	}
	return out, nil
}

// isGzip checks the gzip magic.
func isGzip(data []byte) bool {
	return len(data) > 2 && data[0] == 0x1f && data[1] == 0x8b
}

// gunzip inflates data, refusing results beyond limit bytes.
func gunzip(data []byte, limit int64) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Errorf("[gunzip] [%v]", err)
	}
	defer r.Close()
	out, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, errors.Errorf("[gunzip] [%v]", err)
	}
	if int64(len(out)) > limit {
		return nil, errors.Errorf("[gunzip] [exceeds %d MB]", limit/1024/1024)
	}
	return out, nil
}

// ReadCache returns the uncompressed content of a cache file.
func ReadCache(filename string) ([]byte, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(ErrFetch, "unable to read cache [%v]", err)
	}
	return decompress(data)
}
