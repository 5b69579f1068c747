// package vrpfetch downloads vrp exports from relying party software into a
// local zstd compressed cache
package vrpfetch

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// const
const (
	_DEFAULT_USERAGENT = "ipmatch-vrpfetch"
	_DEFAULT_MAXAGE    = 15 * time.Minute
	_DEFAULT_MAXSIZEMB = 512
	_DEFAULT_TIMEOUT   = 60 * time.Second
	_zst               = ".zst"
)

// Kind of a fetched export.
type Kind string

const (
	KindCSV  Kind = "csv"
	KindJSON Kind = "json"
)

// errors
var (
	ErrFetch = errors.New("vrp fetch failed")
)

// Source describes where to fetch from and where to cache.
type Source struct {
	URL       string        // export url, eg. http://localhost:8323/csv
	File      string        // local cache file, ".zst" is appended when missing
	MaxAge    time.Duration // reuse a cache younger than this, 0 = default, <0 = always fetch
	MaxSizeMB int           // download ceiling in MegaByte(s)
	UserAgent string        //
	TrustCA   string        // optional pem file for root ca[s] trust anchor
	TLSKeyPin []string      // optional tls cert sha2 keypin(s), base64
	Timeout   time.Duration // whole request
	Client    *http.Client  // optional, overrides transport settings
}

// Result of a fetch.
type Result struct {
	File   string // compressed cache file
	Kind   Kind   // csv or json
	Cached bool   // no download happened
}

// Fetch returns a fresh local copy of src.URL, downloading when the cache is
// missing or stale.
func Fetch(ctx context.Context, src Source, logger *zap.Logger) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	src = withDefaults(src)
	res := Result{File: src.File, Kind: kindFromName(src.URL)}

	if isFresh(src.File, src.MaxAge) {
		logger.Debug("vrp cache hit", zap.String("file", src.File))
		res.Cached = true
		if data, err := ReadCache(src.File); err == nil {
			if k, ok := sniffKind(data); ok {
				res.Kind = k
			}
		}
		return res, nil
	}

	logger.Info("fetch vrps", zap.String("url", src.URL), zap.String("cache", src.File))
	data, contentType, err := download(ctx, src)
	if err != nil {
		return res, err
	}
	if k, ok := sniffKind(data); ok {
		res.Kind = k
	} else if k, ok := kindFromContentType(contentType); ok {
		res.Kind = k
	}
	if err := writeCache(src.File, data); err != nil {
		return res, err
	}
	logger.Info("vrps cached", zap.String("file", src.File), zap.Int("bytes", len(data)), zap.String("kind", string(res.Kind)))
	return res, nil
}

func withDefaults(src Source) Source {
	if src.File == "" {
		src.File = filepath.Join(os.TempDir(), "ipmatch-vrps")
	}
	if !strings.HasSuffix(src.File, _zst) {
		src.File += _zst
	}
	if src.MaxAge == 0 {
		src.MaxAge = _DEFAULT_MAXAGE
	}
	if src.MaxSizeMB <= 0 {
		src.MaxSizeMB = _DEFAULT_MAXSIZEMB
	}
	if src.UserAgent == "" {
		src.UserAgent = _DEFAULT_USERAGENT
	}
	if src.Timeout <= 0 {
		src.Timeout = _DEFAULT_TIMEOUT
	}
	return src
}

// download fetches the body, refusing error status and oversized bodies.
func download(ctx context.Context, src Source) ([]byte, string, error) {
	client := src.Client
	if client == nil {
		tlsconf, err := getTlsConf(src.TrustCA, src.TLSKeyPin)
		if err != nil {
			return nil, "", err
		}
		client = getClient(getTransport(tlsconf))
	}
	ctx, cancel := context.WithTimeout(ctx, src.Timeout)
	defer cancel()

	request, err := getRequest(ctx, src.URL, src.UserAgent)
	if err != nil {
		return nil, "", err
	}
	resp, err := client.Do(request)
	if err != nil {
		return nil, "", errors.Wrapf(ErrFetch, "[%s] [%v]", src.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode > 299 {
		return nil, "", errors.Wrapf(ErrFetch, "[%s] [http status %d]", src.URL, resp.StatusCode)
	}
	limit := int64(src.MaxSizeMB) * 1024 * 1024
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", errors.Wrapf(ErrFetch, "[%s] [read body] [%v]", src.URL, err)
	}
	if int64(len(data)) > limit {
		return nil, "", errors.Wrapf(ErrFetch, "[%s] [body exceeds %d MB]", src.URL, src.MaxSizeMB)
	}
	if len(data) == 0 {
		return nil, "", errors.Wrapf(ErrFetch, "[%s] [empty body]", src.URL)
	}
	// pre-compressed exports are stored plain inside the zstd cache
	if isGzip(data) {
		if data, err = gunzip(data, limit); err != nil {
			return nil, "", errors.Wrapf(ErrFetch, "[%s] [%v]", src.URL, err)
		}
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func kindFromName(u string) Kind {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	u = strings.TrimSuffix(strings.ToLower(u), ".gz")
	if strings.HasSuffix(u, "json") {
		return KindJSON
	}
	return KindCSV
}

func kindFromContentType(ct string) (Kind, bool) {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return "", false
	}
	switch {
	case strings.HasSuffix(mt, "json"):
		return KindJSON, true
	case strings.HasSuffix(mt, "csv"):
		return KindCSV, true
	}
	return "", false
}

// sniffKind tells json from csv by the first non blank byte of an export.
func sniffKind(data []byte) (Kind, bool) {
	data = bytes.TrimLeft(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")), " \t\r\n")
	if len(data) == 0 {
		return "", false
	}
	if data[0] == '{' || data[0] == '[' {
		return KindJSON, true
	}
	return KindCSV, true
}
