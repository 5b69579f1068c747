package vrpfetch

// import
import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"net/http"
	"net/url"
	"os"

	"github.com/pkg/errors"
)

// getTlsConf ...
func getTlsConf(trustCA string, keyPins []string) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify:     false,
		SessionTicketsDisabled: true,
		Renegotiation:          0,
		MinVersion:             tls.VersionTLS12,
	}
	if trustCA != "" {
		pem, err := os.ReadFile(trustCA)
		if err != nil {
			return nil, errors.Wrapf(ErrFetch, "[trust ca] unable to read [%s] [%v]", trustCA, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.Wrapf(ErrFetch, "[trust ca] no certificates in [%s]", trustCA)
		}
		tlsConfig.RootCAs = pool
	}
	if len(keyPins) > 0 {
		tlsConfig.VerifyConnection = func(state tls.ConnectionState) error {
			if !pinVerifyState(keyPins, &state) {
				return errors.Wrap(ErrFetch, "[tls] keypin verification failed")
			}
			return nil
		}
	}
	return tlsConfig, nil
}

// pinVerifyState ...
func pinVerifyState(keyPins []string, state *tls.ConnectionState) bool {
	if len(state.PeerCertificates) == 0 {
		return false
	}
	pin := keyPinBase64(state.PeerCertificates[0])
	for _, p := range keyPins {
		if p == pin {
			return true
		}
	}
	return false
}

// keyPinBase64 is the base64 sha256 of the certificate public key.
func keyPinBase64(cert *x509.Certificate) string {
	h := sha256.Sum256(cert.RawSubjectPublicKeyInfo)
	return base64.StdEncoding.EncodeToString(h[:])
}

// getTransport ...
func getTransport(tlsconf *tls.Config) *http.Transport {
	return &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		TLSClientConfig:   tlsconf,
		ForceAttemptHTTP2: true,
	}
}

// getClient ...
func getClient(transport *http.Transport) *http.Client {
	return &http.Client{
		CheckRedirect: nil,
		Jar:           nil,
		Transport:     transport,
	}
}

// getRequest ...
func getRequest(ctx context.Context, targetURL, userAgent string) (*http.Request, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return nil, errors.Wrapf(ErrFetch, "[%s] invalid url syntax [%v]", targetURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Wrapf(ErrFetch, "[%s] unsupported url scheme", targetURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrapf(ErrFetch, "[%s] [%v]", targetURL, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/csv, application/json;q=0.9, */*;q=0.1")
	return req, nil
}
