// transport/driver.go
/* The multiplexed transfer driver. One HTTP/2-enabled http.Transport is shared by every
pooled handle so that concurrent transfers to the same host multiplex over a single
connection where the server allows it. Per-request options (timeout, TLS verification,
redirect policy) are applied to the borrowed handle's client, never to the shared
transport. */
package transport

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/syncforge/go-batch-http-engine/logger"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 20
	defaultIdleConnTimeout     = 90 * time.Second
	defaultTLSHandshakeTimeout = 10 * time.Second

	// DefaultMaxRedirects bounds redirect chains when a request opts into following them.
	DefaultMaxRedirects = 5
)

// Options configure one request's transfer on a borrowed handle.
type Options struct {
	Timeout            time.Duration
	InsecureSkipVerify bool
	FollowRedirects    bool
	MaxRedirects       int
}

// Driver owns the shared transports and hands out clients configured over them.
type Driver struct {
	secure   *http.Transport
	insecure *http.Transport
	logger   logger.Logger
}

// NewDriver builds the shared HTTP/2-enabled transports. It returns an error when the
// HTTP/2 upgrade of the base transport fails.
func NewDriver(log logger.Logger) (*Driver, error) {
	secure, err := newTransport(false)
	if err != nil {
		return nil, log.Error("Failed to configure HTTP/2 transport", zap.Error(err))
	}

	insecure, err := newTransport(true)
	if err != nil {
		return nil, log.Error("Failed to configure insecure HTTP/2 transport", zap.Error(err))
	}

	return &Driver{
		secure:   secure,
		insecure: insecure,
		logger:   log,
	}, nil
}

func newTransport(insecureSkipVerify bool) (*http.Transport, error) {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        defaultMaxIdleConns,
		MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
		IdleConnTimeout:     defaultIdleConnTimeout,
		TLSHandshakeTimeout: defaultTLSHandshakeTimeout,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: insecureSkipVerify,
		},
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, err
	}
	return tr, nil
}

// NewClient returns a client over the shared secure transport with no per-request
// state applied. Pooled handles wrap clients produced here.
func (d *Driver) NewClient() *http.Client {
	return &http.Client{Transport: d.secure}
}

// Configure applies one request's options to a borrowed client: which shared transport
// backs it, its timeout, and its redirect policy.
func (d *Driver) Configure(c *http.Client, opts Options) {
	if opts.InsecureSkipVerify {
		c.Transport = d.insecure
	} else {
		c.Transport = d.secure
	}

	c.Timeout = opts.Timeout
	c.CheckRedirect = checkRedirect(opts)
}

// checkRedirect builds the per-request redirect policy. Requests that do not opt into
// redirects surface the redirect response as-is. Non-idempotent methods are never
// redirected, and chains are capped.
func checkRedirect(opts Options) func(req *http.Request, via []*http.Request) error {
	maxRedirects := opts.MaxRedirects
	if maxRedirects < 1 {
		maxRedirects = DefaultMaxRedirects
	}

	return func(req *http.Request, via []*http.Request) error {
		if !opts.FollowRedirects {
			return http.ErrUseLastResponse
		}
		if req.Method == http.MethodPost || req.Method == http.MethodPatch {
			return http.ErrUseLastResponse
		}
		if len(via) >= maxRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}
}

// CloseIdleConnections releases idle connections held by the shared transports.
func (d *Driver) CloseIdleConnections() {
	d.secure.CloseIdleConnections()
	d.insecure.CloseIdleConnections()
}
