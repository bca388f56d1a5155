// Package backend connects the proxy to the internal generation backend over HTTP.
package backend

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// NewTransport creates a clone of http.DefaultTransport tuned for long-lived
// generation calls and applies tlsClientConfig on top of it. The result is never nil.
func NewTransport(tlsClientConfig *tls.Config) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = http.ProxyFromEnvironment

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport.DialContext = func(ctx context.Context, network, address string) (net.Conn, error) {
		return dialer.DialContext(ctx, network, address)
	}
	transport.ForceAttemptHTTP2 = true
	transport.MaxIdleConns = 100
	transport.MaxIdleConnsPerHost = 32
	transport.IdleConnTimeout = 90 * time.Second
	transport.TLSHandshakeTimeout = 10 * time.Second
	transport.ExpectContinueTimeout = 3 * time.Second

	if tlsClientConfig != nil {
		transport.TLSClientConfig = tlsClientConfig
	}
	return transport
}

// NewProxy returns a reverse proxy that sends every request to target, keeping the
// request path and query. Streamed responses are flushed as they arrive. A nil
// transport uses NewTransport(nil).
func NewProxy(target *url.URL, transport http.RoundTripper, log *zap.Logger) *httputil.ReverseProxy {
	if transport == nil {
		transport = NewTransport(nil)
	}
	return &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.SetURL(target)
			r.Out.Host = target.Host
		},
		Transport:     transport,
		FlushInterval: -1,
		ErrorLog:      zap.NewStdLog(log.Named("backend")),
	}
}
