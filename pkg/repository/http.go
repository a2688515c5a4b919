package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/dnscache"

	"github.com/matzehuels/mvnresolve/pkg/httputil"
	"github.com/matzehuels/mvnresolve/pkg/observability"
)

// Defaults of the HTTP transport.
const (
	DefaultUserAgent  = "mvnresolve/1.0"
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 500 * time.Millisecond
)

// HTTPTransport reads and writes files of one remote repository over
// HTTP(S).
type HTTPTransport struct {
	base      string
	client    *http.Client
	userAgent string
	retry     httputil.Policy
	username  string
	password  string
}

// Option configures an HTTPTransport.
type Option func(*HTTPTransport)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *HTTPTransport) { t.client = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(t *HTTPTransport) { t.userAgent = ua }
}

// WithMaxRetries sets the number of attempts for transient failures.
func WithMaxRetries(n int) Option {
	return func(t *HTTPTransport) { t.retry.Attempts = n }
}

// WithBaseDelay sets the base delay for exponential backoff.
func WithBaseDelay(d time.Duration) Option {
	return func(t *HTTPTransport) { t.retry.BaseDelay = d }
}

// WithBasicAuth sends basic credentials with every request.
func WithBasicAuth(username, password string) Option {
	return func(t *HTTPTransport) { t.username, t.password = username, password }
}

// NewHTTPTransport returns a transport for the repository at baseURL.
func NewHTTPTransport(baseURL string, opts ...Option) *HTTPTransport {
	t := &HTTPTransport{
		base:      strings.TrimRight(baseURL, "/"),
		userAgent: DefaultUserAgent,
		retry: httputil.Policy{
			Attempts:  DefaultMaxRetries,
			BaseDelay: DefaultBaseDelay,
			MaxDelay:  httputil.DefaultPolicy.MaxDelay,
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.client == nil {
		t.client = NewHTTPClient()
	}
	return t
}

// NewHTTPClient returns a client whose dialer resolves hosts through a DNS
// cache refreshed every five minutes.
func NewHTTPClient() *http.Client {
	resolver := &dnscache.Resolver{}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			resolver.Refresh(true)
		}
	}()

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Client{
		Timeout: 5 * time.Minute,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				host, port, err := net.SplitHostPort(addr)
				if err != nil {
					return nil, err
				}
				ips, err := resolver.LookupHost(ctx, host)
				if err != nil {
					return nil, err
				}
				for _, ip := range ips {
					conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
					if err == nil {
						return conn, nil
					}
				}
				return nil, fmt.Errorf("failed to dial any resolved IP of %s", host)
			},
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// Host is the host the transport talks to.
func (t *HTTPTransport) Host() string {
	u, err := url.Parse(t.base)
	if err != nil {
		return t.base
	}
	return u.Host
}

// Get downloads the file at path. 404 maps to ErrNotFound; 429, 5xx and
// network failures are retried before surfacing as ErrTransfer.
func (t *HTTPTransport) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	var body io.ReadCloser
	err := httputil.Retry(ctx, t.retry, func() error {
		var err error
		body, err = t.do(ctx, http.MethodGet, path, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Put uploads data to path.
func (t *HTTPTransport) Put(ctx context.Context, path string, data []byte) error {
	return httputil.Retry(ctx, t.retry, func() error {
		body, err := t.do(ctx, http.MethodPut, path, data)
		if err != nil {
			return err
		}
		return body.Close()
	})
}

func (t *HTTPTransport) do(ctx context.Context, method, path string, data []byte) (io.ReadCloser, error) {
	target := t.base + "/" + strings.TrimPrefix(path, "/")
	var reqBody io.Reader
	if data != nil {
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, transferError(path, err)
	}
	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("Accept", "*/*")
	if t.username != "" {
		req.SetBasicAuth(t.username, t.password)
	}

	host := req.URL.Host
	hooks := observability.HTTP()
	hooks.OnRequest(ctx, method, host, req.URL.Path)
	start := time.Now()

	resp, err := t.client.Do(req)
	if err != nil {
		hooks.OnError(ctx, method, host, req.URL.Path, err)
		if ctx.Err() != nil {
			return nil, transferError(path, ctx.Err())
		}
		return nil, &httputil.RetryableError{Err: transferError(path, err)}
	}
	hooks.OnResponse(ctx, method, host, req.URL.Path, resp.StatusCode, time.Since(start))

	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
		return resp.Body, nil
	case code == http.StatusNotFound || code == http.StatusGone:
		resp.Body.Close()
		return nil, notFound(path)
	case code == http.StatusTooManyRequests || code >= 500:
		resp.Body.Close()
		return nil, &httputil.RetryableError{
			Err:   transferError(path, fmt.Errorf("status %d", code)),
			After: httputil.RetryAfter(resp.Header, time.Now()),
		}
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, transferError(path, fmt.Errorf("unexpected status %d: %s", code, strings.TrimSpace(string(msg))))
	}
}
