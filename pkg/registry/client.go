// Package registry talks to the npm package registry and to the
// specifier-resolution API.
//
// [Client] performs the two network operations the install engine needs:
// resolving a version specifier to a concrete version and opening a
// package tarball. [Resolver] adds the process-wide memo on top of
// [Client.ResolveVersion] so every distinct (name, specifier) pair costs at
// most one request.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/matzehuels/nodevfs/pkg/buildinfo"
	nerrors "github.com/matzehuels/nodevfs/pkg/errors"
	"github.com/matzehuels/nodevfs/pkg/observability"
)

// Default endpoints.
const (
	DefaultResolveURL = "https://data.jsdelivr.com/v1"
	DefaultTarballURL = "https://registry.npmjs.org"
	DefaultTimeout    = 30 * time.Second
)

var (
	// ErrNotFound is returned when the registry answers 404.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, non-2xx responses).
	ErrNetwork = errors.New("network error")

	// ErrEmptyBody is returned when a tarball response carries no content.
	ErrEmptyBody = errors.New("empty response body")
)

// Config configures a Client.
type Config struct {
	ResolveURL string        // specifier-resolution API base (default DefaultResolveURL)
	TarballURL string        // tarball registry base (default DefaultTarballURL)
	Timeout    time.Duration // per-request timeout (default DefaultTimeout)
	Retry      Backoff       // retry policy for 5xx and network errors
	Headers    map[string]string
	HTTPClient *http.Client // overrides the client built from Timeout
}

// Client provides HTTP access to the registry endpoints.
type Client struct {
	http       *http.Client
	headers    map[string]string
	retry      Backoff
	resolveURL string
	tarballURL string
}

// NewClient creates a Client from cfg, filling defaults for zero fields.
func NewClient(cfg Config) *Client {
	if cfg.ResolveURL == "" {
		cfg.ResolveURL = DefaultResolveURL
	}
	if cfg.TarballURL == "" {
		cfg.TarballURL = DefaultTarballURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	headers := map[string]string{"User-Agent": buildinfo.UserAgent()}
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	return &Client{
		http:       hc,
		headers:    headers,
		retry:      cfg.Retry.withDefaults(),
		resolveURL: strings.TrimSuffix(cfg.ResolveURL, "/"),
		tarballURL: strings.TrimSuffix(cfg.TarballURL, "/"),
	}
}

type resolvedResponse struct {
	Version string `json:"version"`
}

// ResolveVersion asks the resolution API which concrete version specifier
// selects. It performs no caching; see Resolver.
func (c *Client) ResolveVersion(ctx context.Context, name, specifier string) (string, error) {
	u := fmt.Sprintf("%s/packages/npm/%s/resolved?specifier=%s", c.resolveURL, name, url.QueryEscape(specifier))

	var data resolvedResponse
	err := RetryWithBackoff(ctx, c.retry, func() error {
		body, err := c.doRequest(ctx, u)
		if err != nil {
			return err
		}
		defer body.Close()
		return json.NewDecoder(body).Decode(&data)
	})
	if err != nil {
		return "", nerrors.Resolution(name, specifier, err)
	}
	if data.Version == "" {
		return "", nerrors.Resolution(name, specifier, errors.New("no version in response"))
	}
	return data.Version, nil
}

// TarballURL returns the registry URL of the name@version archive.
// Scoped packages keep the scope in the path but not in the file name.
func (c *Client) TarballURL(name, version string) string {
	return fmt.Sprintf("%s/%s/-/%s-%s.tgz", c.tarballURL, name, ShortName(name), version)
}

// ShortName returns name without its @scope/ prefix.
func ShortName(name string) string {
	if strings.HasPrefix(name, "@") {
		if _, short, ok := strings.Cut(name, "/"); ok {
			return short
		}
	}
	return name
}

// Tarball opens the gzip-compressed archive of name@version. The caller
// must close the returned body.
func (c *Client) Tarball(ctx context.Context, name, version string) (io.ReadCloser, error) {
	u := c.TarballURL(name, version)

	var body io.ReadCloser
	err := RetryWithBackoff(ctx, c.retry, func() error {
		b, err := c.doRequest(ctx, u)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, nerrors.Fetch(name, version, err)
	}
	return body, nil
}

func (c *Client) doRequest(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	hooks := observability.HTTP()
	host, path := req.URL.Host, req.URL.Path
	hooks.OnRequest(ctx, req.Method, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, err
	}
	if resp.ContentLength == 0 {
		resp.Body.Close()
		return nil, ErrEmptyBody
	}
	return resp.Body, nil
}

func checkStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests || code >= 500:
		return Retryable(fmt.Errorf("%w: status %d", ErrNetwork, code))
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}
