package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/mbd888/tariffdesk/internal/circuitbreaker"
	"github.com/mbd888/tariffdesk/internal/metrics"
	"github.com/mbd888/tariffdesk/internal/retry"
	"github.com/mbd888/tariffdesk/internal/tariff"
)

// maxDocumentBytes caps how much of a remote document is read.
const maxDocumentBytes = 4 << 20

// maskURL hides the password of a URL's userinfo. Unparsable input is
// masked entirely.
func maskURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// StatusError reports a non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.Code)
}

// HTTPSource fetches a document over HTTP(S), bypassing caches. Transient
// failures are retried; repeated failures for a host open its circuit.
type HTTPSource struct {
	url     string
	name    string
	host    string
	client  *http.Client
	breaker *circuitbreaker.Breaker
	policy  retry.Policy
}

// NewHTTPSource creates an HTTP source. breaker may be nil.
func NewHTTPSource(rawURL string, client *http.Client, breaker *circuitbreaker.Breaker, policy retry.Policy) *HTTPSource {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{url: rawURL, name: maskURL(rawURL), host: host, client: client, breaker: breaker, policy: policy}
}

// Name returns the URL with any userinfo password masked. It is safe to log.
func (s *HTTPSource) Name() string { return s.name }
func (s *HTTPSource) Kind() string { return "http" }

// Fetch GETs the document. 4xx responses and an open circuit are not retried.
func (s *HTTPSource) Fetch(ctx context.Context) (*Document, error) {
	policy := s.policy
	onRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, err error) {
		metrics.SourceFetchRetries.WithLabelValues(s.Kind()).Inc()
		if onRetry != nil {
			onRetry(attempt, err)
		}
	}

	var doc *Document
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		var err error
		if s.breaker == nil {
			doc, err = s.get(ctx)
			return classify(err)
		}
		err = s.breaker.Execute(s.host, func() error {
			doc, err = s.get(ctx)
			return err
		})
		return classify(err)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *HTTPSource) get(ctx context.Context) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9, */*;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", s.name, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: s.name, Code: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.name, err)
	}
	return &Document{Data: data, Format: s.format(resp.Header.Get("Content-Type"))}, nil
}

func (s *HTTPSource) format(contentType string) tariff.Format {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && strings.Contains(mt, "yaml") {
		return tariff.FormatYAML
	}
	u, err := url.Parse(s.url)
	if err != nil {
		return tariff.FormatJSON
	}
	return tariff.FormatFromPath(u.Path)
}

// classify marks errors that another attempt cannot fix.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se *StatusError
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, circuitbreaker.ErrOpen):
		return retry.Permanent(err)
	case errors.As(err, &se) && se.Code < 500 && se.Code != http.StatusTooManyRequests:
		return retry.Permanent(err)
	}
	return err
}
