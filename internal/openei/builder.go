package openei

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bher20/utilityrates/internal/metrics"
)

// UserAgent is sent with every outbound request.
const UserAgent = "utilityrates/1.0"

// Response is the raw outcome of an executed request. Ownership passes to
// whichever Processor receives it.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
	FetchedAt  time.Time
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Builder accumulates a base URL and query parameters and executes a single
// GET against them.
type Builder interface {
	// AddParam sets key to value and returns a builder for chaining.
	AddParam(key, value string) Builder
	// Params returns a copy of the accumulated parameters.
	Params() Params
	// Execute performs the request. A call that cannot complete returns a
	// *NetworkError.
	Execute(ctx context.Context) (*Response, error)
}

// HTTPBuilder is a Builder that performs a real HTTP GET.
//
// Once executed a builder is frozen: AddParam on it returns a new builder
// carrying the extra parameter and leaves the executed one unchanged.
type HTTPBuilder struct {
	baseURL  string
	params   Params
	client   *http.Client
	log      logrus.FieldLogger
	executed bool
}

// NewHTTPBuilder returns a builder for baseURL using DefaultHTTPClient.
func NewHTTPBuilder(baseURL string) *HTTPBuilder {
	return &HTTPBuilder{
		baseURL: baseURL,
		params:  make(Params),
		client:  DefaultHTTPClient(),
		log:     discardLogger(),
	}
}

// WithClient sets the HTTP client. A nil client is ignored.
func (b *HTTPBuilder) WithClient(c *http.Client) *HTTPBuilder {
	if c != nil {
		b.client = c
	}
	return b
}

// WithLogger sets the logger. A nil logger is ignored.
func (b *HTTPBuilder) WithLogger(l logrus.FieldLogger) *HTTPBuilder {
	if l != nil {
		b.log = l
	}
	return b
}

func (b *HTTPBuilder) AddParam(key, value string) Builder {
	if b.executed {
		next := &HTTPBuilder{
			baseURL: b.baseURL,
			params:  b.params.Clone(),
			client:  b.client,
			log:     b.log,
		}
		next.params[key] = value
		return next
	}
	b.params[key] = value
	return b
}

func (b *HTTPBuilder) Params() Params { return b.params.Clone() }

// URL returns the full request URL including the query string.
func (b *HTTPBuilder) URL() (string, error) {
	return buildURL(b.baseURL, b.params)
}

func (b *HTTPBuilder) Execute(ctx context.Context) (*Response, error) {
	b.executed = true
	redacted := redactedURL(b.baseURL, b.params)

	target, err := b.URL()
	if err != nil {
		return nil, &NetworkError{URL: redacted, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &NetworkError{URL: redacted, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	start := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			// url.Error embeds the full URL, api_key included.
			uerr.URL = redacted
		}
		metrics.OpenEINetworkErrorsTotal.Inc()
		b.log.WithError(err).WithField("url", redacted).Warn("openei request failed")
		return nil, &NetworkError{URL: redacted, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.OpenEINetworkErrorsTotal.Inc()
		return nil, &NetworkError{URL: redacted, Err: fmt.Errorf("read body: %w", err)}
	}

	dur := time.Since(start)
	metrics.OpenEIRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	metrics.OpenEIRequestDurationSeconds.Observe(dur.Seconds())

	b.log.WithFields(logrus.Fields{
		"url":      redacted,
		"status":   resp.StatusCode,
		"bytes":    len(body),
		"duration": dur.String(),
	}).Debug("openei request completed")

	return &Response{
		URL:        redacted,
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
		FetchedAt:  time.Now().UTC(),
	}, nil
}

func buildURL(baseURL string, params Params) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// redactedURL renders the request URL with the api_key value masked, for
// logs and errors.
func redactedURL(baseURL string, params Params) string {
	if _, ok := params["api_key"]; ok {
		params = params.Merge(Params{"api_key": "REDACTED"})
	}
	s, err := buildURL(baseURL, params)
	if err != nil {
		return baseURL
	}
	return s
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
