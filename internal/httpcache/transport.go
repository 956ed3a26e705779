// Package httpcache caches successful outbound GET responses so repeated
// rate lookups do not hit the upstream API again.
package httpcache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/bher20/utilityrates/internal/metrics"
)

// cachedResponse holds the response fields we replay on a hit.
type cachedResponse struct {
	Status     string              `json:"status"`
	StatusCode int                 `json:"status_code"`
	Proto      string              `json:"proto"`
	Header     map[string][]string `json:"header"`
	Body       []byte              `json:"body"`
}

type bypassKey struct{}

// WithBypass marks ctx so requests made with it skip cache reads. Successful
// responses are still written, refreshing the entry.
func WithBypass(ctx context.Context) context.Context {
	return context.WithValue(ctx, bypassKey{}, true)
}

func bypassed(ctx context.Context) bool {
	v, _ := ctx.Value(bypassKey{}).(bool)
	return v
}

// CachingRoundTripper implements http.RoundTripper on top of a Store.
// Only GET requests are cached, and only 2xx responses are written.
// Store failures are logged and fall through to the network.
type CachingRoundTripper struct {
	// Transport is used on a miss. If nil, http.DefaultTransport is used.
	Transport http.RoundTripper
	Store     Store
	Log       logrus.FieldLogger
}

// New wraps next with a cache backed by store.
func New(next http.RoundTripper, store Store, log logrus.FieldLogger) *CachingRoundTripper {
	return &CachingRoundTripper{Transport: next, Store: store, Log: log}
}

// Client returns a shallow copy of base whose transport is cached.
func Client(base *http.Client, store Store, log logrus.FieldLogger) *http.Client {
	c := *base
	c.Transport = New(base.Transport, store, log)
	return &c
}

func (c *CachingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	next := c.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	if c.Store == nil || req.Method != http.MethodGet {
		return next.RoundTrip(req)
	}

	ctx := req.Context()
	key := cacheKey(req.Method, req.URL.String())
	backend := c.Store.Name()

	if bypassed(ctx) {
		metrics.HTTPCacheLookupsTotal.WithLabelValues(backend, "bypass").Inc()
	} else if cached := c.lookup(ctx, req, key, backend); cached != nil {
		return cached, nil
	}

	resp, err := next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	cr := cachedResponse{
		Status:     resp.Status,
		StatusCode: resp.StatusCode,
		Proto:      resp.Proto,
		Header:     resp.Header.Clone(),
		Body:       body,
	}
	if encoded, err := json.Marshal(cr); err == nil {
		if err := c.Store.Set(ctx, key, encoded); err != nil {
			c.logger().WithError(err).WithField("backend", backend).Warn("httpcache: write failed")
		}
	}
	return buildHTTPResponse(req, cr), nil
}

func (c *CachingRoundTripper) lookup(ctx context.Context, req *http.Request, key, backend string) *http.Response {
	data, ok, err := c.Store.Get(ctx, key)
	if err != nil {
		c.logger().WithError(err).WithField("backend", backend).Warn("httpcache: read failed")
		metrics.HTTPCacheLookupsTotal.WithLabelValues(backend, "error").Inc()
		return nil
	}
	if ok {
		var cr cachedResponse
		if err := json.Unmarshal(data, &cr); err == nil {
			metrics.HTTPCacheLookupsTotal.WithLabelValues(backend, "hit").Inc()
			return buildHTTPResponse(req, cr)
		}
		c.logger().WithField("backend", backend).Warn("httpcache: discarding corrupt entry")
	}
	metrics.HTTPCacheLookupsTotal.WithLabelValues(backend, "miss").Inc()
	return nil
}

func (c *CachingRoundTripper) logger() logrus.FieldLogger {
	if c.Log == nil {
		return logrus.StandardLogger()
	}
	return c.Log
}

// cacheKey hashes method and URL. The URL carries the api key, so it is
// never used as a key verbatim.
func cacheKey(method, url string) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte(url))
	return hex.EncodeToString(h.Sum(nil))
}

func buildHTTPResponse(req *http.Request, cr cachedResponse) *http.Response {
	return &http.Response{
		Status:        cr.Status,
		StatusCode:    cr.StatusCode,
		Proto:         cr.Proto,
		Header:        cr.Header,
		Body:          io.NopCloser(bytes.NewReader(cr.Body)),
		ContentLength: int64(len(cr.Body)),
		Request:       req,
	}
}
