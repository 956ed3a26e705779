package openei

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPBuilder_ChainingLastWriteWins(t *testing.T) {
	b := NewHTTPBuilder("https://example.org/rates").
		AddParam("a", "1").
		AddParam("b", "2").
		AddParam("a", "3")

	assert.Equal(t, Params{"a": "3", "b": "2"}, b.Params())
}

func TestHTTPBuilder_ChainingOrderIndependentForDistinctKeys(t *testing.T) {
	one := NewHTTPBuilder("https://example.org").AddParam("x", "1").AddParam("y", "2").AddParam("z", "3")
	two := NewHTTPBuilder("https://example.org").AddParam("z", "3").AddParam("x", "1").AddParam("y", "2")

	assert.Equal(t, one.Params(), two.Params())
}

func TestHTTPBuilder_ExecuteSendsQuery(t *testing.T) {
	var got url.Values
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	b := NewHTTPBuilder(srv.URL+"/utility_rates").WithClient(srv.Client())
	b.AddParam("version", "3").AddParam("api_key", "secret").AddParam("address", "Black Star #45")

	resp, err := b.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, resp.OK())
	assert.JSONEq(t, `{"items":[]}`, string(resp.Body))
	assert.Equal(t, "3", got.Get("version"))
	assert.Equal(t, "secret", got.Get("api_key"))
	assert.Equal(t, "Black Star #45", got.Get("address"))
	assert.Equal(t, UserAgent, gotUA)
	assert.NotContains(t, resp.URL, "secret")
	assert.Contains(t, resp.URL, "api_key=REDACTED")
}

func TestHTTPBuilder_NonOKIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":"API_KEY_INVALID","message":"bad key"}}`))
	}))
	defer srv.Close()

	resp, err := NewHTTPBuilder(srv.URL).WithClient(srv.Client()).Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.False(t, resp.OK())
}

func TestHTTPBuilder_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	b := NewHTTPBuilder(base)
	b.AddParam("api_key", "secret")
	_, err := b.Execute(context.Background())
	require.Error(t, err)

	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.NotContains(t, err.Error(), "secret")
	assert.True(t, strings.HasPrefix(netErr.URL, base))
}

func TestHTTPBuilder_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHTTPBuilder(srv.URL).WithClient(srv.Client()).Execute(ctx)
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPBuilder_FrozenAfterExecute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	b := NewHTTPBuilder(srv.URL).WithClient(srv.Client())
	b.AddParam("a", "1")
	_, err := b.Execute(context.Background())
	require.NoError(t, err)

	next := b.AddParam("b", "2")

	assert.Equal(t, Params{"a": "1"}, b.Params())
	assert.Equal(t, Params{"a": "1", "b": "2"}, next.Params())
}

func TestHTTPBuilder_BaseURLQueryPreserved(t *testing.T) {
	b := NewHTTPBuilder("https://example.org/rates?detail=full")
	b.AddParam("limit", "5")

	u, err := b.URL()
	require.NoError(t, err)

	parsed, err := url.Parse(u)
	require.NoError(t, err)
	assert.Equal(t, "full", parsed.Query().Get("detail"))
	assert.Equal(t, "5", parsed.Query().Get("limit"))
}

func TestFakeBuilder_Deterministic(t *testing.T) {
	b := NewFakeBuilder(FakeBaseURL)
	b.AddParam("api_key", FakeAPIKey)

	first, err := b.Execute(context.Background())
	require.NoError(t, err)
	second, err := b.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, FakeFetchedAt, first.FetchedAt)
	assert.Equal(t, 2, b.Calls())
	assert.JSONEq(t, FakePayload, string(first.Body))
}

func TestFakeBuilder_WithError(t *testing.T) {
	b := NewFakeBuilder(FakeBaseURL).WithError(errors.New("connection refused"))

	_, err := b.Execute(context.Background())

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Contains(t, err.Error(), "connection refused")
}
