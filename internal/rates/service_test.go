package rates

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bher20/utilityrates/internal/httpcache"
	"github.com/bher20/utilityrates/internal/openei"
	"github.com/bher20/utilityrates/internal/storage"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestLookup_FakeProducesEstimate(t *testing.T) {
	svc := NewService(NewFactory(Config{Fake: true}, quietLogger()), nil, quietLogger())

	res, err := svc.Lookup(context.Background(), Lookup{Address: "1 Main St", Consumption: "500", PercentageScale: "10"})
	require.NoError(t, err)

	assert.False(t, res.Cached)
	assert.Equal(t, openei.FakeFetchedAt, res.FetchedAt)
	require.Len(t, res.Result.Items, 1)
	assert.Equal(t, "1 Main St", res.Query["address"])
	assert.NotContains(t, res.Query, "api_key")

	require.NotNil(t, res.Estimate)
	assert.Equal(t, "Fake Power & Light", res.Estimate.Utility)
	assert.InDelta(t, 60.5, res.Estimate.EnergyCostUSD, 0.001)
	assert.InDelta(t, 73.0, res.Estimate.TotalUSD, 0.001)
}

func TestLookup_SnapshotHitSkipsUpstream(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		_, _ = w.Write([]byte(openei.FakePayload))
	}))
	defer srv.Close()

	settings := openei.DefaultSettings("secret")
	settings.BaseURL = srv.URL
	st := storage.NewMemory()
	svc := NewService(NewFactory(Config{Settings: settings, HTTPClient: srv.Client()}, quietLogger()), st, quietLogger())
	ctx := context.Background()
	in := Lookup{Address: "1 Main St", Consumption: "100"}

	first, err := svc.Lookup(ctx, in)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := svc.Lookup(ctx, in)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	require.Len(t, second.Result.Items, 1)
	assert.Equal(t, first.Result.Items[0].Name, second.Result.Items[0].Name)
	assert.Equal(t, first.Estimate, second.Estimate)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	snap, err := st.GetRatesSnapshot(ctx, first.Result.URL)
	require.NoError(t, err)
	assert.Nil(t, snap, "snapshots are keyed by query, not URL")

	_, err = svc.ForceRefresh(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestLookup_SnapshotKeyExcludesAPIKey(t *testing.T) {
	st := storage.NewMemory()
	svc := NewService(NewFactory(Config{Fake: true}, quietLogger()), st, quietLogger())
	ctx := context.Background()

	res, err := svc.Lookup(ctx, Lookup{Address: "a"})
	require.NoError(t, err)

	key := openei.Params(res.Query).Encode()
	assert.NotContains(t, key, "api_key")
	snap, err := st.GetRatesSnapshot(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, http.StatusOK, snap.StatusCode)
}

func TestLookup_APIErrorPropagates(t *testing.T) {
	body := []byte(`{"error":{"code":"API_KEY_INVALID","message":"An invalid api_key was supplied."}}`)
	factory := func(user openei.Params) Client {
		return openei.NewFakeUtilityRatesService(user, openei.WithFakeResponse(http.StatusForbidden, body))
	}
	st := storage.NewMemory()
	svc := NewService(factory, st, quietLogger())

	_, err := svc.Lookup(context.Background(), Lookup{Address: "x"})
	require.Error(t, err)

	var apiErr *openei.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "API_KEY_INVALID", apiErr.Code)
}

func TestLookup_CorruptSnapshotRefetches(t *testing.T) {
	st := storage.NewMemory()
	svc := NewService(NewFactory(Config{Fake: true}, quietLogger()), st, quietLogger())
	ctx := context.Background()
	in := Lookup{Address: "b"}

	key := openei.NewFakeUtilityRatesService(in.Params()).Params().Without("api_key").Encode()
	require.NoError(t, st.SaveRatesSnapshot(ctx, storage.RatesSnapshot{QueryKey: key, Payload: []byte("{not json")}))

	res, err := svc.Lookup(ctx, in)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Len(t, res.Result.Items, 1)
}

func TestForceRefresh_BypassesHTTPCache(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(openei.FakePayload))
	}))
	defer srv.Close()

	store, err := httpcache.NewFileStore(t.TempDir(), time.Hour)
	require.NoError(t, err)
	client := httpcache.Client(srv.Client(), store, quietLogger())

	settings := openei.DefaultSettings("secret")
	settings.BaseURL = srv.URL
	svc := NewService(NewFactory(Config{Settings: settings, HTTPClient: client}, quietLogger()), nil, quietLogger())
	ctx := context.Background()
	in := Lookup{Address: "Black Star #45", Consumption: "15", PercentageScale: "10"}

	_, err = svc.Lookup(ctx, in)
	require.NoError(t, err)
	_, err = svc.Lookup(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "repeat lookups are served from the response cache")

	_, err = svc.ForceRefresh(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}
