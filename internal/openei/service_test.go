package openei

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUtilityRatesService_ParamsMergeCallerWins(t *testing.T) {
	tests := []struct {
		name string
		user Params
		want Params
	}{
		{
			name: "no caller params",
			user: nil,
			want: Params{"version": "3", "api_key": "key", "start_date": "2022-01-01", "format": "json"},
		},
		{
			name: "caller adds address",
			user: Params{"address": "Black Star #45", "consumption": "15", "percentage_scale": "10"},
			want: Params{
				"version": "3", "api_key": "key", "start_date": "2022-01-01", "format": "json",
				"address": "Black Star #45", "consumption": "15", "percentage_scale": "10",
			},
		},
		{
			name: "caller overrides default",
			user: Params{"start_date": "2024-06-01", "version": "latest"},
			want: Params{"version": "latest", "api_key": "key", "start_date": "2024-06-01", "format": "json"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewUtilityRatesService(DefaultSettings("key"), tt.user)
			assert.Equal(t, tt.want, svc.Params())
		})
	}
}

func TestUtilityRatesService_InstancesDoNotShareParams(t *testing.T) {
	user := Params{"address": "first"}
	a := NewUtilityRatesService(DefaultSettings("key"), user)
	user["address"] = "mutated"
	b := NewUtilityRatesService(DefaultSettings("key"), Params{"address": "second"})

	assert.Equal(t, "first", a.Params()["address"])
	assert.Equal(t, "second", b.Params()["address"])

	got := a.Params()
	got["address"] = "changed by caller"
	assert.Equal(t, "first", a.Params()["address"])
}

func TestUtilityRatesService_EmptySettingsOmitted(t *testing.T) {
	svc := NewUtilityRatesService(Settings{Version: "3"}, nil)
	assert.Equal(t, Params{"version": "3"}, svc.Params())
}

func TestUtilityRatesService_GetResults(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/utility_rates", r.URL.Path)
		got = r.URL.Query()
		_, _ = w.Write([]byte(FakePayload))
	}))
	defer srv.Close()

	settings := DefaultSettings("key")
	settings.BaseURL = srv.URL + "/utility_rates"
	svc := NewUtilityRatesService(settings, Params{"address": "Black Star #45"}, WithHTTPClient(srv.Client()))

	res, err := svc.GetResults(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Items, 1)

	assert.Equal(t, "3", got.Get("version"))
	assert.Equal(t, "key", got.Get("api_key"))
	assert.Equal(t, "2022-01-01", got.Get("start_date"))
	assert.Equal(t, "json", got.Get("format"))
	assert.Equal(t, "Black Star #45", got.Get("address"))
}

func TestUtilityRatesService_PropagatesNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	settings := DefaultSettings("key")
	settings.BaseURL = base
	_, err := NewUtilityRatesService(settings, nil).GetResults(context.Background())

	var netErr *NetworkError
	assert.ErrorAs(t, err, &netErr)
}

func TestUtilityRatesService_CustomProcessor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"anything":true}`))
	}))
	defer srv.Close()

	sentinel := errors.New("processor failed")
	settings := DefaultSettings("key")
	settings.BaseURL = srv.URL
	svc := NewUtilityRatesService(settings, nil,
		WithHTTPClient(srv.Client()),
		WithProcessor(ProcessorFunc(func(ctx context.Context, resp *Response) (*Result, error) {
			return nil, sentinel
		})),
	)

	_, err := svc.GetResults(context.Background())
	assert.ErrorIs(t, err, sentinel)
}

func TestFakeUtilityRatesService_Params(t *testing.T) {
	svc := NewFakeUtilityRatesService(Params{"address": "x", "api_key": "override"})
	assert.Equal(t, Params{"api_key": "override", "start_date": "2022-01-01", "address": "x"}, svc.Params())

	plain := NewFakeUtilityRatesService(nil)
	assert.Equal(t, Params{"api_key": FakeAPIKey, "start_date": FakeStartDate}, plain.Params())
}

func TestFakeUtilityRatesService_Deterministic(t *testing.T) {
	svc := NewFakeUtilityRatesService(Params{"address": "Black Star #45"})

	first, err := svc.GetResults(context.Background())
	require.NoError(t, err)
	second, err := svc.GetResults(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, FakeFetchedAt, first.FetchedAt)
	assert.Contains(t, first.URL, FakeBaseURL)
	assert.Contains(t, first.URL, "api_key=REDACTED")
}

func TestFakeUtilityRatesService_CannedError(t *testing.T) {
	svc := NewFakeUtilityRatesService(nil,
		WithFakeResponse(http.StatusUnauthorized, []byte(`{"error":{"code":"API_KEY_MISSING","message":"missing"}}`)))

	_, err := svc.GetResults(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "API_KEY_MISSING", apiErr.Code)
}

func TestRatesServiceImplementations(t *testing.T) {
	var _ RatesService = (*UtilityRatesService)(nil)
	var _ RatesService = (*FakeUtilityRatesService)(nil)
}

func TestDirector_PassThrough(t *testing.T) {
	b := NewFakeBuilder(FakeBaseURL)
	d := NewDirector(b, RawProcessor{})

	resp, err := d.Request(context.Background())
	require.NoError(t, err)
	res, err := d.Process(context.Background(), resp)
	require.NoError(t, err)

	assert.Equal(t, 1, b.Calls())
	assert.JSONEq(t, FakePayload, string(res.Raw))
}
