package openei

import (
	"context"
	"net/http"
	"time"
)

// FakeFetchedAt is the timestamp stamped on every fake response.
var FakeFetchedAt = time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC)

// FakePayload is the canned body returned by FakeBuilder unless overridden.
// It mirrors the shape of a utility_rates v3 JSON response with one item.
const FakePayload = `{
  "items": [
    {
      "label": "5f4e1d2c5457a3d1b6f0c0de",
      "utility": "Fake Power & Light",
      "name": "Residential Service",
      "sector": "Residential",
      "description": "Standard residential tariff",
      "source": "https://fakeopenei.org/tariffs/rs",
      "uri": "https://apps.fakeopenei.org/USURDB/rate/view/5f4e1d2c5457a3d1b6f0c0de",
      "startdate": 1640995200,
      "fixedchargefirstmeter": 12.5,
      "fixedchargeunits": "$/month",
      "energyratestructure": [
        [
          {"max": 500, "rate": 0.1, "adj": 0.01, "unit": "kWh"},
          {"rate": 0.12, "adj": 0.01, "unit": "kWh"}
        ]
      ]
    }
  ]
}`

// FakeBuilder is a Builder that never touches the network. Execute returns
// a fixed response built from the configured status and body.
type FakeBuilder struct {
	baseURL  string
	params   Params
	status   int
	body     []byte
	err      error
	executed bool
	calls    int
}

// NewFakeBuilder returns a fake builder that answers 200 with FakePayload.
func NewFakeBuilder(baseURL string) *FakeBuilder {
	return &FakeBuilder{
		baseURL: baseURL,
		params:  make(Params),
		status:  http.StatusOK,
		body:    []byte(FakePayload),
	}
}

// WithResponse overrides the canned status and body.
func (b *FakeBuilder) WithResponse(status int, body []byte) *FakeBuilder {
	b.status = status
	b.body = body
	return b
}

// WithError makes Execute fail with a *NetworkError wrapping err.
func (b *FakeBuilder) WithError(err error) *FakeBuilder {
	b.err = err
	return b
}

func (b *FakeBuilder) AddParam(key, value string) Builder {
	if b.executed {
		next := &FakeBuilder{
			baseURL: b.baseURL,
			params:  b.params.Clone(),
			status:  b.status,
			body:    b.body,
			err:     b.err,
		}
		next.params[key] = value
		return next
	}
	b.params[key] = value
	return b
}

func (b *FakeBuilder) Params() Params { return b.params.Clone() }

// Calls returns how many times Execute ran.
func (b *FakeBuilder) Calls() int { return b.calls }

func (b *FakeBuilder) Execute(ctx context.Context) (*Response, error) {
	b.executed = true
	b.calls++
	u := redactedURL(b.baseURL, b.params)
	if b.err != nil {
		return nil, &NetworkError{URL: u, Err: b.err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &NetworkError{URL: u, Err: err}
	}
	body := make([]byte, len(b.body))
	copy(body, b.body)
	return &Response{
		URL:        u,
		StatusCode: b.status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       body,
		FetchedAt:  FakeFetchedAt,
	}, nil
}
