package openei

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL   = "https://api.openei.org/utility_rates"
	DefaultVersion   = "3"
	DefaultStartDate = "2022-01-01"
	DefaultFormat    = "json"

	FakeBaseURL   = "https://api.fakeopenei.org/utility_rates"
	FakeAPIKey    = "fake_api_key"
	FakeStartDate = "2022-01-01"
)

// RatesService fetches and processes utility rates.
type RatesService interface {
	GetResults(ctx context.Context) (*Result, error)
}

// Settings are the fixed defaults a UtilityRatesService sends with every
// request. Empty fields are omitted from the query.
type Settings struct {
	BaseURL   string
	APIKey    string
	Version   string
	StartDate string
	Format    string
}

// DefaultSettings returns Settings for the public API with the given key.
func DefaultSettings(apiKey string) Settings {
	return Settings{
		BaseURL:   DefaultBaseURL,
		APIKey:    apiKey,
		Version:   DefaultVersion,
		StartDate: DefaultStartDate,
		Format:    DefaultFormat,
	}
}

// Params returns the default parameter set described by s.
func (s Settings) Params() Params {
	p := make(Params, 4)
	set := func(k, v string) {
		if v != "" {
			p[k] = v
		}
	}
	set("version", s.Version)
	set("api_key", s.APIKey)
	set("start_date", s.StartDate)
	set("format", s.Format)
	return p
}

// Option configures a service.
type Option func(*options)

type options struct {
	client     *http.Client
	processor  Processor
	log        logrus.FieldLogger
	fakeStatus int
	fakeBody   []byte
}

func newOptions(opts []Option) options {
	o := options{
		processor:  RateItemsProcessor{},
		log:        discardLogger(),
		fakeStatus: http.StatusOK,
		fakeBody:   []byte(FakePayload),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithHTTPClient sets the client used by the real service.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithProcessor replaces the default RateItemsProcessor.
func WithProcessor(p Processor) Option {
	return func(o *options) {
		if p != nil {
			o.processor = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithFakeResponse sets the canned answer of a FakeUtilityRatesService.
func WithFakeResponse(status int, body []byte) Option {
	return func(o *options) {
		o.fakeStatus = status
		o.fakeBody = body
	}
}

// UtilityRatesService queries the live utility_rates endpoint.
type UtilityRatesService struct {
	baseURL  string
	defaults Params
	user     Params
	opts     options
}

// NewUtilityRatesService returns a service sending settings' defaults merged
// with user. The service keeps its own copy of both sets.
func NewUtilityRatesService(settings Settings, user Params, opts ...Option) *UtilityRatesService {
	base := settings.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return &UtilityRatesService{
		baseURL:  base,
		defaults: settings.Params(),
		user:     user.Clone(),
		opts:     newOptions(opts),
	}
}

// Params returns the effective parameter set: defaults overlaid with the
// caller's parameters.
func (s *UtilityRatesService) Params() Params {
	return s.defaults.Merge(s.user)
}

func (s *UtilityRatesService) GetResults(ctx context.Context) (*Result, error) {
	b := NewHTTPBuilder(s.baseURL).
		WithClient(s.opts.client).
		WithLogger(s.opts.log)
	return run(ctx, b, s.Params(), s.opts.processor)
}

// FakeUtilityRatesService answers from FakeBuilder and never performs I/O.
type FakeUtilityRatesService struct {
	baseURL  string
	defaults Params
	user     Params
	opts     options
}

// NewFakeUtilityRatesService returns a fake service with fixed credentials.
func NewFakeUtilityRatesService(user Params, opts ...Option) *FakeUtilityRatesService {
	return &FakeUtilityRatesService{
		baseURL: FakeBaseURL,
		defaults: Params{
			"api_key":    FakeAPIKey,
			"start_date": FakeStartDate,
		},
		user: user.Clone(),
		opts: newOptions(opts),
	}
}

func (s *FakeUtilityRatesService) Params() Params {
	return s.defaults.Merge(s.user)
}

func (s *FakeUtilityRatesService) GetResults(ctx context.Context) (*Result, error) {
	b := NewFakeBuilder(s.baseURL).WithResponse(s.opts.fakeStatus, s.opts.fakeBody)
	return run(ctx, b, s.Params(), s.opts.processor)
}

func run(ctx context.Context, b Builder, params Params, p Processor) (*Result, error) {
	for _, k := range params.Keys() {
		b = b.AddParam(k, params[k])
	}
	d := NewDirector(b, p)
	resp, err := d.Request(ctx)
	if err != nil {
		return nil, err
	}
	return d.Process(ctx, resp)
}
