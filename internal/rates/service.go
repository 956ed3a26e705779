package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bher20/utilityrates/internal/httpcache"
	"github.com/bher20/utilityrates/internal/metrics"
	"github.com/bher20/utilityrates/internal/openei"
	"github.com/bher20/utilityrates/internal/storage"
)

// Client is an OpenEI service that can report its effective parameters.
// Both openei.UtilityRatesService and openei.FakeUtilityRatesService satisfy it.
type Client interface {
	openei.RatesService
	Params() openei.Params
}

// Factory builds a Client for one set of caller parameters.
type Factory func(user openei.Params) Client

// Config controls how lookups reach OpenEI.
type Config struct {
	Settings openei.Settings
	// Fake answers every lookup from the canned fake payload.
	Fake       bool
	HTTPClient *http.Client
	Processor  openei.Processor
}

// NewFactory returns a Factory for cfg.
func NewFactory(cfg Config, log logrus.FieldLogger) Factory {
	opts := []openei.Option{openei.WithLogger(log)}
	if cfg.HTTPClient != nil {
		opts = append(opts, openei.WithHTTPClient(cfg.HTTPClient))
	}
	if cfg.Processor != nil {
		opts = append(opts, openei.WithProcessor(cfg.Processor))
	}
	if cfg.Fake {
		return func(user openei.Params) Client {
			return openei.NewFakeUtilityRatesService(user, opts...)
		}
	}
	return func(user openei.Params) Client {
		return openei.NewUtilityRatesService(cfg.Settings, user, opts...)
	}
}

// Service coordinates fetching and caching of rates.
type Service struct {
	factory Factory
	store   storage.Storage // may be nil
	log     logrus.FieldLogger
}

func NewService(factory Factory, st storage.Storage, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{factory: factory, store: st, log: log}
}

// Lookup consults persistent storage first; on a miss it queries OpenEI and
// writes a new snapshot.
func (s *Service) Lookup(ctx context.Context, l Lookup) (*LookupResponse, error) {
	return s.lookup(ctx, l, false)
}

// ForceRefresh skips the stored snapshot and the HTTP response cache and
// always queries OpenEI. The fresh result replaces both.
func (s *Service) ForceRefresh(ctx context.Context, l Lookup) (*LookupResponse, error) {
	return s.lookup(httpcache.WithBypass(ctx), l, true)
}

func (s *Service) lookup(ctx context.Context, l Lookup, force bool) (*LookupResponse, error) {
	client := s.factory(l.Params())
	query := client.Params().Without("api_key")
	key := query.Encode()
	log := s.log.WithField("query", key)

	if !force && s.store != nil {
		if res, ok := s.fromSnapshot(ctx, key); ok {
			metrics.SnapshotLookupsTotal.WithLabelValues("hit").Inc()
			return s.respond(l, query, res, true), nil
		}
		metrics.SnapshotLookupsTotal.WithLabelValues("miss").Inc()
	}

	res, err := client.GetResults(ctx)
	if err != nil {
		log.WithError(err).Warn("rates: lookup failed")
		return nil, fmt.Errorf("rates lookup: %w", err)
	}
	if res.FetchedAt.IsZero() {
		res.FetchedAt = time.Now()
	}

	// Best-effort write-back to storage.
	if s.store != nil && res.StatusCode >= 200 && res.StatusCode < 300 {
		if payload, err := json.Marshal(res); err == nil {
			err = s.store.SaveRatesSnapshot(ctx, storage.RatesSnapshot{
				QueryKey:   key,
				StatusCode: res.StatusCode,
				Payload:    payload,
				FetchedAt:  res.FetchedAt,
			})
			if err != nil {
				log.WithError(err).Warn("rates: snapshot write failed")
			}
		}
	}

	log.WithField("items", len(res.Items)).Debug("rates: fetched from openei")
	return s.respond(l, query, res, false), nil
}

func (s *Service) fromSnapshot(ctx context.Context, key string) (*openei.Result, bool) {
	snap, err := s.store.GetRatesSnapshot(ctx, key)
	if err != nil {
		s.log.WithError(err).Warn("rates: snapshot read failed")
		return nil, false
	}
	if snap == nil || len(snap.Payload) == 0 {
		return nil, false
	}
	var res openei.Result
	if err := json.Unmarshal(snap.Payload, &res); err != nil {
		// fall through to a fresh fetch
		return nil, false
	}
	return &res, true
}

func (s *Service) respond(l Lookup, query openei.Params, res *openei.Result, cached bool) *LookupResponse {
	return &LookupResponse{
		Query:     query,
		Cached:    cached,
		FetchedAt: res.FetchedAt,
		Result:    res,
		Estimate:  EstimateBill(res.Items, l.Consumption, l.PercentageScale),
	}
}
