package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/user-weather-hub/internal/observability"
)

var (
	// ErrInvalidState is returned for anything that is not a two letter state code.
	ErrInvalidState = errors.New("state must be a two letter code")
	// ErrInvalidZone is returned for malformed zone ids.
	ErrInvalidZone = errors.New("invalid zone id")
)

const (
	cacheZones     = "zones"
	cacheForecasts = "forecasts"
)

// Service resolves states to zones, fetches zone forecasts and keeps both in TTL caches.
type Service struct {
	source      Source
	zones       Cache[[]Zone]
	forecasts   Cache[ZoneForecast]
	concurrency int
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewService creates a new Service. concurrency bounds parallel upstream fetches.
func NewService(
	source Source,
	zones Cache[[]Zone],
	forecasts Cache[ZoneForecast],
	concurrency int,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Service {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Service{
		source:      source,
		zones:       zones,
		forecasts:   forecasts,
		concurrency: concurrency,
		metrics:     metrics,
		logger:      logger,
	}
}

// StateZonesRaw returns the upstream zone collection for a state untouched.
func (s *Service) StateZonesRaw(ctx context.Context, state string) (json.RawMessage, error) {
	st, ok := NormalizeState(state)
	if !ok {
		return nil, ErrInvalidState
	}
	raw, err := s.source.StateZones(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("zones for %s: %w", st, err)
	}
	return json.RawMessage(raw), nil
}

// ZoneForecastsRaw fetches the raw forecast of every zone in parallel and tags
// each document with a "name" field holding the requested zone id.
// Results follow the order of zoneIDs; one failure fails the batch.
func (s *Service) ZoneForecastsRaw(ctx context.Context, zoneIDs []string) ([]map[string]any, error) {
	if len(zoneIDs) == 0 {
		return nil, ErrInvalidZone
	}
	ids := make([]string, len(zoneIDs))
	for i, id := range zoneIDs {
		z, ok := NormalizeZoneID(id)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidZone, id)
		}
		ids[i] = z
	}

	out := make([]map[string]any, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			raw, err := s.source.ZoneForecast(gctx, id)
			if err != nil {
				return fmt.Errorf("forecast for %s: %w", id, err)
			}
			var doc map[string]any
			if err := json.Unmarshal(raw, &doc); err != nil {
				return fmt.Errorf("decode forecast for %s: %w", id, err)
			}
			if doc == nil {
				doc = map[string]any{}
			}
			doc["name"] = id
			out[i] = doc
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Zones returns the forecast zones of a state, served from cache while fresh.
func (s *Service) Zones(ctx context.Context, state string) ([]Zone, error) {
	st, ok := NormalizeState(state)
	if !ok {
		return nil, ErrInvalidState
	}

	if zones, ok := s.zones.Get(st); ok {
		s.metrics.CacheLookups.WithLabelValues(cacheZones, "hit").Inc()
		return zones, nil
	}
	s.metrics.CacheLookups.WithLabelValues(cacheZones, "miss").Inc()

	raw, err := s.source.StateZones(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("zones for %s: %w", st, err)
	}
	zones, err := ParseZones(raw)
	if err != nil {
		return nil, fmt.Errorf("zones for %s: %w", st, err)
	}

	s.zones.Set(st, zones)
	s.recordCacheSizes()
	return zones, nil
}

// ForecastsByState returns the current forecast of every zone of a state.
//
// Each zone forecast is cached on its own, so a partially warm state only
// fetches the zones whose entries are missing or expired. The result keeps the
// zone order of the upstream collection.
func (s *Service) ForecastsByState(ctx context.Context, state string) ([]ZoneForecast, error) {
	zones, err := s.Zones(ctx, state)
	if err != nil {
		return nil, err
	}

	out := make([]ZoneForecast, len(zones))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	fetched := 0
	for i, zone := range zones {
		i, zone := i, zone
		if zf, ok := s.forecasts.Get(zone.ZoneID); ok {
			s.metrics.CacheLookups.WithLabelValues(cacheForecasts, "hit").Inc()
			out[i] = zf
			continue
		}
		s.metrics.CacheLookups.WithLabelValues(cacheForecasts, "miss").Inc()
		fetched++

		g.Go(func() error {
			raw, err := s.source.ZoneForecast(gctx, zone.ZoneID)
			if err != nil {
				return fmt.Errorf("forecast for %s: %w", zone.ZoneID, err)
			}
			forecast, err := ParseForecast(raw)
			if err != nil {
				return fmt.Errorf("forecast for %s: %w", zone.ZoneID, err)
			}
			zf := ZoneForecast{
				ZoneID:   zone.ZoneID,
				ZoneName: zone.ZoneName,
				Forecast: forecast,
			}
			s.forecasts.Set(zone.ZoneID, zf)
			out[i] = zf
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Error("state forecast failed", zap.String("state", state), zap.Error(err))
		return nil, err
	}

	s.recordCacheSizes()
	s.logger.Debug("state forecast served",
		zap.String("state", state),
		zap.Int("zones", len(zones)),
		zap.Int("fetched", fetched),
	)
	return out, nil
}

// ClearCache drops cached data. With a state it removes that state's zone list
// and the forecasts of its cached zones, expired or not; with an empty state it
// removes everything.
// It returns the number of entries removed.
func (s *Service) ClearCache(state string) (int, error) {
	defer s.recordCacheSizes()

	if state == "" {
		return s.zones.Clear() + s.forecasts.Clear(), nil
	}

	st, ok := NormalizeState(state)
	if !ok {
		return 0, ErrInvalidState
	}

	removed := 0
	if zones, ok := s.zones.Peek(st); ok {
		for _, z := range zones {
			if s.forecasts.Delete(z.ZoneID) {
				removed++
			}
		}
	}
	if s.zones.Delete(st) {
		removed++
	}
	return removed, nil
}

// Prune removes expired entries from both caches.
func (s *Service) Prune() int {
	removed := s.zones.Prune() + s.forecasts.Prune()
	s.recordCacheSizes()
	return removed
}

// Warm fetches the forecasts of the given states concurrently so later reads hit the cache.
// Failures are logged per state and do not stop the others.
func (s *Service) Warm(ctx context.Context, states []string, timeout time.Duration) {
	var wg sync.WaitGroup
	for _, st := range states {
		st := st
		wg.Add(1)
		go func() {
			defer wg.Done()

			sctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			zfs, err := s.ForecastsByState(sctx, st)
			if err != nil {
				s.logger.Warn("warm state failed", zap.String("state", st), zap.Error(err))
				return
			}
			s.logger.Info("warmed state", zap.String("state", st), zap.Int("zones", len(zfs)))
		}()
	}
	wg.Wait()
}

func (s *Service) recordCacheSizes() {
	s.metrics.CacheEntries.WithLabelValues(cacheZones).Set(float64(s.zones.Len()))
	s.metrics.CacheEntries.WithLabelValues(cacheForecasts).Set(float64(s.forecasts.Len()))
}
