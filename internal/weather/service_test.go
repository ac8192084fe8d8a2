package weather

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/i474232898/user-weather-hub/internal/observability"
	"github.com/i474232898/user-weather-hub/internal/store"
)

const utZones = `{
  "type": "FeatureCollection",
  "features": [
    {"id": "https://api.weather.gov/zones/forecast/UTZ001", "properties": {"id": "UTZ001", "name": "Cache Valley", "state": "UT"}},
    {"id": "https://api.weather.gov/zones/forecast/UTZ002", "properties": {"id": "UTZ002", "name": "Southeast Utah", "state": "UT"}}
  ]
}`

func forecastDoc(zone string) string {
	return fmt.Sprintf(`{
  "properties": {
    "updated": "2025-01-01T00:00:00+00:00",
    "periods": [
      {"number": 1, "name": "Tonight", "detailedForecast": "Clear in %[1]s.", "extra": true},
      {"number": 2, "name": "Monday", "detailedForecast": "Sunny in %[1]s."}
    ]
  }
}`, zone)
}

type fakeSource struct {
	mu            sync.Mutex
	zoneCalls     map[string]int
	forecastCalls map[string]int
	failZone      string
}

func newFakeSource() *fakeSource {
	return &fakeSource{zoneCalls: map[string]int{}, forecastCalls: map[string]int{}}
}

func (f *fakeSource) StateZones(_ context.Context, state string) ([]byte, error) {
	f.mu.Lock()
	f.zoneCalls[state]++
	f.mu.Unlock()
	if state != "UT" {
		return []byte(`{"features":[]}`), nil
	}
	return []byte(utZones), nil
}

func (f *fakeSource) ZoneForecast(_ context.Context, zoneID string) ([]byte, error) {
	f.mu.Lock()
	f.forecastCalls[zoneID]++
	f.mu.Unlock()
	if zoneID == f.failZone {
		return nil, errors.New("upstream exploded")
	}
	return []byte(forecastDoc(zoneID)), nil
}

func (f *fakeSource) forecastCount(zone string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forecastCalls[zone]
}

type fixture struct {
	svc     *Service
	src     *fakeSource
	clock   *clockwork.FakeClock
	metrics *observability.Metrics
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	clock := clockwork.NewFakeClock()
	src := newFakeSource()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	svc := NewService(
		src,
		store.NewMemoryCache[[]Zone](30*time.Minute, clock),
		store.NewMemoryCache[ZoneForecast](30*time.Minute, clock),
		4,
		metrics,
		zap.NewNop(),
	)
	return fixture{svc: svc, src: src, clock: clock, metrics: metrics}
}

func expectedUtah() []ZoneForecast {
	periods := func(zone string) []Period {
		return []Period{
			{Number: 1, Name: "Tonight", DetailedForecast: "Clear in " + zone + "."},
			{Number: 2, Name: "Monday", DetailedForecast: "Sunny in " + zone + "."},
		}
	}
	return []ZoneForecast{
		{ZoneID: "UTZ001", ZoneName: "Cache Valley", Forecast: Forecast{Periods: periods("UTZ001")}},
		{ZoneID: "UTZ002", ZoneName: "Southeast Utah", Forecast: Forecast{Periods: periods("UTZ002")}},
	}
}

func TestForecastsByState_ReshapesAndKeepsOrder(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.ForecastsByState(context.Background(), " ut ")
	require.NoError(t, err)

	if diff := cmp.Diff(expectedUtah(), got); diff != "" {
		t.Fatalf("forecasts mismatch (-want +got):\n%s", diff)
	}
}

func TestForecastsByState_ServesFromCacheUntilExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ForecastsByState(ctx, "UT")
	require.NoError(t, err)
	_, err = f.svc.ForecastsByState(ctx, "UT")
	require.NoError(t, err)

	assert.Equal(t, 1, f.src.zoneCalls["UT"])
	assert.Equal(t, 1, f.src.forecastCount("UTZ001"))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.CacheLookups.WithLabelValues(cacheForecasts, "hit")))

	f.clock.Advance(30 * time.Minute)
	_, err = f.svc.ForecastsByState(ctx, "UT")
	require.NoError(t, err)

	assert.Equal(t, 2, f.src.zoneCalls["UT"])
	assert.Equal(t, 2, f.src.forecastCount("UTZ001"))
	assert.Equal(t, 2, f.src.forecastCount("UTZ002"))
}

func TestForecastsByState_OnlyFetchesMissingZones(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ForecastsByState(ctx, "UT")
	require.NoError(t, err)

	f.svc.forecasts.Delete("UTZ002")

	got, err := f.svc.ForecastsByState(ctx, "UT")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 1, f.src.forecastCount("UTZ001"))
	assert.Equal(t, 2, f.src.forecastCount("UTZ002"))
}

func TestForecastsByState_FailureFailsCall(t *testing.T) {
	f := newFixture(t)
	f.src.failZone = "UTZ002"

	_, err := f.svc.ForecastsByState(context.Background(), "UT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UTZ002")
}

func TestForecastsByState_InvalidState(t *testing.T) {
	f := newFixture(t)

	for _, s := range []string{"", "U", "UTA", "1T"} {
		_, err := f.svc.ForecastsByState(context.Background(), s)
		assert.ErrorIs(t, err, ErrInvalidState, "state %q", s)
	}
}

func TestForecastsByState_StateWithoutZones(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.ForecastsByState(context.Background(), "GU")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestZoneForecastsRaw_TagsNameInRequestOrder(t *testing.T) {
	f := newFixture(t)

	docs, err := f.svc.ZoneForecastsRaw(context.Background(), []string{"utz002", "UTZ001"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "UTZ002", docs[0]["name"])
	assert.Equal(t, "UTZ001", docs[1]["name"])
	assert.Contains(t, docs[0], "properties", "the upstream document is passed through")
}

func TestZoneForecastsRaw_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ZoneForecastsRaw(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidZone)

	_, err = f.svc.ZoneForecastsRaw(context.Background(), []string{"UTZ001", "../etc"})
	assert.ErrorIs(t, err, ErrInvalidZone)

	f.src.failZone = "UTZ001"
	_, err = f.svc.ZoneForecastsRaw(context.Background(), []string{"UTZ001", "UTZ002"})
	assert.Error(t, err)
}

func TestStateZonesRaw(t *testing.T) {
	f := newFixture(t)

	raw, err := f.svc.StateZonesRaw(context.Background(), "ut")
	require.NoError(t, err)
	assert.JSONEq(t, utZones, string(raw))

	_, err = f.svc.StateZonesRaw(context.Background(), "Utah")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestClearCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ForecastsByState(ctx, "UT")
	require.NoError(t, err)
	_, err = f.svc.Zones(ctx, "CO")
	require.NoError(t, err)

	removed, err := f.svc.ClearCache("ut")
	require.NoError(t, err)
	assert.Equal(t, 3, removed, "two zone forecasts and the zone list")

	_, ok := f.svc.zones.Get("CO")
	assert.True(t, ok, "other states are untouched")

	removed, err = f.svc.ClearCache("")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = f.svc.ClearCache("Utah")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestClearCache_StateWithExpiredZoneList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ForecastsByState(ctx, "UT")
	require.NoError(t, err)

	// The zone list expires while a later forecast is still fresh.
	f.clock.Advance(20 * time.Minute)
	f.svc.forecasts.Set("UTZ002", expectedUtah()[1])
	f.clock.Advance(15 * time.Minute)

	removed, err := f.svc.ClearCache("UT")
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	_, ok := f.svc.forecasts.Get("UTZ002")
	assert.False(t, ok, "forecasts of an expired zone list are cleared too")
	assert.Equal(t, 0, f.svc.forecasts.Len())
}

func TestPrune(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ForecastsByState(context.Background(), "UT")
	require.NoError(t, err)
	assert.Equal(t, 0, f.svc.Prune())

	f.clock.Advance(31 * time.Minute)
	assert.Equal(t, 3, f.svc.Prune())
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.CacheEntries.WithLabelValues(cacheForecasts)))
}

func TestWarm(t *testing.T) {
	f := newFixture(t)
	f.svc.Warm(context.Background(), []string{"UT", "bad-state"}, time.Second)

	_, ok := f.svc.forecasts.Get("UTZ001")
	assert.True(t, ok)
	_, ok = f.svc.forecasts.Get("UTZ002")
	assert.True(t, ok)
}

func TestNormalizeZoneID(t *testing.T) {
	for in, want := range map[string]bool{
		"UTZ001":  true,
		" utz001": true,
		"COC013":  true,
		"UTZ01":   false,
		"UTX001":  false,
		"":        false,
	} {
		_, ok := NormalizeZoneID(in)
		assert.Equal(t, want, ok, "zone %q", in)
	}
}
