package weather

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/i474232898/user-weather-hub/internal/observability"
	"github.com/i474232898/user-weather-hub/internal/store"
	"github.com/i474232898/user-weather-hub/internal/weather/providers"
)

// One missing zone cancels its in-flight siblings; those cancellations must not
// open the NWS breaker for every later request.
func TestForecastsByState_FailedZoneKeepsProviderUsable(t *testing.T) {
	features := make([]string, 0, 10)
	for i := 1; i <= 10; i++ {
		features = append(features, fmt.Sprintf(`{"properties":{"id":"UTZ%03d","name":"Zone %d"}}`, i, i))
	}
	zonesDoc := `{"features":[` + strings.Join(features, ",") + `]}`

	var healthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/zones":
			_, _ = w.Write([]byte(zonesDoc))
		case r.URL.Path == "/zones/forecast/UTZ001/forecast" && !healthy.Load():
			time.Sleep(20 * time.Millisecond)
			w.WriteHeader(http.StatusNotFound)
		case healthy.Load():
			zone := strings.Split(r.URL.Path, "/")[3]
			_, _ = w.Write([]byte(forecastDoc(zone)))
		default:
			<-r.Context().Done()
		}
	}))
	defer srv.Close()

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	nws := providers.NewNWSProvider(&http.Client{Timeout: 5 * time.Second}, srv.URL, "test", metrics, zap.NewNop())
	clock := clockwork.NewFakeClock()
	svc := NewService(
		nws,
		store.NewMemoryCache[[]Zone](30*time.Minute, clock),
		store.NewMemoryCache[ZoneForecast](30*time.Minute, clock),
		8,
		metrics,
		zap.NewNop(),
	)

	_, err := svc.ForecastsByState(context.Background(), "UT")
	require.ErrorIs(t, err, providers.ErrNotFound)

	healthy.Store(true)
	docs, err := svc.ZoneForecastsRaw(context.Background(), []string{"UTZ002"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "UTZ002", docs[0]["name"])
}
