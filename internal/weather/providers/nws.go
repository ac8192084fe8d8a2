package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/i474232898/user-weather-hub/internal/observability"
)

// NWSProvider implements weather.Source against the api.weather.gov REST API.
type NWSProvider struct {
	baseURL   string
	userAgent string
	httpCfg   HTTPClientConfig
	circuit   *gobreaker.CircuitBreaker
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewNWSProvider creates a provider rooted at baseURL (normally https://api.weather.gov).
// The NWS asks every client to identify itself through userAgent.
func NewNWSProvider(client *http.Client, baseURL, userAgent string, metrics *observability.Metrics, logger *zap.Logger) *NWSProvider {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:         "nws",
		MaxRequests:  5,
		Interval:     1 * time.Minute,
		Timeout:      2 * time.Minute,
		IsSuccessful: breakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &NWSProvider{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: cb,
		metrics: metrics,
		logger:  logger,
	}
}

// StateZones calls /zones?area={state}&type=forecast&include_geometry=false.
func (p *NWSProvider) StateZones(ctx context.Context, state string) ([]byte, error) {
	values := url.Values{}
	values.Set("area", state)
	values.Set("type", "forecast")
	values.Set("include_geometry", "false")

	return p.get(ctx, "zones", fmt.Sprintf("%s/zones?%s", p.baseURL, values.Encode()))
}

// ZoneForecast calls /zones/forecast/{zoneID}/forecast.
func (p *NWSProvider) ZoneForecast(ctx context.Context, zoneID string) ([]byte, error) {
	u := fmt.Sprintf("%s/zones/forecast/%s/forecast", p.baseURL, url.PathEscape(zoneID))
	return p.get(ctx, "forecast", u)
}

func (p *NWSProvider) get(ctx context.Context, endpoint, u string) ([]byte, error) {
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", p.userAgent)
		req.Header.Set("Accept", "application/geo+json")
		return req, nil
	}

	start := time.Now()
	body, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	p.metrics.NWSDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		p.metrics.NWSRequests.WithLabelValues(endpoint, "success").Inc()
	case errors.Is(err, ErrNotFound):
		p.metrics.NWSRequests.WithLabelValues(endpoint, "not_found").Inc()
	default:
		p.metrics.NWSRequests.WithLabelValues(endpoint, "error").Inc()
		p.logger.Warn("nws request failed", zap.String("endpoint", endpoint), zap.String("url", u), zap.Error(err))
	}
	return body, err
}
