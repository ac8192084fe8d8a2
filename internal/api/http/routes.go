package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/i474232898/user-weather-hub/internal/common"
	"github.com/i474232898/user-weather-hub/internal/users"
	"github.com/i474232898/user-weather-hub/internal/weather"
	"github.com/i474232898/user-weather-hub/internal/weather/providers"
)

var validate = validator.New()

// UserService is the part of users.Service the handlers need.
type UserService interface {
	Register(ctx context.Context, in users.NewUser) (users.User, error)
	ByCountry(ctx context.Context, country string) ([]users.User, error)
	Duplicates(ctx context.Context, threshold int, activeOnly bool) ([]users.Duplicate, error)
}

// WeatherService is the part of weather.Service the handlers need.
type WeatherService interface {
	StateZonesRaw(ctx context.Context, state string) (json.RawMessage, error)
	ZoneForecastsRaw(ctx context.Context, zoneIDs []string) ([]map[string]any, error)
	ForecastsByState(ctx context.Context, state string) ([]weather.ZoneForecast, error)
	ClearCache(state string) (int, error)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators RegisterRoutes wires into handlers.
type Deps struct {
	Users   UserService
	Weather WeatherService
	DB      Pinger

	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// StaticDir holds the built SPA; empty disables static serving.
	StaticDir string

	Logger *zap.Logger
}

type handlers struct {
	Deps
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	h := handlers{Deps: deps}

	api := app.Group("/api")

	api.Post("/users", h.createUser)
	api.Get("/user/country", h.usersByCountry)
	api.Get("/user/duplicate", h.duplicateNames)

	api.Get("/weather/stateZones", h.stateZones)
	api.Get("/weather/zoneForecast", h.zoneForecast)
	api.Get("/weather/state/:state", h.stateForecast)
	api.Delete("/weather/cache", h.clearCache)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})
	api.Get("/ready", h.ready)

	api.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "route not found")
	})

	if deps.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	if deps.StaticDir != "" {
		app.Static("/", deps.StaticDir)
		app.Get("/*", spaFallback(deps.StaticDir))
	}
}

func (h handlers) createUser(c *fiber.Ctx) error {
	var in users.NewUser
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	u, err := h.Users.Register(c.UserContext(), in)
	if err != nil {
		if errors.Is(err, users.ErrInvalidUser) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		h.Logger.Error("create user failed", zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "failed to create user")
	}

	return c.Status(fiber.StatusCreated).JSON(u)
}

func (h handlers) usersByCountry(c *fiber.Ctx) error {
	list, err := h.Users.ByCountry(c.UserContext(), c.Query("country"))
	if err != nil {
		h.Logger.Error("list users failed", zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "failed to list users")
	}
	return c.JSON(list)
}

// duplicateQuery holds query parameters for the duplicate names endpoint.
type duplicateQuery struct {
	Count  int `validate:"gte=0"`
	Active bool
}

func (q *duplicateQuery) bind(c *fiber.Ctx) error {
	count, err := strconv.Atoi(c.Query("count", "1"))
	if err != nil {
		return errors.New("count must be an integer")
	}
	q.Count = count
	q.Active = c.Query("active") == "true"
	return validate.Struct(q)
}

func (h handlers) duplicateNames(c *fiber.Ctx) error {
	var q duplicateQuery
	if err := q.bind(c); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	dups, err := h.Users.Duplicates(c.UserContext(), q.Count, q.Active)
	if err != nil {
		if errors.Is(err, users.ErrInvalidThreshold) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		h.Logger.Error("duplicate names failed", zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "failed to count duplicate names")
	}
	return c.JSON(dups)
}

func (h handlers) stateZones(c *fiber.Ctx) error {
	raw, err := h.Weather.StateZonesRaw(c.UserContext(), c.Query("state"))
	if err != nil {
		return h.weatherError(err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(raw)
}

func (h handlers) zoneForecast(c *fiber.Ctx) error {
	ids := common.SplitList(c.Query("zoneIds"))
	if len(ids) == 0 {
		ids = common.SplitList(c.Query("zoneId"))
	}
	if len(ids) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "zoneIds query parameter is required")
	}

	docs, err := h.Weather.ZoneForecastsRaw(c.UserContext(), ids)
	if err != nil {
		return h.weatherError(err)
	}
	return c.JSON(docs)
}

func (h handlers) stateForecast(c *fiber.Ctx) error {
	zfs, err := h.Weather.ForecastsByState(c.UserContext(), c.Params("state"))
	if err != nil {
		return h.weatherError(err)
	}
	return c.JSON(zfs)
}

func (h handlers) clearCache(c *fiber.Ctx) error {
	removed, err := h.Weather.ClearCache(c.Query("state"))
	if err != nil {
		return h.weatherError(err)
	}
	return c.JSON(fiber.Map{"removed": removed})
}

func (h handlers) ready(c *fiber.Ctx) error {
	if h.DB != nil {
		if err := h.DB.Ping(c.UserContext()); err != nil {
			h.Logger.Warn("readiness check failed", zap.Error(err))
			return fiber.NewError(fiber.StatusServiceUnavailable, "database unavailable")
		}
	}
	return c.JSON(fiber.Map{"status": "ready"})
}

func (h handlers) weatherError(err error) error {
	switch {
	case errors.Is(err, weather.ErrInvalidState), errors.Is(err, weather.ErrInvalidZone):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, providers.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "no weather data for requested zone")
	}
	h.Logger.Error("weather upstream failed", zap.Error(err))
	return fiber.NewError(fiber.StatusBadGateway, "failed to fetch weather data")
}

// spaFallback serves index.html for client-side routes that match no file.
func spaFallback(dir string) fiber.Handler {
	index := filepath.Join(dir, "index.html")
	return func(c *fiber.Ctx) error {
		if _, err := os.Stat(index); err != nil {
			return fiber.NewError(fiber.StatusNotFound, "not found")
		}
		return c.SendFile(index)
	}
}
