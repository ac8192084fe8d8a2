package weather

import (
	"context"
)

// Source abstracts the upstream forecast API. Both calls return the raw JSON document.
type Source interface {
	// StateZones lists the public forecast zones of a state.
	StateZones(ctx context.Context, state string) ([]byte, error)
	// ZoneForecast returns the text forecast of a single zone.
	ZoneForecast(ctx context.Context, zoneID string) ([]byte, error)
}

// Cache is the contract the in-memory TTL cache must satisfy.
type Cache[V any] interface {
	Get(key string) (V, bool)
	Peek(key string) (V, bool)
	Set(key string, value V)
	Delete(key string) bool
	Clear() int
	Prune() int
	Len() int
}
