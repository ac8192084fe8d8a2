package weather

import (
	"regexp"
	"strings"
)

// Zone is an NWS public forecast zone inside a state.
type Zone struct {
	ZoneID   string `json:"zoneId"`
	ZoneName string `json:"zoneName"`
}

// Period is one named forecast period ("Tonight", "Tuesday", ...).
type Period struct {
	Number           int    `json:"number"`
	Name             string `json:"name"`
	DetailedForecast string `json:"detailedForecast"`
}

// Forecast is the ordered list of periods issued for a zone.
type Forecast struct {
	Periods []Period `json:"periods"`
}

// ZoneForecast pairs a zone with its current forecast.
type ZoneForecast struct {
	ZoneID   string   `json:"zoneId"`
	ZoneName string   `json:"zoneName"`
	Forecast Forecast `json:"forecast"`
}

var (
	stateCodeRe = regexp.MustCompile(`^[A-Z]{2}$`)
	zoneIDRe    = regexp.MustCompile(`^[A-Z]{2}[CZ][0-9]{3}$`)
)

// NormalizeState trims and upper-cases a state code and reports whether it is
// a two letter code.
func NormalizeState(state string) (string, bool) {
	s := strings.ToUpper(strings.TrimSpace(state))
	return s, stateCodeRe.MatchString(s)
}

// NormalizeZoneID trims and upper-cases a zone id ("utz001") and reports
// whether it looks like an NWS zone id ("UTZ001").
func NormalizeZoneID(id string) (string, bool) {
	z := strings.ToUpper(strings.TrimSpace(id))
	return z, zoneIDRe.MatchString(z)
}
