// Package trip turns a routed distance and a travel mode into emission and
// reward figures.
package trip

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/NERVsystems/ecoroute/pkg/core"
)

// TravelMode is the vehicle category a trip is made with.
type TravelMode string

const (
	ModeCar   TravelMode = "car"
	ModeBus   TravelMode = "bus"
	ModeEV    TravelMode = "ev"
	ModeCycle TravelMode = "cycle"
)

type modeRow struct {
	gramsPerKm int64
	points     int
	profile    string
}

// modeTable is the only source of emission factors and reward points.
var modeTable = map[TravelMode]modeRow{
	ModeCar:   {gramsPerKm: 120, points: 5, profile: core.ProfileDriving},
	ModeBus:   {gramsPerKm: 50, points: 10, profile: core.ProfileDriving},
	ModeEV:    {gramsPerKm: 0, points: 20, profile: core.ProfileDriving},
	ModeCycle: {gramsPerKm: 0, points: 50, profile: core.ProfileCycling},
}

var orderedModes = []TravelMode{ModeCar, ModeBus, ModeEV, ModeCycle}

// Modes returns every supported mode in display order.
func Modes() []TravelMode {
	return append([]TravelMode(nil), orderedModes...)
}

// ModeNames returns the supported modes as strings.
func ModeNames() []string {
	return lo.Map(orderedModes, func(m TravelMode, _ int) string { return string(m) })
}

// ErrUnknownMode builds the validation error for an unsupported mode.
func ErrUnknownMode(value string) *core.MCPError {
	return core.NewValidationError(core.ErrInvalidParameter,
		fmt.Sprintf("unknown travel mode %q", value)).
		WithNotice(fmt.Sprintf("Unknown travel mode %q. Choose one of: %s", value, strings.Join(ModeNames(), ", "))).
		WithSuggestions(ModeNames()...)
}

// ParseTravelMode accepts a mode name case-insensitively.
func ParseTravelMode(value string) (TravelMode, error) {
	mode := TravelMode(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := modeTable[mode]; !ok {
		return "", ErrUnknownMode(value)
	}
	return mode, nil
}

// Valid reports whether m is a supported mode.
func (m TravelMode) Valid() bool {
	_, ok := modeTable[m]
	return ok
}

func (m TravelMode) String() string { return string(m) }

// EmissionFactor returns grams of CO2 per kilometre.
func (m TravelMode) EmissionFactor() (int64, bool) {
	row, ok := modeTable[m]
	return row.gramsPerKm, ok
}

// RewardPoints returns the fixed points awarded for a trip in this mode.
func (m TravelMode) RewardPoints() (int, bool) {
	row, ok := modeTable[m]
	return row.points, ok
}

// Profile returns the routing profile used to fetch routes for this mode.
func (m TravelMode) Profile() string {
	if row, ok := modeTable[m]; ok {
		return row.profile
	}
	return core.ProfileDriving
}
