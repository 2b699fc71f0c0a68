package trip

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/NERVsystems/ecoroute/pkg/core"
)

// EmissionsKey is the persisted slot holding the latest emissions figure.
const EmissionsKey = "carbonEmissions"

var metersPerKm = decimal.NewFromInt(1000)

// Writer persists a single string value.
type Writer interface {
	Set(ctx context.Context, key, value string) error
}

// Metrics is the derived result for one trip.
type Metrics struct {
	Mode           TravelMode      `json:"mode"`
	DistanceMeters float64         `json:"distance_meters"`
	DistanceKm     decimal.Decimal `json:"distance_km"`
	EmissionsGrams decimal.Decimal `json:"emissions_grams"`
	RewardPoints   int             `json:"reward_points"`

	DistanceText  string `json:"distance_text"`
	EmissionsText string `json:"emissions_text"`
	PointsText    string `json:"points_text"`
}

// Emissions returns the stored figure, formatted with two decimals.
func (m Metrics) Emissions() string {
	return m.EmissionsGrams.StringFixed(2)
}

// Emissions computes (distance/1000) * factor rounded to two places.
func Emissions(distanceMeters float64, mode TravelMode) (decimal.Decimal, error) {
	factor, ok := mode.EmissionFactor()
	if !ok {
		return decimal.Zero, ErrUnknownMode(string(mode))
	}
	if err := core.ValidateDistance(distanceMeters); err != nil {
		return decimal.Zero, err
	}
	km := decimal.NewFromFloat(distanceMeters).Div(metersPerKm)
	return km.Mul(decimal.NewFromInt(factor)).Round(2), nil
}

// Points returns the reward for mode regardless of distance.
func Points(mode TravelMode) (int, error) {
	points, ok := mode.RewardPoints()
	if !ok {
		return 0, ErrUnknownMode(string(mode))
	}
	return points, nil
}

// Calculator computes trip metrics and records the emissions figure.
type Calculator struct {
	store  Writer
	logger *slog.Logger
}

// NewCalculator creates a Calculator. A nil store skips persistence.
func NewCalculator(store Writer, logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{store: store, logger: logger.With("component", "calculator")}
}

// Calculate derives the metrics for a trip and overwrites the persisted
// emissions value with the displayed figure.
func (c *Calculator) Calculate(ctx context.Context, distanceMeters float64, mode TravelMode) (*Metrics, error) {
	grams, err := Emissions(distanceMeters, mode)
	if err != nil {
		return nil, err
	}
	points, err := Points(mode)
	if err != nil {
		return nil, err
	}

	km := decimal.NewFromFloat(distanceMeters).Div(metersPerKm)
	m := &Metrics{
		Mode:           mode,
		DistanceMeters: distanceMeters,
		DistanceKm:     km.Round(2),
		EmissionsGrams: grams,
		RewardPoints:   points,
		DistanceText:   fmt.Sprintf("Distance for %s: %s km", mode, km.StringFixed(2)),
		EmissionsText:  fmt.Sprintf("Carbon Emissions for %s: %s grams", mode, grams.StringFixed(2)),
		PointsText:     fmt.Sprintf("Reward Points: %d points", points),
	}

	if c.store != nil {
		if err := c.store.Set(ctx, EmissionsKey, m.Emissions()); err != nil {
			c.logger.Error("failed to persist emissions", "key", EmissionsKey, "error", err)
			return nil, core.NewError(core.ErrStorageError, fmt.Sprintf("failed to persist emissions: %v", err))
		}
	}

	c.logger.Debug("trip metrics calculated",
		"mode", mode,
		"distance_m", distanceMeters,
		"emissions_g", m.Emissions(),
		"points", points,
	)
	return m, nil
}
