package timing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Elapsed returns the time a runner took from the wave start to a crossing.
func Elapsed(waveStart, crossing time.Time) time.Duration {
	return crossing.Sub(waveStart)
}

// Speed returns the average speed in km/h over distanceMeters, rounded to
// two decimals. It reports false when no speed can be computed.
func Speed(distanceMeters float64, elapsed time.Duration) (float64, bool) {
	minutes := elapsed.Minutes()
	if distanceMeters <= 0 || minutes <= 0 {
		return 0, false
	}
	kmh := decimal.NewFromFloat(distanceMeters).
		Div(decimal.NewFromInt(1000)).
		Div(decimal.NewFromFloat(minutes)).
		Mul(decimal.NewFromInt(60)).
		Round(2)
	v, _ := kmh.Float64()
	return v, true
}
