package forecast

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultNoiseSeed is added to the day offset to seed each day's draws
const DefaultNoiseSeed = 100

// volatilityScale damps the historical coefficient of variation
const volatilityScale = 0.3

// minVolumeFactor bounds how far volatility can shrink a day's flows
const minVolumeFactor = 0.5

// NoiseSource yields the standard normal draws of one forecast day.
// Implementations must return the same pair for the same offset.
type NoiseSource interface {
	Draw(elapsedDays int) (credit, debit float64)
}

// SeededNormal draws from a fresh generator per day seeded with Seed+elapsedDays
type SeededNormal struct {
	Seed uint64
}

// Draw returns the credit draw followed by the debit draw of one day
func (s SeededNormal) Draw(elapsedDays int) (float64, float64) {
	n := distuv.Normal{
		Mu:    0,
		Sigma: 1,
		Src:   rand.NewPCG(s.Seed+uint64(elapsedDays), 0),
	}
	return n.Rand(), n.Rand()
}

// NoNoise disables volatility
type NoNoise struct{}

// Draw always returns zero draws
func (NoNoise) Draw(int) (float64, float64) { return 0, 0 }

// volumeFactor turns a normal draw into a multiplicative adjustment, never below 50%
func volumeFactor(z, coefficient float64) float64 {
	factor := 1 + z*coefficient*volatilityScale
	if factor < minVolumeFactor {
		return minVolumeFactor
	}
	return factor
}
