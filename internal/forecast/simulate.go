package forecast

import (
	"context"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// interval bounds the predictions at the future scaled times ts by simulating
// future trend changes and observation noise. Future changepoints arrive at
// the historical rate (changepoints per unit of scaled time) with
// Laplace-distributed magnitudes. It returns the lower and upper quantiles in
// scaled units.
func (m *model) interval(ctx context.Context, ts, yhat []float64, width float64, samples int, seed uint64) (lower, upper []float64, err error) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	end := ts[len(ts)-1]
	rate := float64(len(m.changepoints)) // history spans one unit

	draws := make([][]float64, len(ts))
	for i := range draws {
		draws[i] = make([]float64, samples)
	}

	type change struct{ at, delta float64 }
	var changes []change
	for s := range samples {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		changes = changes[:0]
		if end > 1 {
			n := poisson(rng, rate*(end-1))
			for range n {
				changes = append(changes, change{
					at:    1 + rng.Float64()*(end-1),
					delta: laplace(rng, m.deltaScale),
				})
			}
		}
		for i, t := range ts {
			v := yhat[i] + rng.NormFloat64()*m.sigma
			for _, c := range changes {
				v += c.delta * math.Max(t-c.at, 0)
			}
			draws[i][s] = v
		}
	}

	lo, hi := (1-width)/2, (1+width)/2
	lower = make([]float64, len(ts))
	upper = make([]float64, len(ts))
	for i, d := range draws {
		slices.Sort(d)
		lower[i] = stat.Quantile(lo, stat.Empirical, d, nil)
		upper[i] = stat.Quantile(hi, stat.Empirical, d, nil)
	}
	return lower, upper, nil
}

func laplace(rng *rand.Rand, scale float64) float64 {
	e := rng.ExpFloat64() * scale
	if rng.IntN(2) == 0 {
		return -e
	}
	return e
}

// poisson counts unit-rate exponential arrivals before mean.
func poisson(rng *rand.Rand, mean float64) int {
	var n int
	for t := rng.ExpFloat64(); t < mean; t += rng.ExpFloat64() {
		n++
	}
	return n
}
