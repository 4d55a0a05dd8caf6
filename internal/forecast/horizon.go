package forecast

import (
	"time"

	"stockcast/internal/domain"
)

// horizon is the future grid projected for a requested duration.
type horizon struct {
	steps int
	step  time.Duration
	daily bool // advance by civil days rather than a fixed duration
}

var horizons = map[domain.Period]horizon{
	domain.Period1D: {steps: 288, step: 5 * time.Minute},
	domain.Period1W: {steps: 672, step: 15 * time.Minute},
	domain.Period1M: {steps: 720, step: time.Hour},
	domain.Period3M: {steps: 90, daily: true},
	domain.Period6M: {steps: 180, daily: true},
}

// lookupHorizon returns the grid for p or ErrUnsupportedHorizon.
func lookupHorizon(p domain.Period) (horizon, error) {
	h, ok := horizons[p]
	if !ok {
		return horizon{}, ErrUnsupportedHorizon
	}
	return h, nil
}

// grid returns the civil timestamps strictly after last.
func (h horizon) grid(last time.Time) []time.Time {
	out := make([]time.Time, h.steps)
	t := last
	for i := range out {
		if h.daily {
			t = t.AddDate(0, 0, 1)
		} else {
			t = t.Add(h.step)
		}
		out[i] = t
	}
	return out
}

// Steps reports how many points a forecast over p contains, or 0 when p is
// not a supported horizon.
func Steps(p domain.Period) int {
	return horizons[p].steps
}
