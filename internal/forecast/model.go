package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

const (
	numChangepoints  = 25
	changepointRange = 0.8

	// Prior scales of the trend changes and seasonal coefficients. Ridge
	// penalties are (noiseScale / priorScale)^2 on the scaled series.
	changepointPriorScale = 0.05
	seasonalityPriorScale = 10.0
	noiseScale            = 0.05
)

// seasonality is a Fourier series with the given period in days.
type seasonality struct {
	name   string
	period float64
	order  int
}

var seasonalities = []seasonality{
	{name: "daily", period: 1, order: 4},
	{name: "weekly", period: 7, order: 3},
	{name: "yearly", period: 365.25, order: 10},
}

// observation is one historical point on the civil time axis.
type observation struct {
	t time.Time
	y float64
}

// model is a fitted piecewise-linear trend plus additive seasonalities:
//
//	y(t) = k*t + m + sum_j delta_j * max(t - c_j, 0) + seasonal(t)
//
// with t and y scaled to [0, 1] over the history.
type model struct {
	start        time.Time
	span         float64 // seconds covered by the history
	scale        float64
	changepoints []float64
	beta         []float64
	sigma        float64 // residual standard deviation, scaled
	deltaScale   float64 // mean absolute trend change, scaled
}

func numFeatures(nChangepoints int) int {
	n := 2 + nChangepoints
	for _, s := range seasonalities {
		n += 2 * s.order
	}
	return n
}

// scaledTime maps t onto the trend axis where the history spans [0, 1].
func (m *model) scaledTime(t time.Time) float64 {
	return t.Sub(m.start).Seconds() / m.span
}

// trendFeatures writes the intercept, slope and hinge columns for ts.
func (m *model) trendFeatures(dst []float64, ts float64) []float64 {
	dst = append(dst, 1, ts)
	for _, c := range m.changepoints {
		dst = append(dst, math.Max(ts-c, 0))
	}
	return dst
}

// seasonalFeatures writes the Fourier columns for t, measured in days since
// the Unix epoch.
func seasonalFeatures(dst []float64, t time.Time) []float64 {
	days := float64(t.Unix()) / 86400
	for _, s := range seasonalities {
		for k := 1; k <= s.order; k++ {
			x := 2 * math.Pi * float64(k) * days / s.period
			dst = append(dst, math.Sin(x), math.Cos(x))
		}
	}
	return dst
}

func (m *model) features(t time.Time) []float64 {
	row := make([]float64, 0, numFeatures(len(m.changepoints)))
	row = m.trendFeatures(row, m.scaledTime(t))
	return seasonalFeatures(row, t)
}

// penalties returns the ridge weight of each column. Intercept and slope are
// unpenalised.
func (m *model) penalties() []float64 {
	p := make([]float64, numFeatures(len(m.changepoints)))
	cp := sq(noiseScale / changepointPriorScale)
	ss := sq(noiseScale / seasonalityPriorScale)
	for i := range p {
		switch {
		case i < 2:
		case i < 2+len(m.changepoints):
			p[i] = cp
		default:
			p[i] = ss
		}
	}
	return p
}

// placeChangepoints spreads candidate changepoints evenly over the first
// changepointRange of the observations.
func placeChangepoints(ts []float64) []float64 {
	histSize := int(math.Floor(float64(len(ts)) * changepointRange))
	n := min(numChangepoints, histSize-1)
	if n <= 0 {
		return nil
	}
	out := make([]float64, 0, n)
	for i := 1; i <= n; i++ {
		idx := int(math.Round(float64(i) * float64(histSize-1) / float64(n)))
		out = append(out, ts[idx])
	}
	return out
}

// fit estimates the model by ridge-regularised least squares. obs must be
// sorted with unique timestamps and at least two entries.
func fit(obs []observation) (*model, error) {
	if len(obs) < 2 {
		return nil, ErrInsufficientHistory
	}
	first, last := obs[0].t, obs[len(obs)-1].t
	m := &model{start: first, span: last.Sub(first).Seconds()}
	if m.span <= 0 {
		return nil, ErrInsufficientHistory
	}

	for _, o := range obs {
		if math.IsNaN(o.y) || math.IsInf(o.y, 0) {
			return nil, fmt.Errorf("non-finite value at %s", o.t.Format(time.RFC3339))
		}
		m.scale = math.Max(m.scale, math.Abs(o.y))
	}
	if m.scale == 0 {
		m.scale = 1
	}

	ts := make([]float64, len(obs))
	for i, o := range obs {
		ts[i] = m.scaledTime(o.t)
	}
	m.changepoints = placeChangepoints(ts)

	nRows, nCols := len(obs), numFeatures(len(m.changepoints))
	x := mat.NewDense(nRows, nCols, nil)
	y := mat.NewVecDense(nRows, nil)
	for i, o := range obs {
		x.SetRow(i, m.features(o.t))
		y.SetVec(i, o.y/m.scale)
	}

	var gram mat.SymDense
	gram.SymOuterK(1, x.T())
	for i, p := range m.penalties() {
		gram.SetSym(i, i, gram.At(i, i)+p)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(&gram); !ok {
		return nil, errors.New("forecast: normal equations are not positive definite")
	}
	var rhs, beta mat.VecDense
	rhs.MulVec(x.T(), y)
	if err := chol.SolveVecTo(&beta, &rhs); err != nil {
		return nil, fmt.Errorf("forecast: solving normal equations: %w", err)
	}
	m.beta = make([]float64, nCols)
	for i := range m.beta {
		m.beta[i] = beta.AtVec(i)
		if math.IsNaN(m.beta[i]) || math.IsInf(m.beta[i], 0) {
			return nil, errors.New("forecast: fit produced non-finite coefficients")
		}
	}

	var fitted mat.VecDense
	fitted.MulVec(x, &beta)
	var sse float64
	for i := range nRows {
		sse += sq(y.AtVec(i) - fitted.AtVec(i))
	}
	m.sigma = math.Sqrt(sse / float64(nRows))

	var sumDelta float64
	for j := range m.changepoints {
		sumDelta += math.Abs(m.beta[2+j])
	}
	if len(m.changepoints) > 0 {
		m.deltaScale = sumDelta / float64(len(m.changepoints))
	}
	m.deltaScale += 1e-8

	return m, nil
}

// predict returns the scaled point estimate at t.
func (m *model) predict(t time.Time) float64 {
	var yhat float64
	for i, v := range m.features(t) {
		yhat += v * m.beta[i]
	}
	return yhat
}

func sq(v float64) float64 { return v * v }
