package forecast

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/optimize"
)

// The model order is fixed at ARIMA(1,1,1): one autoregressive term, one
// differencing pass, one moving-average term.
const (
	arimaP = 1
	arimaD = 1
	arimaQ = 1
)

// minFitObservations is the shortest series the fit will accept. Below this
// the conditional sum of squares is too underdetermined to be meaningful.
const minFitObservations = 10

// z95 is the two-sided 95% normal quantile used for confidence bounds.
const z95 = 1.959963984540054

// stationarityPenalty keeps the optimizer inside the invertible/stationary
// region without handing it infinities.
const stationarityPenalty = 1e12

// arimaModel holds a fitted ARIMA(1,1,1): w_t = c + phi*w_{t-1} + theta*e_{t-1} + e_t
// over the once-differenced series w.
type arimaModel struct {
	c, phi, theta float64
	sigma2        float64   // residual variance
	diffs         []float64 // differenced series
	resid         []float64 // in-sample residuals, aligned with diffs
	lastLevel     float64   // final value of the undifferenced series
}

// difference returns the first-order differences of y.
func difference(y []float64) []float64 {
	if len(y) < 2 {
		return nil
	}
	w := make([]float64, len(y)-1)
	for i := 1; i < len(y); i++ {
		w[i-1] = y[i] - y[i-1]
	}
	return w
}

// cssResiduals computes the conditional-sum-of-squares residuals of the
// ARMA(1,1) recursion over w for the given parameters. The recursion is
// conditioned on e_0 = 0.
func cssResiduals(w []float64, c, phi, theta float64) []float64 {
	e := make([]float64, len(w))
	for t := 1; t < len(w); t++ {
		e[t] = w[t] - c - phi*w[t-1] - theta*e[t-1]
	}
	return e
}

// fitARIMA fits an ARIMA(1,1,1) to a daily count series by minimizing the
// conditional sum of squares with Nelder-Mead. It returns an error on any
// numerical failure (too few points, degenerate series, non-convergence);
// the engine treats every such error as a signal to fall back.
func fitARIMA(y []float64) (*arimaModel, error) {
	if len(y) < minFitObservations {
		return nil, eris.Errorf("forecast: %d observations below fit minimum %d", len(y), minFitObservations)
	}

	w := difference(y)

	variance := sampleVariance(w)
	if variance == 0 {
		return nil, eris.New("forecast: differenced series has no variance")
	}

	css := func(x []float64) float64 {
		c, phi, theta := x[0], x[1], x[2]
		if math.Abs(phi) >= 1 || math.Abs(theta) >= 1 {
			return stationarityPenalty * (1 + math.Abs(phi) + math.Abs(theta))
		}
		e := cssResiduals(w, c, phi, theta)
		sum := 0.0
		for _, v := range e[1:] {
			sum += v * v
		}
		if math.IsNaN(sum) || math.IsInf(sum, 0) {
			return stationarityPenalty
		}
		return sum
	}

	problem := optimize.Problem{Func: css}
	result, err := optimize.Minimize(problem, []float64{0, 0.3, 0.3}, nil, &optimize.NelderMead{})
	if err != nil {
		return nil, eris.Wrap(err, "forecast: arima minimize")
	}
	if result == nil || math.IsNaN(result.F) || math.IsInf(result.F, 0) {
		return nil, eris.New("forecast: arima fit did not converge")
	}

	c, phi, theta := result.X[0], result.X[1], result.X[2]
	if math.Abs(phi) >= 1 || math.Abs(theta) >= 1 {
		return nil, eris.New("forecast: arima fit left the stationary region")
	}

	resid := cssResiduals(w, c, phi, theta)
	dof := len(resid) - 1
	if dof < 1 {
		return nil, eris.New("forecast: not enough residuals")
	}

	return &arimaModel{
		c:         c,
		phi:       phi,
		theta:     theta,
		sigma2:    result.F / float64(dof),
		diffs:     w,
		resid:     resid,
		lastLevel: y[len(y)-1],
	}, nil
}

// forecast projects the model steps days ahead, returning point estimates and
// two-sided 95% bounds on the undifferenced (level) scale.
func (m *arimaModel) forecast(steps int) (point, lower, upper []float64) {
	point = make([]float64, steps)
	lower = make([]float64, steps)
	upper = make([]float64, steps)

	wPrev := m.diffs[len(m.diffs)-1]
	ePrev := m.resid[len(m.resid)-1]
	level := m.lastLevel

	// Cumulative psi weights of the integrated process. For ARMA(1,1):
	// psi_0 = 1, psi_j = (phi+theta) * phi^(j-1).
	sigma := math.Sqrt(math.Max(m.sigma2, 0))
	cumPsi := 1.0
	psiPow := 1.0
	varSum := 0.0

	for h := 0; h < steps; h++ {
		var wHat float64
		if h == 0 {
			wHat = m.c + m.phi*wPrev + m.theta*ePrev
		} else {
			wHat = m.c + m.phi*wPrev
		}
		level += wHat
		point[h] = level
		wPrev = wHat

		varSum += cumPsi * cumPsi
		se := sigma * math.Sqrt(varSum)
		lower[h] = level - z95*se
		upper[h] = level + z95*se

		cumPsi += (m.phi + m.theta) * psiPow
		psiPow *= m.phi
	}
	return point, lower, upper
}

// fittedValues returns the one-step-ahead in-sample predictions on the level
// scale, aligned with y[1:] of the original series.
func (m *arimaModel) fittedValues(y []float64) []float64 {
	fitted := make([]float64, 0, len(m.diffs))
	for t := range m.diffs {
		var wHat float64
		if t == 0 {
			wHat = m.c
		} else {
			wHat = m.c + m.phi*m.diffs[t-1] + m.theta*m.resid[t-1]
		}
		fitted = append(fitted, y[t]+wHat)
	}
	return fitted
}

func sampleVariance(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))

	sum := 0.0
	for _, v := range x {
		sum += (v - mean) * (v - mean)
	}
	return sum / float64(len(x)-1)
}
