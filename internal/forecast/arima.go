// Package forecast fits ARIMA(p,d,q) models to a daily series by exact
// Gaussian maximum likelihood and projects them forward with confidence
// bounds.
package forecast

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/gyeh/mhforecast/internal/model"
)

// DefaultOrder is the ARIMA(1,1,1) model used unless a caller asks otherwise.
var DefaultOrder = model.Order{P: 1, D: 1, Q: 1}

// DefaultConfidence is the two-sided interval coverage used when unset.
const DefaultConfidence = 0.95

// penalty stands in for the negative log-likelihood where it is undefined.
const penalty = 1e100

// Model is a fitted ARIMA model. It is immutable after Fit returns.
type Model struct {
	Order  model.Order
	AR     []float64 // phi
	MA     []float64 // theta
	Mean   float64   // sample mean of the series, only when d = 0
	Sigma2 float64   // innovation variance
	LogLik float64
	AIC    float64
	BIC    float64
	NObs   int

	levels    [][]float64 // levels[0] is the input, levels[k] its k-th difference
	ss        *stateSpace
	state     []float64
	residuals []float64
	lastDate  time.Time
}

// Fit estimates an ARIMA model of the given order on s.
func Fit(s Series, order model.Order) (*Model, error) {
	if err := validateOrder(order); err != nil {
		return nil, err
	}
	if s.Len() < MinObservations(order) {
		return nil, fmt.Errorf("%w: %d observations, order %s needs at least %d",
			ErrFitFailure, s.Len(), order, MinObservations(order))
	}
	if err := s.validate(); err != nil {
		return nil, err
	}

	levels := make([][]float64, order.D+1)
	levels[0] = append([]float64(nil), s.Values...)
	for k := 1; k <= order.D; k++ {
		levels[k] = diff(levels[k-1])
	}
	w := levels[order.D]

	m := &Model{
		Order:    order,
		NObs:     s.Len(),
		levels:   levels,
		lastDate: s.lastDate(),
	}

	y := w
	if order.D == 0 {
		m.Mean = stat.Mean(w, nil)
		y = make([]float64, len(w))
		for i, v := range w {
			y[i] = v - m.Mean
		}
	}
	if allZero(y) {
		return nil, fmt.Errorf("%w: differenced series has zero variance", ErrFitFailure)
	}

	x, err := maximize(y, order)
	if err != nil {
		return nil, err
	}

	m.AR = constrain(x[:order.P])
	m.MA = negate(constrain(x[order.P:]))
	m.ss = newStateSpace(m.AR, m.MA)

	res, err := m.ss.filter(y)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFitFailure, err)
	}
	n := float64(len(y))
	m.Sigma2 = res.sumSq / n
	m.LogLik = concentratedLogLik(res, len(y))
	m.state = res.state
	m.residuals = res.innovations

	k := float64(order.P + order.Q + 1)
	if order.D == 0 {
		k++
	}
	m.AIC = -2*m.LogLik + 2*k
	m.BIC = -2*m.LogLik + k*math.Log(n)

	if math.IsNaN(m.LogLik) || math.IsInf(m.LogLik, 0) || !(m.Sigma2 > 0) {
		return nil, fmt.Errorf("%w: likelihood is not finite", ErrFitFailure)
	}
	return m, nil
}

// maximize returns the unconstrained parameters maximising the concentrated
// likelihood of the zero-mean ARMA(p,q) on y.
func maximize(y []float64, order model.Order) ([]float64, error) {
	np := order.P + order.Q
	if np == 0 {
		return nil, nil
	}

	x0 := make([]float64, np)
	if order.P > 0 {
		copy(x0, unconstrain(startAR(y, order.P)))
	}

	obj := func(x []float64) float64 {
		ar := constrain(x[:order.P])
		ma := negate(constrain(x[order.P:]))
		res, err := newStateSpace(ar, ma).filter(y)
		if err != nil {
			return penalty
		}
		ll := concentratedLogLik(res, len(y))
		if math.IsNaN(ll) || math.IsInf(ll, 0) {
			return penalty
		}
		return -ll
	}

	settings := &optimize.Settings{
		MajorIterations: 2000,
		FuncEvaluations: 5000,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-9,
			Relative:   1e-10,
			Iterations: 200,
		},
	}
	res, err := optimize.Minimize(optimize.Problem{Func: obj}, x0, settings, &optimize.NelderMead{})
	if res == nil || res.F >= penalty || math.IsNaN(res.F) {
		if err == nil {
			err = fmt.Errorf("no feasible parameters")
		}
		return nil, fmt.Errorf("%w: maximise likelihood: %v", ErrFitFailure, err)
	}
	return res.X, nil
}

// startAR seeds the AR parameters from sample partial autocorrelations.
func startAR(y []float64, p int) []float64 {
	r := pacf(y, p)
	x := make([]float64, p)
	for i := range r {
		x[i] = math.Atanh(clip(r[i], 0.9))
	}
	return constrain(x)
}

func concentratedLogLik(res *filterResult, n int) float64 {
	nf := float64(n)
	sigma2 := res.sumSq / nf
	if !(sigma2 > 0) {
		return math.NaN()
	}
	return -0.5*nf*(math.Log(2*math.Pi)+1+math.Log(sigma2)) - 0.5*res.sumLogF
}

// Forecast projects the model horizon days past the last training date.
// Intervals are symmetric and widen with the step count.
func (m *Model) Forecast(horizon int, confidence float64) ([]model.ForecastRow, error) {
	if horizon <= 0 {
		return nil, fmt.Errorf("%w: horizon must be positive, got %d", ErrInvalidHorizon, horizon)
	}
	if confidence <= 0 || confidence >= 1 {
		confidence = DefaultConfidence
	}

	// differenced-scale point forecasts
	w := make([]float64, horizon)
	a := m.state
	for h := 0; h < horizon; h++ {
		w[h] = a[0] + m.Mean
		a = m.ss.step(a)
	}
	point := m.integrate(w)

	z := distuv.UnitNormal.Quantile(0.5 + confidence/2)
	psi := m.psiWeights(horizon)

	rows := make([]model.ForecastRow, horizon)
	cum := 0.0
	for h := 0; h < horizon; h++ {
		cum += psi[h] * psi[h]
		half := z * math.Sqrt(m.Sigma2*cum)
		row := model.ForecastRow{
			PredictedValue: point[h],
			LowerBound:     point[h] - half,
			UpperBound:     point[h] + half,
			Order:          m.Order,
		}
		if !m.lastDate.IsZero() {
			row.Date = m.lastDate.AddDate(0, 0, h+1)
		}
		rows[h] = row
	}
	return rows, nil
}

// integrate undoes d rounds of differencing, anchoring each level on its
// last observed value.
func (m *Model) integrate(w []float64) []float64 {
	out := w
	for k := m.Order.D - 1; k >= 0; k-- {
		level := m.levels[k]
		last := level[len(level)-1]
		next := make([]float64, len(out))
		for h, v := range out {
			last += v
			next[h] = last
		}
		out = next
	}
	return out
}

// psiWeights returns the first n MA(inf) weights of the integrated model
// phi(B)(1-B)^d y = theta(B) e.
func (m *Model) psiWeights(n int) []float64 {
	poly := make([]float64, len(m.AR)+1)
	poly[0] = 1
	for i, c := range m.AR {
		poly[i+1] = -c
	}
	for k := 0; k < m.Order.D; k++ {
		poly = polyMul(poly, []float64{1, -1})
	}
	// poly = 1 - sum a_i B^i
	a := make([]float64, len(poly)-1)
	for i := 1; i < len(poly); i++ {
		a[i-1] = -poly[i]
	}

	psi := make([]float64, n)
	psi[0] = 1
	for j := 1; j < n; j++ {
		v := 0.0
		if j <= len(m.MA) {
			v = m.MA[j-1]
		}
		for i := 1; i <= len(a) && i <= j; i++ {
			v += a[i-1] * psi[j-i]
		}
		psi[j] = v
	}
	return psi
}

func polyMul(a, b []float64) []float64 {
	out := make([]float64, len(a)+len(b)-1)
	for i, x := range a {
		for j, y := range b {
			out[i+j] += x * y
		}
	}
	return out
}

// Residuals returns the one-step innovations on the differenced scale.
func (m *Model) Residuals() []float64 {
	return append([]float64(nil), m.residuals...)
}

// Summary returns the fitted parameters for reporting.
func (m *Model) Summary() *model.ModelSummary {
	return &model.ModelSummary{
		Order:  m.Order,
		AR:     append([]float64(nil), m.AR...),
		MA:     append([]float64(nil), m.MA...),
		Mean:   m.Mean,
		Sigma2: m.Sigma2,
		LogLik: m.LogLik,
		AIC:    m.AIC,
		BIC:    m.BIC,
		NObs:   m.NObs,
	}
}

func negate(v []float64) []float64 {
	for i := range v {
		v[i] = -v[i]
	}
	return v
}

func allZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
