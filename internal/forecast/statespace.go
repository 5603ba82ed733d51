package forecast

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

var errNonPositiveVariance = errors.New("non-positive prediction variance")

// stateSpace is the Harvey representation of a zero-mean ARMA(p,q):
//
//	a[t+1] = T a[t] + R e[t+1],  y[t] = a[t][0]
//
// with r = max(p, q+1), T[i][0] = phi[i], T[i][i+1] = 1 and R = (1, theta...).
type stateSpace struct {
	r   int
	phi []float64 // padded to r
	rv  []float64 // R vector, padded to r
}

func newStateSpace(ar, ma []float64) *stateSpace {
	r := len(ar)
	if len(ma)+1 > r {
		r = len(ma) + 1
	}
	ss := &stateSpace{
		r:   r,
		phi: make([]float64, r),
		rv:  make([]float64, r),
	}
	copy(ss.phi, ar)
	ss.rv[0] = 1
	copy(ss.rv[1:], ma)
	return ss
}

// transition returns T as a dense matrix.
func (ss *stateSpace) transition() *mat.Dense {
	t := mat.NewDense(ss.r, ss.r, nil)
	for i := 0; i < ss.r; i++ {
		t.Set(i, 0, ss.phi[i])
		if i+1 < ss.r {
			t.Set(i, i+1, 1)
		}
	}
	return t
}

// stationaryCov solves P = T P T' + R R' through (I - T⊗T) vec(P) = vec(RR').
func (ss *stateSpace) stationaryCov() ([][]float64, error) {
	r := ss.r
	t := ss.transition()

	var kron mat.Dense
	kron.Kronecker(t, t)

	n := r * r
	a := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := -kron.At(i, j)
			if i == j {
				v++
			}
			a.Set(i, j, v)
		}
	}
	b := mat.NewVecDense(n, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < r; j++ {
			b.SetVec(i*r+j, ss.rv[i]*ss.rv[j])
		}
	}

	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		// ill-conditioned but solved systems report a finite Condition
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 0) {
			return nil, err
		}
	}

	p := newSquare(r)
	for i := 0; i < r; i++ {
		for j := 0; j < r; j++ {
			p[i][j] = x.AtVec(i*r + j)
		}
	}
	return p, nil
}

// filterResult holds the output of one Kalman pass with unit innovation variance.
type filterResult struct {
	innovations []float64
	sumSq       float64 // sum of v^2 / F
	sumLogF     float64
	state       []float64 // predicted state for the step after the last observation
}

// filter runs the Kalman filter over y from the stationary initial state.
func (ss *stateSpace) filter(y []float64) (*filterResult, error) {
	r := ss.r
	p, err := ss.stationaryCov()
	if err != nil {
		return nil, err
	}
	a := make([]float64, r)
	au := make([]float64, r)
	pu := newSquare(r)
	m := newSquare(r)
	k := make([]float64, r)

	res := &filterResult{innovations: make([]float64, len(y))}
	for t, obs := range y {
		v := obs - a[0]
		f := p[0][0]
		if !(f > 0) || math.IsInf(f, 0) {
			return nil, errNonPositiveVariance
		}
		res.innovations[t] = v
		res.sumSq += v * v / f
		res.sumLogF += math.Log(f)

		// update
		for i := 0; i < r; i++ {
			k[i] = p[i][0] / f
			au[i] = a[i] + k[i]*v
		}
		for i := 0; i < r; i++ {
			for j := 0; j < r; j++ {
				pu[i][j] = p[i][j] - k[i]*p[0][j]
			}
		}

		// predict: a = T au, P = T Pu T' + R R'
		for i := 0; i < r; i++ {
			a[i] = ss.phi[i] * au[0]
			if i+1 < r {
				a[i] += au[i+1]
			}
		}
		for i := 0; i < r; i++ {
			for j := 0; j < r; j++ {
				m[i][j] = ss.phi[i] * pu[0][j]
				if i+1 < r {
					m[i][j] += pu[i+1][j]
				}
			}
		}
		for i := 0; i < r; i++ {
			for j := 0; j < r; j++ {
				v := ss.phi[j]*m[i][0] + ss.rv[i]*ss.rv[j]
				if j+1 < r {
					v += m[i][j+1]
				}
				p[i][j] = v
			}
		}
	}
	res.state = a
	return res, nil
}

// step advances a state one period with no new observation.
func (ss *stateSpace) step(a []float64) []float64 {
	out := make([]float64, ss.r)
	for i := 0; i < ss.r; i++ {
		out[i] = ss.phi[i] * a[0]
		if i+1 < ss.r {
			out[i] += a[i+1]
		}
	}
	return out
}

func newSquare(r int) [][]float64 {
	m := make([][]float64, r)
	for i := range m {
		m[i] = make([]float64, r)
	}
	return m
}

// constrain maps unconstrained values to the coefficients of a stationary
// polynomial 1 - c1 B - ... - ck B^k, via tanh partial autocorrelations and
// the Durbin-Levinson recursion.
func constrain(x []float64) []float64 {
	n := len(x)
	c := make([]float64, n)
	tmp := make([]float64, n)
	for k := 0; k < n; k++ {
		rk := math.Tanh(x[k])
		for j := 0; j < k; j++ {
			tmp[j] = c[j] - rk*c[k-1-j]
		}
		copy(c[:k], tmp[:k])
		c[k] = rk
	}
	return c
}

// unconstrain inverts constrain. Partial autocorrelations are clipped to
// keep atanh finite.
func unconstrain(c []float64) []float64 {
	n := len(c)
	cur := append([]float64(nil), c...)
	x := make([]float64, n)
	tmp := make([]float64, n)
	for k := n - 1; k >= 0; k-- {
		rk := clip(cur[k], 0.95)
		x[k] = math.Atanh(rk)
		den := 1 - rk*rk
		for j := 0; j < k; j++ {
			tmp[j] = (cur[j] + rk*cur[k-1-j]) / den
		}
		copy(cur[:k], tmp[:k])
	}
	return x
}

func clip(v, bound float64) float64 {
	return math.Max(-bound, math.Min(bound, v))
}

// pacf returns sample partial autocorrelations for lags 1..maxLag.
func pacf(y []float64, maxLag int) []float64 {
	n := len(y)
	if maxLag < 1 || n < 2 {
		return make([]float64, maxLag)
	}
	mean := 0.0
	for _, v := range y {
		mean += v
	}
	mean /= float64(n)
	c0 := 0.0
	for _, v := range y {
		c0 += (v - mean) * (v - mean)
	}
	out := make([]float64, maxLag)
	if c0 == 0 {
		return out
	}
	acf := make([]float64, maxLag+1)
	for k := 0; k <= maxLag && k < n; k++ {
		s := 0.0
		for i := k; i < n; i++ {
			s += (y[i] - mean) * (y[i-k] - mean)
		}
		acf[k] = s / c0
	}

	// Durbin-Levinson
	phi := make([]float64, maxLag)
	prev := make([]float64, maxLag)
	for k := 1; k <= maxLag; k++ {
		num := acf[k]
		den := 1.0
		for j := 1; j < k; j++ {
			num -= prev[j-1] * acf[k-j]
			den -= prev[j-1] * acf[j]
		}
		if den == 0 {
			break
		}
		phi[k-1] = num / den
		for j := 1; j < k; j++ {
			phi[j-1] = prev[j-1] - phi[k-1]*prev[k-j-1]
		}
		out[k-1] = phi[k-1]
		copy(prev, phi)
	}
	return out
}
