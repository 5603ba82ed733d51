package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gyeh/mhforecast/internal/model"
)

var (
	// ErrFitFailure is returned when a series is too short, has gaps or holds
	// non-finite values, or when the likelihood cannot be maximised.
	ErrFitFailure = errors.New("fit failure")
	// ErrInvalidHorizon is returned for a non-positive forecast or hold-out horizon.
	ErrInvalidHorizon = errors.New("invalid horizon")
)

// Series is a daily univariate series. Dates, when present, must be
// contiguous calendar days aligned with Values.
type Series struct {
	Dates  []time.Time
	Values []float64
}

// FromDaily builds a Series from a daily summary table.
func FromDaily(daily []model.DailySummary) Series {
	s := Series{
		Dates:  make([]time.Time, len(daily)),
		Values: make([]float64, len(daily)),
	}
	for i, d := range daily {
		s.Dates[i] = d.Date
		s.Values[i] = float64(d.TotalPresentations)
	}
	return s
}

// Len returns the number of observations.
func (s Series) Len() int {
	return len(s.Values)
}

// Slice returns observations [start, end). The returned series shares no
// memory with s.
func (s Series) Slice(start, end int) Series {
	if start < 0 {
		start = 0
	}
	if end > len(s.Values) {
		end = len(s.Values)
	}
	if start >= end {
		return Series{}
	}
	out := Series{Values: append([]float64(nil), s.Values[start:end]...)}
	if len(s.Dates) == len(s.Values) {
		out.Dates = append([]time.Time(nil), s.Dates[start:end]...)
	}
	return out
}

// validate checks alignment, contiguity and finiteness.
func (s Series) validate() error {
	if len(s.Dates) != 0 && len(s.Dates) != len(s.Values) {
		return fmt.Errorf("%w: %d dates for %d values", ErrFitFailure, len(s.Dates), len(s.Values))
	}
	for i, v := range s.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value at index %d", ErrFitFailure, i)
		}
	}
	for i := 1; i < len(s.Dates); i++ {
		want := s.Dates[i-1].AddDate(0, 0, 1)
		if !sameDay(s.Dates[i], want) {
			return fmt.Errorf("%w: gap in series between %s and %s", ErrFitFailure,
				s.Dates[i-1].Format(model.DateLayout), s.Dates[i].Format(model.DateLayout))
		}
	}
	return nil
}

func (s Series) lastDate() time.Time {
	if len(s.Dates) == 0 {
		return time.Time{}
	}
	return s.Dates[len(s.Dates)-1]
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// MinObservations is the shortest series Fit accepts for the given order.
func MinObservations(o model.Order) int {
	return o.P + o.D + o.Q + 10
}

// MaxOrder bounds p and q; MaxDiff bounds d.
const (
	MaxOrder = 5
	MaxDiff  = 2
)

func validateOrder(o model.Order) error {
	if o.P < 0 || o.Q < 0 || o.D < 0 || o.P > MaxOrder || o.Q > MaxOrder || o.D > MaxDiff {
		return fmt.Errorf("%w: unsupported order %s (p,q in 0..%d, d in 0..%d)", ErrFitFailure, o, MaxOrder, MaxDiff)
	}
	return nil
}

// diff returns the first difference of v.
func diff(v []float64) []float64 {
	if len(v) < 2 {
		return nil
	}
	out := make([]float64, len(v)-1)
	for i := 1; i < len(v); i++ {
		out[i-1] = v[i] - v[i-1]
	}
	return out
}
