package synth

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gyeh/mhforecast/internal/model"
)

var (
	// ErrInvalidRange is returned when the start date falls after the end date.
	ErrInvalidRange = errors.New("invalid date range")
	// ErrInvalidParams is returned for malformed boards or weights.
	ErrInvalidParams = errors.New("invalid synthesis parameters")
)

// Params controls the shape of the synthesized dataset. The multipliers are
// approximate documented effects, not hard invariants.
type Params struct {
	Start  time.Time
	End    time.Time
	Boards []model.BoardInfo

	BaseDemand float64 // expected daily presentations for a board of weight 1

	WinterMultiplier  float64 // January through March
	MondayMultiplier  float64
	WeekendMultiplier float64 // Saturday and Sunday

	PandemicStart      time.Time
	PandemicEnd        time.Time
	PandemicMultiplier float64
	RecoveryEnd        time.Time // zero disables the post-pandemic period
	RecoveryMultiplier float64

	TrendBaseYear int
	YearTrend     float64 // fractional growth per year since TrendBaseYear

	AgeWeights      []float64 // aligned with model.AgeGroupNames
	QuintileWeights []float64 // index 0 = quintile 1 (most deprived)
	TypeWeights     []float64 // aligned with model.PresentationTypeNames
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DefaultParams returns the documented defaults for the given range:
// winter x1.3, Monday x1.25, pandemic (2020-2021) x1.4 and a ~4.4x ratio
// between quintile 1 and quintile 5.
func DefaultParams(start, end time.Time) Params {
	boards := make([]model.BoardInfo, len(model.AllBoards))
	copy(boards, model.AllBoards)
	return Params{
		Start:              start,
		End:                end,
		Boards:             boards,
		BaseDemand:         50,
		WinterMultiplier:   1.3,
		MondayMultiplier:   1.25,
		WeekendMultiplier:  0.9,
		PandemicStart:      date(2020, time.January, 1),
		PandemicEnd:        date(2021, time.December, 31),
		PandemicMultiplier: 1.4,
		RecoveryEnd:        date(2022, time.December, 31),
		RecoveryMultiplier: 1.2,
		TrendBaseYear:      2019,
		YearTrend:          0.05,
		AgeWeights:         []float64{0.08, 0.25, 0.20, 0.15, 0.15, 0.10, 0.05, 0.02},
		QuintileWeights:    []float64{0.35, 0.25, 0.20, 0.12, 0.08},
		TypeWeights:        []float64{0.18, 0.22, 0.15, 0.20, 0.08, 0.10, 0.03, 0.04},
	}
}

// Validate checks the date range, board list and weight vectors.
func (p *Params) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", ErrInvalidRange)
	}
	if p.Start.After(p.End) {
		return fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange,
			p.Start.Format(model.DateLayout), p.End.Format(model.DateLayout))
	}
	if len(p.Boards) == 0 {
		return fmt.Errorf("%w: at least one health board is required", ErrInvalidParams)
	}
	seen := make(map[model.HealthBoard]bool, len(p.Boards))
	for _, b := range p.Boards {
		known, ok := model.BoardByName(b.Name)
		if !ok || known.Board != b.Board {
			return fmt.Errorf("%w: unknown health board %q", ErrInvalidParams, b.Name)
		}
		if seen[b.Board] {
			return fmt.Errorf("%w: duplicate health board %q", ErrInvalidParams, b.Name)
		}
		seen[b.Board] = true
		if !(b.Weight >= 0) || math.IsInf(b.Weight, 0) {
			return fmt.Errorf("%w: board %q weight %v must be a finite non-negative number", ErrInvalidParams, b.Name, b.Weight)
		}
	}
	if !(p.BaseDemand >= 0) || math.IsInf(p.BaseDemand, 0) {
		return fmt.Errorf("%w: base demand %v must be finite and non-negative", ErrInvalidParams, p.BaseDemand)
	}
	for name, v := range map[string]float64{
		"winter":   p.WinterMultiplier,
		"monday":   p.MondayMultiplier,
		"weekend":  p.WeekendMultiplier,
		"pandemic": p.PandemicMultiplier,
		"recovery": p.RecoveryMultiplier,
	} {
		if !(v >= 0) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s multiplier %v must be finite and non-negative", ErrInvalidParams, name, v)
		}
	}
	if err := checkWeights("age", p.AgeWeights, len(model.AgeGroupNames)); err != nil {
		return err
	}
	if err := checkWeights("quintile", p.QuintileWeights, model.NumQuintiles); err != nil {
		return err
	}
	return checkWeights("presentation type", p.TypeWeights, len(model.PresentationTypeNames))
}

func checkWeights(name string, w []float64, want int) error {
	if len(w) != want {
		return fmt.Errorf("%w: %s weights: got %d values, want %d", ErrInvalidParams, name, len(w), want)
	}
	total := 0.0
	for _, v := range w {
		if !(v >= 0) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s weight %v must be finite and non-negative", ErrInvalidParams, name, v)
		}
		total += v
	}
	if total <= 0 {
		return fmt.Errorf("%w: %s weights sum to zero", ErrInvalidParams, name)
	}
	return nil
}

// Expected returns the expected presentation count for a board of the given
// weight on day d, before Poisson noise.
func (p *Params) Expected(d time.Time, boardWeight float64) float64 {
	mult := p.BaseDemand * boardWeight

	if d.Month() <= time.March {
		mult *= p.WinterMultiplier
	}

	switch d.Weekday() {
	case time.Monday:
		mult *= p.MondayMultiplier
	case time.Saturday, time.Sunday:
		mult *= p.WeekendMultiplier
	}

	switch {
	case inRange(d, p.PandemicStart, p.PandemicEnd):
		mult *= p.PandemicMultiplier
	case !p.RecoveryEnd.IsZero() && d.After(p.PandemicEnd) && !d.After(p.RecoveryEnd):
		mult *= p.RecoveryMultiplier
	}

	trend := 1 + p.YearTrend*float64(d.Year()-p.TrendBaseYear)
	if trend < 0 {
		trend = 0
	}
	return mult * trend
}

func inRange(d, start, end time.Time) bool {
	if start.IsZero() || end.IsZero() {
		return false
	}
	return !d.Before(start) && !d.After(end)
}
