// Package synth produces a reproducible synthetic dataset of mental-health
// presentations standing in for real health-service records.
package synth

import (
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/gyeh/mhforecast/internal/model"
	"github.com/gyeh/mhforecast/internal/normalize"
	"github.com/gyeh/mhforecast/internal/summary"
)

// maxPrealloc caps the initial presentation capacity; longer runs grow by append.
const maxPrealloc = 1 << 20

// Dataset is the immutable output of one generation run.
type Dataset struct {
	Params        Params
	Presentations []model.Presentation
	Daily         []model.DailySummary
	BoardDaily    []model.BoardDaily
	Monthly       []model.MonthlySummary
}

// NewSource returns a seeded PCG source. Each generation run owns its source,
// so independent runs never share random state.
func NewSource(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}

// Generate synthesizes presentations for every day in [Start, End] and every
// board in p.Boards. All randomness is drawn from src.
func Generate(p Params, src rand.Source) (*Dataset, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	start := normalize.Day(p.Start)
	days := normalize.DayCount(start, p.End)

	g := &generator{
		src:    src,
		ages:   make([]int, len(p.AgeWeights)),
		quints: make([]int, len(p.QuintileWeights)),
		types:  make([]int, len(p.TypeWeights)),
	}

	ds := &Dataset{
		Params:        p,
		Presentations: make([]model.Presentation, 0, min(days*len(p.Boards)*32, maxPrealloc)),
		Daily:         make([]model.DailySummary, days),
		BoardDaily:    make([]model.BoardDaily, 0, days*len(p.Boards)),
	}

	for i := 0; i < days; i++ {
		d := start.AddDate(0, 0, i)
		ds.Daily[i].Date = d

		for _, b := range p.Boards {
			n := g.poisson(p.Expected(d, b.Weight))
			ds.Daily[i].TotalPresentations += int64(n)
			ds.BoardDaily = append(ds.BoardDaily, model.BoardDaily{
				Date:          d,
				Board:         b.Board,
				BoardName:     b.Name,
				Presentations: int64(n),
			})
			if n == 0 {
				continue
			}
			ds.Presentations = g.split(ds.Presentations, d, b.Board, n, &p)
		}
	}

	ds.Monthly = summary.Monthly(ds.Daily)
	return ds, nil
}

type generator struct {
	src    rand.Source
	ages   []int
	quints []int
	types  []int
}

func (g *generator) poisson(lambda float64) int {
	if lambda <= 0 {
		return 0
	}
	return int(distuv.Poisson{Lambda: lambda, Src: g.src}.Rand())
}

// split distributes n presentations over age group, then quintile, then
// presentation type, appending one row per nonzero cell.
func (g *generator) split(out []model.Presentation, d time.Time, board model.HealthBoard, n int, p *Params) []model.Presentation {
	g.multinomial(n, p.AgeWeights, g.ages)
	for ai, na := range g.ages {
		if na == 0 {
			continue
		}
		g.multinomial(na, p.QuintileWeights, g.quints)
		for qi, nq := range g.quints {
			if nq == 0 {
				continue
			}
			g.multinomial(nq, p.TypeWeights, g.types)
			for ti, nt := range g.types {
				if nt == 0 {
					continue
				}
				out = append(out, model.Presentation{
					Date:         d,
					Board:        board,
					AgeGroup:     model.AgeGroup(ai),
					Type:         model.PresentationType(ti),
					SIMDQuintile: uint8(qi + 1),
					Count:        int32(nt),
				})
			}
		}
	}
	return out
}

// multinomial draws counts for n trials over weights into out using
// conditional binomial draws. out must have len(weights) entries.
func (g *generator) multinomial(n int, weights []float64, out []int) {
	remaining := n
	remW := 0.0
	for _, w := range weights {
		remW += w
	}
	last := len(weights) - 1
	for i, w := range weights {
		if i == last || remaining == 0 {
			out[i] = 0
			if i == last {
				out[i] = remaining
			}
			continue
		}
		prob := 0.0
		if remW > 0 {
			prob = w / remW
		}
		remW -= w
		switch {
		case prob <= 0:
			out[i] = 0
		case prob >= 1:
			out[i] = remaining
		default:
			out[i] = int(distuv.Binomial{N: float64(remaining), P: prob, Src: g.src}.Rand())
		}
		remaining -= out[i]
	}
}
