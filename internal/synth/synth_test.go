package synth

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/gyeh/mhforecast/internal/model"
	"github.com/gyeh/mhforecast/internal/summary"
)

func date5y() (time.Time, time.Time) {
	return date(2019, time.January, 1), date(2023, time.December, 31)
}

// fiveYears is generated once; most tests only read it.
var fiveYears = func() *Dataset {
	start, end := date5y()
	ds, err := Generate(DefaultParams(start, end), NewSource(42))
	if err != nil {
		panic(err)
	}
	return ds
}()

func TestGenerate_DailyContiguous(t *testing.T) {
	ds := fiveYears
	if len(ds.Daily) != 1826 {
		t.Fatalf("daily rows = %d, want 1826", len(ds.Daily))
	}
	for i := 1; i < len(ds.Daily); i++ {
		if !ds.Daily[i].Date.Equal(ds.Daily[i-1].Date.AddDate(0, 0, 1)) {
			t.Fatalf("gap between %v and %v", ds.Daily[i-1].Date, ds.Daily[i].Date)
		}
	}
	if len(ds.Monthly) != 60 {
		t.Errorf("monthly rows = %d, want 60", len(ds.Monthly))
	}
	if len(ds.BoardDaily) != 1826*14 {
		t.Errorf("board daily rows = %d, want %d", len(ds.BoardDaily), 1826*14)
	}
}

func TestGenerate_RecordsValid(t *testing.T) {
	start, end := date5y()
	for i, p := range fiveYears.Presentations {
		if p.Count <= 0 {
			t.Fatalf("row %d: count %d should be positive", i, p.Count)
		}
		if p.SIMDQuintile < 1 || p.SIMDQuintile > model.NumQuintiles {
			t.Fatalf("row %d: quintile %d out of range", i, p.SIMDQuintile)
		}
		if int(p.Board) >= len(model.AllBoards) || int(p.AgeGroup) >= len(model.AgeGroupNames) ||
			int(p.Type) >= len(model.PresentationTypeNames) {
			t.Fatalf("row %d: category out of range: %+v", i, p)
		}
		if p.Date.Before(start) || p.Date.After(end) {
			t.Fatalf("row %d: date %v outside range", i, p.Date)
		}
	}
}

func TestGenerate_DailyMatchesRecords(t *testing.T) {
	ds := fiveYears
	start, end := date5y()
	got := summary.Daily(ds.Presentations, start, end)
	for i := range got {
		if got[i].TotalPresentations != ds.Daily[i].TotalPresentations {
			t.Fatalf("day %v: records sum %d, daily %d", got[i].Date, got[i].TotalPresentations, ds.Daily[i].TotalPresentations)
		}
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	start := date(2022, time.January, 1)
	end := date(2022, time.March, 31)
	a, err := Generate(DefaultParams(start, end), NewSource(9))
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Generate(DefaultParams(start, end), NewSource(9))
	if len(a.Presentations) != len(b.Presentations) {
		t.Fatalf("row counts differ: %d vs %d", len(a.Presentations), len(b.Presentations))
	}
	for i := range a.Presentations {
		if a.Presentations[i] != b.Presentations[i] {
			t.Fatalf("row %d differs: %+v vs %+v", i, a.Presentations[i], b.Presentations[i])
		}
	}

	c, _ := Generate(DefaultParams(start, end), NewSource(10))
	if summary.Total(c.Presentations) == summary.Total(a.Presentations) && len(c.Presentations) == len(a.Presentations) {
		t.Error("different seeds produced an identical dataset")
	}
}

func meanWhere(daily []model.DailySummary, keep func(time.Time) bool) float64 {
	var sum float64
	var n int
	for _, d := range daily {
		if keep(d.Date) {
			sum += float64(d.TotalPresentations)
			n++
		}
	}
	return sum / float64(n)
}

func outsidePandemic(d time.Time) bool {
	return d.Year() == 2019 || d.Year() == 2023
}

func TestGenerate_Seasonality(t *testing.T) {
	daily := fiveYears.Daily

	winter := meanWhere(daily, func(d time.Time) bool { return outsidePandemic(d) && d.Month() <= time.March })
	rest := meanWhere(daily, func(d time.Time) bool { return outsidePandemic(d) && d.Month() > time.March })
	if r := winter / rest; r < 1.2 || r > 1.4 {
		t.Errorf("winter/non-winter = %.3f, want about 1.3", r)
	}

	monday := meanWhere(daily, func(d time.Time) bool { return d.Weekday() == time.Monday })
	midweek := meanWhere(daily, func(d time.Time) bool {
		return d.Weekday() >= time.Tuesday && d.Weekday() <= time.Friday
	})
	if r := monday / midweek; r < 1.15 || r > 1.35 {
		t.Errorf("monday/midweek = %.3f, want about 1.25", r)
	}
}

func TestGenerate_PandemicElevated(t *testing.T) {
	daily := fiveYears.Daily
	pandemic := meanWhere(daily, func(d time.Time) bool { return d.Year() == 2020 || d.Year() == 2021 })
	before := meanWhere(daily, func(d time.Time) bool { return d.Year() == 2019 })
	if pandemic <= before*1.3 {
		t.Errorf("pandemic mean %.1f not elevated over 2019 mean %.1f", pandemic, before)
	}
}

func TestGenerate_DeprivationRatio(t *testing.T) {
	r := summary.DeprivationRatio(fiveYears.Presentations)
	if math.Abs(r-4.375) > 0.3 {
		t.Errorf("Q1/Q5 ratio = %.3f, want about 4.4", r)
	}
}

func TestGenerate_SingleDay(t *testing.T) {
	d := date(2023, time.June, 1)
	ds, err := Generate(DefaultParams(d, d), NewSource(1))
	if err != nil {
		t.Fatal(err)
	}
	if len(ds.Daily) != 1 || len(ds.Monthly) != 1 {
		t.Errorf("got %d daily and %d monthly rows", len(ds.Daily), len(ds.Monthly))
	}
	if ds.Monthly[0].GrowthRate != nil {
		t.Error("single month should have no growth rate")
	}
}

func TestGenerate_ZeroDemandStillContiguous(t *testing.T) {
	start := date(2023, time.January, 1)
	end := date(2023, time.January, 10)
	p := DefaultParams(start, end)
	p.BaseDemand = 0
	ds, err := Generate(p, NewSource(1))
	if err != nil {
		t.Fatal(err)
	}
	if len(ds.Presentations) != 0 {
		t.Errorf("expected no records, got %d", len(ds.Presentations))
	}
	if len(ds.Daily) != 10 {
		t.Errorf("daily rows = %d, want 10", len(ds.Daily))
	}
}

func TestGenerate_LongRangeReachesEnd(t *testing.T) {
	start := date(1700, time.January, 1)
	end := date(2100, time.December, 31)
	p := DefaultParams(start, end)
	p.Boards = p.Boards[:1]
	p.BaseDemand = 0
	ds, err := Generate(p, NewSource(1))
	if err != nil {
		t.Fatal(err)
	}
	if len(ds.Daily) != 146462 {
		t.Fatalf("daily rows = %d, want 146462", len(ds.Daily))
	}
	if last := ds.Daily[len(ds.Daily)-1].Date; !last.Equal(end) {
		t.Errorf("last day = %s, want %s", last.Format(model.DateLayout), end.Format(model.DateLayout))
	}
}

func TestGenerate_InvalidParams(t *testing.T) {
	start, end := date5y()
	tests := []struct {
		name   string
		mutate func(*Params)
		want   error
	}{
		{"start after end", func(p *Params) { p.Start, p.End = p.End, p.Start }, ErrInvalidRange},
		{"no boards", func(p *Params) { p.Boards = nil }, ErrInvalidParams},
		{"unknown board", func(p *Params) { p.Boards[0].Name = "NHS Atlantis" }, ErrInvalidParams},
		{"duplicate board", func(p *Params) { p.Boards[1] = p.Boards[0] }, ErrInvalidParams},
		{"negative weight", func(p *Params) { p.Boards[0].Weight = -1 }, ErrInvalidParams},
		{"short age weights", func(p *Params) { p.AgeWeights = p.AgeWeights[:3] }, ErrInvalidParams},
		{"zero quintile weights", func(p *Params) { p.QuintileWeights = make([]float64, 5) }, ErrInvalidParams},
		{"nan multiplier", func(p *Params) { p.WinterMultiplier = math.NaN() }, ErrInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams(start, end)
			tt.mutate(&p)
			_, err := Generate(p, NewSource(1))
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestExpected(t *testing.T) {
	p := DefaultParams(date(2019, time.January, 1), date(2023, time.December, 31))
	// 2019-07-02 is a Tuesday outside winter and the pandemic.
	if got := p.Expected(date(2019, time.July, 2), 1); got != 50 {
		t.Errorf("baseline = %v, want 50", got)
	}
	// 2019-07-01 is a Monday.
	if got := p.Expected(date(2019, time.July, 1), 1); got != 62.5 {
		t.Errorf("monday = %v, want 62.5", got)
	}
	// 2020-07-07 is a Tuesday in the pandemic, one trend year on.
	want := 50 * 1.4 * 1.05
	if got := p.Expected(date(2020, time.July, 7), 1); math.Abs(got-want) > 1e-9 {
		t.Errorf("pandemic = %v, want %v", got, want)
	}
}
