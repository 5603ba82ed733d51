package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gyeh/mhforecast/internal/model"
	"github.com/gyeh/mhforecast/internal/normalize"
	"github.com/gyeh/mhforecast/internal/synth"
	"github.com/gyeh/mhforecast/internal/tables"
)

// Defaults shared by the CLI flags and the API.
const (
	DefaultStart      = "2019-01-01"
	DefaultEnd        = "2023-12-31"
	DefaultSeed       = 42
	DefaultHorizon    = 90
	DefaultHoldout    = 30
	DefaultConfidence = 0.95
	DefaultOrder      = "1,1,1"
	DefaultFormat     = "csv"
	DefaultAddr       = ":8080"

	// API request limits.
	DefaultMaxHorizon   = 730
	DefaultMaxRangeDays = 7305
)

// Config holds all runtime configuration for an mhforecast run.
type Config struct {
	DSN        string
	LogFormat  string // "text" or "json"
	LogLevel   string
	ConfigFile string

	Start      string
	End        string
	Seed       uint64
	Horizon    int
	Holdout    int // 0 disables evaluation
	Confidence float64
	Order      string
	OutDir     string
	Format     string
	InputPath  string // daily summary file to forecast instead of synthesizing
	Addr       string

	MaxHorizon   int // largest horizon or holdout the API accepts
	MaxRangeDays int // longest start..end range the API synthesizes

	Overrides *Overrides
}

// Overrides is the on-disk YAML structure of synthesis parameter overrides.
// Unset fields keep their defaults.
type Overrides struct {
	BaseDemand *float64 `yaml:"base_demand"`

	Multipliers struct {
		Winter   *float64 `yaml:"winter"`
		Monday   *float64 `yaml:"monday"`
		Weekend  *float64 `yaml:"weekend"`
		Pandemic *float64 `yaml:"pandemic"`
		Recovery *float64 `yaml:"recovery"`
	} `yaml:"multipliers"`

	Pandemic struct {
		Start       string `yaml:"start"`
		End         string `yaml:"end"`
		RecoveryEnd string `yaml:"recovery_end"`
	} `yaml:"pandemic"`

	TrendBaseYear *int     `yaml:"trend_base_year"`
	YearTrend     *float64 `yaml:"year_trend"`

	Boards       []string           `yaml:"boards"`        // restrict to these boards
	BoardWeights map[string]float64 `yaml:"board_weights"` // board name -> weight

	AgeWeights      []float64 `yaml:"age_weights"`
	QuintileWeights []float64 `yaml:"quintile_weights"`
	TypeWeights     []float64 `yaml:"type_weights"`
}

// LoadFromFile reads a YAML config file and merges its values into Config.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if err := o.validateBoards(); err != nil {
		return err
	}
	c.Overrides = &o
	return nil
}

// validateBoards checks that every board named in the overrides is known.
func (o *Overrides) validateBoards() error {
	for _, name := range o.Boards {
		if _, ok := model.BoardByName(name); !ok {
			return fmt.Errorf("unknown health board %q in config", name)
		}
	}
	for name := range o.BoardWeights {
		if _, ok := model.BoardByName(name); !ok {
			return fmt.Errorf("unknown health board %q in board_weights", name)
		}
	}
	return nil
}

// Validate checks flag formats and returns an error if the config is invalid.
// Horizon and range checks are left to the forecast and synth packages.
func (c *Config) Validate() error {
	if _, _, err := c.DateRange(); err != nil {
		return err
	}
	if _, err := c.ModelOrder(); err != nil {
		return err
	}
	if _, err := tables.ParseFormat(c.Format); err != nil {
		return err
	}
	if !(c.Confidence > 0 && c.Confidence < 1) {
		return fmt.Errorf("--confidence must be in (0, 1), got %v", c.Confidence)
	}
	if c.Holdout < 0 {
		return fmt.Errorf("--holdout must be non-negative, got %d", c.Holdout)
	}
	if c.InputPath != "" {
		if _, err := os.Stat(c.InputPath); err != nil {
			return fmt.Errorf("input not accessible: %w", err)
		}
	}
	return nil
}

// ValidateWithDSN checks flags and the DSN.
func (c *Config) ValidateWithDSN() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.DSN == "" {
		return fmt.Errorf("--dsn or MHFORECAST_DB_URL is required")
	}
	return nil
}

// DateRange parses --start and --end.
func (c *Config) DateRange() (time.Time, time.Time, error) {
	start, err := normalize.ParseDate(c.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("--start: %w", err)
	}
	end, err := normalize.ParseDate(c.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("--end: %w", err)
	}
	return start, end, nil
}

// ModelOrder parses --order.
func (c *Config) ModelOrder() (model.Order, error) {
	o, err := model.ParseOrder(c.Order)
	if err != nil {
		return model.Order{}, fmt.Errorf("--order: %w", err)
	}
	return o, nil
}

// SynthParams builds synthesis parameters from the date range, the defaults
// and any YAML overrides.
func (c *Config) SynthParams() (synth.Params, error) {
	start, end, err := c.DateRange()
	if err != nil {
		return synth.Params{}, err
	}
	p := synth.DefaultParams(start, end)
	if c.Overrides == nil {
		return p, nil
	}
	if err := c.Overrides.apply(&p); err != nil {
		return synth.Params{}, err
	}
	return p, nil
}

func (o *Overrides) apply(p *synth.Params) error {
	setFloat(&p.BaseDemand, o.BaseDemand)
	setFloat(&p.WinterMultiplier, o.Multipliers.Winter)
	setFloat(&p.MondayMultiplier, o.Multipliers.Monday)
	setFloat(&p.WeekendMultiplier, o.Multipliers.Weekend)
	setFloat(&p.PandemicMultiplier, o.Multipliers.Pandemic)
	setFloat(&p.RecoveryMultiplier, o.Multipliers.Recovery)
	setFloat(&p.YearTrend, o.YearTrend)
	if o.TrendBaseYear != nil {
		p.TrendBaseYear = *o.TrendBaseYear
	}

	for _, d := range []struct {
		name string
		val  string
		dst  *time.Time
	}{
		{"pandemic.start", o.Pandemic.Start, &p.PandemicStart},
		{"pandemic.end", o.Pandemic.End, &p.PandemicEnd},
		{"pandemic.recovery_end", o.Pandemic.RecoveryEnd, &p.RecoveryEnd},
	} {
		if d.val == "" {
			continue
		}
		t, err := normalize.ParseDate(d.val)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = t
	}

	if len(o.Boards) > 0 {
		boards := make([]model.BoardInfo, 0, len(o.Boards))
		for _, name := range o.Boards {
			b, ok := model.BoardByName(name)
			if !ok {
				return fmt.Errorf("unknown health board %q in config", name)
			}
			boards = append(boards, b)
		}
		p.Boards = boards
	}
	for i := range p.Boards {
		if w, ok := o.BoardWeights[p.Boards[i].Name]; ok {
			p.Boards[i].Weight = w
		}
	}

	if o.AgeWeights != nil {
		p.AgeWeights = o.AgeWeights
	}
	if o.QuintileWeights != nil {
		p.QuintileWeights = o.QuintileWeights
	}
	if o.TypeWeights != nil {
		p.TypeWeights = o.TypeWeights
	}
	return nil
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

// Fingerprint identifies the synthesis inputs for cache keys.
func (c *Config) Fingerprint() (string, error) {
	p, err := c.SynthParams()
	if err != nil {
		return "", err
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}
	return normalize.Key(fmt.Sprint(c.Seed), string(data)), nil
}
