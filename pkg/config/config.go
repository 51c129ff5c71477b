// Package config loads project configuration from TOML files.
//
// A config file tunes normalization, alignment costs, collation, and
// stemma inference. Every field has a default, so an empty file (or no
// file at all) yields a working configuration.
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/textcritica/collate/pkg/align"
	"github.com/textcritica/collate/pkg/collate"
	"github.com/textcritica/collate/pkg/errors"
	"github.com/textcritica/collate/pkg/stemma"
	"github.com/textcritica/collate/pkg/witness"
)

// Config is the root of a project configuration file.
type Config struct {
	Normalization witness.Config `toml:"normalization"`
	Alignment     Alignment      `toml:"alignment"`
	Collation     Collation      `toml:"collation"`
	Stemma        Stemma         `toml:"stemma"`
}

// Alignment holds pairwise alignment settings.
type Alignment struct {
	Costs Costs `toml:"costs"`
}

// Costs mirrors align.Costs for TOML decoding.
type Costs struct {
	Substitution  float64 `toml:"substitution"`
	Insertion     float64 `toml:"insertion"`
	Deletion      float64 `toml:"deletion"`
	Transposition float64 `toml:"transposition"`
}

// Collation holds multiple-alignment settings.
type Collation struct {
	TieBreak string `toml:"tie_break"`
	Workers  int    `toml:"workers"`
}

// Stemma holds inference settings.
type Stemma struct {
	Method        string   `toml:"method"`
	TimeBudget    duration `toml:"time_budget"`
	MaxIterations int      `toml:"max_iterations"`
	Seed          int      `toml:"seed"`
}

// duration decodes TOML strings like "10s" into a time.Duration.
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(v)
	return nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	costs := align.DefaultCosts()
	return &Config{
		Normalization: witness.Config{
			CaseFold:         true,
			StripPunctuation: true,
		},
		Alignment: Alignment{
			Costs: Costs{
				Substitution:  costs.Substitution,
				Insertion:     costs.Insertion,
				Deletion:      costs.Deletion,
				Transposition: costs.Transposition,
			},
		},
		Collation: Collation{
			TieBreak: collate.TieBreakIngestionOrder,
		},
		Stemma: Stemma{
			Method:        string(stemma.MethodDistance),
			TimeBudget:    duration(stemma.DefaultTimeBudget),
			MaxIterations: stemma.DefaultMaxIterations,
			Seed:          stemma.DefaultSeed,
		},
	}
}

// Load reads a TOML config file, layering it over the defaults.
// Unknown keys are rejected so typos surface instead of being ignored.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %s", path)
	}
	return Parse(data)
}

// Parse decodes TOML config bytes, layering them over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown config key %q", undecoded[0].String())
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	costs := c.AlignCosts()
	if costs.Substitution <= 0 || costs.Insertion <= 0 || costs.Deletion <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "alignment costs must be positive")
	}
	switch c.Stemma.Method {
	case string(stemma.MethodDistance), string(stemma.MethodParsimony):
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unknown stemma method %q", c.Stemma.Method)
	}
	if c.Collation.Workers < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "collation workers must not be negative")
	}
	return nil
}

// AlignCosts converts the decoded cost table to align.Costs.
func (c *Config) AlignCosts() align.Costs {
	return align.Costs{
		Substitution:  c.Alignment.Costs.Substitution,
		Insertion:     c.Alignment.Costs.Insertion,
		Deletion:      c.Alignment.Costs.Deletion,
		Transposition: c.Alignment.Costs.Transposition,
	}
}

// StemmaTimeBudget returns the configured inference time budget.
func (c *Config) StemmaTimeBudget() time.Duration {
	return time.Duration(c.Stemma.TimeBudget)
}
