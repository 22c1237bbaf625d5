// Package study sweeps trim runs across a range of target lift coefficients
// to trace a drag polar.
package study

import (
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/errors"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/trim"
)

const component = "study"

// Range is an inclusive arithmetic range.
type Range struct {
	Start float64 `yaml:"start" json:"start"`
	Stop  float64 `yaml:"stop" json:"stop"`
	Step  float64 `yaml:"step" json:"step"`
}

// Values lists the range. Values are rounded to nine decimals so that
// 0.1+0.2 prints as 0.3.
func (r Range) Values() ([]float64, error) {
	if r.Step <= 0 {
		return nil, errors.Errorf("step must be positive, got %v", r.Step).
			WithOperation("range").
			WithComponent(component)
	}
	if r.Stop < r.Start {
		return nil, errors.Errorf("stop %v is below start %v", r.Stop, r.Start).
			WithOperation("range").
			WithComponent(component)
	}

	n := int(math.Floor((r.Stop-r.Start)/r.Step+1e-9)) + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Round((r.Start+float64(i)*r.Step)*1e9) / 1e9
	}
	return out, nil
}

// Config describes a sweep.
type Config struct {
	Scene    string `yaml:"scene" json:"scene"`
	Aircraft string `yaml:"aircraft" json:"aircraft"`

	ControlPoints    int        `yaml:"control_points" json:"control_points"`
	DeflectionBounds [2]float64 `yaml:"deflection_bounds" json:"deflection_bounds"`
	DragType         string     `yaml:"drag_type" json:"drag_type"`
	Refine           bool       `yaml:"refine" json:"refine"`

	CL Range `yaml:"cl" json:"cl"`

	// Chain starts each run from the previous CL's solution.
	Chain bool `yaml:"chain" json:"chain"`
	// DownPass re-solves every CL from the next higher CL's solution and keeps
	// the lower drag result.
	DownPass bool `yaml:"down_pass" json:"down_pass"`
	// Parallel bounds the concurrent runs of an unchained sweep.
	Parallel int `yaml:"parallel" json:"parallel"`
}

// DefaultConfig is the chained up/down sweep from CL 0.1 to 0.9.
func DefaultConfig() Config {
	return Config{
		Aircraft:         "Ikhana",
		DeflectionBounds: [2]float64{-25, 25},
		DragType:         string(trim.DragTotal),
		Refine:           true,
		CL:               Range{Start: 0.1, Stop: 0.9, Step: 0.1},
		Chain:            true,
		DownPass:         true,
		Parallel:         1,
	}
}

// ParseConfig reads a YAML or JSON sweep description over DefaultConfig.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse study config").WithOperation("parse").WithComponent(component)
	}
	return &cfg, nil
}

// LoadConfig reads a sweep description. A relative scene path is resolved
// against the config file's directory.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path).WithOperation("load").WithComponent(component)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}
	if cfg.Scene != "" && !filepath.IsAbs(cfg.Scene) {
		cfg.Scene = filepath.Join(filepath.Dir(path), cfg.Scene)
	}
	return cfg, nil
}

// Validate checks the sweep can be run.
func (c *Config) Validate() error {
	if c.Scene == "" {
		return errors.New("scene is required").WithOperation("validate").WithComponent(component)
	}
	if c.Aircraft == "" {
		return errors.New("aircraft is required").WithOperation("validate").WithComponent(component)
	}
	if _, err := c.CL.Values(); err != nil {
		return err
	}
	if c.Parallel < 0 {
		return errors.Errorf("parallel must not be negative, got %d", c.Parallel).
			WithOperation("validate").
			WithComponent(component)
	}
	_, err := c.Options(c.CL.Start, nil).WithDefaults().Validate()
	return err
}

// Options returns the trim options for one CL of the sweep.
func (c *Config) Options(cl float64, guess []float64) trim.Options {
	return trim.Options{
		Aircraft:      c.Aircraft,
		ControlPoints: c.ControlPoints,
		TargetCL:      cl,
		LowerBound:    c.DeflectionBounds[0],
		UpperBound:    c.DeflectionBounds[1],
		Refine:        c.Refine,
		InitialGuess:  guess,
		DragType:      c.DragType,
	}
}
