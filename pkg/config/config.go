package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Index IndexConfig `yaml:"index"`
	World WorldConfig `yaml:"world"`
	Sim   SimConfig   `yaml:"sim"`
	Log   LogConfig   `yaml:"log"`
}

type IndexConfig struct {
	Kind string `yaml:"kind"` // grid | linear
	Dims int    `yaml:"dims"` // 2 or 3
	// BucketWidth is one cell size per axis; a single value applies to all.
	BucketWidth       []float64 `yaml:"bucket_width"`
	MaxCellsPerEntity int       `yaml:"max_cells_per_entity"`
	TailDegree        int       `yaml:"tail_degree"` // btree degree of the by-kind tails
}

type WorldConfig struct {
	MaxBodies int        `yaml:"max_bodies"`
	Min       [3]float64 `yaml:"min"`
	Max       [3]float64 `yaml:"max"`
	Bounce    bool       `yaml:"bounce"` // reflect bodies at the world bounds
}

type SimConfig struct {
	Dt     float64 `yaml:"dt"`
	Frames int     `yaml:"frames"`
	Seed   uint64  `yaml:"seed"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

func Default() *Config {
	return &Config{
		Index: IndexConfig{
			Kind:              "grid",
			Dims:              2,
			BucketWidth:       []float64{32},
			MaxCellsPerEntity: 4096,
			TailDegree:        8,
		},
		World: WorldConfig{
			MaxBodies: 100000,
			Min:       [3]float64{0, 0, 0},
			Max:       [3]float64{1024, 1024, 1024},
			Bounce:    true,
		},
		Sim: SimConfig{
			Dt:     1.0 / 60,
			Frames: 600,
			Seed:   1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configPath over the defaults. An empty path searches
// configs/spatial.yaml and spatial.yaml and falls back to the defaults.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		for _, p := range []string{"configs/spatial.yaml", "spatial.yaml"} {
			data, err := os.ReadFile(p)
			if err == nil {
				if err := yaml.Unmarshal(data, cfg); err != nil {
					return cfg, fmt.Errorf("parse %s: %w", p, err)
				}
				applyDefaults(cfg)
				return cfg, nil
			}
		}
		applyDefaults(cfg)
		return cfg, nil // 没找到配置文件，使用默认值
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", configPath, err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Index.Kind == "" {
		cfg.Index.Kind = "grid"
	}
	if cfg.Index.Dims == 0 {
		cfg.Index.Dims = 2
	}
	if len(cfg.Index.BucketWidth) == 0 {
		cfg.Index.BucketWidth = []float64{32}
	}
	if cfg.Index.MaxCellsPerEntity <= 0 {
		cfg.Index.MaxCellsPerEntity = 4096
	}
	if cfg.Index.TailDegree < 2 {
		cfg.Index.TailDegree = 8
	}
	if cfg.World.MaxBodies <= 0 {
		cfg.World.MaxBodies = 100000
	}
	if cfg.Sim.Dt <= 0 {
		cfg.Sim.Dt = 1.0 / 60
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// Widths expands the configured bucket widths to one per axis.
func (c *Config) Widths() []float64 {
	out := make([]float64, c.Index.Dims)
	for i := range out {
		if len(c.Index.BucketWidth) == 1 {
			out[i] = c.Index.BucketWidth[0]
		} else if i < len(c.Index.BucketWidth) {
			out[i] = c.Index.BucketWidth[i]
		}
	}
	return out
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.Index.Kind {
	case "grid", "linear":
	default:
		errs = append(errs, fmt.Errorf("index.kind %q: want grid or linear", c.Index.Kind))
	}
	if c.Index.Dims != 2 && c.Index.Dims != 3 {
		errs = append(errs, fmt.Errorf("index.dims %d: want 2 or 3", c.Index.Dims))
	}
	if n := len(c.Index.BucketWidth); n != 1 && n != c.Index.Dims {
		errs = append(errs, fmt.Errorf("index.bucket_width: %d values for %d axes", n, c.Index.Dims))
	}
	for i, w := range c.Index.BucketWidth {
		if !(w > 0) {
			errs = append(errs, fmt.Errorf("index.bucket_width[%d] = %v: must be positive", i, w))
		}
	}
	for i := 0; i < c.Index.Dims && i < 3; i++ {
		if !(c.World.Max[i] > c.World.Min[i]) {
			errs = append(errs, fmt.Errorf("world bounds on axis %d are empty: [%v, %v]", i, c.World.Min[i], c.World.Max[i]))
		}
	}
	return errors.Join(errs...)
}
