// Package scenario loads, saves and generates starting worlds. Files are
// YAML (.yaml, .yml) or MessagePack (.msgpack, .mp), chosen by extension.
package scenario

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"spatialdb/pkg/core"
)

type Scenario struct {
	Name   string      `yaml:"name" msgpack:"name"`
	Seed   uint64      `yaml:"seed" msgpack:"seed"`
	Dims   int         `yaml:"dims" msgpack:"dims"`
	Bodies []core.Body `yaml:"bodies" msgpack:"bodies"`
}

type codec struct {
	marshal   func(any) ([]byte, error)
	unmarshal func([]byte, any) error
}

var codecs = map[string]codec{
	".yaml":    {yaml.Marshal, yaml.Unmarshal},
	".yml":     {yaml.Marshal, yaml.Unmarshal},
	".msgpack": {msgpack.Marshal, msgpack.Unmarshal},
	".mp":      {msgpack.Marshal, msgpack.Unmarshal},
}

func codecFor(path string) (codec, error) {
	ext := strings.ToLower(filepath.Ext(path))
	c, ok := codecs[ext]
	if !ok {
		return codec{}, fmt.Errorf("scenario %s: unknown format %q", path, ext)
	}
	return c, nil
}

func Load(path string) (*Scenario, error) {
	c, err := codecFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Scenario
	if err := c.unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if s.Dims == 0 {
		s.Dims = 2
	}
	return &s, nil
}

func (s *Scenario) Save(path string) error {
	c, err := codecFor(path)
	if err != nil {
		return err
	}
	data, err := c.marshal(s)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// GenOptions controls Generate. Size is the edge of the cube bodies are
// placed in; MaxHalf and MaxSpeed bound half extents and velocities.
type GenOptions struct {
	Bodies   int
	Dims     int
	Seed     uint64
	Size     float64
	MaxHalf  float64
	MaxSpeed float64
	Kinds    []string
}

// Generate builds a random scenario. The same options always give the same
// bodies, ids included.
func Generate(opts GenOptions) (*Scenario, error) {
	if opts.Dims < 2 || opts.Dims > 3 {
		return nil, fmt.Errorf("generate: %d dims, want 2 or 3", opts.Dims)
	}
	if opts.Size <= 0 {
		opts.Size = 1024
	}
	if opts.MaxHalf <= 0 {
		opts.MaxHalf = 4
	}
	if len(opts.Kinds) == 0 {
		opts.Kinds = []string{"rock", "ship", "probe"}
	}

	var seed [32]byte
	binary.LittleEndian.PutUint64(seed[:], opts.Seed)
	src := rand.NewChaCha8(seed)
	rng := rand.New(src)

	s := &Scenario{
		Name:   fmt.Sprintf("random-%d", opts.Seed),
		Seed:   opts.Seed,
		Dims:   opts.Dims,
		Bodies: make([]core.Body, opts.Bodies),
	}
	for i := range s.Bodies {
		id, err := uuid.NewRandomFromReader(src)
		if err != nil {
			return nil, fmt.Errorf("generate id: %w", err)
		}
		b := core.Body{ID: id.String(), Kind: opts.Kinds[rng.IntN(len(opts.Kinds))]}
		for a := 0; a < opts.Dims; a++ {
			b.Half[a] = 0.5 + rng.Float64()*(opts.MaxHalf-0.5)
			b.Pos[a] = b.Half[a] + rng.Float64()*(opts.Size-2*b.Half[a])
			if opts.MaxSpeed > 0 {
				b.Vel[a] = (rng.Float64()*2 - 1) * opts.MaxSpeed
			}
		}
		s.Bodies[i] = b
	}
	return s, nil
}
