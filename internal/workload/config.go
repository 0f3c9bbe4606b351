package workload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joshuapare/cellheap/gc"
)

// ErrConfig indicates an invalid workload configuration.
var ErrConfig = errors.New("workload: invalid config")

// Config describes a synthetic mutator run. Zero fields take the values of
// DefaultConfig.
type Config struct {
	Seed  int64 `yaml:"seed" json:"seed"`
	Steps int   `yaml:"steps" json:"steps"`

	// Heap settings.
	Policy             string `yaml:"policy" json:"policy"`
	SizeClasses        string `yaml:"size_classes" json:"size_classes"`
	GrowBudget         int    `yaml:"grow_budget" json:"grow_budget,omitempty"`
	MaxBlocks          int    `yaml:"max_blocks" json:"max_blocks,omitempty"`
	ReleaseEmptyBlocks bool   `yaml:"release_empty_blocks" json:"release_empty_blocks"`

	// CollectEvery forces a collection every N steps (0: only the policy
	// collects).
	CollectEvery int `yaml:"collect_every" json:"collect_every,omitempty"`

	// MaxStack bounds the conservative root stack.
	MaxStack int `yaml:"max_stack" json:"max_stack"`

	// Globals is the number of pinned global objects.
	Globals int `yaml:"globals" json:"globals"`

	// Verify checks heap invariants after every collection.
	Verify bool `yaml:"verify" json:"verify"`

	Mix   Mix          `yaml:"mix" json:"mix"`
	Sizes []SizeWeight `yaml:"sizes" json:"sizes"`
}

// Mix weights the mutator operations.
type Mix struct {
	Alloc  int `yaml:"alloc" json:"alloc"`
	Link   int `yaml:"link" json:"link"`
	Store  int `yaml:"store" json:"store"`
	Pop    int `yaml:"pop" json:"pop"`
	Global int `yaml:"global" json:"global"`
}

func (m Mix) total() int { return m.Alloc + m.Link + m.Store + m.Pop + m.Global }

// SizeWeight is one entry of the allocation size distribution.
type SizeWeight struct {
	Size   int `yaml:"size" json:"size"`
	Weight int `yaml:"weight" json:"weight"`
}

// DefaultConfig is a small mixed workload.
var DefaultConfig = Config{
	Seed:        1,
	Steps:       100_000,
	Policy:      gc.PolicyBudget.String(),
	SizeClasses: "balanced",
	MaxStack:    512,
	Globals:     4,
	Mix:         Mix{Alloc: 50, Link: 25, Store: 10, Pop: 10, Global: 5},
	Sizes: []SizeWeight{
		{Size: 16, Weight: 40},
		{Size: 32, Weight: 30},
		{Size: 64, Weight: 15},
		{Size: 256, Weight: 10},
		{Size: 2048, Weight: 5},
	},
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig
	if c.Seed == 0 {
		c.Seed = d.Seed
	}
	if c.Steps == 0 {
		c.Steps = d.Steps
	}
	if c.Policy == "" {
		c.Policy = d.Policy
	}
	if c.SizeClasses == "" {
		c.SizeClasses = d.SizeClasses
	}
	if c.MaxStack == 0 {
		c.MaxStack = d.MaxStack
	}
	if c.Globals == 0 {
		c.Globals = d.Globals
	}
	if c.Mix.total() == 0 {
		c.Mix = d.Mix
	}
	if len(c.Sizes) == 0 {
		c.Sizes = append([]SizeWeight(nil), d.Sizes...)
	}
	return c
}

// Validate checks the configuration after defaults are applied.
func (c Config) Validate() error {
	c = c.withDefaults()
	var errs []error
	if c.Steps < 0 {
		errs = append(errs, fmt.Errorf("steps %d is negative", c.Steps))
	}
	if _, err := gc.ParseGrowthPolicy(c.Policy); err != nil {
		errs = append(errs, err)
	}
	maxSize := 0
	if preset, ok := gc.Presets[strings.ToLower(c.SizeClasses)]; !ok {
		errs = append(errs, fmt.Errorf("unknown size class preset %q", c.SizeClasses))
	} else if sizes, err := gc.ClassSizes(preset); err != nil {
		errs = append(errs, err)
	} else {
		maxSize = sizes[len(sizes)-1]
	}
	if c.MaxBlocks < 0 || c.GrowBudget < 0 || c.CollectEvery < 0 || c.Globals < 0 {
		errs = append(errs, errors.New("max_blocks, grow_budget, collect_every and globals must not be negative"))
	}
	if c.MaxStack < 1 {
		errs = append(errs, fmt.Errorf("max_stack %d must be positive", c.MaxStack))
	}
	if c.Mix.Alloc <= 0 || c.Mix.Link < 0 || c.Mix.Store < 0 || c.Mix.Pop < 0 || c.Mix.Global < 0 {
		errs = append(errs, errors.New("mix weights must not be negative and alloc must be positive"))
	}
	for _, s := range c.Sizes {
		if s.Size < fieldSize || s.Weight <= 0 {
			errs = append(errs, fmt.Errorf("size entry %+v: size must be at least %d and weight positive", s, fieldSize))
		}
		if maxSize > 0 && s.Size > maxSize {
			errs = append(errs, fmt.Errorf("size %d exceeds the largest %s class (%d bytes)", s.Size, c.SizeClasses, maxSize))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrConfig, errors.Join(errs...))
	}
	return nil
}

// HeapOptions translates the heap settings into gc.Options.
func (c Config) HeapOptions() (gc.Options, error) {
	c = c.withDefaults()
	policy, err := gc.ParseGrowthPolicy(c.Policy)
	if err != nil {
		return gc.Options{}, err
	}
	preset, ok := gc.Presets[strings.ToLower(c.SizeClasses)]
	if !ok {
		return gc.Options{}, fmt.Errorf("%w: unknown size class preset %q", ErrConfig, c.SizeClasses)
	}
	return gc.Options{
		SizeClasses:        &preset,
		Policy:             policy,
		GrowBudget:         c.GrowBudget,
		MaxBlocks:          c.MaxBlocks,
		ReleaseEmptyBlocks: c.ReleaseEmptyBlocks,
	}, nil
}

// ParseConfig decodes a YAML workload description. Unknown keys are errors.
func ParseConfig(data []byte) (Config, error) {
	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c.withDefaults(), nil
}

// LoadConfig reads and parses a YAML workload file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("workload: read config: %w", err)
	}
	return ParseConfig(data)
}
