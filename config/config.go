// Package config holds the knobs of a training run, read from YAML and
// overridden from the command line.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/simpledl/gon/neuralnet"
	"gopkg.in/yaml.v3"
)

// Dataset formats understood by the train and predict commands.
const (
	FormatCSV   = "csv"
	FormatText  = "text"
	FormatCIFAR = "cifar"
)

// Config captures a training run. Buckets is the feature count of the text
// vectorizer and Tokenizer, when set, selects a tiktoken encoding instead of
// word hashing.
type Config struct {
	Data        string   `yaml:"data"`
	Format      string   `yaml:"format"`
	Header      bool     `yaml:"header"`
	LabelColumn int      `yaml:"label_column"`
	Shape       []int    `yaml:"shape"`
	Activations []string `yaml:"activations"`
	Alpha       float64  `yaml:"alpha"`
	Lambda      float64  `yaml:"lambda"`
	Penalty     string   `yaml:"penalty"`
	Epochs      int      `yaml:"epochs"`
	PrintEvery  int      `yaml:"print_every"`
	TestSize    float64  `yaml:"test_size"`
	Seed        int64    `yaml:"seed"`
	Xavier      bool     `yaml:"xavier"`
	Buckets     int      `yaml:"buckets"`
	Tokenizer   string   `yaml:"tokenizer"`
	Model       string   `yaml:"model"`
	Overwrite   bool     `yaml:"overwrite"`
	CostLog     string   `yaml:"cost_log"`
}

// Default returns the settings used when neither a file nor a flag sets a
// value.
func Default() *Config {
	p := neuralnet.DefaultParams()
	return &Config{
		Format:      FormatCSV,
		LabelColumn: -1,
		Alpha:       p.Alpha,
		Lambda:      p.Lambda,
		Penalty:     p.Penalty.String(),
		Epochs:      1000,
		PrintEvery:  100,
		TestSize:    0.2,
		Buckets:     1024,
	}
}

// Load reads a YAML file on top of Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Overrides captures command line values. Empty strings, negative numbers
// and a zero seed leave the config untouched.
type Overrides struct {
	Data        string
	Format      string
	Shape       string
	Activations string
	Alpha       float64
	Lambda      float64
	Penalty     string
	Epochs      int
	PrintEvery  int
	TestSize    float64
	Seed        int64
	Model       string
	CostLog     string
}

// ApplyOverrides updates c from any override that is set.
func (c *Config) ApplyOverrides(o Overrides) error {
	if o.Data != "" {
		c.Data = o.Data
	}
	if o.Format != "" {
		c.Format = o.Format
	}
	if o.Shape != "" {
		shape, err := ParseShape(o.Shape)
		if err != nil {
			return err
		}
		c.Shape = shape
	}
	if o.Activations != "" {
		c.Activations = splitList(o.Activations)
	}
	if o.Alpha >= 0 {
		c.Alpha = o.Alpha
	}
	if o.Lambda >= 0 {
		c.Lambda = o.Lambda
	}
	if o.Penalty != "" {
		c.Penalty = o.Penalty
	}
	if o.Epochs >= 0 {
		c.Epochs = o.Epochs
	}
	if o.PrintEvery >= 0 {
		c.PrintEvery = o.PrintEvery
	}
	if o.TestSize >= 0 {
		c.TestSize = o.TestSize
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.Model != "" {
		c.Model = o.Model
	}
	if o.CostLog != "" {
		c.CostLog = o.CostLog
	}
	return nil
}

// Validate verifies the config is runnable. A config that names an existing
// model may leave the network unspecified.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Data == "" {
		return errors.New("data must be set")
	}
	switch c.Format {
	case FormatCSV, FormatText, FormatCIFAR:
	default:
		return fmt.Errorf("unknown format %q", c.Format)
	}
	if c.Epochs < 0 {
		return fmt.Errorf("epochs must be >= 0 (got %d)", c.Epochs)
	}
	if c.TestSize < 0 || c.TestSize >= 1 {
		return fmt.Errorf("test_size must be in [0, 1) (got %v)", c.TestSize)
	}
	if _, err := c.PenaltyRule(); err != nil {
		return err
	}
	if c.Model != "" && len(c.Shape) == 0 {
		return nil
	}
	if len(c.Shape) < 2 {
		return fmt.Errorf("shape needs at least 2 widths (got %v)", c.Shape)
	}
	if len(c.Activations) != len(c.Shape)-1 {
		return fmt.Errorf("%d activations for %d layers", len(c.Activations), len(c.Shape)-1)
	}
	_, err := c.ActivationFuncs()
	return err
}

// Params returns the hyperparameters of the run.
func (c *Config) Params() (neuralnet.Params, error) {
	rule, err := c.PenaltyRule()
	if err != nil {
		return neuralnet.Params{}, err
	}
	return neuralnet.Params{Alpha: c.Alpha, Lambda: c.Lambda, Penalty: rule}, nil
}

func (c *Config) PenaltyRule() (neuralnet.Penalty, error) {
	switch strings.ToLower(c.Penalty) {
	case "", neuralnet.PairwisePenalty.String():
		return neuralnet.PairwisePenalty, nil
	case neuralnet.LayerPenalty.String():
		return neuralnet.LayerPenalty, nil
	}
	return 0, fmt.Errorf("unknown penalty %q", c.Penalty)
}

func (c *Config) ActivationFuncs() ([]neuralnet.ActivationFunction, error) {
	acts := make([]neuralnet.ActivationFunction, len(c.Activations))
	for i, name := range c.Activations {
		kind, err := neuralnet.ParseKind(name)
		if err != nil {
			return nil, err
		}
		if acts[i], err = neuralnet.ActivationFor(kind); err != nil {
			return nil, err
		}
	}
	return acts, nil
}

// ParseShape reads a comma separated width list such as "4,3,1".
func ParseShape(s string) ([]int, error) {
	var shape []int
	for _, f := range splitList(s) {
		w, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid width %q: %w", f, err)
		}
		shape = append(shape, w)
	}
	return shape, nil
}

func splitList(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
