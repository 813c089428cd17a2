package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/cwbudde/ffopt/internal/calc"
	"github.com/cwbudde/ffopt/internal/compare"
	"github.com/cwbudde/ffopt/internal/ff"
	"github.com/cwbudde/ffopt/internal/opt"
	"gopkg.in/yaml.v3"
)

const (
	DefaultFFFile   = "mm3.fld"
	DefaultMethod   = "central"
	DefaultMaxSteps = 10
	DefaultDataDir  = "./data"
)

// Config describes one optimization run.
type Config struct {
	// Directory holds the force field and is the working directory of the
	// calculate and reference commands.
	Directory string `yaml:"directory"`
	FFFile    string `yaml:"ff_file"`

	Calculate string `yaml:"calculate"`
	Reference string `yaml:"reference"`

	PTypes []string `yaml:"ptypes,omitempty"`
	PFile  string   `yaml:"pfile,omitempty"`

	Method    string `yaml:"method"`
	MaxParams int    `yaml:"max_params"`

	// Steps override the default step size per parameter type.
	Steps map[string]Step `yaml:"steps,omitempty"`

	Convergence opt.ConvergenceConfig `yaml:"convergence"`
	MaxSteps    int                   `yaml:"max_steps"`

	DataDir string `yaml:"data_dir"`
}

// Step is a step size as written in the config file: a number is an absolute
// increment, a string such as "0.05" or "0.05x" is a fraction of the value.
type Step ff.Step

func (s *Step) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: step must be a scalar", node.Line)
	}
	switch node.ShortTag() {
	case "!!int", "!!float":
		var size float64
		if err := node.Decode(&size); err != nil {
			return err
		}
		*s = Step{Size: size}
		return nil
	case "!!str":
		size, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(node.Value), "x"), 64)
		if err != nil {
			return fmt.Errorf("line %d: bad relative step %q", node.Line, node.Value)
		}
		*s = Step{Size: size, Relative: true}
		return nil
	}
	return fmt.Errorf("line %d: bad step %q", node.Line, node.Value)
}

func (s Step) MarshalYAML() (any, error) {
	if s.Relative {
		return ff.Step(s).String(), nil
	}
	return s.Size, nil
}

// DefaultConfig returns a configuration with every optional field set.
func DefaultConfig() *Config {
	return &Config{
		Directory:   ".",
		FFFile:      DefaultFFFile,
		Method:      DefaultMethod,
		Convergence: opt.DefaultConvergenceConfig(),
		MaxSteps:    DefaultMaxSteps,
		DataDir:     DefaultDataDir,
	}
}

// Load reads a YAML configuration on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

var knownPTypes = []string{
	ff.PTypeBondEq, ff.PTypeBondForce, ff.PTypeAngleEq, ff.PTypeAngleForce,
	ff.PTypeStretchBend, ff.PTypeTorsion, ff.PTypeImproper1, ff.PTypeImproper2,
	ff.PTypeCharge,
}

// Validate reports the first invalid field as a *ValidationError.
func (c *Config) Validate() error {
	if c.FFFile == "" {
		return &ValidationError{Field: "ff_file", Reason: "cannot be empty"}
	}
	if len(calc.SplitCommand(c.Calculate)) == 0 {
		return &ValidationError{Field: "calculate", Reason: "cannot be empty"}
	}
	if len(calc.SplitCommand(c.Reference)) == 0 {
		return &ValidationError{Field: "reference", Reason: "cannot be empty"}
	}
	if len(c.PTypes) == 0 && c.PFile == "" {
		return &ValidationError{Field: "ptypes", Reason: "or pfile must select parameters"}
	}
	for _, ptype := range c.PTypes {
		if !slices.Contains(knownPTypes, ptype) {
			return &ValidationError{Field: "ptypes", Reason: fmt.Sprintf("unknown parameter type %q", ptype)}
		}
	}
	if _, err := opt.ParseMethod(c.Method); err != nil {
		return &ValidationError{Field: "method", Reason: err.Error()}
	}
	if c.MaxParams < 0 {
		return &ValidationError{Field: "max_params", Reason: "cannot be negative"}
	}
	for ptype, step := range c.Steps {
		if !slices.Contains(knownPTypes, ptype) {
			return &ValidationError{Field: "steps", Reason: fmt.Sprintf("unknown parameter type %q", ptype)}
		}
		if step.Size <= 0 {
			return &ValidationError{Field: "steps." + ptype, Reason: "must be positive"}
		}
	}
	if c.MaxSteps <= 0 {
		return &ValidationError{Field: "max_steps", Reason: "must be positive"}
	}
	if c.Convergence.Enabled {
		if c.Convergence.Patience <= 0 {
			return &ValidationError{Field: "convergence.patience", Reason: "must be positive"}
		}
		if c.Convergence.Threshold < 0 {
			return &ValidationError{Field: "convergence.threshold", Reason: "cannot be negative"}
		}
	}
	return nil
}

// ValidationError names an invalid configuration field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + e.Field + " " + e.Reason
}

// FFPath is the location of the force field file.
func (c *Config) FFPath() string {
	return filepath.Join(c.Directory, c.FFFile)
}

// OptConfig converts the configuration into the optimizer's settings. Steps
// from the file replace the defaults of their type.
func (c *Config) OptConfig() (opt.Config, error) {
	method, err := opt.ParseMethod(c.Method)
	if err != nil {
		return opt.Config{}, err
	}
	steps := compare.DefaultSteps()
	for ptype, step := range c.Steps {
		steps[ptype] = ff.Step(step)
	}
	return opt.Config{
		Calculate: calc.SplitCommand(c.Calculate),
		Reference: calc.SplitCommand(c.Reference),
		Method:    method,
		MaxParams: c.MaxParams,
		Steps:     steps,
	}, nil
}

// Selection builds the parameter selection from the parameter types and the
// parameter file. A relative pfile path is resolved against Directory.
func (c *Config) Selection() (opt.Selection, error) {
	sel := opt.Selection{PTypes: slices.Clone(c.PTypes)}
	if c.PFile == "" {
		return sel, nil
	}

	path := c.PFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.Directory, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return sel, fmt.Errorf("failed to open parameter file: %w", err)
	}
	defer f.Close()

	params, err := ff.ReadParamFile(f)
	if err != nil {
		return sel, fmt.Errorf("%s: %w", path, err)
	}
	sel.Params = params
	return sel, nil
}
