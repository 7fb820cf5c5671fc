package flow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gnolang/cflow/internal"
	tt "github.com/gnolang/cflow/internal/types"
)

// DefaultConfigFile is the configuration read when no other is named.
const DefaultConfigFile = ".cflow.yaml"

// Config is the content of a configuration file.
type Config struct {
	Name    string                   `yaml:"name"`
	Options BuildOptions             `yaml:"options"`
	Policy  string                   `yaml:"policy"`
	Walker  WalkerConfig             `yaml:"walker"`
	Rules   map[string]tt.ConfigRule `yaml:"rules"`
}

// BuildOptions selects how graphs are built. Options left out of a file
// keep their defaults.
type BuildOptions struct {
	ShortCircuit               *bool `yaml:"short_circuit,omitempty"`
	EvaluateConstantConditions *bool `yaml:"evaluate_constant_conditions,omitempty"`
	ExceptionAfterAssignment   *bool `yaml:"exception_after_assignment,omitempty"`
}

type WalkerConfig struct {
	MaxCallDepth int `yaml:"max_call_depth,omitempty"`
}

// DefaultConfig returns the configuration init writes.
func DefaultConfig() Config {
	on := func() *bool { b := true; return &b }
	return Config{
		Name: "cflow",
		Options: BuildOptions{
			ShortCircuit:               on(),
			EvaluateConstantConditions: on(),
			ExceptionAfterAssignment:   on(),
		},
		Policy: internal.PolicyLocals,
		Walker: WalkerConfig{MaxCallDepth: 32},
		Rules:  internal.DefaultRules(),
	}
}

// LoadConfig reads the configuration file at path. An empty path yields the
// default configuration.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("error opening configuration: %w", err)
	}
	defer f.Close()

	var conf Config
	if err := yaml.NewDecoder(f).Decode(&conf); err != nil {
		return Config{}, fmt.Errorf("error parsing configuration %s: %w", path, err)
	}
	return conf, nil
}

// WriteConfig writes conf to path, replacing any existing file.
func WriteConfig(path string, conf Config) error {
	data, err := yaml.Marshal(conf)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}
	return nil
}

// EngineConfig translates conf for the engine.
func (c Config) EngineConfig() internal.EngineConfig {
	ec := internal.DefaultEngineConfig()
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&ec.Options.ShortCircuitJumps, c.Options.ShortCircuit)
	set(&ec.Options.EvaluateConstantConditions, c.Options.EvaluateConstantConditions)
	set(&ec.Options.ExceptionAfterAssignment, c.Options.ExceptionAfterAssignment)
	if c.Policy != "" {
		ec.Policy = c.Policy
	}
	ec.MaxCallDepth = c.Walker.MaxCallDepth
	ec.Rules = c.Rules
	return ec
}
