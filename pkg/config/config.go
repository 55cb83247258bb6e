// Package config holds run-wide settings, unmarshalled by Viper from a
// settings file, DBSEEK_* environment variables and command-line flags.
package config

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ChrisMcGann/DBSeek/pkg/batch"
	"github.com/ChrisMcGann/DBSeek/pkg/convert"
	"github.com/ChrisMcGann/DBSeek/pkg/core"
	"github.com/ChrisMcGann/DBSeek/pkg/digest"
	"github.com/ChrisMcGann/DBSeek/pkg/filter"
	"github.com/ChrisMcGann/DBSeek/pkg/library"
	"github.com/ChrisMcGann/DBSeek/pkg/protein"
	"github.com/ChrisMcGann/DBSeek/pkg/search"
)

// EnvPrefix prefixes environment overrides, e.g. DBSEEK_BATCHING_CHUNK_SIZE.
const EnvPrefix = "DBSEEK"

// Policy selects how batch- and load-level failures are handled.
type Policy struct {
	OnEmptyBatch      core.Policy `mapstructure:"on_empty_batch" yaml:"on_empty_batch"`
	OnMalformedRecord core.Policy `mapstructure:"on_malformed_record" yaml:"on_malformed_record"`
}

// Config is the root settings struct.
type Config struct {
	Digestion  digest.Parameters    `mapstructure:"digestion" yaml:"digestion"`
	Conversion convert.Config       `mapstructure:"conversion" yaml:"conversion"`
	Batching   batch.Options        `mapstructure:"batching" yaml:"batching"`
	Build      library.BuildOptions `mapstructure:"build" yaml:"build"`
	Filter     filter.Config        `mapstructure:"filter" yaml:"filter"`
	Tolerance  search.Tolerance     `mapstructure:"tolerance" yaml:"tolerance"`
	Policy     Policy               `mapstructure:"policy" yaml:"policy"`

	// NmerSize is the window length of the protein index.
	NmerSize int `mapstructure:"nmer_size" yaml:"nmer_size"`

	// Modifications is an optional CSV of extra named modifications.
	Modifications string `mapstructure:"modifications" yaml:"modifications,omitempty"`
}

// Default returns the reference parameters.
func Default() Config {
	return Config{
		Digestion:  digest.DefaultParameters(),
		Conversion: convert.DefaultConfig(),
		Batching:   batch.DefaultOptions(),
		Build:      library.DefaultBuildOptions(),
		Tolerance:  search.DefaultTolerance(),
		Policy:     Policy{OnEmptyBatch: core.PolicyFail, OnMalformedRecord: core.PolicyFail},
		NmerSize:   protein.DefaultNmerSize,
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Digestion.Validate(); err != nil {
		return err
	}
	if err := c.Conversion.Validate(); err != nil {
		return err
	}
	if err := c.Batching.Validate(); err != nil {
		return err
	}
	if err := c.Build.Validate(); err != nil {
		return err
	}
	if err := c.Filter.Validate(); err != nil {
		return err
	}
	if err := c.Tolerance.Validate(); err != nil {
		return err
	}
	if err := c.Policy.OnEmptyBatch.Validate("policy.on_empty_batch"); err != nil {
		return err
	}
	if err := c.Policy.OnMalformedRecord.Validate("policy.on_malformed_record"); err != nil {
		return err
	}
	if c.NmerSize < 1 {
		return &core.ConfigurationError{Field: "nmer_size", Message: fmt.Sprintf("must be at least 1, got %d", c.NmerSize)}
	}
	return nil
}

// Load layers defaults, the settings file at path (if any), DBSEEK_*
// environment variables and any flags already bound on v, then validates.
func Load(v *viper.Viper, path string) (*Config, error) {
	defaults, err := yaml.Marshal(Default())
	if err != nil {
		return nil, fmt.Errorf("failed to encode defaults: %w", err)
	}
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("failed to read defaults: %w", err)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read settings %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to decode settings: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Write encodes c as YAML.
func Write(w io.Writer, c Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return enc.Close()
}
