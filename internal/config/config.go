// Package config is used to load the configuration file
package config

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/blacktop/lcpatch/pkg/macho"
	"github.com/dustin/go-humanize"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ByteSize is a size that may be written as a number or with a unit ("16KiB").
type ByteSize uint64

type patch struct {
	NoRelocate      bool                  `mapstructure:"no-relocate" yaml:"no-relocate"`
	AllowDuplicates bool                  `mapstructure:"allow-duplicates" yaml:"allow-duplicates"`
	MaxPath         int                   `mapstructure:"max-path" yaml:"max-path"`
	PageSize        ByteSize              `mapstructure:"page-size" yaml:"page-size"`
	Signature       macho.SignaturePolicy `mapstructure:"signature" yaml:"signature"`
	Overwrite       bool                  `mapstructure:"overwrite" yaml:"overwrite,omitempty"`
	Output          string                `mapstructure:"output" yaml:"-"`
}

// Config is the configuration struct
type Config struct {
	Verbose bool  `mapstructure:"verbose" yaml:"verbose,omitempty"`
	Color   bool  `mapstructure:"color" yaml:"color,omitempty"`
	Patch   patch `mapstructure:"patch" yaml:"patch"`
}

// MarshalYAML writes sizes the way humans type them in the config file.
func (b ByteSize) MarshalYAML() (any, error) {
	return humanize.IBytes(uint64(b)), nil
}

// YAML renders c as a config file.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	def := macho.DefaultConfig()
	v.SetDefault("patch.no-relocate", !def.AllowRelocation)
	v.SetDefault("patch.allow-duplicates", !def.RejectDuplicates)
	v.SetDefault("patch.max-path", def.MaxPathLength)
	v.SetDefault("patch.page-size", def.PageSize)
	v.SetDefault("patch.signature", def.SignaturePolicy.String())
}

func (c *Config) verify() error {
	if c.Patch.Output != "" && c.Patch.Overwrite {
		return fmt.Errorf("--output and --overwrite cannot be used together")
	}
	return c.Macho().Validate()
}

// Macho returns the edit configuration described by c.
func (c *Config) Macho() macho.Config {
	return macho.Config{
		AllowRelocation:  !c.Patch.NoRelocate,
		MaxPathLength:    c.Patch.MaxPath,
		RejectDuplicates: !c.Patch.AllowDuplicates,
		SignaturePolicy:  c.Patch.Signature,
		PageSize:         uint64(c.Patch.PageSize),
	}
}

func byteSizeHook(f reflect.Type, t reflect.Type, data any) (any, error) {
	if t != reflect.TypeOf(ByteSize(0)) {
		return data, nil
	}
	s, ok := data.(string)
	if !ok {
		return data, nil
	}
	if n, err := strconv.ParseUint(s, 0, 64); err == nil {
		return ByteSize(n), nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return nil, fmt.Errorf("invalid size %q: %v", s, err)
	}
	return ByteSize(n), nil
}

// Load decodes and verifies the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var c Config

	if err := v.Unmarshal(&c, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			byteSizeHook,
			mapstructure.TextUnmarshallerHookFunc(),
		),
	)); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %v", err)
	}

	if err := c.verify(); err != nil {
		return nil, fmt.Errorf("config: failed to verify: %v", err)
	}

	return &c, nil
}

// LoadConfig loads the configuration from the global viper instance
func LoadConfig() (*Config, error) {
	return Load(viper.GetViper())
}
