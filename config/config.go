// Package config loads and validates the per-zone IXFR tunables, the
// same way the host server loads its ZoneConf: a viper-backed YAML
// document unmarshalled into a typed struct, then checked with
// go-playground/validator against struct tags.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/johanix/ixfrd/ixfr"
)

// ZoneIxfrConfig is the YAML shape of one zone's "ixfr" section:
//
//	zones:
//	  example.com.:
//	    ixfr:
//	      store_ixfr: true
//	      ixfr_number: 5
//	      ixfr_size: 1048576
type ZoneIxfrConfig struct {
	StoreIxfr  bool   `yaml:"store_ixfr" mapstructure:"store_ixfr"`
	IxfrNumber uint32 `yaml:"ixfr_number" mapstructure:"ixfr_number" validate:"required_if=StoreIxfr true"`
	IxfrSize   uint64 `yaml:"ixfr_size" mapstructure:"ixfr_size"`
}

// ToEngineConfig converts the loaded, validated YAML shape into the
// plain struct the engine consumes. The engine never touches viper.
func (c ZoneIxfrConfig) ToEngineConfig() ixfr.Config {
	return ixfr.Config{
		StoreIxfr:  c.StoreIxfr,
		IxfrNumber: c.IxfrNumber,
		IxfrSize:   c.IxfrSize,
	}
}

// LoadZoneIxfrConfig unmarshals and validates the "ixfr" sub-section
// under the given zone key (e.g. "zones.example.com..ixfr"), mirroring
// ValidateBySection's per-section validate.Struct calls.
func LoadZoneIxfrConfig(v *viper.Viper, zoneKey string) (ZoneIxfrConfig, error) {
	key := fmt.Sprintf("%s.ixfr", zoneKey)
	sub := v.Sub(key)
	var cfg ZoneIxfrConfig
	if sub == nil {
		// No "ixfr" section at all means history-keeping is off for this
		// zone; that's a valid, unvalidated default, not an error.
		return ZoneIxfrConfig{}, nil
	}
	if err := sub.Unmarshal(&cfg); err != nil {
		return ZoneIxfrConfig{}, fmt.Errorf("config: unmarshal %q: %w", key, err)
	}
	if err := ValidateZoneIxfrConfig(key, cfg); err != nil {
		return ZoneIxfrConfig{}, err
	}
	return cfg, nil
}

// ValidateZoneIxfrConfig checks cfg against its struct tags, in the
// style of ValidateBySection: one section, one validate.Struct call,
// with the section name folded into the error for context.
func ValidateZoneIxfrConfig(section string, cfg ZoneIxfrConfig) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config: section %q: missing or invalid attributes: %w", strings.ToLower(section), err)
	}
	return nil
}
