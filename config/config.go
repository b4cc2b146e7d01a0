// File: config/config.go
// Package config
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Resolved engine configuration. Values come from a YAML file and the
// environment (FWD_ prefix), merged by viper; the engine only ever sees the
// validated record.

package config

import (
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Port describes one Ethernet port to bring up.
type Port struct {
	// Name is the operator-facing label.
	Name string `mapstructure:"name"`
	// Device is the driver-facing device identifier.
	Device string `mapstructure:"device"`
}

// Config is the resolved configuration record the engine consumes.
type Config struct {
	MasterCore  int   `mapstructure:"master_core"`
	WorkerCores []int `mapstructure:"worker_cores"`

	Ports []Port `mapstructure:"ports"`

	RxDescriptors uint16 `mapstructure:"rx_descriptors"`
	TxDescriptors uint16 `mapstructure:"tx_descriptors"`

	// Mempool sizing. Defaults follow the classic pktmbuf numbers.
	PoolCapacity  int `mapstructure:"pool_capacity"`
	PoolCacheSize int `mapstructure:"pool_cache_size"`

	ControlEndpoint string `mapstructure:"control_endpoint"`
	AllMulticast    bool   `mapstructure:"all_multicast"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	// MetricsAddr exposes /metrics when non-empty.
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// SetDefaults installs defaults on a viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("master_core", 0)
	v.SetDefault("worker_cores", []int{1})
	v.SetDefault("rx_descriptors", 512)
	v.SetDefault("tx_descriptors", 512)
	v.SetDefault("pool_capacity", 65535)
	v.SetDefault("pool_cache_size", 256)
	v.SetDefault("control_endpoint", "tcp://localhost:5555")
	v.SetDefault("all_multicast", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("metrics_addr", "")
}

// Load reads the configuration file (optional) and environment into a
// validated Config.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("FWD")
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "config: read %s", path)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "config: unmarshal")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the record for inconsistencies.
func (c *Config) Validate() error {
	if len(c.WorkerCores) == 0 {
		return errors.New("config: at least one worker core required")
	}
	for _, w := range c.WorkerCores {
		if w == c.MasterCore {
			return errors.Errorf("config: core %d is both master and worker", w)
		}
	}
	if c.PoolCapacity <= 0 {
		return errors.New("config: pool_capacity must be positive")
	}
	if c.ControlEndpoint == "" {
		return errors.New("config: control_endpoint required")
	}
	return nil
}
