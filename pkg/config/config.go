// Package config loads the engine's tunables. Everything here has a working
// default; a YAML file overrides individual values.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"stashdb/pkg/concurrency/lock"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "250ms" as well as plain nanosecond integers.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var ns int64
	if err := value.Decode(&ns); err == nil {
		*d = Duration(ns)
		return nil
	}

	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("invalid duration value %q", value.Value)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts to a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// PoolConfig configures the buffer pool.
type PoolConfig struct {
	// Capacity is the maximum number of resident pages.
	Capacity int `yaml:"capacity"`
}

// LockConfig configures the blocking acquire protocol. The values are policy
// knobs, not correctness knobs: any positive combination keeps the engine
// live.
type LockConfig struct {
	FirstDeadline   Duration `yaml:"first_deadline"`
	RunningDeadline Duration `yaml:"running_deadline"`
	InitialSleep    Duration `yaml:"initial_sleep"`
	RunningSleep    Duration `yaml:"running_sleep"`
}

// Config is the full engine configuration.
type Config struct {
	Pool PoolConfig `yaml:"pool"`
	Lock LockConfig `yaml:"lock"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		Pool: PoolConfig{
			Capacity: 50,
		},
		Lock: LockConfig{
			FirstDeadline:   Duration(250 * time.Millisecond),
			RunningDeadline: Duration(500 * time.Millisecond),
			InitialSleep:    Duration(200 * time.Millisecond),
			RunningSleep:    Duration(10 * time.Millisecond),
		},
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.Pool.Capacity <= 0 {
		return fmt.Errorf("pool capacity must be positive, got %d", c.Pool.Capacity)
	}
	if c.Lock.FirstDeadline <= 0 || c.Lock.RunningDeadline <= 0 {
		return fmt.Errorf("lock deadlines must be positive")
	}
	if c.Lock.InitialSleep <= 0 || c.Lock.RunningSleep <= 0 {
		return fmt.Errorf("lock retry intervals must be positive")
	}
	return nil
}

// Timeouts converts the lock section into the lock manager's timing struct.
func (c Config) Timeouts() lock.Timeouts {
	return lock.Timeouts{
		FirstDeadline:   c.Lock.FirstDeadline.Std(),
		RunningDeadline: c.Lock.RunningDeadline.Std(),
		InitialSleep:    c.Lock.InitialSleep.Std(),
		RunningSleep:    c.Lock.RunningSleep.Std(),
	}
}
