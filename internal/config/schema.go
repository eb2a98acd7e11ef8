// Package config provides configuration parsing and validation for writebench.
package config

import (
	"time"
)

// Driver names accepted in a backend definition.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// BenchConfig is the root configuration for a benchmark run.
//
// Example YAML:
//
//	name: "write throughput"
//	documents: 10000
//	partition: lossy
//	threads: 10
//	stores: 2
//	defaultBackend: embedded
//	backends:
//	  embedded:  { driver: sqlite, dsn: "writebench.db" }
//	  networked: { driver: postgres, dsn: "postgres://{{pghost}}:5432/writebench" }
//	variables:
//	  pghost: localhost
//	scenarios:
//	  - { name: bulk, workers: 1, stores: 1, mode: bulk-streaming }
type BenchConfig struct {
	// Name of the run (for reporting)
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Documents is the total number of documents per scenario
	Documents int `json:"documents,omitempty" yaml:"documents,omitempty"`

	// Partition is "lossy" (floor division) or "strict" (remainder spread)
	Partition string `json:"partition,omitempty" yaml:"partition,omitempty"`

	// Threads sizes the multi-worker scenarios of the built-in catalog
	Threads int `json:"threads,omitempty" yaml:"threads,omitempty"`

	// Stores is the store-handle count of the threads-against-stores scenario
	Stores int `json:"stores,omitempty" yaml:"stores,omitempty"`

	// DefaultBackend names the backend used when none is given
	DefaultBackend string `json:"defaultBackend,omitempty" yaml:"defaultBackend,omitempty"`

	Barrier BarrierConfig `json:"barrier,omitempty" yaml:"barrier,omitempty"`

	// Backends maps a backend name to its driver and DSN
	Backends map[string]BackendConfig `json:"backends,omitempty" yaml:"backends,omitempty"`

	// Variables are substituted into DSNs as {{name}}
	Variables map[string]string `json:"variables,omitempty" yaml:"variables,omitempty"`

	// Scenarios replaces the built-in catalog when non-empty
	Scenarios []ScenarioConfig `json:"scenarios,omitempty" yaml:"scenarios,omitempty"`
}

// BarrierConfig controls the start barrier.
type BarrierConfig struct {
	// Timeout aborts a scenario whose workers are not all ready in time.
	// Zero waits forever.
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// BackendConfig describes one storage backend.
type BackendConfig struct {
	// Driver is one of memory, sqlite, postgres
	Driver string `json:"driver" yaml:"driver"`

	// DSN is the driver-specific data source name
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// ScenarioConfig defines a single benchmark scenario.
type ScenarioConfig struct {
	Name    string `json:"name" yaml:"name"`
	Workers int    `json:"workers" yaml:"workers"`
	Stores  int    `json:"stores" yaml:"stores"`

	// Mode is a write mode name such as "batch-commit-at-end"
	Mode string `json:"mode" yaml:"mode"`
}

// Duration is a time.Duration that can be unmarshaled from JSON/YAML strings.
type Duration time.Duration

// GetDuration returns the duration or a default if empty.
func (d Duration) GetDuration(defaultValue time.Duration) time.Duration {
	if d == 0 {
		return defaultValue
	}
	return time.Duration(d)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	if s == "" || s == "null" {
		*d = 0
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	if s == "" {
		*d = 0
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) String() string {
	return time.Duration(d).String()
}
