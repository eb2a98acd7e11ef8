// Package backend turns configured backends into store providers.
package backend

import (
	"fmt"

	"github.com/wesleyorama2/writebench/internal/config"
	"github.com/wesleyorama2/writebench/internal/store"
	"github.com/wesleyorama2/writebench/internal/store/memory"
	"github.com/wesleyorama2/writebench/internal/store/postgres"
	"github.com/wesleyorama2/writebench/internal/store/sqlite"
)

// NewProvider creates the provider for one backend definition.
//
// Supported drivers:
//   - "memory" - process-local database, gone when the process exits
//   - "sqlite" - embedded database file named by the DSN; in-memory DSNs are rejected
//   - "postgres" - networked database reached through the DSN
//
// No connection is made until the provider is opened.
func NewProvider(name string, b config.BackendConfig) (store.Provider, error) {
	switch b.Driver {
	case config.DriverMemory:
		return memory.NewProvider(name, nil), nil
	case config.DriverSQLite:
		if b.DSN == "" {
			return nil, fmt.Errorf("backend %s: sqlite requires a dsn", name)
		}
		return sqlite.NewProvider(name, b.DSN)
	case config.DriverPostgres:
		if b.DSN == "" {
			return nil, fmt.Errorf("backend %s: postgres requires a dsn", name)
		}
		return postgres.NewProvider(name, b.DSN), nil
	default:
		return nil, fmt.Errorf("backend %s: unknown driver %q", name, b.Driver)
	}
}

// FromConfig resolves the named backend of cfg, or its default backend when
// name is empty.
func FromConfig(cfg *config.BenchConfig, name string) (store.Provider, error) {
	resolved, b, err := cfg.Backend(name)
	if err != nil {
		return nil, err
	}
	return NewProvider(resolved, b)
}
