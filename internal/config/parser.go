package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/writebench/internal/bench"
)

// Built-in defaults.
const (
	DefaultThreads       = 10
	DefaultStores        = 2
	DefaultBackendName   = "embedded"
	DefaultSQLitePath    = "writebench.db"
	DefaultPostgresDSN   = "postgres://localhost:5432/writebench"
	DefaultPartitionName = "lossy"
	defaultRunName       = "writebench"
)

// LoadConfig loads a benchmark configuration from a file.
//
// The file is checked against the JSON schema, parsed, completed with
// defaults and validated. The returned config is ready to use.
func LoadConfig(path string) (*BenchConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := ValidateSchema(data, path); err != nil {
		return nil, err
	}

	cfg, err := ParseConfig(data, path)
	if err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseConfig parses configuration data.
//
// The format is determined by the file extension in path, or defaults to YAML
// if the path is empty or has an unknown extension.
func ParseConfig(data []byte, path string) (*BenchConfig, error) {
	var config BenchConfig

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config (unknown format %s): %w", ext, err)
		}
	}

	return &config, nil
}

// Default returns a config with every default applied.
func Default() *BenchConfig {
	cfg := &BenchConfig{}
	ApplyDefaults(cfg)
	return cfg
}

// DefaultBackends returns the three built-in backends.
func DefaultBackends() map[string]BackendConfig {
	return map[string]BackendConfig{
		"memory":           {Driver: DriverMemory},
		DefaultBackendName: {Driver: DriverSQLite, DSN: DefaultSQLitePath},
		"networked":        {Driver: DriverPostgres, DSN: DefaultPostgresDSN},
	}
}

// ApplyDefaults applies default values to a BenchConfig. Built-in backends
// are added unless the file defines a backend of the same name.
func ApplyDefaults(config *BenchConfig) {
	if config.Name == "" {
		config.Name = defaultRunName
	}
	if config.Partition == "" {
		config.Partition = DefaultPartitionName
	}
	if config.Threads == 0 {
		config.Threads = DefaultThreads
	}
	if config.Stores == 0 {
		config.Stores = DefaultStores
	}
	if config.DefaultBackend == "" {
		config.DefaultBackend = DefaultBackendName
	}

	if config.Backends == nil {
		config.Backends = make(map[string]BackendConfig)
	}
	for name, b := range DefaultBackends() {
		if _, ok := config.Backends[name]; !ok {
			config.Backends[name] = b
		}
	}
}

// ResolveVariables replaces every {{key}} placeholder in input with its
// value. Unresolved placeholders are left as-is.
func ResolveVariables(input string, vars map[string]string) string {
	result := input
	for key, value := range vars {
		placeholder := fmt.Sprintf("{{%s}}", key)
		result = strings.ReplaceAll(result, placeholder, value)
	}
	return result
}

// Backend returns the named backend with variables and ${ENV} references
// expanded in its DSN. An empty name selects the default backend.
func (c *BenchConfig) Backend(name string) (string, BackendConfig, error) {
	if name == "" {
		name = c.DefaultBackend
	}
	b, ok := c.Backends[name]
	if !ok {
		return "", BackendConfig{}, fmt.Errorf("unknown backend %q (known: %s)", name, strings.Join(c.BackendNames(), ", "))
	}
	b.DSN = os.ExpandEnv(ResolveVariables(b.DSN, c.Variables))
	return name, b, nil
}

// BackendNames returns the configured backend names sorted.
func (c *BenchConfig) BackendNames() []string {
	names := make([]string, 0, len(c.Backends))
	for name := range c.Backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PartitionMode returns the parsed partition mode.
func (c *BenchConfig) PartitionMode() (bench.PartitionMode, error) {
	return bench.ParsePartitionMode(c.Partition)
}

// Catalog returns the configured scenarios, or the built-in catalog sized by
// Threads and Stores when none are configured.
func (c *BenchConfig) Catalog() (bench.Catalog, error) {
	if len(c.Scenarios) == 0 {
		return bench.DefaultCatalog(c.Threads, c.Stores), nil
	}

	catalog := make(bench.Catalog, 0, len(c.Scenarios))
	for _, sc := range c.Scenarios {
		mode, err := bench.ParseWriteMode(sc.Mode)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
		catalog = append(catalog, bench.Scenario{
			Name:    sc.Name,
			Workers: sc.Workers,
			Stores:  sc.Stores,
			Mode:    mode,
		})
	}
	return catalog, nil
}
