package config

import (
	"fmt"
	"strings"

	"github.com/wesleyorama2/writebench/internal/bench"
	"github.com/wesleyorama2/writebench/internal/store/sqlite"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Validate validates the entire benchmark configuration.
//
// Returns nil if valid, or a ValidationErrors containing all validation errors.
func (c *BenchConfig) Validate() error {
	errs := &ValidationErrors{}

	if c.Documents < 0 {
		errs.Add("documents", fmt.Sprintf("must not be negative, got %d", c.Documents))
	}
	if _, err := bench.ParsePartitionMode(c.Partition); err != nil {
		errs.Add("partition", err.Error())
	}
	if c.Threads < 1 {
		errs.Add("threads", fmt.Sprintf("must be at least 1, got %d", c.Threads))
	}
	if c.Stores < 1 {
		errs.Add("stores", fmt.Sprintf("must be at least 1, got %d", c.Stores))
	}
	if c.Barrier.Timeout < 0 {
		errs.Add("barrier.timeout", "must not be negative")
	}

	validateBackends(c, errs)
	validateScenarios(c.Scenarios, errs)

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateBackends(c *BenchConfig, errs *ValidationErrors) {
	if _, ok := c.Backends[c.DefaultBackend]; !ok {
		errs.Add("defaultBackend", fmt.Sprintf("backend %q is not defined", c.DefaultBackend))
	}

	for _, name := range c.BackendNames() {
		b := c.Backends[name]
		field := fmt.Sprintf("backends.%s", name)
		switch b.Driver {
		case DriverMemory:
		case DriverSQLite, DriverPostgres:
			if b.DSN == "" {
				errs.Add(field+".dsn", fmt.Sprintf("a %s backend requires a dsn", b.Driver))
			} else if b.Driver == DriverSQLite && sqlite.IsInMemory(b.DSN) {
				errs.Add(field+".dsn", "in-memory sqlite databases are not shared between store handles; use a file path")
			}
		case "":
			errs.Add(field+".driver", "driver is required")
		default:
			errs.Add(field+".driver", fmt.Sprintf("unknown driver %q (want memory, sqlite or postgres)", b.Driver))
		}
	}
}

func validateScenarios(scenarios []ScenarioConfig, errs *ValidationErrors) {
	seen := make(map[string]bool, len(scenarios))
	for i, sc := range scenarios {
		field := fmt.Sprintf("scenarios[%d]", i)
		if sc.Name == "" {
			errs.Add(field+".name", "name is required")
		} else if seen[sc.Name] {
			errs.Add(field+".name", fmt.Sprintf("duplicate scenario name %q", sc.Name))
		}
		seen[sc.Name] = true

		if sc.Workers < 1 {
			errs.Add(field+".workers", fmt.Sprintf("must be at least 1, got %d", sc.Workers))
		}
		if sc.Stores < 1 {
			errs.Add(field+".stores", fmt.Sprintf("must be at least 1, got %d", sc.Stores))
		}
		if _, err := bench.ParseWriteMode(sc.Mode); err != nil {
			errs.Add(field+".mode", err.Error())
		}
	}
}
