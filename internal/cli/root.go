// Package cli implements the writebench command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/wesleyorama2/writebench/internal/config"
	"github.com/wesleyorama2/writebench/internal/output"
)

var version = "0.1.0"

// envPrefix prefixes every flag read from the environment, so --threads
// is also WRITEBENCH_THREADS.
const envPrefix = "WRITEBENCH"

// app carries the state shared by every command of one invocation.
type app struct {
	v      *viper.Viper
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
}

// NewRootCmd builds the command tree writing to stdout and stderr.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{
		v:      viper.New(),
		stdout: stdout,
		stderr: stderr,
		logger: slog.New(slog.NewTextHandler(stderr, nil)),
	}

	root := &cobra.Command{
		Use:     "writebench",
		Short:   "Benchmark document write strategies against a store",
		Version: version,
		Long: `writebench measures how fast a document store absorbs writes under
different transactional strategies: a commit per document, one commit at the
end, bulk streaming, two-phase commit per document and fire-and-forget.
Every completed scenario is appended to a statistics aggregate kept in the
store under test.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringP("config", "c", "", "Benchmark configuration file (YAML or JSON)")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.Bool("no-color", false, "Disable colored output")

	root.AddCommand(newRunCmd(a))
	root.AddCommand(newScenariosCmd(a))
	root.AddCommand(newStatsCmd(a))
	root.AddCommand(newDTCCmd(a))
	return root
}

// Execute runs the command line with args. Errors are also reported on
// stderr.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := NewRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return err
	}
	return nil
}

// setup binds the executing command's flags to the environment and builds
// the logger.
func (a *app) setup(cmd *cobra.Command) error {
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(a.v.GetString("log-level"))); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", a.v.GetString("log-level"), err)
	}
	a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
	return nil
}

// loadConfig reads the config file, if any, and applies flag and
// environment overrides on top of it.
func (a *app) loadConfig() (*config.BenchConfig, error) {
	var (
		cfg *config.BenchConfig
		err error
	)
	if path := a.v.GetString("config"); path != "" {
		cfg, err = config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		a.logger.Debug("loaded config", slog.String("path", path), slog.String("name", cfg.Name))
	} else {
		cfg = config.Default()
	}

	if a.v.IsSet("threads") {
		cfg.Threads = a.v.GetInt("threads")
	}
	if a.v.IsSet("stores") {
		cfg.Stores = a.v.GetInt("stores")
	}
	if a.v.IsSet("partition") {
		cfg.Partition = a.v.GetString("partition")
	}
	if a.v.IsSet("barrier-timeout") {
		cfg.Barrier.Timeout = config.Duration(a.v.GetDuration("barrier-timeout"))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// console builds the human-readable output for this invocation.
func (a *app) console() *output.Console {
	return output.NewConsole(output.ConsoleConfig{
		Writer:  a.stdout,
		Quiet:   a.v.GetBool("quiet"),
		NoColor: a.v.GetBool("no-color"),
	})
}

// format resolves --output, with --json as a shorthand.
func (a *app) format() (output.OutputFormat, error) {
	if a.v.GetBool("json") {
		return output.FormatJSON, nil
	}
	return output.ParseFormat(a.v.GetString("output"))
}

// addFormatFlags registers the structured output flags.
func addFormatFlags(flags *pflag.FlagSet) {
	flags.StringP("output", "o", "text", "Output format (text, json, yaml)")
	flags.Bool("json", false, "Shorthand for --output json")
}
