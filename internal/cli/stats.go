package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/writebench/internal/backend"
	"github.com/wesleyorama2/writebench/internal/output"
	"github.com/wesleyorama2/writebench/internal/stats"
)

func newStatsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats [backend]",
		Short: "Print the recorded statistics of a backend",
		Long: `Print every run recorded in the statistics aggregate of a backend, or
extract one value with --path. Paths are gjson paths (runs.#.docsPerSecond) or
simple JSONPath ($.runs[0].timeInMs).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) > 0 {
				name = args[0]
			}
			return a.printStats(cmd.Context(), name)
		},
	}

	cmd.Flags().String("path", "", "Print only the value at this path of the statistics document")
	addFormatFlags(cmd.Flags())
	return cmd
}

func (a *app) printStats(ctx context.Context, name string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	format, err := a.format()
	if err != nil {
		return err
	}
	provider, err := backend.FromConfig(cfg, name)
	if err != nil {
		return err
	}

	s, err := provider.Open(ctx)
	if err != nil {
		return fmt.Errorf("open %s: %w", provider.Name(), err)
	}
	defer s.Close()
	recorder := stats.NewRecorder(s)

	if path := a.v.GetString("path"); path != "" {
		raw, err := recorder.Raw(ctx)
		if err != nil {
			return err
		}
		value, err := stats.Query(raw, path)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, value)
		return nil
	}

	runs, err := recorder.Runs(ctx)
	if err != nil {
		return err
	}
	if format == output.FormatText {
		a.console().PrintStats(provider.Name(), runs)
		return nil
	}
	if runs == nil {
		runs = []stats.StatRecord{}
	}
	return output.Encode(a.stdout, format, output.StatsReport{Backend: provider.Name(), Runs: runs})
}
