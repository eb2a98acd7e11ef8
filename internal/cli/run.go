package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/writebench/internal/backend"
	"github.com/wesleyorama2/writebench/internal/bench"
	"github.com/wesleyorama2/writebench/internal/output"
	"github.com/wesleyorama2/writebench/internal/stats"
	"github.com/wesleyorama2/writebench/internal/txn"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [documents] [backend]",
		Short: "Run the scenario catalog",
		Long: `Run every scenario of the catalog against one backend, writing
[documents] documents per scenario. Without a count, the documents value of
the config file is used. Each completed scenario is appended to the
statistics aggregate of that backend.

  writebench run 10000
  writebench run 10000 networked --scenario documents-with-bulk-insert
  writebench run 5000 memory --partition strict --json
  writebench run -c bench.yaml --reset`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCatalog(cmd.Context(), args)
		},
	}

	flags := cmd.Flags()
	flags.StringSlice("scenario", nil, "Run only the named scenario (repeatable)")
	flags.Int("threads", 0, "Worker count of the multi-worker scenarios")
	flags.Int("stores", 0, "Store handles of the threads-against-stores scenario")
	flags.String("partition", "", "Partition mode (lossy, strict)")
	flags.Duration("barrier-timeout", 0, "Abort a scenario whose workers are not ready in time (0 waits forever)")
	flags.Bool("reset", false, "Delete stored documents before each scenario (statistics are kept)")
	flags.BoolP("quiet", "q", false, "Only print aborted scenarios and the final status")
	flags.Bool("wait", false, "Block until interrupted after the last scenario")
	addFormatFlags(flags)
	return cmd
}

func (a *app) runCatalog(ctx context.Context, args []string) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	documents, err := documentCount(args, cfg.Documents)
	if err != nil {
		return err
	}
	backendName := ""
	if len(args) > 1 {
		backendName = args[1]
	}

	format, err := a.format()
	if err != nil {
		return err
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		return err
	}
	catalog, err = catalog.Filter(a.v.GetStringSlice("scenario"))
	if err != nil {
		return err
	}
	if err := catalog.Validate(); err != nil {
		return err
	}
	partition, err := cfg.PartitionMode()
	if err != nil {
		return err
	}

	provider, err := backend.FromConfig(cfg, backendName)
	if err != nil {
		return err
	}
	logger := a.logger.With(slog.String("backend", provider.Name()))

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	statsStore, err := provider.Open(ctx)
	if err != nil {
		return fmt.Errorf("open %s: %w", provider.Name(), err)
	}
	defer statsStore.Close()

	report := output.RunReport{
		Name:      cfg.Name,
		Backend:   provider.Name(),
		Documents: documents,
		Partition: partition.String(),
	}
	console := a.console()
	if format == output.FormatText {
		console.PrintHeader(report, len(catalog))
	}

	runner := bench.NewRunner(provider, stats.NewRecorder(statsStore),
		bench.WithLogger(logger),
		bench.WithPartitionMode(partition),
		bench.WithBarrierTimeout(cfg.Barrier.Timeout.GetDuration(0)),
		bench.WithTransactionManager(txn.NewLocalManager()),
		bench.WithTruncate(a.v.GetBool("reset")),
		bench.WithScenarioHook(func(sc bench.Scenario, res *bench.Result, err error) {
			r := output.NewScenarioReport(sc, documents, res, err)
			report.Scenarios = append(report.Scenarios, r)
			if format == output.FormatText {
				console.ScenarioFinished(r)
			}
		}),
	)

	logger.Info("starting catalog", slog.Int("scenarios", len(catalog)), slog.Int("documents", documents))
	_, runErr := runner.RunCatalog(ctx, catalog, documents)

	if format == output.FormatText {
		console.PrintSummary(report)
	} else if err := output.Encode(a.stdout, format, report); err != nil {
		return err
	}

	if a.v.GetBool("wait") {
		if format == output.FormatText {
			console.Println("Catalog finished. Press Ctrl+C to exit.")
		}
		logger.Info("catalog finished, waiting for interrupt")
		<-ctx.Done()
	}

	if aborted := report.Aborted(); aborted > 0 {
		return fmt.Errorf("%d of %d scenarios aborted: %w", aborted, len(catalog), runErr)
	}
	return runErr
}

// documentCount takes the count from the first argument, falling back to
// the configured documents value.
func documentCount(args []string, configured int) (int, error) {
	if len(args) == 0 {
		if configured <= 0 {
			return 0, errors.New("no document count given and the config sets no documents")
		}
		return configured, nil
	}
	documents, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid document count %q: %w", args[0], err)
	}
	if documents < 0 {
		return 0, fmt.Errorf("document count must not be negative, got %d", documents)
	}
	return documents, nil
}
