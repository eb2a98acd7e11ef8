package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/writebench/internal/backend"
	"github.com/wesleyorama2/writebench/internal/bench"
	"github.com/wesleyorama2/writebench/internal/output"
	"github.com/wesleyorama2/writebench/internal/txn"
)

func newDTCCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dtc [backend]",
		Short: "Run the transaction coordination self-test",
		Long: `Two transactions load the same document, meet at a barrier and both try
to update it. Each enlists two participants plus the store. Exactly one must
commit; the other must hit a write conflict and roll back.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) > 0 {
				name = args[0]
			}
			return a.selfTest(cmd.Context(), name)
		},
	}
	addFormatFlags(cmd.Flags())
	return cmd
}

func (a *app) selfTest(ctx context.Context, name string) error {
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

	logger := a.logger.With(slog.String("backend", provider.Name()))
	reports, testErr := bench.RunCoordinationSelfTest(ctx, s, txn.NewLocalManager(), logger)

	summaries := output.SummarizeSelfTest(reports)
	if format == output.FormatText {
		a.console().PrintSelfTest(provider.Name(), summaries)
	} else if err := output.Encode(a.stdout, format, summaries); err != nil {
		return err
	}
	return testErr
}
