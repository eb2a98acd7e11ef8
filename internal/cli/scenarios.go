package cli

import (
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/writebench/internal/config"
	"github.com/wesleyorama2/writebench/internal/output"
)

func newScenariosCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "List the scenario catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			format, err := a.format()
			if err != nil {
				return err
			}
			catalog, err := cfg.Catalog()
			if err != nil {
				return err
			}

			if format == output.FormatText {
				a.console().PrintCatalog(catalog)
				return nil
			}

			list := make([]config.ScenarioConfig, 0, len(catalog))
			for _, sc := range catalog {
				list = append(list, config.ScenarioConfig{
					Name:    sc.Name,
					Workers: sc.Workers,
					Stores:  sc.Stores,
					Mode:    sc.Mode.String(),
				})
			}
			return output.Encode(a.stdout, format, list)
		},
	}

	cmd.Flags().Int("threads", 0, "Worker count of the multi-worker scenarios")
	cmd.Flags().Int("stores", 0, "Store handles of the threads-against-stores scenario")
	addFormatFlags(cmd.Flags())
	return cmd
}
