package commands

import (
	"context"
	"fmt"
	"os"

	"acolhebem-backend/internal/components/chrono"
	"acolhebem-backend/internal/components/telemetry"
	"acolhebem-backend/internal/scrapers/cademeupsi"
	"acolhebem-backend/lib/configutil"
	"acolhebem-backend/lib/restyutil"

	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	asJson     bool
)

var rootCmd = &cobra.Command{
	Use:   "psi-cli",
	Short: "psi-cli runs and debugs the cademeupsi directory scraper.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logs and dump every http exchange to .dev/http.")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json5", "The configuration file, its directory section is used.")
	rootCmd.PersistentFlags().BoolVar(&asJson, "json", false, "Print json instead of a table.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type config struct {
	Directory cademeupsi.Options `json:"directory"`
}

func loadOptions() (cademeupsi.Options, error) {
	cfg, err := configutil.ReadConfigWithDefaults(configPath, config{Directory: cademeupsi.DefaultOptions()})
	if err != nil {
		return cademeupsi.Options{}, err
	}
	if verbose {
		output, err := restyutil.NewFilesystemOutput(".dev/http/psi-cli")
		if err != nil {
			return cademeupsi.Options{}, err
		}
		cfg.Directory.Dump = output
	}
	return cfg.Directory, nil
}

func newScraper() (cademeupsi.Scraper, error) {
	opts, err := loadOptions()
	if err != nil {
		return cademeupsi.Scraper{}, err
	}
	clock, err := chrono.NewStandardImpl()
	if err != nil {
		return cademeupsi.Scraper{}, err
	}
	return cademeupsi.NewScraper(opts, clock, telemetry.SlogAPI{}), nil
}
