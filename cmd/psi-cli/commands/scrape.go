package commands

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--json]",
	Short: "Runs the full pipeline once against the configured directory.",
	RunE: func(cmd *cobra.Command, args []string) error {
		scraper, err := newScraper()
		if err != nil {
			return err
		}
		result := scraper.Run(cmd.Context())
		if asJson {
			return printJson(cmd.OutOrStdout(), result)
		}
		printListings(cmd.OutOrStdout(), result.Psychologists)
		return nil
	},
}
