package commands

import (
	"fmt"
	"strings"

	"acolhebem-backend/internal/scrapers/cademeupsi"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(enrichCmd)
}

var enrichCmd = &cobra.Command{
	Use:   "enrich <profile url>",
	Short: "Fetches a single profile page and prints what could be read from it.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scraper, err := newScraper()
		if err != nil {
			return err
		}
		listing, missed, err := scraper.EnrichProfile(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if asJson {
			return printJson(cmd.OutOrStdout(), listing)
		}
		printListings(cmd.OutOrStdout(), []cademeupsi.Listing{listing})
		if len(missed) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "missing: %s\n", strings.Join(missed, ", "))
		}
		return nil
	},
}
