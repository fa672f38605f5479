package commands

import (
	"fmt"
	"os"

	"acolhebem-backend/internal/scrapers/cademeupsi"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(extractCmd)
}

var extractCmd = &cobra.Command{
	Use:   "extract <path/to/listing.html>",
	Short: "Extracts the cards of a saved listing page without fetching anything.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		contents, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read listing: %w", err)
		}
		opts, err := loadOptions()
		if err != nil {
			return err
		}

		listings := cademeupsi.ExtractCards(string(contents), opts.BaseUrl)
		if asJson {
			return printJson(cmd.OutOrStdout(), listings)
		}
		printListings(cmd.OutOrStdout(), listings)
		return nil
	},
}
