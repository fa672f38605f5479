package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"acolhebem-backend/internal/scrapers/cademeupsi"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func printJson(w io.Writer, value any) error {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(encoded))
	return err
}

func formatHours(hours float64) string {
	if hours == cademeupsi.UnknownHoursRemaining {
		return "-"
	}
	return strconv.FormatFloat(hours, 'f', 2, 64)
}

func printListings(w io.Writer, listings []cademeupsi.Listing) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Footer = text.FormatDefault
	t.AppendHeader(table.Row{"#", "Name", "CRP", "Available", "Hours", "Abordagem", "WhatsApp"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Abordagem", WidthMax: 32},
		{Name: "Hours", Align: text.AlignRight},
	})
	for i, l := range listings {
		number := l.WhatsappNumber
		if number == "" {
			number = l.WhatsappUrl
		}
		t.AppendRow(table.Row{
			i + 1,
			l.Name,
			l.Crp,
			l.Available,
			formatHours(l.HoursRemaining),
			l.Abordagem,
			number,
		})
	}
	t.AppendFooter(table.Row{"", "Total", len(listings)})
	t.Render()
}
