package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"riverdash/internal/app"
	"riverdash/internal/config"
	"riverdash/internal/modules/forecast"
	"riverdash/internal/modules/river"
	"riverdash/internal/poller"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#1F6FB2", Dark: "#5FAFFF"})
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#DBDBDB", Dark: "#383838"})
)

func newFetchCmd() *cobra.Command {
	var rivers, weather bool
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch river and weather data once, refresh the cache and print a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if !rivers && !weather {
				rivers, weather = true, true
			}
			sites, err := config.LoadSites(cfg.SitesFile)
			if err != nil {
				return err
			}
			clients, err := app.NewClients(cfg, logger)
			if err != nil {
				return err
			}

			ctx := commandContext(cmd)
			out := cmd.OutOrStdout()
			if rivers {
				results := clients.Rivers.FetchSites(ctx, sites.SiteIDs())
				fmt.Fprintln(out, titleStyle.Render("Rivers"))
				fmt.Fprintln(out, riversTable(sites, results).Render())
			}
			if weather {
				locs := poller.Locations(sites)
				results := clients.Forecast.FetchLocations(ctx, locs)
				fmt.Fprintln(out, titleStyle.Render("Weather"))
				fmt.Fprintln(out, weatherTable(locs, results).Render())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&rivers, "rivers", false, "fetch only river gauges")
	cmd.Flags().BoolVar(&weather, "weather", false, "fetch only weather forecasts")
	return cmd
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func riversTable(sites config.Sites, results map[string]river.StationReading) *table.Table {
	t := newTable("River", "Region", "Flow (cfs)", "24h", "Temp (°F)", "Source")
	for _, r := range riverRows(sites, results) {
		t.Row(r...)
	}
	return t
}

func riverRows(sites config.Sites, results map[string]river.StationReading) [][]string {
	rows := make([][]string, 0, len(sites.Rivers))
	for _, rv := range sites.Rivers {
		reading, ok := results[rv.SiteID]
		if !ok {
			rows = append(rows, []string{rv.Name, sites.RegionOf(rv.Name), "--", "", "--", "unavailable"})
			continue
		}
		source := "live"
		if reading.Cached {
			source = "cached"
		}
		if reading.Error != nil {
			source = *reading.Error
		}
		rows = append(rows, []string{
			rv.Name,
			sites.RegionOf(rv.Name),
			formatValue(reading.FlowCFS, 0),
			formatDelta(reading.FlowChange(), 0),
			formatValue(reading.TempF, 1),
			source,
		})
	}
	return rows
}

func weatherTable(locs []forecast.Location, results map[string]forecast.Bundle) *table.Table {
	t := newTable("Location", "Now", "Conditions", "Humidity", "Wind", "Next")
	for _, r := range weatherRows(locs, results) {
		t.Row(r...)
	}
	return t
}

func weatherRows(locs []forecast.Location, results map[string]forecast.Bundle) [][]string {
	rows := make([][]string, 0, len(locs))
	for _, loc := range locs {
		b, ok := results[loc.Label()]
		if !ok {
			rows = append(rows, []string{loc.Label(), "--", "unavailable", "", "", ""})
			continue
		}
		cur := b.Current
		next := ""
		if len(b.Periods) > 0 {
			p := b.Periods[0]
			next = fmt.Sprintf("%s %s %s", p.Name, p.Icon.Glyph(), strconv.FormatFloat(p.Temperature, 'f', 0, 64)+"°F")
		}
		rows = append(rows, []string{
			loc.Label(),
			cur.Icon.Glyph() + " " + strconv.FormatFloat(cur.Temperature, 'f', 0, 64) + "°F",
			cur.Conditions,
			cur.Humidity.String(),
			cur.WindDirection + " " + cur.WindSpeed,
			next,
		})
	}
	return rows
}

func formatValue(v *float64, prec int) string {
	if v == nil {
		return "--"
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}

func formatDelta(v *float64, prec int) string {
	if v == nil {
		return ""
	}
	s := strconv.FormatFloat(*v, 'f', prec, 64)
	if *v > 0 {
		return "+" + s
	}
	return s
}
