package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/spherical-ai/ev-assistant/internal/insights"
)

// newStatsCmd creates the stats subcommand.
func newStatsCmd() *cobra.Command {
	var points bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show dataset dashboard metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			summary := app.Summary(points)
			if outputJSON {
				return writeJSON(cmd.OutOrStdout(), summary)
			}
			renderStats(newUI(cmd), summary)
			return nil
		},
	}

	cmd.Flags().BoolVar(&points, "points", false, "include battery vs range points (JSON output only)")

	return cmd
}

func renderStats(ui *UI, s insights.Summary) {
	model := "unavailable"
	if s.ModelAvailable {
		model = "ready"
	}

	ui.Section("Overview")
	ui.KeyValue("Avg Battery", s.BatteryLabel())
	ui.KeyValue("Avg Range", s.RangeLabel())
	ui.KeyValue("Total Models", s.TotalModels)
	ui.KeyValue("Price Model", model)

	if len(s.TopBrands) > 0 {
		ui.Section("Top Brands")
		rows := make([][]string, len(s.TopBrands))
		for i, b := range s.TopBrands {
			rows[i] = []string{b.Brand, strconv.Itoa(b.Count)}
		}
		ui.Table([]string{"BRAND", "MODELS"}, rows)
	}

	if len(s.BrandAvgRange) > 0 {
		ui.Section("Brand-wise Average Range")
		rows := make([][]string, len(s.BrandAvgRange))
		for i, b := range s.BrandAvgRange {
			rows[i] = []string{b.Brand, fmt.Sprintf("%.0f km", b.AvgRangeKm)}
		}
		ui.Table([]string{"BRAND", "AVG RANGE"}, rows)
	}

	if len(s.BatteryHistogram) > 0 {
		ui.Section("Battery Distribution")
		rows := make([][]string, len(s.BatteryHistogram))
		for i, b := range s.BatteryHistogram {
			rows[i] = []string{fmt.Sprintf("%.1f-%.1f kWh", b.Low, b.High), strconv.Itoa(b.Count)}
		}
		ui.Table([]string{"BATTERY", "MODELS"}, rows)
	}
}
