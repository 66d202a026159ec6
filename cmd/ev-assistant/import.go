package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spherical-ai/ev-assistant/internal/dataset"
	"github.com/spherical-ai/ev-assistant/internal/observability"

	_ "github.com/mattn/go-sqlite3"
)

// newImportCmd creates the import subcommand.
func newImportCmd() *cobra.Command {
	var (
		csvPath    string
		sqlitePath string
		table      string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a CSV dataset into SQLite",
		Long: `Import validates and normalizes a CSV dataset and writes it into a SQLite
table, replacing any existing table of the same name. Point the dataset
config at the database with source: sqlite to serve from it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ui := newUI(cmd)

			n, err := importCSV(cmd.Context(), ui, logger, csvPath, sqlitePath, table)
			if err != nil {
				ui.Error("Import failed: %v", err)
				return err
			}

			if outputJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"rows":   n,
					"table":  table,
					"sqlite": sqlitePath,
				})
			}
			ui.Success("Imported %d rows into %s (table %s)", n, sqlitePath, table)
			return nil
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "CSV dataset to import (required)")
	cmd.Flags().StringVar(&sqlitePath, "sqlite", "", "SQLite database file to write (required)")
	cmd.Flags().StringVar(&table, "table", "vehicles", "destination table name")
	cmd.MarkFlagRequired("csv")
	cmd.MarkFlagRequired("sqlite")

	return cmd
}

func importCSV(ctx context.Context, ui *UI, logger *observability.Logger, csvPath, sqlitePath, table string) (int, error) {
	t, err := dataset.NewLoader(dataset.CSVSource{Path: csvPath}, logger).Load(ctx)
	if err != nil {
		return 0, err
	}

	db, err := sql.Open("sqlite3", sqlitePath)
	if err != nil {
		return 0, fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()

	bar := ui.NewProgressBar(int64(t.Len()), "Importing")
	defer bar.Finish()

	if err := dataset.WriteSQL(ctx, db, dataset.DialectSQLite, table, t, func() { _ = bar.Add(1) }); err != nil {
		return 0, err
	}
	return t.Len(), nil
}
