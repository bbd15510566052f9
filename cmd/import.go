package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luminous-energy/plant-cli/internal/importer"
	"github.com/luminous-energy/plant-cli/internal/store"
)

var (
	importFile    string
	importSheet   string
	importPreview bool
	importBulk    bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import projects from a CSV or XLSX spreadsheet",
	Long: `Reads a project spreadsheet and creates or updates records by project code.
Chinese and ASCII column headers are both recognized; dates may use the
ROC calendar (e.g. 114年6月30日) or ISO format.

Examples:
  # Validate without writing
  plant-cli import --file projects.xlsx --preview

  # Commit
  plant-cli import --file projects.csv`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("import"); err != nil {
			return err
		}

		var header []string
		var rows []importer.Row

		switch strings.ToLower(filepath.Ext(importFile)) {
		case ".csv":
			f, err := os.Open(importFile)
			if err != nil {
				return eris.Wrapf(err, "open %s", importFile)
			}
			defer f.Close() //nolint:errcheck

			headerCh, rowCh, errCh := importer.StreamCSV(ctx, f)
			header = <-headerCh
			for row := range rowCh {
				rows = append(rows, row)
			}
			if err := <-errCh; err != nil {
				return err
			}
		case ".xlsx":
			var err error
			header, rows, err = importer.ReadXLSX(importFile, importSheet)
			if err != nil {
				return err
			}
		default:
			return eris.Errorf("unsupported spreadsheet %q (want .csv or .xlsx)", importFile)
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if importBulk && !importPreview {
			return runBulkImport(ctx, st, header, rows)
		}

		report, err := importer.New(st).Run(ctx, header, rows, importPreview)
		if err != nil {
			return eris.Wrap(err, "import")
		}

		for _, rowErr := range report.Errors {
			zap.L().Warn("row rejected",
				zap.Int("line", rowErr.Line),
				zap.String("column", rowErr.Column),
				zap.String("reason", rowErr.Message),
			)
		}
		zap.L().Info("import report",
			zap.Int("total", report.Total),
			zap.Int("valid", report.Valid),
			zap.Int("created", report.Created),
			zap.Int("updated", report.Updated),
			zap.Int("rejected", len(report.Errors)),
			zap.Bool("preview", report.Preview),
		)
		return nil
	},
}

// runBulkImport pushes valid rows through the COPY-based upsert path.
func runBulkImport(ctx context.Context, st store.Store, header []string, rows []importer.Row) error {
	pg, ok := st.(*store.PostgresStore)
	if !ok {
		return eris.New("--bulk requires the postgres store driver")
	}

	projects, rowErrs := importer.Parse(header, rows)
	for _, rowErr := range rowErrs {
		zap.L().Warn("row rejected",
			zap.Int("line", rowErr.Line),
			zap.String("column", rowErr.Column),
			zap.String("reason", rowErr.Message),
		)
	}

	copied, err := importer.BulkCopy(ctx, pg.Pool(), projects)
	if err != nil {
		return eris.Wrap(err, "bulk import")
	}

	zap.L().Info("bulk import complete",
		zap.Int64("copied", copied),
		zap.Int("rejected", len(rowErrs)),
	)
	return nil
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "path to CSV or XLSX spreadsheet (required)")
	importCmd.Flags().StringVar(&importSheet, "sheet", "", "XLSX sheet name (default: first sheet)")
	importCmd.Flags().BoolVar(&importPreview, "preview", false, "validate rows without writing")
	importCmd.Flags().BoolVar(&importBulk, "bulk", false, "upsert via the COPY protocol (postgres only, large files)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
