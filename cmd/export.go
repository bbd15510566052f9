package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luminous-energy/plant-cli/internal/export"
	"github.com/luminous-energy/plant-cli/internal/model"
	"github.com/luminous-energy/plant-cli/internal/store"
)

var (
	exportOutput string
	exportStatus string
	exportStage  string
	exportCity   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export projects to a CSV or XLSX spreadsheet",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("import"); err != nil { // same needs: a reachable store
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		projects, err := st.ListProjects(ctx, store.ProjectFilter{
			Status: model.ProjectStatus(exportStatus),
			Stage:  model.Stage(exportStage),
			City:   exportCity,
		})
		if err != nil {
			return eris.Wrap(err, "list projects")
		}

		switch strings.ToLower(filepath.Ext(exportOutput)) {
		case ".csv":
			f, err := os.Create(exportOutput)
			if err != nil {
				return eris.Wrapf(err, "create %s", exportOutput)
			}
			defer f.Close() //nolint:errcheck
			if err := export.WriteCSV(f, projects); err != nil {
				return err
			}
		case ".xlsx":
			if err := export.WriteXLSX(exportOutput, projects); err != nil {
				return err
			}
		default:
			return eris.Errorf("unsupported output %q (want .csv or .xlsx)", exportOutput)
		}

		zap.L().Info("export complete",
			zap.Int("projects", len(projects)),
			zap.String("output", exportOutput),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "output path, .csv or .xlsx (required)")
	exportCmd.Flags().StringVar(&exportStatus, "status", "", "filter by project status")
	exportCmd.Flags().StringVar(&exportStage, "stage", "", "filter by lifecycle stage")
	exportCmd.Flags().StringVar(&exportCity, "city", "", "filter by city")
	_ = exportCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(exportCmd)
}
