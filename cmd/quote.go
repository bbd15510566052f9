package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/luminous-energy/plant-cli/internal/model"
)

var (
	quoteCapacity float64
	quoteProject  string
	quoteSave     bool
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Price a turn-key installation",
	Long: `Prices an installation from the rate card, either for a raw capacity or
for an existing project (using its registered capacity).

Examples:
  plant-cli quote --capacity 499.5
  plant-cli quote --project 6f1c... --save`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		calc, err := loadCalculator()
		if err != nil {
			return err
		}

		var q *model.Quote
		switch {
		case quoteProject != "":
			if err := cfg.Validate("quote"); err != nil {
				return err
			}
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			p, err := st.GetProject(ctx, quoteProject)
			if err != nil {
				return eris.Wrapf(err, "load project %s", quoteProject)
			}
			q, err = calc.For(p.ID, p.CapacityKW)
			if err != nil {
				return err
			}
			if quoteSave {
				if q, err = st.SaveQuote(ctx, q); err != nil {
					return eris.Wrap(err, "save quote")
				}
			}
		case quoteCapacity > 0:
			if q, err = calc.For("", quoteCapacity); err != nil {
				return err
			}
		default:
			return eris.New("either --project or --capacity is required")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(q)
	},
}

func init() {
	quoteCmd.Flags().Float64Var(&quoteCapacity, "capacity", 0, "plant capacity in kW")
	quoteCmd.Flags().StringVar(&quoteProject, "project", "", "project ID to price")
	quoteCmd.Flags().BoolVar(&quoteSave, "save", false, "persist the quote against the project")
	rootCmd.AddCommand(quoteCmd)
}
