// Package export writes project lists to CSV and XLSX spreadsheets.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/luminous-energy/plant-cli/internal/model"
)

// Header is the fixed column layout. It matches the ASCII header names the
// importer accepts, so an exported file can be re-imported unchanged.
var Header = []string{
	"code", "name", "status", "stage", "city", "address",
	"capacity_kw", "panel_watt", "panel_count", "module_model", "inverter_model",
	"grid_mode", "fit_rate", "pv_id", "energy_permit_id", "meter_no",
	"submitted_at", "permit_issued_at", "grid_connected_at",
}

func projectRow(p *model.Project) []string {
	return []string{
		p.Code,
		p.Name,
		string(p.Status),
		string(p.Stage),
		p.City,
		p.Address,
		formatFloat(p.CapacityKW),
		formatInt(p.PanelWatt),
		formatInt(p.PanelCount),
		p.ModuleModel,
		p.InverterModel,
		p.GridMode,
		formatFloat(p.FiTRate),
		p.PVID,
		p.EnergyPermitID,
		p.MeterNo,
		formatDate(p.SubmittedAt),
		formatDate(p.PermitIssuedAt),
		formatDate(p.GridConnectedAt),
	}
}

// WriteCSV writes projects as CSV with the fixed header row.
func WriteCSV(w io.Writer, projects []model.Project) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for i := range projects {
		if err := cw.Write(projectRow(&projects[i])); err != nil {
			return eris.Wrapf(err, "export: write csv row %d", i+2)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// WriteXLSX writes projects to an XLSX workbook at the given path.
func WriteXLSX(path string, projects []model.Project) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("projects")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	headerRow := sheet.AddRow()
	for _, h := range Header {
		headerRow.AddCell().SetString(h)
	}

	for i := range projects {
		row := sheet.AddRow()
		for _, cell := range projectRow(&projects[i]) {
			row.AddCell().SetString(cell)
		}
	}

	return eris.Wrap(f.Save(path), "export: save xlsx")
}

func formatFloat(f float64) string {
	if f == 0 {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatInt(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
