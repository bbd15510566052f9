// Package importer loads project rows from CSV and XLSX spreadsheets into the store.
package importer

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/width"
)

// Row is one spreadsheet data row with its 1-based line number.
type Row struct {
	Line   int
	Fields []string
}

// StreamCSV reads a CSV spreadsheet and sends data rows to a channel. The
// header row is delivered on the returned header channel first. Both row and
// error channels are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader) (<-chan []string, <-chan Row, <-chan error) {
	headerCh := make(chan []string, 1)
	rowCh := make(chan Row, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(headerCh)
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		reader.FieldsPerRecord = -1 // allow variable fields
		reader.LazyQuotes = true

		line := 0
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "importer: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "importer: read csv row")
				return
			}
			line++

			for i, field := range record {
				record[i] = strings.TrimSpace(field)
			}

			if line == 1 {
				headerCh <- record
				continue
			}

			select {
			case rowCh <- Row{Line: line, Fields: record}:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "importer: context cancelled")
				return
			}
		}
	}()

	return headerCh, rowCh, errCh
}

// ReadXLSX reads the given sheet of an XLSX workbook and returns the header
// row plus all data rows. Sheet index 0 is used when name is empty.
func ReadXLSX(path, sheetName string) ([]string, []Row, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "importer: open xlsx")
	}

	var sheet *xlsx.Sheet
	if sheetName != "" {
		s, ok := f.Sheet[sheetName]
		if !ok {
			return nil, nil, eris.Errorf("importer: sheet %q not found", sheetName)
		}
		sheet = s
	} else {
		if len(f.Sheets) == 0 {
			return nil, nil, eris.New("importer: workbook has no sheets")
		}
		sheet = f.Sheets[0]
	}

	var header []string
	var rows []Row
	for i, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = strings.TrimSpace(cell.String())
		}
		if i == 0 {
			header = cells
			continue
		}
		rows = append(rows, Row{Line: i + 1, Fields: cells})
	}

	return header, rows, nil
}

// headerAliases maps normalized header cells to canonical column keys.
// Spreadsheets from site surveyors arrive with Chinese headers; exported
// files round-trip with ASCII ones.
var headerAliases = map[string]string{
	"name": "name", "案場名稱": "name", "電廠名稱": "name",
	"code": "code", "案場編號": "code", "編號": "code",
	"city": "city", "縣市": "city",
	"address": "address", "地址": "address",
	"capacity_kw": "capacity_kw", "設置容量": "capacity_kw", "容量(kw)": "capacity_kw",
	"panel_watt": "panel_watt", "模組瓦數": "panel_watt",
	"panel_count": "panel_count", "模組片數": "panel_count",
	"module_model": "module_model", "模組型號": "module_model",
	"inverter_model": "inverter_model", "變流器型號": "inverter_model",
	"grid_mode": "grid_mode", "躉售方式": "grid_mode",
	"fit_rate": "fit_rate", "躉購費率": "fit_rate",
	"pv_id": "pv_id", "設備登記編號": "pv_id",
	"energy_permit_id": "energy_permit_id", "同意備案編號": "energy_permit_id",
	"meter_no": "meter_no", "電號": "meter_no",
	"submitted_at": "submitted_at", "申請日期": "submitted_at",
	"permit_issued_at": "permit_issued_at", "核發日期": "permit_issued_at",
	"grid_connected_at": "grid_connected_at", "併聯日期": "grid_connected_at",
}

// mapHeader resolves a header row to column-index -> canonical key.
// Unrecognized columns are ignored.
func mapHeader(header []string) map[int]string {
	cols := make(map[int]string, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(width.Fold.String(h)))
		if canonical, ok := headerAliases[key]; ok {
			cols[i] = canonical
		}
	}
	return cols
}
