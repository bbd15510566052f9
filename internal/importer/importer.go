package importer

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/luminous-energy/plant-cli/internal/db"
	"github.com/luminous-energy/plant-cli/internal/extract"
	"github.com/luminous-energy/plant-cli/internal/model"
	"github.com/luminous-energy/plant-cli/internal/store"
)

// RowError describes why a single spreadsheet row was rejected.
type RowError struct {
	Line    int    `json:"line"`
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
}

// Report summarizes an import run.
type Report struct {
	Total   int        `json:"total"`
	Valid   int        `json:"valid"`
	Created int        `json:"created"`
	Updated int        `json:"updated"`
	Errors  []RowError `json:"errors,omitempty"`
	Preview bool       `json:"preview"`
}

// Importer turns spreadsheet rows into project records.
type Importer struct {
	store store.Store
}

// New creates an Importer writing through the given store.
func New(st store.Store) *Importer {
	return &Importer{store: st}
}

// Parse maps header + rows onto projects, collecting per-row errors.
// Rows that fail validation are dropped; duplicated codes within the file
// keep the first occurrence.
func Parse(header []string, rows []Row) ([]model.Project, []RowError) {
	cols := mapHeader(header)

	var projects []model.Project
	var rowErrs []RowError
	seenCodes := make(map[string]int)

	for _, row := range rows {
		if blankRow(row.Fields) {
			continue
		}

		p, errs := parseRow(cols, row)
		if len(errs) > 0 {
			rowErrs = append(rowErrs, errs...)
			continue
		}

		if p.Code != "" {
			if firstLine, dup := seenCodes[p.Code]; dup {
				rowErrs = append(rowErrs, RowError{
					Line:    row.Line,
					Column:  "code",
					Message: "duplicate code " + p.Code + " (first seen on line " + strconv.Itoa(firstLine) + ")",
				})
				continue
			}
			seenCodes[p.Code] = row.Line
		}

		projects = append(projects, p)
	}

	return projects, rowErrs
}

func parseRow(cols map[int]string, row Row) (model.Project, []RowError) {
	var p model.Project
	var errs []RowError

	fail := func(column, msg string) {
		errs = append(errs, RowError{Line: row.Line, Column: column, Message: msg})
	}

	for i, key := range cols {
		if i >= len(row.Fields) {
			continue
		}
		val := row.Fields[i]
		if val == "" {
			continue
		}

		switch key {
		case "name":
			p.Name = val
		case "code":
			p.Code = val
		case "city":
			p.City = val
		case "address":
			p.Address = val
		case "capacity_kw":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil || f < 0 {
				fail(key, "invalid capacity: "+val)
				continue
			}
			p.CapacityKW = f
		case "panel_watt":
			n, err := strconv.Atoi(val)
			if err != nil || n < 0 {
				fail(key, "invalid panel wattage: "+val)
				continue
			}
			p.PanelWatt = n
		case "panel_count":
			n, err := strconv.Atoi(val)
			if err != nil || n < 0 {
				fail(key, "invalid panel count: "+val)
				continue
			}
			p.PanelCount = n
		case "module_model":
			p.ModuleModel = val
		case "inverter_model":
			p.InverterModel = val
		case "grid_mode":
			p.GridMode = val
		case "fit_rate":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil || f < 0 {
				fail(key, "invalid feed-in tariff: "+val)
				continue
			}
			p.FiTRate = f
		case "pv_id":
			p.PVID = val
		case "energy_permit_id":
			p.EnergyPermitID = val
		case "meter_no":
			p.MeterNo = val
		case "submitted_at", "permit_issued_at", "grid_connected_at":
			ts, ok := parseDateCell(val)
			if !ok {
				fail(key, "unrecognized date: "+val)
				continue
			}
			switch key {
			case "submitted_at":
				p.SubmittedAt = &ts
			case "permit_issued_at":
				p.PermitIssuedAt = &ts
			case "grid_connected_at":
				p.GridConnectedAt = &ts
			}
		}
	}

	if p.Name == "" {
		fail("name", "name is required")
	}

	return p, errs
}

// parseDateCell accepts the same date shapes the document extractor does,
// including ROC calendar years.
func parseDateCell(val string) (time.Time, bool) {
	iso, ok := extract.NormalizeDate(val)
	if !ok {
		return time.Time{}, false
	}
	ts, err := time.ParseInLocation("2006-01-02", iso, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func blankRow(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// Run validates rows and, unless preview is set, writes them through the
// store. Existing projects (matched by code) are updated, new ones created.
func (im *Importer) Run(ctx context.Context, header []string, rows []Row, preview bool) (*Report, error) {
	projects, rowErrs := Parse(header, rows)

	report := &Report{
		Total:   len(rows),
		Valid:   len(projects),
		Errors:  rowErrs,
		Preview: preview,
	}
	if preview {
		return report, nil
	}

	for i := range projects {
		p := &projects[i]

		var existing *model.Project
		if p.Code != "" {
			found, err := im.store.GetProjectByCode(ctx, p.Code)
			switch {
			case err == nil:
				existing = found
			case errors.Is(err, store.ErrNotFound):
				// new project
			default:
				return report, eris.Wrapf(err, "importer: lookup code %s", p.Code)
			}
		}

		if existing != nil {
			merged := mergeProject(existing, p)
			if err := im.store.UpdateProject(ctx, merged); err != nil {
				return report, eris.Wrapf(err, "importer: update project %s", p.Code)
			}
			report.Updated++
			continue
		}

		if _, err := im.store.CreateProject(ctx, p); err != nil {
			return report, eris.Wrapf(err, "importer: create project %s", p.Name)
		}
		report.Created++
	}

	zap.L().Info("import finished",
		zap.Int("total", report.Total),
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("rejected", len(report.Errors)),
	)
	return report, nil
}

// mergeProject overlays non-zero incoming values onto the stored project.
func mergeProject(existing, in *model.Project) *model.Project {
	out := *existing
	out.Name = in.Name
	if in.City != "" {
		out.City = in.City
	}
	if in.Address != "" {
		out.Address = in.Address
	}
	if in.CapacityKW > 0 {
		out.CapacityKW = in.CapacityKW
	}
	if in.PanelWatt > 0 {
		out.PanelWatt = in.PanelWatt
	}
	if in.PanelCount > 0 {
		out.PanelCount = in.PanelCount
	}
	if in.ModuleModel != "" {
		out.ModuleModel = in.ModuleModel
	}
	if in.InverterModel != "" {
		out.InverterModel = in.InverterModel
	}
	if in.GridMode != "" {
		out.GridMode = in.GridMode
	}
	if in.FiTRate > 0 {
		out.FiTRate = in.FiTRate
	}
	if in.PVID != "" {
		out.PVID = in.PVID
	}
	if in.EnergyPermitID != "" {
		out.EnergyPermitID = in.EnergyPermitID
	}
	if in.MeterNo != "" {
		out.MeterNo = in.MeterNo
	}
	if in.SubmittedAt != nil {
		out.SubmittedAt = in.SubmittedAt
	}
	if in.PermitIssuedAt != nil {
		out.PermitIssuedAt = in.PermitIssuedAt
	}
	if in.GridConnectedAt != nil {
		out.GridConnectedAt = in.GridConnectedAt
	}
	return &out
}

// projectColumns is the column layout used by BulkCopy.
var projectColumns = []string{
	"id", "code", "name", "status", "stage", "city", "capacity_kw", "data", "created_at", "updated_at",
}

// BulkCopy writes parsed projects straight through the COPY protocol.
// Rows carrying a code are merged on it via a temp-table upsert; code-less
// rows have no conflict key and take the plain COPY fast path. Postgres
// only; used for large spreadsheets where per-row writes are too slow.
func BulkCopy(ctx context.Context, pool db.Pool, projects []model.Project) (int64, error) {
	now := time.Now().UTC()
	coded := make([][]any, 0, len(projects))
	var uncoded [][]any

	for i := range projects {
		p := projects[i]
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		if p.Status == "" {
			p.Status = model.ProjectStatusDraft
		}
		if p.Stage == "" {
			p.Stage = model.StagePlanning
		}
		p.CreatedAt = now
		p.UpdatedAt = now

		data, err := json.Marshal(&p)
		if err != nil {
			return 0, eris.Wrapf(err, "importer: marshal project %s", p.Name)
		}
		row := []any{
			p.ID, p.Code, p.Name, string(p.Status), string(p.Stage), p.City, p.CapacityKW, data, now, now,
		}
		if p.Code == "" {
			uncoded = append(uncoded, row)
		} else {
			coded = append(coded, row)
		}
	}

	inserted, err := db.CopyFrom(ctx, pool, "projects", projectColumns, uncoded)
	if err != nil {
		return 0, err
	}

	upserted, err := db.BulkUpsert(ctx, pool, db.UpsertConfig{
		Table:        "projects",
		Columns:      projectColumns,
		ConflictKeys: []string{"code"},
		UpdateCols:   []string{"name", "status", "stage", "city", "capacity_kw", "data", "updated_at"},
	}, coded)
	if err != nil {
		return inserted, err
	}

	return inserted + upserted, nil
}
