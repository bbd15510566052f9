package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminous-energy/plant-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func sampleProject() *model.Project {
	return &model.Project{
		Name:       "雲林斗六一期",
		Code:       "YL-001",
		City:       "雲林縣",
		CapacityKW: 499.5,
		GridMode:   "全額躉售",
	}
}

// --- Projects ---

func TestSQLite_Project_CreateAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := st.CreateProject(ctx, sampleProject())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, model.ProjectStatusDraft, created.Status)
	assert.Equal(t, model.StagePlanning, created.Stage)

	got, err := st.GetProject(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "雲林斗六一期", got.Name)
	assert.Equal(t, "YL-001", got.Code)
	assert.InDelta(t, 499.5, got.CapacityKW, 0.001)
	assert.Equal(t, "全額躉售", got.GridMode)
}

func TestSQLite_Project_GetByCode(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := st.CreateProject(ctx, sampleProject())
	require.NoError(t, err)

	got, err := st.GetProjectByCode(ctx, "YL-001")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestSQLite_Project_DuplicateCodeRejected(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.CreateProject(ctx, sampleProject())
	require.NoError(t, err)

	_, err = st.CreateProject(ctx, sampleProject())
	assert.Error(t, err)
}

func TestSQLite_Project_EmptyCodeNotUnique(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	p1 := sampleProject()
	p1.Code = ""
	p2 := sampleProject()
	p2.Code = ""

	_, err := st.CreateProject(ctx, p1)
	require.NoError(t, err)
	_, err = st.CreateProject(ctx, p2)
	assert.NoError(t, err)
}

func TestSQLite_Project_GetMissing(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetProject(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_Project_Update(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := st.CreateProject(ctx, sampleProject())
	require.NoError(t, err)

	created.Status = model.ProjectStatusActive
	created.PVID = "120114PV0442"
	created.MeterNo = "07-34-5678-90-1"
	require.NoError(t, st.UpdateProject(ctx, created))

	got, err := st.GetProject(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProjectStatusActive, got.Status)
	assert.Equal(t, "120114PV0442", got.PVID)
	assert.Equal(t, "07-34-5678-90-1", got.MeterNo)
}

func TestSQLite_Project_UpdateStage(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := st.CreateProject(ctx, sampleProject())
	require.NoError(t, err)

	require.NoError(t, st.UpdateProjectStage(ctx, created.ID, model.StageGridConnection))

	got, err := st.GetProject(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StageGridConnection, got.Stage)

	// Stage filter sees the column too, not just the JSON blob.
	list, err := st.ListProjects(ctx, ProjectFilter{Stage: model.StageGridConnection})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSQLite_Project_ListFilters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a := sampleProject()
	b := sampleProject()
	b.Code = "TN-002"
	b.City = "台南市"

	_, err := st.CreateProject(ctx, a)
	require.NoError(t, err)
	created, err := st.CreateProject(ctx, b)
	require.NoError(t, err)
	require.NoError(t, st.UpdateProjectStage(ctx, created.ID, model.StageConstruction))

	all, err := st.ListProjects(ctx, ProjectFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byCity, err := st.ListProjects(ctx, ProjectFilter{City: "台南市"})
	require.NoError(t, err)
	require.Len(t, byCity, 1)
	assert.Equal(t, "TN-002", byCity[0].Code)

	byStage, err := st.ListProjects(ctx, ProjectFilter{Stage: model.StageConstruction})
	require.NoError(t, err)
	assert.Len(t, byStage, 1)

	limited, err := st.ListProjects(ctx, ProjectFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLite_Project_DeleteCascadesDocuments(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := st.CreateProject(ctx, sampleProject())
	require.NoError(t, err)

	_, err = st.CreateDocument(ctx, &model.Document{
		ProjectID: created.ID,
		Kind:      model.DocKindAcceptanceLetter,
		Title:     "同意備案函",
		MimeType:  "application/pdf",
	})
	require.NoError(t, err)

	require.NoError(t, st.DeleteProject(ctx, created.ID))

	docs, err := st.ListDocuments(ctx, DocumentFilter{ProjectID: created.ID})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

// --- Investors and shares ---

func TestSQLite_Shares_SetAndList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	p, err := st.CreateProject(ctx, sampleProject())
	require.NoError(t, err)
	inv1, err := st.CreateInvestor(ctx, &model.Investor{Name: "陽光投資"})
	require.NoError(t, err)
	inv2, err := st.CreateInvestor(ctx, &model.Investor{Name: "綠能基金"})
	require.NoError(t, err)

	err = st.SetProjectShares(ctx, p.ID, []model.ProjectShare{
		{InvestorID: inv1.ID, SharePct: 60},
		{InvestorID: inv2.ID, SharePct: 40},
	})
	require.NoError(t, err)

	shares, err := st.ListProjectShares(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, shares, 2)

	var total float64
	for _, sh := range shares {
		total += sh.SharePct
	}
	assert.InDelta(t, 100, total, 0.001)
}

func TestSQLite_Shares_Replace(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	p, err := st.CreateProject(ctx, sampleProject())
	require.NoError(t, err)
	inv, err := st.CreateInvestor(ctx, &model.Investor{Name: "陽光投資"})
	require.NoError(t, err)

	require.NoError(t, st.SetProjectShares(ctx, p.ID, []model.ProjectShare{{InvestorID: inv.ID, SharePct: 100}}))
	require.NoError(t, st.SetProjectShares(ctx, p.ID, []model.ProjectShare{{InvestorID: inv.ID, SharePct: 75}}))

	shares, err := st.ListProjectShares(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, shares, 1)
	assert.InDelta(t, 75, shares[0].SharePct, 0.001)
}

func TestSQLite_Shares_OverHundredRejected(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	p, err := st.CreateProject(ctx, sampleProject())
	require.NoError(t, err)
	inv, err := st.CreateInvestor(ctx, &model.Investor{Name: "陽光投資"})
	require.NoError(t, err)

	err = st.SetProjectShares(ctx, p.ID, []model.ProjectShare{{InvestorID: inv.ID, SharePct: 120}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to")
}

func TestSQLite_ListInvestors_Sorted(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.CreateInvestor(ctx, &model.Investor{Name: "b-fund"})
	require.NoError(t, err)
	_, err = st.CreateInvestor(ctx, &model.Investor{Name: "a-fund"})
	require.NoError(t, err)

	investors, err := st.ListInvestors(ctx)
	require.NoError(t, err)
	require.Len(t, investors, 2)
	assert.Equal(t, "a-fund", investors[0].Name)
}

// --- Documents ---

func TestSQLite_Document_ExtractionRoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	p, err := st.CreateProject(ctx, sampleProject())
	require.NoError(t, err)

	doc, err := st.CreateDocument(ctx, &model.Document{
		ProjectID: p.ID,
		Kind:      model.DocKindReviewLetter,
		Title:     "併聯審查意見書",
		MimeType:  "application/pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, model.DocStatusUploaded, doc.Status)

	dates := []model.ExtractedDate{{
		Kind:       model.DateKindIssue,
		Date:       "2025-03-10",
		Confidence: 0.95,
		Provenance: "claude",
	}}
	fields := &model.ExtractedFields{PVID: "120114PV0442"}
	fields.SetProvenance("pv_id", "claude")

	require.NoError(t, st.SaveExtraction(ctx, doc.ID, dates, fields))

	got, err := st.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocStatusExtracted, got.Status)
	require.Len(t, got.Dates, 1)
	assert.Equal(t, "2025-03-10", got.Dates[0].Date)
	require.NotNil(t, got.Fields)
	assert.Equal(t, "120114PV0442", got.Fields.PVID)
	assert.Equal(t, "claude", got.Fields.Provenance["pv_id"])
}

func TestSQLite_Document_ListByKindAndStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	p, err := st.CreateProject(ctx, sampleProject())
	require.NoError(t, err)

	d1, err := st.CreateDocument(ctx, &model.Document{ProjectID: p.ID, Kind: model.DocKindPPA, Title: "購售電合約"})
	require.NoError(t, err)
	_, err = st.CreateDocument(ctx, &model.Document{ProjectID: p.ID, Kind: model.DocKindEnergyPermit, Title: "設備登記"})
	require.NoError(t, err)

	require.NoError(t, st.UpdateDocumentStatus(ctx, d1.ID, model.DocStatusVerified))

	got, err := st.GetDocument(ctx, d1.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocStatusVerified, got.Status)

	byKind, err := st.ListDocuments(ctx, DocumentFilter{Kind: model.DocKindPPA})
	require.NoError(t, err)
	assert.Len(t, byKind, 1)

	verified, err := st.ListDocuments(ctx, DocumentFilter{Status: model.DocStatusVerified})
	require.NoError(t, err)
	require.Len(t, verified, 1)
	assert.Equal(t, d1.ID, verified[0].ID)
}

func TestSQLite_Document_SaveExtractionMissing(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.SaveExtraction(context.Background(), "missing", nil, &model.ExtractedFields{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

// --- Quotes ---

func TestSQLite_Quote_SaveAndList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	p, err := st.CreateProject(ctx, sampleProject())
	require.NoError(t, err)

	q := &model.Quote{
		ProjectID:  p.ID,
		CapacityKW: 499.5,
		Items:      []model.QuoteItem{{Name: "太陽能模組", Unit: "kW", Quantity: 499.5, UnitPrice: 23000, Amount: 11488500}},
		Subtotal:   11488500,
		Tax:        574425,
		Total:      12062925,
		Currency:   "TWD",
	}
	saved, err := st.SaveQuote(ctx, q)
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)

	quotes, err := st.ListQuotes(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.InDelta(t, 12062925, quotes[0].Total, 0.001)
	require.Len(t, quotes[0].Items, 1)
	assert.Equal(t, "太陽能模組", quotes[0].Items[0].Name)
}
