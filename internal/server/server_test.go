package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminous-energy/plant-cli/internal/extract"
	"github.com/luminous-energy/plant-cli/internal/importer"
	"github.com/luminous-energy/plant-cli/internal/milestone"
	"github.com/luminous-energy/plant-cli/internal/model"
	"github.com/luminous-energy/plant-cli/internal/quote"
	"github.com/luminous-energy/plant-cli/internal/store"
)

const testSecret = "test-secret"

type stubExtractor struct {
	result *extract.Result
	err    error
}

func (s *stubExtractor) Extract(_ context.Context, _ []byte, _, _ string) (*extract.Result, error) {
	return s.result, s.err
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newTestServer(t *testing.T, opts ...Option) (*Server, store.Store, string) {
	t.Helper()
	st := newTestStore(t)
	opts = append(opts, WithJWTSecret(testSecret))
	srv := New(st, opts...)

	token, err := NewToken(testSecret, "tester", time.Hour)
	require.NoError(t, err)
	return srv, st, token
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateProject_RequiresAuth(t *testing.T) {
	srv, _, token := newTestServer(t)
	body := model.Project{Name: "斗六一期"}

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/projects", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/projects", "bogus-token", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/projects", token, body)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestProjectCRUD(t *testing.T) {
	srv, _, token := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/projects", token, model.Project{
		Name: "斗六一期", Code: "YL-001", City: "雲林縣", CapacityKW: 499.5,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[model.Project](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, model.StagePlanning, created.Stage)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/projects/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[model.Project](t, rec)
	assert.Equal(t, "YL-001", got.Code)

	created.CapacityKW = 520
	rec = doJSON(t, srv, http.MethodPut, "/api/v1/projects/"+created.ID, token, created)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/projects?city=雲林縣", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[[]model.Project](t, rec)
	require.Len(t, listed, 1)
	assert.Equal(t, 520.0, listed[0].CapacityKW)

	rec = doJSON(t, srv, http.MethodDelete, "/api/v1/projects/"+created.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/projects/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateProject_MissingName(t *testing.T) {
	srv, _, token := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/projects", token, model.Project{Code: "X-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestShares(t *testing.T) {
	srv, st, token := newTestServer(t)
	ctx := context.Background()

	p, err := st.CreateProject(ctx, &model.Project{Name: "斗六一期"})
	require.NoError(t, err)
	inv, err := st.CreateInvestor(ctx, &model.Investor{Name: "陽光資本"})
	require.NoError(t, err)

	shares := []model.ProjectShare{{InvestorID: inv.ID, SharePct: 60}}
	rec := doJSON(t, srv, http.MethodPut, "/api/v1/projects/"+p.ID+"/shares", token, shares)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/projects/"+p.ID+"/shares", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]model.ProjectShare](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, 60.0, got[0].SharePct)

	// Over-allocation is rejected.
	over := []model.ProjectShare{{InvestorID: inv.ID, SharePct: 140}}
	rec = doJSON(t, srv, http.MethodPut, "/api/v1/projects/"+p.ID+"/shares", token, over)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvestors(t *testing.T) {
	srv, _, token := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/investors", token, model.Investor{Name: "陽光資本"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/investors", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]model.Investor](t, rec)
	require.Len(t, got, 1)
}

func multipartBody(t *testing.T, field, filename, contentType string, data []byte, extra map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)

	for k, v := range extra {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestImportProjects_PreviewAndCommit(t *testing.T) {
	srv, st, token := newTestServer(t)
	csvData := []byte("name,code,capacity_kw\n斗六一期,YL-001,499.5\n虎尾二期,YL-002,250\n")

	body, contentType := multipartBody(t, "file", "projects.csv", "text/csv", csvData, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/import?preview=true", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[importer.Report](t, rec)
	assert.True(t, report.Preview)
	assert.Equal(t, 2, report.Valid)

	// Preview writes nothing.
	projects, err := st.ListProjects(context.Background(), store.ProjectFilter{})
	require.NoError(t, err)
	assert.Empty(t, projects)

	body, contentType = multipartBody(t, "file", "projects.csv", "text/csv", csvData, nil)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/projects/import", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	report = decode[importer.Report](t, rec)
	assert.Equal(t, 2, report.Created)

	projects, err = st.ListProjects(context.Background(), store.ProjectFilter{})
	require.NoError(t, err)
	assert.Len(t, projects, 2)
}

func TestExportProjects_CSV(t *testing.T) {
	srv, st, _ := newTestServer(t)
	_, err := st.CreateProject(context.Background(), &model.Project{Name: "斗六一期", Code: "YL-001", CapacityKW: 499.5})
	require.NoError(t, err)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/projects/export?format=csv", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Body.String(), "YL-001")
	assert.Contains(t, rec.Body.String(), "499.5")
}

func TestExportProjects_UnknownFormat(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/v1/projects/export?format=pdf", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateQuote(t *testing.T) {
	calc := quote.NewCalculator(quote.Rates{
		Currency: "TWD",
		TaxRate:  0.05,
		Items:    []quote.ItemRate{{Name: "太陽能模組", Unit: "kW", PerKW: 20000}},
	})
	srv, st, token := newTestServer(t, WithQuoteCalculator(calc))

	p, err := st.CreateProject(context.Background(), &model.Project{Name: "斗六一期", CapacityKW: 100})
	require.NoError(t, err)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/projects/"+p.ID+"/quotes", token, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	q := decode[model.Quote](t, rec)
	assert.Equal(t, 2000000.0, q.Subtotal)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/projects/"+p.ID+"/quotes", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	quotes := decode[[]model.Quote](t, rec)
	require.Len(t, quotes, 1)
}

func TestGenerateQuote_NotConfigured(t *testing.T) {
	srv, st, token := newTestServer(t)
	p, err := st.CreateProject(context.Background(), &model.Project{Name: "斗六一期", CapacityKW: 100})
	require.NoError(t, err)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/projects/"+p.ID+"/quotes", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStageSuggestionFlow(t *testing.T) {
	srv, st, token := newTestServer(t)
	ctx := context.Background()

	p, err := st.CreateProject(ctx, &model.Project{Name: "斗六一期"})
	require.NoError(t, err)

	doc, err := st.CreateDocument(ctx, &model.Document{ProjectID: p.ID, Kind: model.DocKindEnergyPermit, Title: "同意備案函"})
	require.NoError(t, err)
	require.NoError(t, st.SaveExtraction(ctx, doc.ID, []model.ExtractedDate{
		{Kind: model.DateKindIssue, Date: "2025-03-01", Confidence: 0.95, Provenance: "claude"},
	}, nil))

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/projects/"+p.ID+"/stage/suggestion", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	suggestion := decode[milestone.Suggestion](t, rec)
	assert.Equal(t, model.StageEnergyPermit, suggestion.Suggested)
	assert.Equal(t, "2025-03-01", suggestion.EffectiveOn)

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/projects/"+p.ID+"/stage", token, suggestion)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[model.Project](t, rec)
	assert.Equal(t, model.StageEnergyPermit, updated.Stage)

	// No further advance available: 204.
	rec = doJSON(t, srv, http.MethodGet, "/api/v1/projects/"+p.ID+"/stage/suggestion", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Re-applying the stale suggestion conflicts.
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/projects/"+p.ID+"/stage", token, suggestion)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUploadAndExtractDocument(t *testing.T) {
	stub := &stubExtractor{result: &extract.Result{
		Dates: []model.ExtractedDate{
			{Kind: model.DateKindIssue, Date: "2025-03-01", Confidence: 0.95, Provenance: "claude"},
		},
		Fields: model.ExtractedFields{MeterNo: "07-12-3456-78-9"},
	}}
	srv, st, token := newTestServer(t, WithExtractor(stub))

	p, err := st.CreateProject(context.Background(), &model.Project{Name: "斗六一期"})
	require.NoError(t, err)

	body, contentType := multipartBody(t, "file", "permit.pdf", "application/pdf", []byte("%PDF-1.4"), map[string]string{
		"kind": "energy_permit",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/"+p.ID+"/documents", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	doc := decode[model.Document](t, rec)
	assert.Equal(t, model.DocKindEnergyPermit, doc.Kind)
	assert.Equal(t, model.DocStatusUploaded, doc.Status)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/documents/"+doc.ID+"/extract", strings.NewReader("%PDF-1.4"))
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := st.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocStatusExtracted, stored.Status)
	require.Len(t, stored.Dates, 1)
	assert.Equal(t, "2025-03-01", stored.Dates[0].Date)
	require.NotNil(t, stored.Fields)
	assert.Equal(t, "07-12-3456-78-9", stored.Fields.MeterNo)
}

func TestExtractDocument_UpstreamFailureMapsToStatus(t *testing.T) {
	stub := &stubExtractor{err: extract.ErrRateLimited}
	srv, st, token := newTestServer(t, WithExtractor(stub))

	p, err := st.CreateProject(context.Background(), &model.Project{Name: "斗六一期"})
	require.NoError(t, err)
	doc, err := st.CreateDocument(context.Background(), &model.Document{ProjectID: p.ID, Kind: model.DocKindPPA, MimeType: "application/pdf"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/"+doc.ID+"/extract", strings.NewReader("%PDF-1.4"))
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestAdhocExtract(t *testing.T) {
	stub := &stubExtractor{result: &extract.Result{
		Fields: model.ExtractedFields{PVID: "A1234567890"},
	}}
	srv, _, token := newTestServer(t, WithExtractor(stub))

	body, contentType := multipartBody(t, "file", "scan.jpg", "image/jpeg", []byte{0xFF, 0xD8}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/extract", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[extract.Result](t, rec)
	assert.Equal(t, "A1234567890", result.Fields.PVID)
}

func TestAdhocExtract_UpstreamFailureMapsToStatus(t *testing.T) {
	for _, tc := range []struct {
		err  error
		code int
	}{
		{extract.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge},
		{extract.ErrUnsupportedType, http.StatusUnsupportedMediaType},
		{extract.ErrQuotaExhausted, http.StatusTooManyRequests},
	} {
		srv, _, token := newTestServer(t, WithExtractor(&stubExtractor{err: tc.err}))

		body, contentType := multipartBody(t, "file", "scan.jpg", "image/jpeg", []byte{0xFF, 0xD8}, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/extract", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		assert.Equal(t, tc.code, rec.Code)
	}
}

func TestUpdateDocumentStatus(t *testing.T) {
	srv, st, token := newTestServer(t)
	ctx := context.Background()

	p, err := st.CreateProject(ctx, &model.Project{Name: "斗六一期"})
	require.NoError(t, err)
	doc, err := st.CreateDocument(ctx, &model.Document{ProjectID: p.ID, Kind: model.DocKindPPA})
	require.NoError(t, err)

	rec := doJSON(t, srv, http.MethodPatch, "/api/v1/documents/"+doc.ID+"/status", token, map[string]string{"status": "verified"})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[model.Document](t, rec)
	assert.Equal(t, model.DocStatusVerified, got.Status)

	rec = doJSON(t, srv, http.MethodPatch, "/api/v1/documents/"+doc.ID+"/status", token, map[string]string{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEstimateRevenue(t *testing.T) {
	srv, st, _ := newTestServer(t)
	p, err := st.CreateProject(context.Background(), &model.Project{
		Name: "斗六一期", City: "雲林縣", CapacityKW: 499.5, FiTRate: 4.2,
	})
	require.NoError(t, err)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/projects/"+p.ID+"/revenue", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var est struct {
		AnnualKWh float64 `json:"annual_kwh"`
		SunHours  float64 `json:"sun_hours"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &est))
	assert.InDelta(t, 525074, est.AnnualKWh, 1)
	assert.Equal(t, 3.6, est.SunHours)
}

func TestEstimateRevenue_MissingRate(t *testing.T) {
	srv, st, _ := newTestServer(t)
	p, err := st.CreateProject(context.Background(), &model.Project{Name: "斗六一期", CapacityKW: 100})
	require.NoError(t, err)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/projects/"+p.ID+"/revenue", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestEstimateSite(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/site/estimate", "", map[string]any{
		"boundary":   [][]float64{{0, 0}, {100, 0}, {100, 100}, {0, 100}},
		"panel_watt": 450,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var est struct {
		AreaM2     float64 `json:"area_m2"`
		PanelCount int     `json:"panel_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &est))
	assert.InDelta(t, 10000, est.AreaM2, 0.001)
	assert.Equal(t, 2954, est.PanelCount)
}

func TestEstimateSite_BadBoundary(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/site/estimate", "", map[string]any{
		"boundary": [][]float64{{0, 0}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
