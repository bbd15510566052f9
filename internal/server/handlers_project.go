package server

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/luminous-energy/plant-cli/internal/estimate"
	"github.com/luminous-energy/plant-cli/internal/export"
	"github.com/luminous-energy/plant-cli/internal/importer"
	"github.com/luminous-energy/plant-cli/internal/milestone"
	"github.com/luminous-energy/plant-cli/internal/model"
	"github.com/luminous-energy/plant-cli/internal/site"
	"github.com/luminous-energy/plant-cli/internal/store"
)

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ProjectFilter{
		Status: model.ProjectStatus(q.Get("status")),
		Stage:  model.Stage(q.Get("stage")),
		City:   q.Get("city"),
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	projects, err := s.store.ListProjects(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var p model.Project
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "server: decode project"))
		return
	}
	if p.Name == "" {
		writeError(w, http.StatusBadRequest, eris.New("server: project name is required"))
		return
	}

	created, err := s.store.CreateProject(r.Context(), &p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var p model.Project
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "server: decode project"))
		return
	}
	p.ID = chi.URLParam(r, "id")

	if err := s.store.UpdateProject(r.Context(), &p); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, &p)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteProject(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListShares(w http.ResponseWriter, r *http.Request) {
	shares, err := s.store.ListProjectShares(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, shares)
}

func (s *Server) handleSetShares(w http.ResponseWriter, r *http.Request) {
	var shares []model.ProjectShare
	if err := json.NewDecoder(r.Body).Decode(&shares); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "server: decode shares"))
		return
	}

	projectID := chi.URLParam(r, "id")
	if err := s.store.SetProjectShares(r.Context(), projectID, shares); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, shares)
}

func (s *Server) handleListInvestors(w http.ResponseWriter, r *http.Request) {
	investors, err := s.store.ListInvestors(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, investors)
}

func (s *Server) handleCreateInvestor(w http.ResponseWriter, r *http.Request) {
	var inv model.Investor
	if err := json.NewDecoder(r.Body).Decode(&inv); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "server: decode investor"))
		return
	}
	if inv.Name == "" {
		writeError(w, http.StatusBadRequest, eris.New("server: investor name is required"))
		return
	}

	created, err := s.store.CreateInvestor(r.Context(), &inv)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleExportProjects streams the filtered project list as CSV or XLSX.
func (s *Server) handleExportProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context(), store.ProjectFilter{
		Status: model.ProjectStatus(r.URL.Query().Get("status")),
		Stage:  model.Stage(r.URL.Query().Get("stage")),
		City:   r.URL.Query().Get("city"),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="projects.csv"`)
		if err := export.WriteCSV(w, projects); err != nil {
			writeError(w, http.StatusInternalServerError, err)
		}
	case "xlsx":
		path := filepath.Join(os.TempDir(), "projects-export.xlsx")
		defer os.Remove(path) //nolint:errcheck
		if err := export.WriteXLSX(path, projects); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="projects.xlsx"`)
		http.ServeFile(w, r, path)
	default:
		writeError(w, http.StatusBadRequest, eris.Errorf("server: unknown export format %q", format))
	}
}

// handleImportProjects ingests a CSV or XLSX upload. With ?preview=true the
// rows are validated but nothing is written.
func (s *Server) handleImportProjects(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "server: missing file upload"))
		return
	}
	defer file.Close() //nolint:errcheck

	preview := r.URL.Query().Get("preview") == "true"

	var cols []string
	var rows []importer.Row

	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".csv":
		headerCh, rowCh, errCh := importer.StreamCSV(r.Context(), file)
		cols = <-headerCh
		for row := range rowCh {
			rows = append(rows, row)
		}
		if err := <-errCh; err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	case ".xlsx":
		tmp, err := os.CreateTemp("", "import-*.xlsx")
		if err != nil {
			writeError(w, http.StatusInternalServerError, eris.Wrap(err, "server: spool upload"))
			return
		}
		defer os.Remove(tmp.Name()) //nolint:errcheck
		if _, err := io.Copy(tmp, file); err != nil {
			tmp.Close() //nolint:errcheck
			writeError(w, http.StatusInternalServerError, eris.Wrap(err, "server: spool upload"))
			return
		}
		tmp.Close() //nolint:errcheck

		cols, rows, err = importer.ReadXLSX(tmp.Name(), "")
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	default:
		writeError(w, http.StatusBadRequest, eris.Errorf("server: unsupported import file %q", header.Filename))
		return
	}

	report, err := importer.New(s.store).Run(r.Context(), cols, rows, preview)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleGenerateQuote prices the project's installation and saves the quote.
func (s *Server) handleGenerateQuote(w http.ResponseWriter, r *http.Request) {
	if s.quotes == nil {
		writeError(w, http.StatusServiceUnavailable, eris.New("server: quoting is not configured"))
		return
	}

	p, err := s.store.GetProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	q, err := s.quotes.For(p.ID, p.CapacityKW)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	saved, err := s.store.SaveQuote(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleListQuotes(w http.ResponseWriter, r *http.Request) {
	quotes, err := s.store.ListQuotes(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, quotes)
}

// handleSuggestStage returns the stage advance the project's extracted
// documents imply, or 204 when the project is already current.
func (s *Server) handleSuggestStage(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")

	p, err := s.store.GetProject(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	docs, err := s.store.ListDocuments(r.Context(), store.DocumentFilter{ProjectID: projectID})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	suggestion := milestone.Suggest(p, docs)
	if suggestion == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, suggestion)
}

// handleApplyStage confirms a previously suggested stage advance.
func (s *Server) handleApplyStage(w http.ResponseWriter, r *http.Request) {
	var suggestion milestone.Suggestion
	if err := json.NewDecoder(r.Body).Decode(&suggestion); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "server: decode suggestion"))
		return
	}
	suggestion.ProjectID = chi.URLParam(r, "id")

	if err := milestone.Apply(r.Context(), s.store, &suggestion); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}

	p, err := s.store.GetProject(r.Context(), suggestion.ProjectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleEstimateRevenue projects feed-in-tariff income for a project.
func (s *Server) handleEstimateRevenue(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	est, err := estimate.Revenue(p)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, est)
}

// handleEstimateSite sizes a plant from a boundary polygon.
func (s *Server) handleEstimateSite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Boundary  [][]float64 `json:"boundary"`
		PanelWatt int         `json:"panel_watt,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "server: decode boundary"))
		return
	}

	est, err := site.EstimateCapacity(req.Boundary, req.PanelWatt)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, est)
}
