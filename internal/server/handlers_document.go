package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/luminous-energy/plant-cli/internal/extract"
	"github.com/luminous-energy/plant-cli/internal/model"
	"github.com/luminous-energy/plant-cli/internal/store"
)

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	docs, err := s.store.ListDocuments(r.Context(), store.DocumentFilter{
		ProjectID: q.Get("project_id"),
		Kind:      model.DocumentKind(q.Get("kind")),
		Status:    model.DocumentStatus(q.Get("status")),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.GetDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleUploadDocument registers a document against a project. The multipart
// form carries the file plus kind/title fields; extraction is a separate call
// so slow model passes never block the upload.
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	if _, err := s.store.GetProject(r.Context(), projectID); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "server: missing file upload"))
		return
	}
	defer file.Close() //nolint:errcheck

	kind := model.DocumentKind(r.FormValue("kind"))
	if kind == "" {
		kind = model.DocKindOther
	}
	title := r.FormValue("title")
	if title == "" {
		title = header.Filename
	}

	doc := &model.Document{
		ProjectID:   projectID,
		Kind:        kind,
		Title:       title,
		MimeType:    header.Header.Get("Content-Type"),
		DriveFileID: r.FormValue("drive_file_id"),
		SizeBytes:   header.Size,
	}

	created, err := s.store.CreateDocument(r.Context(), doc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleExtractDocument runs extraction for a stored document. The content
// comes from the request body when one is supplied, otherwise from Drive.
func (s *Server) handleExtractDocument(w http.ResponseWriter, r *http.Request) {
	if s.extractor == nil {
		writeError(w, http.StatusServiceUnavailable, eris.New("server: extraction is not configured"))
		return
	}

	doc, err := s.store.GetDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	data, mimeType, err := s.documentContent(r, doc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.extractor.Extract(r.Context(), data, mimeType, doc.Title)
	if err != nil {
		writeExtractError(w, err)
		return
	}

	if err := s.store.SaveExtraction(r.Context(), doc.ID, result.Dates, &result.Fields); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// documentContent resolves the bytes to extract: inline body first, then Drive.
func (s *Server) documentContent(r *http.Request, doc *model.Document) ([]byte, string, error) {
	if r.ContentLength > 0 {
		data, err := io.ReadAll(io.LimitReader(r.Body, extract.MaxDocumentBytes+1))
		if err != nil {
			return nil, "", eris.Wrap(err, "server: read document body")
		}
		mimeType := r.Header.Get("Content-Type")
		if mimeType == "" {
			mimeType = doc.MimeType
		}
		return data, mimeType, nil
	}

	if doc.DriveFileID != "" && s.drive != nil {
		data, err := s.drive.Download(r.Context(), doc.DriveFileID)
		if err != nil {
			return nil, "", err
		}
		return data, doc.MimeType, nil
	}

	return nil, "", eris.Errorf("server: document %s has no content source", doc.ID)
}

// handleAdhocExtract extracts a one-off upload without persisting anything,
// for operators checking a document before filing it.
func (s *Server) handleAdhocExtract(w http.ResponseWriter, r *http.Request) {
	if s.extractor == nil {
		writeError(w, http.StatusServiceUnavailable, eris.New("server: extraction is not configured"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "server: missing file upload"))
		return
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(file, extract.MaxDocumentBytes+1))
	if err != nil {
		writeError(w, http.StatusInternalServerError, eris.Wrap(err, "server: read upload"))
		return
	}

	result, err := s.extractor.Extract(r.Context(), data, header.Header.Get("Content-Type"), header.Filename)
	if err != nil {
		writeExtractError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeExtractError maps the extraction error taxonomy onto HTTP statuses.
func writeExtractError(w http.ResponseWriter, err error) {
	switch {
	case eris.Is(err, extract.ErrPayloadTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err)
	case eris.Is(err, extract.ErrUnsupportedType):
		writeError(w, http.StatusUnsupportedMediaType, err)
	case eris.Is(err, extract.ErrRateLimited), eris.Is(err, extract.ErrQuotaExhausted):
		writeError(w, http.StatusTooManyRequests, err)
	default:
		writeError(w, http.StatusBadGateway, err)
	}
}

func (s *Server) handleUpdateDocumentStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status model.DocumentStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "server: decode status"))
		return
	}

	switch req.Status {
	case model.DocStatusUploaded, model.DocStatusExtracted, model.DocStatusVerified:
	default:
		writeError(w, http.StatusBadRequest, eris.Errorf("server: unknown document status %q", req.Status))
		return
	}

	documentID := chi.URLParam(r, "id")
	if err := s.store.UpdateDocumentStatus(r.Context(), documentID, req.Status); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	doc, err := s.store.GetDocument(r.Context(), documentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
