package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/luminous-energy/plant-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS projects (
	id          TEXT PRIMARY KEY,
	code        TEXT NOT NULL DEFAULT '',
	name        TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'draft',
	stage       TEXT NOT NULL DEFAULT 'planning',
	city        TEXT NOT NULL DEFAULT '',
	capacity_kw REAL NOT NULL DEFAULT 0,
	data        TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_projects_code ON projects(code) WHERE code <> '';
CREATE INDEX IF NOT EXISTS idx_projects_status ON projects(status);
CREATE INDEX IF NOT EXISTS idx_projects_stage ON projects(stage);
CREATE INDEX IF NOT EXISTS idx_projects_city ON projects(city);

CREATE TABLE IF NOT EXISTS investors (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS project_shares (
	project_id  TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	investor_id TEXT NOT NULL REFERENCES investors(id),
	share_pct   REAL NOT NULL,
	PRIMARY KEY (project_id, investor_id)
);

CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	kind       TEXT NOT NULL DEFAULT 'other',
	status     TEXT NOT NULL DEFAULT 'uploaded',
	data       TEXT NOT NULL,
	dates      TEXT,
	fields     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_documents_project_id ON documents(project_id);
CREATE INDEX IF NOT EXISTS idx_documents_kind ON documents(kind);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);

CREATE TABLE IF NOT EXISTS quotes (
	id          TEXT PRIMARY KEY,
	project_id  TEXT NOT NULL DEFAULT '',
	capacity_kw REAL NOT NULL,
	data        TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_quotes_project_id ON quotes(project_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateProject(ctx context.Context, p *model.Project) (*model.Project, error) {
	out := *p
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	if out.Status == "" {
		out.Status = model.ProjectStatusDraft
	}
	if out.Stage == "" {
		out.Stage = model.StagePlanning
	}
	now := time.Now().UTC()
	out.CreatedAt = now
	out.UpdatedAt = now

	data, err := json.Marshal(&out)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal project")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO projects (id, code, name, status, stage, city, capacity_kw, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		out.ID, out.Code, out.Name, string(out.Status), string(out.Stage), out.City, out.CapacityKW, string(data), now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert project %s", out.ID)
	}
	return &out, nil
}

func (s *SQLiteStore) UpdateProject(ctx context.Context, p *model.Project) error {
	now := time.Now().UTC()
	p.UpdatedAt = now

	data, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal project")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET code = ?, name = ?, status = ?, stage = ?, city = ?,
		 capacity_kw = ?, data = ?, updated_at = ? WHERE id = ?`,
		p.Code, p.Name, string(p.Status), string(p.Stage), p.City, p.CapacityKW, string(data), now, p.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update project %s", p.ID)
	}
	return checkRowsAffected(res, "project", p.ID)
}

func (s *SQLiteStore) UpdateProjectStage(ctx context.Context, projectID string, stage model.Stage) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET stage = ?, data = json_set(data, '$.stage', ?), updated_at = ? WHERE id = ?`,
		string(stage), string(stage), time.Now().UTC(), projectID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update project stage %s", projectID)
	}
	return checkRowsAffected(res, "project", projectID)
}

func (s *SQLiteStore) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, data, created_at, updated_at FROM projects WHERE id = ?`, projectID)
	return scanProject(row, projectID)
}

func (s *SQLiteStore) GetProjectByCode(ctx context.Context, code string) (*model.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, data, created_at, updated_at FROM projects WHERE code = ?`, code)
	return scanProject(row, code)
}

func (s *SQLiteStore) ListProjects(ctx context.Context, filter ProjectFilter) ([]model.Project, error) {
	query := `SELECT id, data, created_at, updated_at FROM projects WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Stage != "" {
		query += ` AND stage = ?`
		args = append(args, string(filter.Stage))
	}
	if filter.City != "" {
		query += ` AND city = ?`
		args = append(args, filter.City)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list projects")
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		p, err := scanProject(rows, "")
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, eris.Wrap(rows.Err(), "sqlite: list projects iterate")
}

func (s *SQLiteStore) DeleteProject(ctx context.Context, projectID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, projectID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete project %s", projectID)
	}
	return checkRowsAffected(res, "project", projectID)
}

func (s *SQLiteStore) CreateInvestor(ctx context.Context, inv *model.Investor) (*model.Investor, error) {
	out := *inv
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	out.CreatedAt = now
	out.UpdatedAt = now

	data, err := json.Marshal(&out)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal investor")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO investors (id, name, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		out.ID, out.Name, string(data), now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert investor %s", out.ID)
	}
	return &out, nil
}

func (s *SQLiteStore) ListInvestors(ctx context.Context) ([]model.Investor, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM investors ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list investors")
	}
	defer rows.Close()

	var investors []model.Investor
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan investor")
		}
		var inv model.Investor
		if err := json.Unmarshal([]byte(data), &inv); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal investor")
		}
		investors = append(investors, inv)
	}
	return investors, eris.Wrap(rows.Err(), "sqlite: list investors iterate")
}

func (s *SQLiteStore) SetProjectShares(ctx context.Context, projectID string, shares []model.ProjectShare) error {
	var total float64
	for _, sh := range shares {
		total += sh.SharePct
	}
	if total > 100.0001 {
		return eris.Errorf("sqlite: shares for project %s sum to %.2f%%", projectID, total)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin shares tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM project_shares WHERE project_id = ?`, projectID); err != nil {
		return eris.Wrapf(err, "sqlite: clear shares for %s", projectID)
	}
	for _, sh := range shares {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO project_shares (project_id, investor_id, share_pct) VALUES (?, ?, ?)`,
			projectID, sh.InvestorID, sh.SharePct,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert share for %s", projectID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit shares tx")
}

func (s *SQLiteStore) ListProjectShares(ctx context.Context, projectID string) ([]model.ProjectShare, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT project_id, investor_id, share_pct FROM project_shares WHERE project_id = ? ORDER BY investor_id`,
		projectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list shares")
	}
	defer rows.Close()

	var shares []model.ProjectShare
	for rows.Next() {
		var sh model.ProjectShare
		if err := rows.Scan(&sh.ProjectID, &sh.InvestorID, &sh.SharePct); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan share")
		}
		shares = append(shares, sh)
	}
	return shares, eris.Wrap(rows.Err(), "sqlite: list shares iterate")
}

func (s *SQLiteStore) CreateDocument(ctx context.Context, d *model.Document) (*model.Document, error) {
	out := *d
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	if out.Status == "" {
		out.Status = model.DocStatusUploaded
	}
	now := time.Now().UTC()
	out.CreatedAt = now
	out.UpdatedAt = now

	data, err := json.Marshal(&out)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal document")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (id, project_id, kind, status, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		out.ID, out.ProjectID, string(out.Kind), string(out.Status), string(data), now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert document %s", out.ID)
	}
	return &out, nil
}

func (s *SQLiteStore) GetDocument(ctx context.Context, documentID string) (*model.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, data, dates, fields, created_at, updated_at FROM documents WHERE id = ?`,
		documentID,
	)
	d, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "document %s", documentID)
	}
	return d, err
}

func (s *SQLiteStore) ListDocuments(ctx context.Context, filter DocumentFilter) ([]model.Document, error) {
	query := `SELECT id, status, data, dates, fields, created_at, updated_at FROM documents WHERE 1=1`
	var args []any

	if filter.ProjectID != "" {
		query += ` AND project_id = ?`
		args = append(args, filter.ProjectID)
	}
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list documents")
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	return docs, eris.Wrap(rows.Err(), "sqlite: list documents iterate")
}

func (s *SQLiteStore) SaveExtraction(ctx context.Context, documentID string, dates []model.ExtractedDate, fields *model.ExtractedFields) error {
	datesJSON, err := json.Marshal(dates)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal dates")
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal fields")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET dates = ?, fields = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(datesJSON), string(fieldsJSON), string(model.DocStatusExtracted), time.Now().UTC(), documentID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save extraction %s", documentID)
	}
	return checkRowsAffected(res, "document", documentID)
}

func (s *SQLiteStore) UpdateDocumentStatus(ctx context.Context, documentID string, status model.DocumentStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), documentID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update document status %s", documentID)
	}
	return checkRowsAffected(res, "document", documentID)
}

func (s *SQLiteStore) SaveQuote(ctx context.Context, q *model.Quote) (*model.Quote, error) {
	out := *q
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	out.CreatedAt = time.Now().UTC()

	data, err := json.Marshal(&out)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal quote")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO quotes (id, project_id, capacity_kw, data, created_at) VALUES (?, ?, ?, ?, ?)`,
		out.ID, out.ProjectID, out.CapacityKW, string(data), out.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert quote %s", out.ID)
	}
	return &out, nil
}

func (s *SQLiteStore) ListQuotes(ctx context.Context, projectID string) ([]model.Quote, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM quotes WHERE project_id = ? ORDER BY created_at DESC`,
		projectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list quotes")
	}
	defer rows.Close()

	var quotes []model.Quote
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan quote")
		}
		var q model.Quote
		if err := json.Unmarshal([]byte(data), &q); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal quote")
		}
		quotes = append(quotes, q)
	}
	return quotes, eris.Wrap(rows.Err(), "sqlite: list quotes iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanProject(row scannable, key string) (*model.Project, error) {
	var p model.Project
	var data string

	err := row.Scan(&p.ID, &data, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "project %s", key)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan project")
	}

	id, createdAt, updatedAt := p.ID, p.CreatedAt, p.UpdatedAt
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal project")
	}
	p.ID, p.CreatedAt, p.UpdatedAt = id, createdAt, updatedAt
	return &p, nil
}

func scanDocument(row scannable) (*model.Document, error) {
	var d model.Document
	var status, data string
	var datesJSON, fieldsJSON sql.NullString

	err := row.Scan(&d.ID, &status, &data, &datesJSON, &fieldsJSON, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan document")
	}

	id, createdAt, updatedAt := d.ID, d.CreatedAt, d.UpdatedAt
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal document")
	}
	// The status column is authoritative; the data blob holds the
	// insert-time value and is not rewritten on status updates.
	d.ID, d.CreatedAt, d.UpdatedAt = id, createdAt, updatedAt
	d.Status = model.DocumentStatus(status)

	if datesJSON.Valid && datesJSON.String != "" && datesJSON.String != "null" {
		if err := json.Unmarshal([]byte(datesJSON.String), &d.Dates); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal document dates")
		}
	}
	if fieldsJSON.Valid && fieldsJSON.String != "" && fieldsJSON.String != "null" {
		d.Fields = &model.ExtractedFields{}
		if err := json.Unmarshal([]byte(fieldsJSON.String), d.Fields); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal document fields")
		}
	}
	return &d, nil
}
