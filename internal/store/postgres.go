package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/luminous-energy/plant-cli/internal/db"
	"github.com/luminous-energy/plant-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_project":         `SELECT id, data, created_at, updated_at FROM projects WHERE id = $1`,
	"get_project_by_code": `SELECT id, data, created_at, updated_at FROM projects WHERE code = $1`,
	"get_document":        `SELECT id, status, data, dates, fields, created_at, updated_at FROM documents WHERE id = $1`,
	"update_stage":        `UPDATE projects SET stage = $1, data = jsonb_set(data, '{stage}', to_jsonb($1::text)), updated_at = $2 WHERE id = $3`,
	"save_extraction":     `UPDATE documents SET dates = $1, fields = $2, status = $3, updated_at = $4 WHERE id = $5`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that need
// direct query access (e.g., bulk spreadsheet import).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS projects (
	id          TEXT PRIMARY KEY,
	code        TEXT NOT NULL DEFAULT '',
	name        TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'draft',
	stage       TEXT NOT NULL DEFAULT 'planning',
	city        TEXT NOT NULL DEFAULT '',
	capacity_kw DOUBLE PRECISION NOT NULL DEFAULT 0,
	data        JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_projects_code ON projects(code) WHERE code <> '';
CREATE INDEX IF NOT EXISTS idx_projects_status ON projects(status);
CREATE INDEX IF NOT EXISTS idx_projects_stage ON projects(stage);
CREATE INDEX IF NOT EXISTS idx_projects_city ON projects(city);

CREATE TABLE IF NOT EXISTS investors (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS project_shares (
	project_id  TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	investor_id TEXT NOT NULL REFERENCES investors(id),
	share_pct   DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (project_id, investor_id)
);

CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	kind       TEXT NOT NULL DEFAULT 'other',
	status     TEXT NOT NULL DEFAULT 'uploaded',
	data       JSONB NOT NULL,
	dates      JSONB,
	fields     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_documents_project_id ON documents(project_id);
CREATE INDEX IF NOT EXISTS idx_documents_kind ON documents(kind);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);

CREATE TABLE IF NOT EXISTS quotes (
	id          TEXT PRIMARY KEY,
	project_id  TEXT NOT NULL DEFAULT '',
	capacity_kw DOUBLE PRECISION NOT NULL,
	data        JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_quotes_project_id ON quotes(project_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateProject(ctx context.Context, p *model.Project) (*model.Project, error) {
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
		return nil, eris.Wrap(err, "postgres: marshal project")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO projects (id, code, name, status, stage, city, capacity_kw, data, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		out.ID, out.Code, out.Name, string(out.Status), string(out.Stage), out.City, out.CapacityKW, data, now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert project %s", out.ID)
	}
	return &out, nil
}

func (s *PostgresStore) UpdateProject(ctx context.Context, p *model.Project) error {
	now := time.Now().UTC()
	p.UpdatedAt = now

	data, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal project")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE projects SET code = $1, name = $2, status = $3, stage = $4, city = $5,
		 capacity_kw = $6, data = $7, updated_at = $8 WHERE id = $9`,
		p.Code, p.Name, string(p.Status), string(p.Stage), p.City, p.CapacityKW, data, now, p.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update project %s", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "project %s", p.ID)
	}
	return nil
}

func (s *PostgresStore) UpdateProjectStage(ctx context.Context, projectID string, stage model.Stage) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE projects SET stage = $1, data = jsonb_set(data, '{stage}', to_jsonb($1::text)), updated_at = $2 WHERE id = $3`,
		string(stage), time.Now().UTC(), projectID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update project stage %s", projectID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "project %s", projectID)
	}
	return nil
}

func (s *PostgresStore) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	return s.getProjectBy(ctx, `SELECT id, data, created_at, updated_at FROM projects WHERE id = $1`, projectID)
}

func (s *PostgresStore) GetProjectByCode(ctx context.Context, code string) (*model.Project, error) {
	return s.getProjectBy(ctx, `SELECT id, data, created_at, updated_at FROM projects WHERE code = $1`, code)
}

func (s *PostgresStore) getProjectBy(ctx context.Context, query, key string) (*model.Project, error) {
	var p model.Project
	var data []byte

	err := s.pool.QueryRow(ctx, query, key).Scan(&p.ID, &data, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "project %s", key)
		}
		return nil, eris.Wrapf(err, "postgres: get project %s", key)
	}

	id, createdAt, updatedAt := p.ID, p.CreatedAt, p.UpdatedAt
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal project")
	}
	p.ID, p.CreatedAt, p.UpdatedAt = id, createdAt, updatedAt
	return &p, nil
}

func (s *PostgresStore) ListProjects(ctx context.Context, filter ProjectFilter) ([]model.Project, error) {
	query := `SELECT id, data, created_at, updated_at FROM projects WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Stage != "" {
		query += fmt.Sprintf(` AND stage = $%d`, argIdx)
		args = append(args, string(filter.Stage))
		argIdx++
	}
	if filter.City != "" {
		query += fmt.Sprintf(` AND city = $%d`, argIdx)
		args = append(args, filter.City)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list projects")
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		var p model.Project
		var data []byte
		if err := rows.Scan(&p.ID, &data, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan project")
		}
		id, createdAt, updatedAt := p.ID, p.CreatedAt, p.UpdatedAt
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal project")
		}
		p.ID, p.CreatedAt, p.UpdatedAt = id, createdAt, updatedAt
		projects = append(projects, p)
	}
	return projects, eris.Wrap(rows.Err(), "postgres: list projects iterate")
}

func (s *PostgresStore) DeleteProject(ctx context.Context, projectID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, projectID)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete project %s", projectID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "project %s", projectID)
	}
	return nil
}

func (s *PostgresStore) CreateInvestor(ctx context.Context, inv *model.Investor) (*model.Investor, error) {
	out := *inv
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	out.CreatedAt = now
	out.UpdatedAt = now

	data, err := json.Marshal(&out)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal investor")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO investors (id, name, data, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		out.ID, out.Name, data, now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert investor %s", out.ID)
	}
	return &out, nil
}

func (s *PostgresStore) ListInvestors(ctx context.Context) ([]model.Investor, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM investors ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list investors")
	}
	defer rows.Close()

	var investors []model.Investor
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan investor")
		}
		var inv model.Investor
		if err := json.Unmarshal(data, &inv); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal investor")
		}
		investors = append(investors, inv)
	}
	return investors, eris.Wrap(rows.Err(), "postgres: list investors iterate")
}

// SetProjectShares replaces the ownership table for a project. Shares must sum
// to at most 100 percent.
func (s *PostgresStore) SetProjectShares(ctx context.Context, projectID string, shares []model.ProjectShare) error {
	var total float64
	for _, sh := range shares {
		total += sh.SharePct
	}
	if total > 100.0001 {
		return eris.Errorf("postgres: shares for project %s sum to %.2f%%", projectID, total)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin shares tx")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM project_shares WHERE project_id = $1`, projectID); err != nil {
		return eris.Wrapf(err, "postgres: clear shares for %s", projectID)
	}
	for _, sh := range shares {
		if _, err := tx.Exec(ctx,
			`INSERT INTO project_shares (project_id, investor_id, share_pct) VALUES ($1, $2, $3)`,
			projectID, sh.InvestorID, sh.SharePct,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert share for %s", projectID)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit shares tx")
}

func (s *PostgresStore) ListProjectShares(ctx context.Context, projectID string) ([]model.ProjectShare, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT project_id, investor_id, share_pct FROM project_shares WHERE project_id = $1 ORDER BY investor_id`,
		projectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list shares")
	}
	defer rows.Close()

	var shares []model.ProjectShare
	for rows.Next() {
		var sh model.ProjectShare
		if err := rows.Scan(&sh.ProjectID, &sh.InvestorID, &sh.SharePct); err != nil {
			return nil, eris.Wrap(err, "postgres: scan share")
		}
		shares = append(shares, sh)
	}
	return shares, eris.Wrap(rows.Err(), "postgres: list shares iterate")
}

func (s *PostgresStore) CreateDocument(ctx context.Context, d *model.Document) (*model.Document, error) {
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
		return nil, eris.Wrap(err, "postgres: marshal document")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (id, project_id, kind, status, data, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		out.ID, out.ProjectID, string(out.Kind), string(out.Status), data, now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert document %s", out.ID)
	}
	return &out, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, documentID string) (*model.Document, error) {
	var d model.Document
	var status string
	var data []byte
	var datesJSON, fieldsJSON *[]byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, status, data, dates, fields, created_at, updated_at FROM documents WHERE id = $1`,
		documentID,
	).Scan(&d.ID, &status, &data, &datesJSON, &fieldsJSON, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "document %s", documentID)
		}
		return nil, eris.Wrapf(err, "postgres: get document %s", documentID)
	}

	id, createdAt, updatedAt := d.ID, d.CreatedAt, d.UpdatedAt
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal document")
	}
	// The status column is authoritative; the data blob holds the
	// insert-time value and is not rewritten on status updates.
	d.ID, d.CreatedAt, d.UpdatedAt = id, createdAt, updatedAt
	d.Status = model.DocumentStatus(status)

	if datesJSON != nil {
		if err := json.Unmarshal(*datesJSON, &d.Dates); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal document dates")
		}
	}
	if fieldsJSON != nil {
		d.Fields = &model.ExtractedFields{}
		if err := json.Unmarshal(*fieldsJSON, d.Fields); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal document fields")
		}
	}
	return &d, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context, filter DocumentFilter) ([]model.Document, error) {
	query := `SELECT id, status, data, dates, fields, created_at, updated_at FROM documents WHERE true`
	args := []any{}
	argIdx := 1

	if filter.ProjectID != "" {
		query += fmt.Sprintf(` AND project_id = $%d`, argIdx)
		args = append(args, filter.ProjectID)
		argIdx++
	}
	if filter.Kind != "" {
		query += fmt.Sprintf(` AND kind = $%d`, argIdx)
		args = append(args, string(filter.Kind))
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list documents")
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		var d model.Document
		var status string
		var data []byte
		var datesJSON, fieldsJSON *[]byte
		if err := rows.Scan(&d.ID, &status, &data, &datesJSON, &fieldsJSON, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan document")
		}
		id, createdAt, updatedAt := d.ID, d.CreatedAt, d.UpdatedAt
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal document")
		}
		d.ID, d.CreatedAt, d.UpdatedAt = id, createdAt, updatedAt
		d.Status = model.DocumentStatus(status)
		if datesJSON != nil {
			if err := json.Unmarshal(*datesJSON, &d.Dates); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal document dates")
			}
		}
		if fieldsJSON != nil {
			d.Fields = &model.ExtractedFields{}
			if err := json.Unmarshal(*fieldsJSON, d.Fields); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal document fields")
			}
		}
		docs = append(docs, d)
	}
	return docs, eris.Wrap(rows.Err(), "postgres: list documents iterate")
}

func (s *PostgresStore) SaveExtraction(ctx context.Context, documentID string, dates []model.ExtractedDate, fields *model.ExtractedFields) error {
	datesJSON, err := json.Marshal(dates)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal dates")
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal fields")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET dates = $1, fields = $2, status = $3, updated_at = $4 WHERE id = $5`,
		datesJSON, fieldsJSON, string(model.DocStatusExtracted), time.Now().UTC(), documentID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save extraction %s", documentID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "document %s", documentID)
	}
	return nil
}

func (s *PostgresStore) UpdateDocumentStatus(ctx context.Context, documentID string, status model.DocumentStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), documentID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update document status %s", documentID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "document %s", documentID)
	}
	return nil
}

func (s *PostgresStore) SaveQuote(ctx context.Context, q *model.Quote) (*model.Quote, error) {
	out := *q
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	out.CreatedAt = now

	data, err := json.Marshal(&out)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal quote")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO quotes (id, project_id, capacity_kw, data, created_at) VALUES ($1, $2, $3, $4, $5)`,
		out.ID, out.ProjectID, out.CapacityKW, data, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert quote %s", out.ID)
	}
	return &out, nil
}

func (s *PostgresStore) ListQuotes(ctx context.Context, projectID string) ([]model.Quote, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM quotes WHERE project_id = $1 ORDER BY created_at DESC`,
		projectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list quotes")
	}
	defer rows.Close()

	var quotes []model.Quote
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan quote")
		}
		var q model.Quote
		if err := json.Unmarshal(data, &q); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal quote")
		}
		quotes = append(quotes, q)
	}
	return quotes, eris.Wrap(rows.Err(), "postgres: list quotes iterate")
}
