package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/luminous-energy/plant-cli/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = eris.New("store: not found")

// ProjectFilter specifies criteria for listing projects.
type ProjectFilter struct {
	Status model.ProjectStatus `json:"status,omitempty"`
	Stage  model.Stage         `json:"stage,omitempty"`
	City   string              `json:"city,omitempty"`
	Limit  int                 `json:"limit,omitempty"`
	Offset int                 `json:"offset,omitempty"`
}

// DocumentFilter specifies criteria for listing documents.
type DocumentFilter struct {
	ProjectID string               `json:"project_id,omitempty"`
	Kind      model.DocumentKind   `json:"kind,omitempty"`
	Status    model.DocumentStatus `json:"status,omitempty"`
	Limit     int                  `json:"limit,omitempty"`
	Offset    int                  `json:"offset,omitempty"`
}

// Store defines the persistence interface for the plant lifecycle pipeline.
type Store interface {
	// Projects
	CreateProject(ctx context.Context, p *model.Project) (*model.Project, error)
	UpdateProject(ctx context.Context, p *model.Project) error
	UpdateProjectStage(ctx context.Context, projectID string, stage model.Stage) error
	GetProject(ctx context.Context, projectID string) (*model.Project, error)
	GetProjectByCode(ctx context.Context, code string) (*model.Project, error)
	ListProjects(ctx context.Context, filter ProjectFilter) ([]model.Project, error)
	DeleteProject(ctx context.Context, projectID string) error

	// Investors and ownership
	CreateInvestor(ctx context.Context, inv *model.Investor) (*model.Investor, error)
	ListInvestors(ctx context.Context) ([]model.Investor, error)
	SetProjectShares(ctx context.Context, projectID string, shares []model.ProjectShare) error
	ListProjectShares(ctx context.Context, projectID string) ([]model.ProjectShare, error)

	// Documents
	CreateDocument(ctx context.Context, d *model.Document) (*model.Document, error)
	GetDocument(ctx context.Context, documentID string) (*model.Document, error)
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]model.Document, error)
	SaveExtraction(ctx context.Context, documentID string, dates []model.ExtractedDate, fields *model.ExtractedFields) error
	UpdateDocumentStatus(ctx context.Context, documentID string, status model.DocumentStatus) error

	// Quotes
	SaveQuote(ctx context.Context, q *model.Quote) (*model.Quote, error)
	ListQuotes(ctx context.Context, projectID string) ([]model.Quote, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
