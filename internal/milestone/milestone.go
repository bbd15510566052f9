// Package milestone infers lifecycle stage advances from extracted documents.
package milestone

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/luminous-energy/plant-cli/internal/model"
	"github.com/luminous-energy/plant-cli/internal/store"
)

// stageForKind maps a document kind to the stage its presence implies.
var stageForKind = map[model.DocumentKind]model.Stage{
	model.DocKindAcceptanceLetter:  model.StageUtilityReview,
	model.DocKindReviewLetter:      model.StageUtilityReview,
	model.DocKindEnergyPermit:      model.StageEnergyPermit,
	model.DocKindMeterRegistration: model.StageGridConnection,
	model.DocKindPPA:               model.StagePPA,
	model.DocKindCompletionReport:  model.StageCompleted,
}

// Suggestion proposes a stage advance for a project. Stage changes are never
// applied automatically; an operator confirms them.
type Suggestion struct {
	ProjectID    string      `json:"project_id"`
	Current      model.Stage `json:"current"`
	Suggested    model.Stage `json:"suggested"`
	DocumentID   string      `json:"document_id"`
	DocumentKind string      `json:"document_kind"`
	EffectiveOn  string      `json:"effective_on,omitempty"` // ISO date from the document, if extracted
}

// ForDocument returns the stage advance a single document implies, or nil if
// the document does not move the project forward. Stages only advance:
// a review letter arriving after grid connection never regresses the project.
func ForDocument(project *model.Project, doc *model.Document) *Suggestion {
	implied, ok := stageForKind[doc.Kind]
	if !ok {
		return nil
	}
	if model.StageRank(implied) <= model.StageRank(project.Stage) {
		return nil
	}

	return &Suggestion{
		ProjectID:    project.ID,
		Current:      project.Stage,
		Suggested:    implied,
		DocumentID:   doc.ID,
		DocumentKind: string(doc.Kind),
		EffectiveOn:  effectiveDate(doc),
	}
}

// effectiveDate picks the extracted date that best timestamps the milestone.
// Issue dates beat submission dates; meter dates beat both for grid work.
func effectiveDate(doc *model.Document) string {
	var byKind [3]string
	for _, d := range doc.Dates {
		switch d.Kind {
		case model.DateKindMeterReading:
			byKind[0] = d.Date
		case model.DateKindIssue:
			byKind[1] = d.Date
		case model.DateKindSubmission:
			byKind[2] = d.Date
		}
	}
	for _, date := range byKind {
		if date != "" {
			return date
		}
	}
	return ""
}

// Suggest scans a project's extracted and verified documents and returns the
// single best stage advance, or nil when the project is already current.
func Suggest(project *model.Project, docs []model.Document) *Suggestion {
	var best *Suggestion
	for i := range docs {
		doc := &docs[i]
		if doc.Status == model.DocStatusUploaded {
			continue // nothing recognized yet
		}
		s := ForDocument(project, doc)
		if s == nil {
			continue
		}
		if best == nil || model.StageRank(s.Suggested) > model.StageRank(best.Suggested) {
			best = s
		}
	}
	return best
}

// Apply confirms a suggestion: it moves the project to the suggested stage
// and stamps the matching lifecycle date when the document supplied one.
func Apply(ctx context.Context, st store.Store, s *Suggestion) error {
	project, err := st.GetProject(ctx, s.ProjectID)
	if err != nil {
		return eris.Wrapf(err, "milestone: load project %s", s.ProjectID)
	}
	if model.StageRank(s.Suggested) <= model.StageRank(project.Stage) {
		return eris.Errorf("milestone: project %s already at or past %s", s.ProjectID, s.Suggested)
	}

	if s.EffectiveOn != "" {
		if ts, err := time.ParseInLocation("2006-01-02", s.EffectiveOn, time.UTC); err == nil {
			switch s.Suggested {
			case model.StageUtilityReview:
				project.SubmittedAt = &ts
			case model.StageEnergyPermit:
				project.PermitIssuedAt = &ts
			case model.StageGridConnection:
				project.GridConnectedAt = &ts
			}
		}
	}

	project.Stage = s.Suggested
	if err := st.UpdateProject(ctx, project); err != nil {
		return eris.Wrapf(err, "milestone: advance project %s", s.ProjectID)
	}

	zap.L().Info("stage advanced",
		zap.String("project_id", s.ProjectID),
		zap.String("from", string(s.Current)),
		zap.String("to", string(s.Suggested)),
		zap.String("document_id", s.DocumentID),
	)
	return nil
}
