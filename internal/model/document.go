package model

import "time"

// DocumentKind classifies regulatory and utility correspondence.
type DocumentKind string

const (
	DocKindAcceptanceLetter  DocumentKind = "acceptance_letter"  // 同意備案函
	DocKindReviewLetter      DocumentKind = "review_letter"      // 併聯審查意見書
	DocKindEnergyPermit      DocumentKind = "energy_permit"      // 電業執照 / 設備登記
	DocKindMeterRegistration DocumentKind = "meter_registration" // 掛表 / 併聯通知
	DocKindPPA               DocumentKind = "ppa"                // 購售電合約
	DocKindCompletionReport  DocumentKind = "completion_report"  // 竣工報告
	DocKindOther             DocumentKind = "other"
)

// DocumentStatus tracks a document through verification.
type DocumentStatus string

const (
	DocStatusUploaded  DocumentStatus = "uploaded"
	DocStatusExtracted DocumentStatus = "extracted"
	DocStatusVerified  DocumentStatus = "verified"
)

// Document represents an uploaded project document and what was recognized in it.
type Document struct {
	ID          string         `json:"id"`
	ProjectID   string         `json:"project_id"`
	Kind        DocumentKind   `json:"kind"`
	Title       string         `json:"title"`
	MimeType    string         `json:"mime_type"`
	DriveFileID string         `json:"drive_file_id,omitempty"`
	SizeBytes   int64          `json:"size_bytes,omitempty"`
	Status      DocumentStatus `json:"status"`

	// Dates and Fields hold the extraction output kept for human review.
	Dates  []ExtractedDate  `json:"dates,omitempty"`
	Fields *ExtractedFields `json:"fields,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
