package model

import "time"

// Investor represents a party holding a stake in one or more projects.
type Investor struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	TaxID       string    `json:"tax_id,omitempty"`
	ContactName string    `json:"contact_name,omitempty"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Note        string    `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProjectShare links an investor to a project with an ownership percentage.
type ProjectShare struct {
	ProjectID  string  `json:"project_id"`
	InvestorID string  `json:"investor_id"`
	SharePct   float64 `json:"share_pct"`
}
