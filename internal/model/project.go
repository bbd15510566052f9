// Package model defines the domain entities for the plant lifecycle pipeline.
package model

import "time"

// ProjectStatus represents the administrative state of a project record.
type ProjectStatus string

const (
	ProjectStatusDraft          ProjectStatus = "draft"
	ProjectStatusActive         ProjectStatus = "active"
	ProjectStatusSuspended      ProjectStatus = "suspended"
	ProjectStatusDecommissioned ProjectStatus = "decommissioned"
)

// Stage represents a project's position in the development lifecycle.
// Stages are ordered; StageRank gives the ordering.
type Stage string

const (
	StagePlanning       Stage = "planning"
	StageUtilityReview  Stage = "utility_review"
	StageEnergyPermit   Stage = "energy_permit"
	StageConstruction   Stage = "construction"
	StageGridConnection Stage = "grid_connection"
	StagePPA            Stage = "ppa"
	StageCompleted      Stage = "completed"
)

// Project represents a single solar power plant through its lifecycle.
type Project struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Code           string        `json:"code,omitempty"` // internal project number
	Status         ProjectStatus `json:"status"`
	Stage          Stage         `json:"stage"`
	Address        string        `json:"address,omitempty"`
	City           string        `json:"city,omitempty"`
	CapacityKW     float64       `json:"capacity_kw"`
	PanelWatt      int           `json:"panel_watt,omitempty"`
	PanelCount     int           `json:"panel_count,omitempty"`
	ModuleModel    string        `json:"module_model,omitempty"`
	InverterModel  string        `json:"inverter_model,omitempty"`
	GridMode       string        `json:"grid_mode,omitempty"` // 全額躉售 / 餘電躉售 / 自發自用
	FiTRate        float64       `json:"fit_rate,omitempty"`  // feed-in tariff, NTD per kWh
	PVID           string        `json:"pv_id,omitempty"`
	EnergyPermitID string        `json:"energy_permit_id,omitempty"`
	MeterNo        string        `json:"meter_no,omitempty"`

	// Boundary is the site boundary ring in TWD97 meters (x, y pairs).
	Boundary [][]float64 `json:"boundary,omitempty"`

	SubmittedAt      *time.Time `json:"submitted_at,omitempty"`
	PermitIssuedAt   *time.Time `json:"permit_issued_at,omitempty"`
	GridConnectedAt  *time.Time `json:"grid_connected_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StageRank returns the ordinal position of a stage, or -1 for unknown stages.
func StageRank(s Stage) int {
	switch s {
	case StagePlanning:
		return 0
	case StageUtilityReview:
		return 1
	case StageEnergyPermit:
		return 2
	case StageConstruction:
		return 3
	case StageGridConnection:
		return 4
	case StagePPA:
		return 5
	case StageCompleted:
		return 6
	default:
		return -1
	}
}
