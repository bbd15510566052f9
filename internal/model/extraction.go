package model

// DateKind identifies which milestone date a recognized calendar event refers to.
type DateKind string

const (
	DateKindSubmission   DateKind = "submission"
	DateKindIssue        DateKind = "issue"
	DateKindMeterReading DateKind = "meter_reading"
	DateKindUnknown      DateKind = "unknown"
)

// ExtractedDate is one calendar event recognized in a document. Date is an
// ISO YYYY-MM-DD string in the Gregorian calendar regardless of how the
// document wrote it.
type ExtractedDate struct {
	Kind            DateKind `json:"kind"`
	Date            string   `json:"date"`
	SurroundingText string   `json:"surrounding_text,omitempty"`
	Confidence      float64  `json:"confidence"`
	Provenance      string   `json:"provenance"`
}

// ExtractedFields is the flat bag of identifiers and equipment attributes
// recognized in a document. Absent fields stay zero/nil; numeric fields use
// pointers so zero values are distinguishable from "not found".
type ExtractedFields struct {
	PVID           string   `json:"pv_id,omitempty"`
	EnergyPermitID string   `json:"energy_permit_id,omitempty"`
	ContractNo     string   `json:"contract_no,omitempty"`
	MeterNo        string   `json:"meter_no,omitempty"`
	ModuleModel    string   `json:"module_model,omitempty"`
	InverterModel  string   `json:"inverter_model,omitempty"`
	PanelWatt      *int     `json:"panel_watt,omitempty"`
	PanelCount     *int     `json:"panel_count,omitempty"`
	CapacityKW     *float64 `json:"capacity_kw,omitempty"`
	Voltage        string   `json:"voltage,omitempty"`
	GridMode       string   `json:"grid_mode,omitempty"`

	// Provenance records, per populated field name, which extraction path
	// produced the value ("claude" or a named fallback pattern).
	Provenance map[string]string `json:"provenance,omitempty"`
}

// Empty reports whether no field was populated.
func (f *ExtractedFields) Empty() bool {
	if f == nil {
		return true
	}
	return f.PVID == "" && f.EnergyPermitID == "" && f.ContractNo == "" &&
		f.MeterNo == "" && f.ModuleModel == "" && f.InverterModel == "" &&
		f.PanelWatt == nil && f.PanelCount == nil && f.CapacityKW == nil &&
		f.Voltage == "" && f.GridMode == ""
}

// SetProvenance records the extraction path for a field, allocating the map
// on first use.
func (f *ExtractedFields) SetProvenance(field, source string) {
	if f.Provenance == nil {
		f.Provenance = make(map[string]string)
	}
	f.Provenance[field] = source
}
