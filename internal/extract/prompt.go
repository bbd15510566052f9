package extract

import (
	"encoding/json"
	"strconv"
	"strings"
)

// systemPrompt asks for a single JSON object so the response can be parsed
// without a second round trip. Field names mirror aiResult.
const systemPrompt = `You read Taiwanese solar power plant documents: Taipower letters,
energy bureau permits, meter registration forms, purchase agreements.
Dates in these documents usually use the Republic of China calendar
(民國年 = Gregorian year - 1911).

Respond with exactly one JSON object, no commentary, with these keys
(omit a key or use null when the document does not show it):

{
  "submission_date": "date the applicant submitted, as written",
  "issue_date": "date the authority issued the letter (發文日期), as written",
  "meter_date": "meter installation or parallel operation date, as written",
  "pv_id": "PV registration number, e.g. 120114PV0442",
  "energy_permit_id": "energy bureau permit number, e.g. YUN-114PV0349",
  "contract_no": "contract number",
  "meter_no": "Taipower electricity number (電號)",
  "module_model": "PV module model",
  "inverter_model": "inverter model",
  "panel_watt": 0,
  "panel_count": 0,
  "capacity_kw": 0.0,
  "voltage": "connection voltage",
  "grid_mode": "全額躉售, 餘電躉售 or 自發自用",
  "raw_text": "full transcription of all readable text in the document"
}

Copy dates exactly as written; do not convert calendars yourself.`

// aiResult is the structured field set recovered from the model response.
type aiResult struct {
	SubmissionDate string
	IssueDate      string
	MeterDate      string
	PVID           string
	EnergyPermitID string
	ContractNo     string
	MeterNo        string
	ModuleModel    string
	InverterModel  string
	PanelWatt      *int
	PanelCount     *int
	CapacityKW     *float64
	Voltage        string
	GridMode       string
	RawText        string
}

// decodeAIResult recovers the JSON object from a model response that may
// wrap it in prose or a code fence, and coerces loosely-typed values. The
// model is not trusted to follow the schema exactly, so every field is read
// leniently; ok=false means no JSON object was found at all.
func decodeAIResult(raw string) (*aiResult, bool) {
	payload := extractJSONObject(raw)
	if payload == "" {
		return nil, false
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return nil, false
	}

	res := &aiResult{
		SubmissionDate: asString(m["submission_date"]),
		IssueDate:      asString(m["issue_date"]),
		MeterDate:      asString(m["meter_date"]),
		PVID:           asString(m["pv_id"]),
		EnergyPermitID: asString(m["energy_permit_id"]),
		ContractNo:     asString(m["contract_no"]),
		MeterNo:        asString(m["meter_no"]),
		ModuleModel:    asString(m["module_model"]),
		InverterModel:  asString(m["inverter_model"]),
		PanelWatt:      asInt(m["panel_watt"]),
		PanelCount:     asInt(m["panel_count"]),
		CapacityKW:     asFloat(m["capacity_kw"]),
		Voltage:        asString(m["voltage"]),
		GridMode:       asString(m["grid_mode"]),
		RawText:        asString(m["raw_text"]),
	}
	return res, true
}

// extractJSONObject returns the first balanced {...} span in s, preferring
// the inside of a ```json fence when one is present.
func extractJSONObject(s string) string {
	if i := strings.Index(s, "```json"); i >= 0 {
		rest := s[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			s = rest[:j]
		}
	}

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if strings.EqualFold(s, "null") || strings.EqualFold(s, "n/a") {
			return ""
		}
		return s
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func asInt(v any) *int {
	switch t := v.(type) {
	case float64:
		if t <= 0 {
			return nil
		}
		n := int(t)
		return &n
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil && n > 0 {
			return &n
		}
	}
	return nil
}

func asFloat(v any) *float64 {
	switch t := v.(type) {
	case float64:
		if t <= 0 {
			return nil
		}
		return &t
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil && f > 0 {
			return &f
		}
	}
	return nil
}
