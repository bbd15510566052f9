package extract

import (
	"regexp"
	"strconv"

	"github.com/luminous-energy/plant-cli/internal/model"
)

// rocDateExpr captures one date expression in any shape NormalizeDate
// accepts, as it appears in utility and regulatory correspondence.
const rocDateExpr = `((?:民國|中華民國)?\s*\d{2,4}\s*年\s*\d{1,2}\s*月\s*\d{1,2}\s*日?|\d{2,4}[/.\-]\d{1,2}[/.\-]\d{1,2})`

// datePattern is a named recognizer for one date kind. Patterns for a kind
// are tried in listed order; the first match wins.
type datePattern struct {
	name string
	re   *regexp.Regexp
}

var datePatterns = map[model.DateKind][]datePattern{
	model.DateKindSubmission: {
		{"reply-to-applicant", regexp.MustCompile(`復\s*台端\s*(?:於\s*)?` + rocDateExpr)},
		{"application-date", regexp.MustCompile(`申請日期\s*[:：]?\s*` + rocDateExpr)},
		{"received-date", regexp.MustCompile(`收文日期\s*[:：]?\s*` + rocDateExpr)},
	},
	model.DateKindIssue: {
		{"issue-date", regexp.MustCompile(`發文日期\s*[:：]?\s*` + rocDateExpr)},
		{"permit-issued", regexp.MustCompile(`核發日期\s*[:：]?\s*` + rocDateExpr)},
	},
	model.DateKindMeterReading: {
		{"parallel-operation", regexp.MustCompile(`併聯運轉日\s*[:：]?\s*` + rocDateExpr)},
		{"meter-installed", regexp.MustCompile(`[掛裝]表日期\s*[:：]?\s*` + rocDateExpr)},
		{"parallel-date", regexp.MustCompile(`併聯日期\s*[:：]?\s*` + rocDateExpr)},
	},
}

// fieldPattern is a named recognizer for one identifier or equipment field.
// The first capture group is the value; validate, when set, gates the match.
type fieldPattern struct {
	name     string
	re       *regexp.Regexp
	validate func(string) bool
}

var fieldPatterns = map[string][]fieldPattern{
	"pv_id": {
		// 120114PV0442: six-digit prefix, never a letter prefix.
		{"pv-id", regexp.MustCompile(`\b(\d{6}PV\d{4})\b`), nil},
	},
	"energy_permit_id": {
		// YUN-114PV0349: county letter prefix, three-digit ROC year.
		{"energy-permit-id", regexp.MustCompile(`\b([A-Z]{1,4}[-－]\d{3}PV\d{4})\b`), nil},
		{"energy-permit-id-nodash", regexp.MustCompile(`\b([A-Z]{2,4}\d{3}PV\d{4})\b`), nil},
	},
	"contract_no": {
		{"contract-no", regexp.MustCompile(`(?:契約|合約)(?:編號|號碼)\s*[:：]?\s*([A-Za-z0-9][A-Za-z0-9\-]{4,19})`), nil},
		{"contract-no-suffix", regexp.MustCompile(`第\s*([A-Za-z0-9\-]{5,20})\s*號\s*(?:契約|合約)`), nil},
	},
	"meter_no": {
		{"meter-no", regexp.MustCompile(`電號\s*[:：]?\s*([0-9][0-9\-]{8,15})`), validMeterNo},
	},
	"module_model": {
		{"module-model", regexp.MustCompile(`(?:太陽能)?模組(?:型號)?\s*[:：]\s*([A-Za-z0-9][A-Za-z0-9./+\-]{2,30})`), nil},
	},
	"inverter_model": {
		{"inverter-model", regexp.MustCompile(`(?:變流器|逆變器)(?:型號)?\s*[:：]\s*([A-Za-z0-9][A-Za-z0-9./+\-]{2,30})`), nil},
	},
	"panel_watt": {
		{"panel-watt-peak", regexp.MustCompile(`\b(\d{3,4})\s*Wp\b`), validPanelWatt},
		{"panel-watt-module", regexp.MustCompile(`模組[^。\n]{0,10}?(\d{3,4})\s*W\b`), validPanelWatt},
	},
	"panel_count": {
		{"panel-count", regexp.MustCompile(`(\d{1,5})\s*片`), validPanelCount},
	},
	"capacity_kw": {
		{"capacity-kw", regexp.MustCompile(`(\d{1,6}(?:\.\d{1,3})?)\s*(?:kWp?|KW|瓩)`), validCapacityKW},
	},
	"voltage": {
		{"voltage-labeled", regexp.MustCompile(`電壓\s*[:：]?\s*(\d[\d.,]*\s*[kK]?V)`), nil},
		{"voltage-grade", regexp.MustCompile(`(低壓|高壓|特高壓)\s*(?:供電|併聯)`), nil},
	},
	"grid_mode": {
		{"grid-mode", regexp.MustCompile(`(全額躉售|餘電躉售|自發自用)`), nil},
	},
}

func validMeterNo(s string) bool {
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 10 && digits <= 13
}

func validPanelWatt(s string) bool {
	n, err := strconv.Atoi(s)
	return err == nil && n >= 100 && n <= 1000
}

func validPanelCount(s string) bool {
	n, err := strconv.Atoi(s)
	return err == nil && n >= 1 && n <= 100000
}

func validCapacityKW(s string) bool {
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && f >= 0.1 && f <= 100000
}
