package extract

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/width"

	"github.com/luminous-energy/plant-cli/internal/model"
)

const fallbackConfidence = 0.85

// excerptRadius is how many runes around a match go into SurroundingText.
const excerptRadius = 24

// fallbackDate scans text against the ordered pattern list for one date
// kind. The first pattern whose captured date survives normalization wins.
func fallbackDate(text string, kind model.DateKind) (model.ExtractedDate, bool) {
	for _, p := range datePatterns[kind] {
		loc := p.re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		raw := text[loc[2]:loc[3]]
		iso, ok := NormalizeDate(raw)
		if !ok {
			continue
		}
		return model.ExtractedDate{
			Kind:            kind,
			Date:            iso,
			SurroundingText: excerpt(text, loc[0], loc[1]),
			Confidence:      fallbackConfidence,
			Provenance:      "pattern:" + p.name,
		}, true
	}
	return model.ExtractedDate{}, false
}

// firstFieldMatch returns the first valid pattern match for a field, along
// with the name of the pattern that produced it.
func firstFieldMatch(text, field string) (value, pattern string, ok bool) {
	for _, p := range fieldPatterns[field] {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v := strings.TrimSpace(m[1])
		if p.validate != nil && !p.validate(v) {
			continue
		}
		return v, "pattern:" + p.name, true
	}
	return "", "", false
}

// applyFieldFallback fills each still-absent field from its pattern list.
// Fields already populated by the semantic pass are left alone.
func applyFieldFallback(text string, f *model.ExtractedFields) {
	if f.PVID == "" {
		if v, src, ok := firstFieldMatch(text, "pv_id"); ok {
			f.PVID = v
			f.SetProvenance("pv_id", src)
		}
	}
	if f.EnergyPermitID == "" {
		if v, src, ok := firstFieldMatch(text, "energy_permit_id"); ok {
			f.EnergyPermitID = v
			f.SetProvenance("energy_permit_id", src)
		}
	}
	if f.ContractNo == "" {
		if v, src, ok := firstFieldMatch(text, "contract_no"); ok {
			f.ContractNo = v
			f.SetProvenance("contract_no", src)
		}
	}
	if f.MeterNo == "" {
		if v, src, ok := firstFieldMatch(text, "meter_no"); ok {
			f.MeterNo = v
			f.SetProvenance("meter_no", src)
		}
	}
	if f.ModuleModel == "" {
		if v, src, ok := firstFieldMatch(text, "module_model"); ok {
			f.ModuleModel = v
			f.SetProvenance("module_model", src)
		}
	}
	if f.InverterModel == "" {
		if v, src, ok := firstFieldMatch(text, "inverter_model"); ok {
			f.InverterModel = v
			f.SetProvenance("inverter_model", src)
		}
	}
	if f.PanelWatt == nil {
		if v, src, ok := firstFieldMatch(text, "panel_watt"); ok {
			if n, err := strconv.Atoi(v); err == nil {
				f.PanelWatt = &n
				f.SetProvenance("panel_watt", src)
			}
		}
	}
	if f.PanelCount == nil {
		if v, src, ok := firstFieldMatch(text, "panel_count"); ok {
			if n, err := strconv.Atoi(v); err == nil {
				f.PanelCount = &n
				f.SetProvenance("panel_count", src)
			}
		}
	}
	if f.CapacityKW == nil {
		if v, src, ok := firstFieldMatch(text, "capacity_kw"); ok {
			if x, err := strconv.ParseFloat(v, 64); err == nil {
				f.CapacityKW = &x
				f.SetProvenance("capacity_kw", src)
			}
		}
	}
	if f.Voltage == "" {
		if v, src, ok := firstFieldMatch(text, "voltage"); ok {
			f.Voltage = v
			f.SetProvenance("voltage", src)
		}
	}
	if f.GridMode == "" {
		if v, src, ok := firstFieldMatch(text, "grid_mode"); ok {
			f.GridMode = v
			f.SetProvenance("grid_mode", src)
		}
	}
}

// foldText normalizes full-width characters once before pattern scanning.
func foldText(s string) string {
	return width.Fold.String(s)
}

// excerpt returns up to excerptRadius runes of context on each side of
// [start, end), collapsed to a single line.
func excerpt(text string, start, end int) string {
	left := start
	for i := 0; i < excerptRadius && left > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(text[:left])
		left -= size
	}
	right := end
	for i := 0; i < excerptRadius && right < len(text); i++ {
		_, size := utf8.DecodeRuneInString(text[right:])
		right += size
	}
	return strings.Join(strings.Fields(text[left:right]), " ")
}
