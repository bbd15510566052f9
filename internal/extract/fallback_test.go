package extract

import (
	"strings"
	"testing"

	"github.com/luminous-energy/plant-cli/internal/model"
)

func TestFallbackDate_ReplyToApplicant(t *testing.T) {
	text := "主旨：復台端 114年11月21日 申請案，復如說明。"
	d, ok := fallbackDate(text, model.DateKindSubmission)
	if !ok {
		t.Fatal("expected a submission date")
	}
	if d.Date != "2025-11-21" {
		t.Errorf("date = %q, want 2025-11-21", d.Date)
	}
	if d.Confidence != fallbackConfidence {
		t.Errorf("confidence = %v, want %v", d.Confidence, fallbackConfidence)
	}
	if d.Provenance != "pattern:reply-to-applicant" {
		t.Errorf("provenance = %q", d.Provenance)
	}
	if d.SurroundingText == "" || !strings.Contains(d.SurroundingText, "復台端") {
		t.Errorf("surrounding text %q should contain the match", d.SurroundingText)
	}
}

func TestFallbackDate_PatternOrder(t *testing.T) {
	// Both patterns present: the listed order decides, not text position.
	text := "申請日期：113/01/02 另復台端 114年11月21日 之申請"
	d, ok := fallbackDate(text, model.DateKindSubmission)
	if !ok {
		t.Fatal("expected a date")
	}
	if d.Provenance != "pattern:reply-to-applicant" {
		t.Errorf("provenance = %q, want first listed pattern to win", d.Provenance)
	}
	if d.Date != "2025-11-21" {
		t.Errorf("date = %q", d.Date)
	}
}

func TestFallbackDate_IssueAndMeter(t *testing.T) {
	text := "發文日期：中華民國114年3月10日\n併聯運轉日：114/06/30"
	issue, ok := fallbackDate(text, model.DateKindIssue)
	if !ok || issue.Date != "2025-03-10" {
		t.Errorf("issue: got %+v ok=%v", issue, ok)
	}
	meter, ok := fallbackDate(text, model.DateKindMeterReading)
	if !ok || meter.Date != "2025-06-30" {
		t.Errorf("meter: got %+v ok=%v", meter, ok)
	}
}

func TestFallbackDate_InvalidDateSkipsToNothing(t *testing.T) {
	text := "發文日期：114年13月40日"
	if d, ok := fallbackDate(text, model.DateKindIssue); ok {
		t.Errorf("expected no date for invalid components, got %+v", d)
	}
}

func TestFieldFallback_PermitAndPVIDDoNotCrossMatch(t *testing.T) {
	text := "設備登記編號 120114PV0442，同意備案編號 YUN-114PV0349。"
	var f model.ExtractedFields
	applyFieldFallback(text, &f)

	if f.PVID != "120114PV0442" {
		t.Errorf("pv id = %q, want 120114PV0442", f.PVID)
	}
	if f.EnergyPermitID != "YUN-114PV0349" {
		t.Errorf("energy permit id = %q, want YUN-114PV0349", f.EnergyPermitID)
	}
	if f.Provenance["pv_id"] != "pattern:pv-id" {
		t.Errorf("pv_id provenance = %q", f.Provenance["pv_id"])
	}
	if f.Provenance["energy_permit_id"] != "pattern:energy-permit-id" {
		t.Errorf("energy_permit_id provenance = %q", f.Provenance["energy_permit_id"])
	}
}

func TestFieldFallback_EquipmentFields(t *testing.T) {
	text := foldText("模組型號：AUO-450MW 變流器型號：SUN2000-100KTL 單片 450 Wp 共 1110 片 設置容量 499.5 kW 全額躉售 電號：07-34-5678-90-1")
	var f model.ExtractedFields
	applyFieldFallback(text, &f)

	if f.ModuleModel != "AUO-450MW" {
		t.Errorf("module model = %q", f.ModuleModel)
	}
	if f.InverterModel != "SUN2000-100KTL" {
		t.Errorf("inverter model = %q", f.InverterModel)
	}
	if f.PanelWatt == nil || *f.PanelWatt != 450 {
		t.Errorf("panel watt = %v", f.PanelWatt)
	}
	if f.PanelCount == nil || *f.PanelCount != 1110 {
		t.Errorf("panel count = %v", f.PanelCount)
	}
	if f.CapacityKW == nil || *f.CapacityKW != 499.5 {
		t.Errorf("capacity = %v", f.CapacityKW)
	}
	if f.GridMode != "全額躉售" {
		t.Errorf("grid mode = %q", f.GridMode)
	}
	if f.MeterNo != "07-34-5678-90-1" {
		t.Errorf("meter no = %q", f.MeterNo)
	}
}

func TestFieldFallback_DoesNotOverwriteExisting(t *testing.T) {
	text := "設備登記編號 120114PV0442"
	f := model.ExtractedFields{PVID: "999999PV9999"}
	f.SetProvenance("pv_id", aiProvenance)
	applyFieldFallback(text, &f)

	if f.PVID != "999999PV9999" {
		t.Errorf("pv id overwritten: %q", f.PVID)
	}
	if f.Provenance["pv_id"] != aiProvenance {
		t.Errorf("provenance overwritten: %q", f.Provenance["pv_id"])
	}
}

func TestFieldFallback_ValidationRejectsOutOfRange(t *testing.T) {
	// 5000 W is outside the plausible per-panel range.
	var f model.ExtractedFields
	applyFieldFallback("單片 5000 Wp", &f)
	if f.PanelWatt != nil {
		t.Errorf("panel watt = %v, want rejection", *f.PanelWatt)
	}
}
