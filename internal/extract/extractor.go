// Package extract turns document bytes into recognized milestone dates and
// identifier fields. One semantic pass against Claude, then ordered regex
// fallbacks over the transcription for anything the model missed, merged
// with the semantic pass taking precedence.
package extract

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/luminous-energy/plant-cli/internal/model"
	"github.com/luminous-energy/plant-cli/internal/resilience"
	"github.com/luminous-energy/plant-cli/pkg/claude"
)

// MaxDocumentBytes is the input size ceiling, enforced before any network
// call. Larger documents are rejected so the operator enters dates by hand.
const MaxDocumentBytes = 3 << 20

const (
	defaultModel     = "claude-sonnet-4-5-20250929"
	defaultMaxTokens = 4096

	aiConfidence = 0.95
	aiProvenance = "claude"
)

var supportedMimeTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"application/pdf": true,
}

// Config controls the extractor's model selection and retry behavior.
type Config struct {
	Model     string
	MaxTokens int64
	Retry     resilience.RetryConfig
}

// DefaultConfig returns the production configuration: three retries at
// 1s/2s/4s, deterministic backoff.
func DefaultConfig() Config {
	return Config{
		Model:     defaultModel,
		MaxTokens: defaultMaxTokens,
		Retry: resilience.RetryConfig{
			MaxAttempts:    4,
			InitialBackoff: time.Second,
			MaxBackoff:     4 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0,
			OnRetry:        resilience.RetryLogger("claude", "extract"),
		},
	}
}

// Result is the merged output of one extraction call.
type Result struct {
	Dates   []model.ExtractedDate `json:"dates"`
	Fields  model.ExtractedFields `json:"fields"`
	RawText string                `json:"raw_text,omitempty"`
}

// Extractor is a stateless bytes-to-fields transform. Safe for concurrent
// use; each call makes at most one (retried) upstream request.
type Extractor struct {
	client claude.Client
	cfg    Config
}

// New creates an Extractor using the given Claude client.
func New(client claude.Client, cfg Config) *Extractor {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	return &Extractor{client: client, cfg: cfg}
}

// Extract runs the semantic pass and the pattern fallback over a single
// document and merges the two. titleHint, when non-empty, is given to the
// model as context. Partial results are normal; an empty Result with a nil
// error means the model produced nothing usable.
func (e *Extractor) Extract(ctx context.Context, data []byte, mimeType, titleHint string) (*Result, error) {
	if len(data) > MaxDocumentBytes {
		return nil, ErrPayloadTooLarge
	}
	if !supportedMimeTypes[mimeType] {
		return nil, eris.Wrapf(ErrUnsupportedType, "mime type %q", mimeType)
	}

	resp, err := e.callModel(ctx, data, mimeType, titleHint)
	if err != nil {
		return nil, err
	}

	raw := resp.Text()
	ai, ok := decodeAIResult(raw)
	if !ok {
		// No structured result and no usable text: nothing extracted.
		if len(raw) == 0 {
			zap.L().Warn("model response had no content", zap.String("model", resp.Model))
			return &Result{}, nil
		}
		ai = &aiResult{RawText: raw}
	}

	rawText := ai.RawText
	if rawText == "" {
		rawText = raw
	}
	folded := foldText(rawText)

	res := &Result{RawText: rawText}
	res.Dates = mergeDates(ai, folded)
	res.Fields = mergeFields(ai, folded)

	zap.L().Debug("extraction complete",
		zap.Int("dates", len(res.Dates)),
		zap.Int64("input_tokens", resp.Usage.InputTokens),
		zap.Int64("output_tokens", resp.Usage.OutputTokens),
	)
	return res, nil
}

func (e *Extractor) callModel(ctx context.Context, data []byte, mimeType, titleHint string) (*claude.MessageResponse, error) {
	content := "Read this document and return the JSON object."
	if titleHint != "" {
		content = fmt.Sprintf("Document title: %s\n%s", titleHint, content)
	}

	req := claude.MessageRequest{
		Model:     e.cfg.Model,
		MaxTokens: e.cfg.MaxTokens,
		System:    []claude.SystemBlock{{Text: systemPrompt}},
		Messages: []claude.Message{{
			Role:    "user",
			Content: content,
			Document: &claude.DocumentSource{
				MediaType: mimeType,
				Data:      base64.StdEncoding.EncodeToString(data),
			},
		}},
	}

	retryCfg := e.cfg.Retry
	retryCfg.ShouldRetry = retryable

	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*claude.MessageResponse, error) {
		r, callErr := e.client.CreateMessage(ctx, req)
		if callErr != nil {
			return nil, classifyCallError(callErr)
		}
		return r, nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "extract: semantic pass")
	}
	return resp, nil
}

// mergeDates builds the per-kind date set: semantic results first, then the
// first fallback pattern match for each kind still missing.
func mergeDates(ai *aiResult, folded string) []model.ExtractedDate {
	aiDates := map[model.DateKind]string{
		model.DateKindSubmission:   ai.SubmissionDate,
		model.DateKindIssue:        ai.IssueDate,
		model.DateKindMeterReading: ai.MeterDate,
	}

	kinds := []model.DateKind{model.DateKindSubmission, model.DateKindIssue, model.DateKindMeterReading}

	var out []model.ExtractedDate
	for _, kind := range kinds {
		if iso, ok := NormalizeDate(aiDates[kind]); ok {
			out = append(out, model.ExtractedDate{
				Kind:       kind,
				Date:       iso,
				Confidence: aiConfidence,
				Provenance: aiProvenance,
			})
			continue
		}
		if d, ok := fallbackDate(folded, kind); ok {
			out = append(out, d)
		}
	}
	return out
}

// mergeFields resolves each field independently: the semantic value when
// present, otherwise the first matching pattern.
func mergeFields(ai *aiResult, folded string) model.ExtractedFields {
	var f model.ExtractedFields

	setStr := func(field string, v string, dst *string) {
		if v != "" {
			*dst = v
			f.SetProvenance(field, aiProvenance)
		}
	}
	setStr("pv_id", ai.PVID, &f.PVID)
	setStr("energy_permit_id", ai.EnergyPermitID, &f.EnergyPermitID)
	setStr("contract_no", ai.ContractNo, &f.ContractNo)
	setStr("meter_no", ai.MeterNo, &f.MeterNo)
	setStr("module_model", ai.ModuleModel, &f.ModuleModel)
	setStr("inverter_model", ai.InverterModel, &f.InverterModel)
	setStr("voltage", ai.Voltage, &f.Voltage)
	setStr("grid_mode", ai.GridMode, &f.GridMode)

	if ai.PanelWatt != nil {
		f.PanelWatt = ai.PanelWatt
		f.SetProvenance("panel_watt", aiProvenance)
	}
	if ai.PanelCount != nil {
		f.PanelCount = ai.PanelCount
		f.SetProvenance("panel_count", aiProvenance)
	}
	if ai.CapacityKW != nil {
		f.CapacityKW = ai.CapacityKW
		f.SetProvenance("capacity_kw", aiProvenance)
	}

	applyFieldFallback(folded, &f)
	return f
}
