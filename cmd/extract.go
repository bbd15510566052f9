package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/luminous-energy/plant-cli/internal/extract"
	"github.com/luminous-energy/plant-cli/pkg/claude"
)

var extractOutput string

// mimeByExt covers the document types the extractor accepts.
var mimeByExt = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

type fileResult struct {
	File   string          `json:"file"`
	Result *extract.Result `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

var extractCmd = &cobra.Command{
	Use:   "extract <file>...",
	Short: "Extract milestone dates and fields from document scans",
	Long: `Runs each document through a multimodal Claude pass with regex fallback
and prints the recognized dates and identifiers as JSON.

Example:
  plant-cli extract 同意備案函.pdf 掛表單.jpg --output results.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("extract"); err != nil {
			return err
		}

		client := claude.NewClient(cfg.Anthropic.Key,
			claude.WithRateLimit(cfg.Anthropic.RequestsPerMinute))

		extractCfg := extract.DefaultConfig()
		if cfg.Anthropic.Model != "" {
			extractCfg.Model = cfg.Anthropic.Model
		}
		if cfg.Anthropic.MaxTokens > 0 {
			extractCfg.MaxTokens = int64(cfg.Anthropic.MaxTokens)
		}
		extractor := extract.New(client, extractCfg)

		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Extract.Concurrency)

		var mu sync.Mutex
		results := make([]fileResult, len(args))

		for i, path := range args {
			g.Go(func() error {
				res := extractOne(gCtx, extractor, path)
				mu.Lock()
				results[i] = res
				mu.Unlock()
				return nil // individual failures don't abort the batch
			})
		}
		_ = g.Wait()

		var failed int
		for _, r := range results {
			if r.Error != "" {
				failed++
			}
		}
		zap.L().Info("extraction batch complete",
			zap.Int("total", len(args)),
			zap.Int("failed", failed),
		)

		return writeExtractResults(results)
	},
}

// extractOne reads and extracts a single document, folding any failure into
// the per-file result so one bad scan never sinks the batch.
func extractOne(ctx context.Context, extractor *extract.Extractor, path string) fileResult {
	res := fileResult{File: path}

	mimeType, ok := mimeByExt[strings.ToLower(filepath.Ext(path))]
	if !ok {
		res.Error = "unsupported file type (want pdf, jpg, png, gif, or webp)"
		return res
	}

	data, err := os.ReadFile(path)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	result, err := extractor.Extract(ctx, data, mimeType, filepath.Base(path))
	if err != nil {
		zap.L().Error("extraction failed", zap.String("file", path), zap.Error(err))
		res.Error = err.Error()
		return res
	}

	res.Result = result
	return res
}

func writeExtractResults(results []fileResult) error {
	w := os.Stdout
	if extractOutput != "" {
		f, err := os.Create(extractOutput)
		if err != nil {
			return eris.Wrapf(err, "create %s", extractOutput)
		}
		defer f.Close() //nolint:errcheck
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func init() {
	extractCmd.Flags().StringVar(&extractOutput, "output", "", "write results JSON to file (default: stdout)")
	rootCmd.AddCommand(extractCmd)
}
