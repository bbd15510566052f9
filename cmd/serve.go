package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luminous-energy/plant-cli/internal/extract"
	"github.com/luminous-energy/plant-cli/internal/quote"
	"github.com/luminous-energy/plant-cli/internal/resilience"
	"github.com/luminous-energy/plant-cli/internal/server"
	"github.com/luminous-energy/plant-cli/pkg/claude"
	"github.com/luminous-energy/plant-cli/pkg/drive"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		opts := []server.Option{server.WithJWTSecret(cfg.Server.JWTSecret)}

		if cfg.Anthropic.Key != "" {
			client := claude.NewClient(cfg.Anthropic.Key,
				claude.WithRateLimit(cfg.Anthropic.RequestsPerMinute))
			extractCfg := extract.DefaultConfig()
			if cfg.Anthropic.Model != "" {
				extractCfg.Model = cfg.Anthropic.Model
			}
			if cfg.Anthropic.MaxTokens > 0 {
				extractCfg.MaxTokens = int64(cfg.Anthropic.MaxTokens)
			}
			opts = append(opts, server.WithExtractor(extract.New(client, extractCfg)))
		} else {
			zap.L().Warn("anthropic key not set, extraction endpoints disabled")
		}

		if cfg.Drive.Token != "" {
			breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})
			opts = append(opts, server.WithDrive(drive.NewClient(
				drive.StaticToken(cfg.Drive.Token),
				drive.WithBaseURL(cfg.Drive.BaseURL),
				drive.WithUploadURL(cfg.Drive.UploadURL),
				drive.WithCircuitBreaker(breaker),
			)))
		}

		calc, err := loadCalculator()
		if err != nil {
			return err
		}
		opts = append(opts, server.WithQuoteCalculator(calc))

		srv := server.New(st, opts...)
		return srv.Run(ctx, cfg.Server.Port)
	},
}

// loadCalculator builds the quote calculator from the configured rate card,
// falling back to the embedded defaults.
func loadCalculator() (*quote.Calculator, error) {
	var rates quote.Rates
	var err error
	if cfg.Quote.RatesFile != "" {
		rates, err = quote.LoadRates(cfg.Quote.RatesFile)
	} else {
		rates, err = quote.DefaultRates()
	}
	if err != nil {
		return nil, eris.Wrap(err, "load rate card")
	}
	return quote.NewCalculator(rates), nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
