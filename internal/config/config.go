package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Drive     DriveConfig     `yaml:"drive" mapstructure:"drive"`
	Extract   ExtractConfig   `yaml:"extract" mapstructure:"extract"`
	Import    ImportConfig    `yaml:"import" mapstructure:"import"`
	Quote     QuoteConfig     `yaml:"quote" mapstructure:"quote"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key               string `yaml:"key" mapstructure:"key"`
	Model             string `yaml:"model" mapstructure:"model"`
	MaxTokens         int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerMinute int    `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// DriveConfig holds Google Drive API settings.
type DriveConfig struct {
	Token        string `yaml:"token" mapstructure:"token"`
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	UploadURL    string `yaml:"upload_url" mapstructure:"upload_url"`
	RootFolderID string `yaml:"root_folder_id" mapstructure:"root_folder_id"`
}

// ExtractConfig configures document extraction behavior.
type ExtractConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ImportConfig configures spreadsheet import behavior.
type ImportConfig struct {
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size"`
}

// QuoteConfig configures quotation generation.
type QuoteConfig struct {
	RatesFile string `yaml:"rates_file" mapstructure:"rates_file"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port      int    `yaml:"port" mapstructure:"port"`
	JWTSecret string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PLANT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.requests_per_minute", 30)
	v.SetDefault("drive.base_url", "https://www.googleapis.com/drive/v3")
	v.SetDefault("drive.upload_url", "https://www.googleapis.com/upload/drive/v3")
	v.SetDefault("extract.concurrency", 4)
	v.SetDefault("import.batch_size", 500)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the settings a command mode needs are present.
// Known modes: "serve", "extract", "import", "migrate", "quote", "site".
func (c *Config) Validate(mode string) error {
	var missing []string

	needDB := func() {
		if c.Store.DatabaseURL == "" && c.Store.Driver != "sqlite" {
			missing = append(missing, "store.database_url is required")
		}
	}

	switch mode {
	case "serve":
		needDB()
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			missing = append(missing, "server.port must be > 0 and <= 65535")
		}
		if c.Server.JWTSecret == "" {
			missing = append(missing, "server.jwt_secret is required")
		}
	case "extract":
		if c.Anthropic.Key == "" {
			missing = append(missing, "anthropic.key is required")
		}
		if c.Extract.Concurrency < 1 || c.Extract.Concurrency > 32 {
			missing = append(missing, "extract.concurrency must be between 1 and 32")
		}
	case "import":
		needDB()
		if c.Import.BatchSize < 1 {
			missing = append(missing, "import.batch_size must be >= 1")
		}
	case "migrate":
		needDB()
	case "quote", "site":
		// Both only touch the store when a project is named; the caller
		// validates on that path alone.
		needDB()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.New("config: " + strings.Join(missing, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
