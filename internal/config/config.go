package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when none is given explicitly.
// A missing file at this path is not an error.
const DefaultPath = "dexgen.yaml"

// Config holds all runtime configuration for dexgen.
type Config struct {
	DataDir            string    `yaml:"data_dir"             env:"DEXGEN_DATA_DIR"`
	APIBaseURL         string    `yaml:"api_base_url"         env:"DEXGEN_API_BASE_URL"`
	SpriteBaseURL      string    `yaml:"sprite_base_url"      env:"DEXGEN_SPRITE_BASE_URL"`
	TypeIconBaseURL    string    `yaml:"type_icon_base_url"   env:"DEXGEN_TYPE_ICON_BASE_URL"`
	NationalDexLast    int       `yaml:"national_dex_last"    env:"DEXGEN_NATIONAL_DEX_LAST"`
	HTTPTimeoutSeconds int       `yaml:"http_timeout_seconds" env:"DEXGEN_HTTP_TIMEOUT_SECONDS"` // 0 = no timeout
	IconConcurrency    int       `yaml:"icon_concurrency"     env:"DEXGEN_ICON_CONCURRENCY"`     // 0 = unlimited
	LedgerPath         string    `yaml:"ledger_path"          env:"DEXGEN_LEDGER_PATH"`          // unset = <data_dir>/ledger.db, "" disables the ledger
	Clean              bool      `yaml:"clean"                env:"DEXGEN_CLEAN"`
	Gzip               bool      `yaml:"gzip"                 env:"DEXGEN_GZIP"`
	Log                LogConfig `yaml:"log"`
}

// LogConfig controls logger construction.
type LogConfig struct {
	Level  string `yaml:"level"  env:"DEXGEN_LOG_LEVEL"`
	Format string `yaml:"format" env:"DEXGEN_LOG_FORMAT"` // "text" | "json"
}

// Load reads the config file at path (DefaultPath when empty), applies
// DEXGEN_* environment overrides and validates the result.
// Priority: ENV > YAML > defaults.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	return loadFromFile(path, explicit)
}

func loadFromFile(path string, required bool) (*Config, error) {
	cfg := defaults()
	ledgerSet := false

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %q: %w", path, err)
		}
		var keys map[string]any
		if err := yaml.Unmarshal(data, &keys); err == nil {
			_, ledgerSet = keys["ledger_path"]
		}
	case errors.Is(err, fs.ErrNotExist) && !required:
		// zero-config run
	default:
		return nil, fmt.Errorf("reading config file %q: %w", path, err)
	}

	// No field has an env-default, so only variables that are set apply.
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	if _, ok := os.LookupEnv("DEXGEN_LEDGER_PATH"); ok {
		ledgerSet = true
	}
	if !ledgerSet {
		cfg.LedgerPath = filepath.Join(cfg.DataDir, "ledger.db")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		DataDir:         "./data",
		APIBaseURL:      "https://pokeapi.co/api/v2",
		SpriteBaseURL:   "https://raw.githubusercontent.com/PokeAPI/sprites/master/sprites/pokemon",
		TypeIconBaseURL: "https://raw.githubusercontent.com/partywhale/pokemon-type-icons/main/icons",
		NationalDexLast: 1025, // Gen 9's last Dex number (Pecharunt #1025)
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func (c *Config) validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	for _, u := range []struct{ name, value string }{
		{"api_base_url", c.APIBaseURL},
		{"sprite_base_url", c.SpriteBaseURL},
		{"type_icon_base_url", c.TypeIconBaseURL},
	} {
		if err := validateBaseURL(u.name, u.value); err != nil {
			return err
		}
	}
	if c.NationalDexLast <= 0 {
		return fmt.Errorf("national_dex_last must be greater than 0, got %d", c.NationalDexLast)
	}
	if c.HTTPTimeoutSeconds < 0 {
		return fmt.Errorf("http_timeout_seconds must not be negative, got %d", c.HTTPTimeoutSeconds)
	}
	if c.IconConcurrency < 0 {
		return fmt.Errorf("icon_concurrency must not be negative, got %d", c.IconConcurrency)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be \"text\" or \"json\", got %q", c.Log.Format)
	}
	return nil
}

func validateBaseURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", name, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host, got %q", name, raw)
	}
	return nil
}
