package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds application configuration.
type Config struct {
	// SchemaPath points to a product schema YAML file. Empty uses the embedded AST31 schema.
	SchemaPath string `json:"schema_path,omitempty"`

	// CatalogPath points to an article table XML file. It is used when the
	// catalog database is empty; with neither, the embedded sample table is used.
	CatalogPath string `json:"catalog_path,omitempty"`

	// ImageDir is the directory served under the schema's image base.
	ImageDir string `json:"image_dir,omitempty"`

	// PublicBaseURL is the externally visible URL of the configurator page,
	// used to build share links.
	PublicBaseURL string `json:"public_base_url,omitempty"`

	// ShopSearchURL is prefixed to an article number to link the shop search.
	ShopSearchURL string `json:"shop_search_url,omitempty"`

	// CartURL is the order cart endpoint the article form posts to.
	CartURL string `json:"cart_url,omitempty"`

	// QuoteEmail receives quote requests.
	QuoteEmail string `json:"quote_email,omitempty"`

	Bind string `json:"bind,omitempty"`
	Port int    `json:"port,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// DBMaxOpenConns limits the maximum number of open catalog database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		PublicBaseURL: "http://localhost:8080/",
		ShopSearchURL: "https://www.schaefer-shop.de/product/search?query=",
		CartURL:       "https://www.schaefer-shop.de/order/cart",
		QuoteEmail:    "angebot@example.com",
		Bind:          "127.0.0.1",
		Port:          8080,
		LogLevel:      "info",
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.deskcfg.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.deskcfg) and repo (.deskcfg) directories,
// then applies DESKCFG_* environment overrides.
// Repo config is found by walking upward from startDir to find the nearest .deskcfg/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return ApplyEnv(Merge(Merge(DefaultConfig(), global), repo)), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .deskcfg/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".deskcfg", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	return &Config{
		SchemaPath:     pick(overlay.SchemaPath, base.SchemaPath),
		CatalogPath:    pick(overlay.CatalogPath, base.CatalogPath),
		ImageDir:       pick(overlay.ImageDir, base.ImageDir),
		PublicBaseURL:  pick(overlay.PublicBaseURL, base.PublicBaseURL),
		ShopSearchURL:  pick(overlay.ShopSearchURL, base.ShopSearchURL),
		CartURL:        pick(overlay.CartURL, base.CartURL),
		QuoteEmail:     pick(overlay.QuoteEmail, base.QuoteEmail),
		Bind:           pick(overlay.Bind, base.Bind),
		Port:           pick(overlay.Port, base.Port),
		LogLevel:       pick(overlay.LogLevel, base.LogLevel),
		DBMaxOpenConns: pick(overlay.DBMaxOpenConns, base.DBMaxOpenConns),
		DBMaxIdleConns: pick(overlay.DBMaxIdleConns, base.DBMaxIdleConns),
		DisabledTools:  mergeStringSlice(base.DisabledTools, overlay.DisabledTools),
	}
}

// pick returns overlay unless it is the zero value.
func pick[T comparable](overlay, base T) T {
	var zero T
	if overlay != zero {
		return overlay
	}
	return base
}

// ApplyEnv overrides cfg in place from DESKCFG_* environment variables and returns it.
func ApplyEnv(cfg *Config) *Config {
	cfg.SchemaPath = getEnv("DESKCFG_SCHEMA_PATH", cfg.SchemaPath)
	cfg.CatalogPath = getEnv("DESKCFG_CATALOG_PATH", cfg.CatalogPath)
	cfg.ImageDir = getEnv("DESKCFG_IMAGE_DIR", cfg.ImageDir)
	cfg.PublicBaseURL = getEnv("DESKCFG_PUBLIC_BASE_URL", cfg.PublicBaseURL)
	cfg.ShopSearchURL = getEnv("DESKCFG_SHOP_SEARCH_URL", cfg.ShopSearchURL)
	cfg.CartURL = getEnv("DESKCFG_CART_URL", cfg.CartURL)
	cfg.QuoteEmail = getEnv("DESKCFG_QUOTE_EMAIL", cfg.QuoteEmail)
	cfg.Bind = getEnv("DESKCFG_BIND", cfg.Bind)
	cfg.Port = getEnvAsInt("DESKCFG_PORT", cfg.Port)
	cfg.LogLevel = getEnv("DESKCFG_LOG_LEVEL", cfg.LogLevel)
	cfg.DBMaxOpenConns = getEnvAsInt("DESKCFG_DB_MAX_OPEN_CONNS", cfg.DBMaxOpenConns)
	cfg.DBMaxIdleConns = getEnvAsInt("DESKCFG_DB_MAX_IDLE_CONNS", cfg.DBMaxIdleConns)
	if v := os.Getenv("DESKCFG_DISABLED_TOOLS"); v != "" {
		cfg.DisabledTools = mergeStringSlice(cfg.DisabledTools, strings.Split(v, ","))
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string(nil), a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
