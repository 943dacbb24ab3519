package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/testforge/cardforge/internal/domain"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "CARDFORGE"

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
)

// Config holds all application configuration. Defaults come from Default,
// the optional YAML file is merged over them and environment variables win
// over both. Fields therefore carry no envconfig default tags, and no
// explicit names either: envconfig falls back to an unprefixed tag name, so
// a tag like PATH would read the shell's PATH. Keys are derived from field
// names instead, e.g. CARDFORGE_BROWSER_PAGE_LOAD_TIMEOUT.
type Config struct {
	Env      Environment `split_words:"true" yaml:"env"`
	LogLevel string      `split_words:"true" yaml:"logLevel"`
	LogFile  string      `split_words:"true" yaml:"logFile"`

	Project  ProjectConfig  `yaml:"project"`
	Browser  BrowserConfig  `yaml:"browser"`
	Target   TargetConfig   `yaml:"target"`
	Runner   RunnerConfig   `yaml:"runner"`
	Fix      FixConfig      `yaml:"fix"`
	Registry RegistryConfig `yaml:"registry"`
	Redis    RedisConfig    `yaml:"redis"`
	S3       S3Config       `yaml:"s3"`
	Server   ServerConfig   `yaml:"server"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ProjectConfig locates the artifact tree
type ProjectConfig struct {
	// Roots maps a project name to its root directory.
	Roots         map[string]string `split_words:"true" yaml:"roots"`
	Default       string            `split_words:"true" yaml:"default"`
	OutputSubpath string            `split_words:"true" yaml:"outputSubpath"`
	// WebUtilImport is the module path generated tests import WebUtil from,
	// relative to the tests directory.
	WebUtilImport string `split_words:"true" yaml:"webUtilImport"`
}

// Root resolves a project name, falling back to the default project.
func (c ProjectConfig) Root(name string) (string, error) {
	if name == "" {
		name = c.Default
	}
	if name == "" && len(c.Roots) == 1 {
		for _, root := range c.Roots {
			return root, nil
		}
	}
	root, ok := c.Roots[name]
	if !ok {
		return "", domain.ErrNotFound("project", name)
	}
	return root, nil
}

// Names returns configured project names, sorted
func (c ProjectConfig) Names() []string {
	names := make([]string, 0, len(c.Roots))
	for n := range c.Roots {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// BrowserConfig holds live extraction settings
type BrowserConfig struct {
	Headless          bool          `split_words:"true" yaml:"headless"`
	PageLoadTimeout   time.Duration `split_words:"true" yaml:"pageLoadTimeout"`
	VisibilityTimeout time.Duration `split_words:"true" yaml:"visibilityTimeout"`
	AuthTimeout       time.Duration `split_words:"true" yaml:"authTimeout"`
	// AuthPatterns are URL substrings that mark a login redirect.
	AuthPatterns []string `split_words:"true" yaml:"authPatterns"`
	// StorageState is a Playwright storage state file with a logged-in session.
	StorageState string `split_words:"true" yaml:"storageState"`
}

// TargetConfig shapes the URL the extractor navigates to
type TargetConfig struct {
	Branch       string `split_words:"true" yaml:"branch"`
	Host         string `split_words:"true" yaml:"host"`
	HostTemplate string `split_words:"true" yaml:"hostTemplate"`
	Path         string `split_words:"true" yaml:"path"`
	QueryPrefix  string `split_words:"true" yaml:"queryPrefix"`
	FeatureFlags string `split_words:"true" yaml:"featureFlags"`
}

// RunnerConfig holds test execution settings
type RunnerConfig struct {
	Command []string      `split_words:"true" yaml:"command"`
	Timeout time.Duration `split_words:"true" yaml:"timeout"`
	Workers int           `split_words:"true" yaml:"workers"`
	Project string        `split_words:"true" yaml:"playwrightProject"`
	BaseURL string        `split_words:"true" yaml:"baseURL"`
}

// FixConfig holds run-and-fix settings
type FixConfig struct {
	MaxAttempts int  `split_words:"true" yaml:"maxAttempts"`
	Backups     bool `split_words:"true" yaml:"backups"`
}

// RegistryConfig points at external variant registry sources
type RegistryConfig struct {
	File     string `split_words:"true" yaml:"file"`
	UseRedis bool   `split_words:"true" yaml:"useRedis"`
}

// RedisConfig holds Redis settings
type RedisConfig struct {
	Host        string        `split_words:"true" yaml:"host"`
	Port        int           `split_words:"true" yaml:"port"`
	Password    string        `split_words:"true" yaml:"password"`
	DB          int           `split_words:"true" yaml:"db"`
	DialTimeout time.Duration `split_words:"true" yaml:"dialTimeout"`
}

// Addr returns Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// S3Config holds the optional artifact mirror settings
type S3Config struct {
	Enabled         bool   `split_words:"true" yaml:"enabled"`
	Endpoint        string `split_words:"true" yaml:"endpoint"`
	AccessKeyID     string `split_words:"true" yaml:"accessKeyID"`
	SecretAccessKey string `split_words:"true" yaml:"secretAccessKey"`
	Bucket          string `split_words:"true" yaml:"bucket"`
	UseSSL          bool   `split_words:"true" yaml:"useSSL"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string        `split_words:"true" yaml:"host"`
	Port            int           `split_words:"true" yaml:"port"`
	ReadTimeout     time.Duration `split_words:"true" yaml:"readTimeout"`
	WriteTimeout    time.Duration `split_words:"true" yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `split_words:"true" yaml:"shutdownTimeout"`
	CORSOrigins     []string      `split_words:"true" yaml:"corsOrigins"`
	// APIKey, when set, is required on /api/v1 routes.
	APIKey string `split_words:"true" yaml:"apiKey,omitempty"`
	// RateLimit is requests per minute per client, enforced through Redis.
	// Zero disables it.
	RateLimit int `split_words:"true" yaml:"rateLimit,omitempty"`
}

// Addr returns the listen address
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled   bool   `split_words:"true" yaml:"enabled"`
	Namespace string `split_words:"true" yaml:"namespace"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Env:      EnvDevelopment,
		LogLevel: "info",
		Project: ProjectConfig{
			Roots:         map[string]string{},
			OutputSubpath: "nala",
			WebUtilImport: "../../../../libs/webutil.js",
		},
		Browser: BrowserConfig{
			Headless:          true,
			PageLoadTimeout:   60 * time.Second,
			VisibilityTimeout: 30 * time.Second,
			AuthTimeout:       2 * time.Minute,
			AuthPatterns:      []string{"auth.services.adobe.com", "adobelogin.com", "/ims/", "/login"},
		},
		Target: TargetConfig{
			Branch:       "main",
			HostTemplate: "https://%s--mas--adobecom.aem.live",
			Path:         "/studio.html",
			QueryPrefix:  "#page=content&path=nala&query=",
		},
		Runner: RunnerConfig{
			Command: []string{"npx", "playwright", "test"},
			Timeout: 10 * time.Minute,
			Workers: 1,
			Project: "mas-live-chromium",
		},
		Fix: FixConfig{
			MaxAttempts: 3,
			Backups:     true,
		},
		Redis: RedisConfig{
			Host:        "localhost",
			Port:        6379,
			DialTimeout: 5 * time.Second,
		},
		S3: S3Config{
			Endpoint: "localhost:9000",
			Bucket:   "cardforge-artifacts",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    15 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "cardforge",
		},
	}
}

// DefaultPath returns the persisted config location: $CARDFORGE_CONFIG, or
// ~/.cardforge/config.yaml.
func DefaultPath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cardforge", "config.yaml")
}

// Load reads defaults, then the YAML file at path if it exists, then the
// environment, and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("processing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []string

	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		errs = append(errs, fmt.Sprintf("ENV must be %s or %s", EnvDevelopment, EnvProduction))
	}

	for name, d := range map[string]time.Duration{
		"BROWSER_PAGE_LOAD_TIMEOUT":  c.Browser.PageLoadTimeout,
		"BROWSER_VISIBILITY_TIMEOUT": c.Browser.VisibilityTimeout,
		"BROWSER_AUTH_TIMEOUT":       c.Browser.AuthTimeout,
		"RUNNER_TIMEOUT":             c.Runner.Timeout,
	} {
		if err := domain.ValidateTimeout(name, d); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if c.Fix.MaxAttempts < 1 || c.Fix.MaxAttempts > 10 {
		errs = append(errs, "FIX_MAX_ATTEMPTS must be between 1 and 10")
	}

	if c.Target.Branch != "" {
		if err := domain.ValidateBranch(c.Target.Branch); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if c.Target.Host == "" && !strings.Contains(c.Target.HostTemplate, "%s") {
		errs = append(errs, "TARGET_HOST_TEMPLATE must contain %s when TARGET_HOST is unset")
	}

	if c.Project.Default != "" {
		if _, ok := c.Project.Roots[c.Project.Default]; !ok {
			errs = append(errs, fmt.Sprintf("PROJECT_DEFAULT %q is not in PROJECT_ROOTS", c.Project.Default))
		}
	}
	if strings.Contains(c.Project.OutputSubpath, "..") || filepath.IsAbs(c.Project.OutputSubpath) {
		errs = append(errs, "PROJECT_OUTPUT_SUBPATH must be a relative path inside the project")
	}

	if len(c.Runner.Command) == 0 {
		errs = append(errs, "RUNNER_COMMAND must not be empty")
	}

	if c.S3.Enabled && c.S3.Bucket == "" {
		errs = append(errs, "S3_BUCKET is required when the mirror is enabled")
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}
