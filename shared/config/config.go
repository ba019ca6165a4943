package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultHost           = "http://localhost:11434"
	DefaultModel          = "deepseek-r1:8b"
	DefaultLargeModel     = "deepseek-r1:14b"
	DefaultSmallModel     = "deepseek-r1:8b"
	DefaultMaxIterations  = 20
	DefaultRequestTimeout = 5 * time.Minute
	DefaultCommandTimeout = 120 * time.Second
)

type ProviderKind string

const (
	ProviderKindOllama    ProviderKind = "ollama"
	ProviderKindOpenAI    ProviderKind = "openai"
	ProviderKindAnthropic ProviderKind = "anthropic"
	ProviderKindDeepSeek  ProviderKind = "deepseek"
)

// APIKeys holds credentials for the cloud providers. Empty values are
// resolved from the OS keyring at provider construction time.
type APIKeys struct {
	OpenAI    string
	Anthropic string
	DeepSeek  string
}

// Config is built once at process start and passed by reference into the
// conversation loop and the tool executors. Core logic never reads the
// process environment directly.
type Config struct {
	Provider   ProviderKind
	Host       string
	Model      string
	LargeModel string
	SmallModel string

	MaxIterations  int
	RequestTimeout time.Duration
	CommandTimeout time.Duration

	ProjectRoot string
	OutputDir   string

	Keys APIKeys
}

func Default() *Config {
	return &Config{
		Provider:       ProviderKindOllama,
		Host:           DefaultHost,
		Model:          DefaultModel,
		LargeModel:     DefaultLargeModel,
		SmallModel:     DefaultSmallModel,
		MaxIterations:  DefaultMaxIterations,
		RequestTimeout: DefaultRequestTimeout,
		CommandTimeout: DefaultCommandTimeout,
	}
}

// Load builds a Config from the environment, honoring a .env file in the
// working directory when present. Missing values fall back to defaults.
func Load() (*Config, error) {
	// Best effort: a missing .env file is not an error.
	_ = godotenv.Load()

	cfg := Default()

	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("OLLAMA_MODEL_LARGE"); v != "" {
		cfg.LargeModel = v
	}
	if v := os.Getenv("OLLAMA_MODEL_SMALL"); v != "" {
		cfg.SmallModel = v
	}
	if v := os.Getenv("EMBER_PROVIDER"); v != "" {
		cfg.Provider = ProviderKind(v)
	}
	if v := os.Getenv("EMBER_MAX_ITERATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid EMBER_MAX_ITERATIONS %q: %w", v, err)
		}
		cfg.MaxIterations = n
	}
	if v := os.Getenv("EMBER_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid EMBER_REQUEST_TIMEOUT %q: %w", v, err)
		}
		cfg.RequestTimeout = d
	}
	if v := os.Getenv("EMBER_COMMAND_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid EMBER_COMMAND_TIMEOUT %q: %w", v, err)
		}
		cfg.CommandTimeout = d
	}

	cfg.Keys = APIKeys{
		OpenAI:    os.Getenv("OPENAI_API_KEY"),
		Anthropic: os.Getenv("ANTHROPIC_API_KEY"),
		DeepSeek:  os.Getenv("DEEPSEEK_API_KEY"),
	}

	root := os.Getenv("EMBER_PROJECT_ROOT")
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine project root: %w", err)
		}
		root = wd
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root %q: %w", root, err)
	}
	cfg.ProjectRoot = absRoot

	cfg.OutputDir = os.Getenv("EMBER_OUTPUT_DIR")
	if cfg.OutputDir == "" {
		cfg.OutputDir = filepath.Join(cfg.ProjectRoot, "agents")
	}

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max iterations must be positive, got %d", c.MaxIterations)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.CommandTimeout <= 0 {
		return fmt.Errorf("command timeout must be positive, got %s", c.CommandTimeout)
	}
	switch c.Provider {
	case ProviderKindOllama, ProviderKindOpenAI, ProviderKindAnthropic, ProviderKindDeepSeek:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	return nil
}

// ResolveModel maps a task-complexity alias to a concrete model name.
// Unknown names pass through unchanged so explicit model names keep working.
func (c *Config) ResolveModel(name string) string {
	switch name {
	case "opus":
		return c.LargeModel
	case "sonnet":
		return c.SmallModel
	case "":
		return c.Model
	}
	return name
}
