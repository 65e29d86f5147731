package config

import (
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigError reports an invalid or unreadable configuration.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

// Defaults returns the built-in configuration.
func Defaults() Config {
	home, _ := os.UserHomeDir()
	return Config{
		LLM: LLMConfig{
			BaseURL:        "https://openrouter.ai/api/v1",
			ConductorModel: "anthropic/claude-sonnet-4",
			WorkerModel:    "anthropic/claude-sonnet-4",
			MaxTokens:      4096,
		},
		Store:   StoreConfig{Path: filepath.Join(home, ".valet", "valet.db")},
		Gateway: GatewayConfig{Port: 8780, Bind: "127.0.0.1"},
		Scheduler: SchedulerConfig{
			PollInterval:        time.Minute,
			MaxDeliveryAttempts: 3,
		},
		Conductor: ConductorConfig{
			DedupWindow:       10,
			SuppressWindow:    20,
			MaxToolIterations: 8,
			SummarizeAfter:    40,
		},
		Worker: WorkerConfig{
			MaxToolCallsPerStep: 5,
			MaxStepRetries:      3,
			MaxSteps:            20,
		},
		Email:   EmailConfig{IMAPPort: 993, SMTPPort: 587, CheckInterval: 5 * time.Minute},
		Logging: LoggingConfig{Level: "info"},
	}
}

// envVarPattern matches ${VAR_NAME} references in string fields.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment values. Unset
// variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := os.LookupEnv(match[2 : len(match)-1]); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes env references in credential fields so
// keys and passwords can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.LLM.APIKey = expandEnvVars(cfg.LLM.APIKey)
	cfg.Email.Password = expandEnvVars(cfg.Email.Password)
}

// applyEnvOverrides lets a few common settings come straight from the
// environment without a config file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("VALET_DB_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("VALET_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Load reads the config file at path, merged over defaults. A missing file
// produces defaults plus environment overrides only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}
