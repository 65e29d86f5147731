package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for valet.
type Config struct {
	LLM       LLMConfig       `yaml:"llm,omitempty"`
	Store     StoreConfig     `yaml:"store,omitempty"`
	Gateway   GatewayConfig   `yaml:"gateway,omitempty"`
	Scheduler SchedulerConfig `yaml:"scheduler,omitempty"`
	Conductor ConductorConfig `yaml:"conductor,omitempty"`
	Worker    WorkerConfig    `yaml:"worker,omitempty"`
	Email     EmailConfig     `yaml:"email,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
}

// LLMConfig selects the completion provider and models.
type LLMConfig struct {
	BaseURL        string   `yaml:"baseUrl,omitempty"`
	APIKey         string   `yaml:"apiKey,omitempty"`
	ConductorModel string   `yaml:"conductorModel,omitempty"`
	WorkerModel    string   `yaml:"workerModel,omitempty"`
	Fallbacks      []string `yaml:"fallbacks,omitempty"`
	MaxTokens      int      `yaml:"maxTokens,omitempty"`
}

// StoreConfig locates the sqlite database.
type StoreConfig struct {
	Path string `yaml:"path,omitempty"`
}

// GatewayConfig controls the HTTP/WebSocket boundary.
type GatewayConfig struct {
	Port int    `yaml:"port,omitempty"`
	Bind string `yaml:"bind,omitempty"`
}

// SchedulerConfig controls the trigger wake loop.
type SchedulerConfig struct {
	PollInterval        time.Duration `yaml:"pollInterval,omitempty"`
	MaxDeliveryAttempts int           `yaml:"maxDeliveryAttempts,omitempty"`
}

// UnmarshalYAML accepts Go duration strings ("30s", "5m") for
// pollInterval, which yaml.v3 does not decode into time.Duration itself.
// Absent fields keep their current values.
func (c *SchedulerConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		PollInterval        string `yaml:"pollInterval"`
		MaxDeliveryAttempts *int   `yaml:"maxDeliveryAttempts"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.PollInterval != "" {
		d, err := time.ParseDuration(raw.PollInterval)
		if err != nil {
			return fmt.Errorf("scheduler.pollInterval: %w", err)
		}
		c.PollInterval = d
	}
	if raw.MaxDeliveryAttempts != nil {
		c.MaxDeliveryAttempts = *raw.MaxDeliveryAttempts
	}
	return nil
}

// ConductorConfig bounds the conductor's decision loop.
type ConductorConfig struct {
	// DedupWindow is how many recent assistant messages outbound content is
	// checked against before emitting.
	DedupWindow int `yaml:"dedupWindow,omitempty"`
	// SuppressWindow is how many recent history entries a re-delivered
	// trigger notification is checked against.
	SuppressWindow    int `yaml:"suppressWindow,omitempty"`
	MaxToolIterations int `yaml:"maxToolIterations,omitempty"`
	// SummarizeAfter is how many messages accumulate beyond the reply
	// window before older history is compacted into a summary.
	SummarizeAfter int `yaml:"summarizeAfter,omitempty"`
}

// WorkerConfig bounds plan execution.
type WorkerConfig struct {
	MaxToolCallsPerStep int `yaml:"maxToolCallsPerStep,omitempty"`
	MaxStepRetries      int `yaml:"maxStepRetries,omitempty"`
	MaxSteps            int `yaml:"maxSteps,omitempty"`
}

// EmailConfig configures the IMAP/SMTP email provider and the background
// mailbox monitor.
type EmailConfig struct {
	IMAPHost string `yaml:"imapHost,omitempty"`
	IMAPPort int    `yaml:"imapPort,omitempty"`
	SMTPHost string `yaml:"smtpHost,omitempty"`
	SMTPPort int    `yaml:"smtpPort,omitempty"`
	Address  string `yaml:"address,omitempty"`
	Password string `yaml:"password,omitempty"`
	// CheckInterval is how often the monitor looks for new mail.
	CheckInterval time.Duration `yaml:"checkInterval,omitempty"`
	// VIPSenders are address substrings whose mail always notifies.
	VIPSenders []string `yaml:"vipSenders,omitempty"`
}

// UnmarshalYAML accepts a duration string for checkInterval and keeps
// the port defaults when the fields are absent.
func (c *EmailConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		IMAPHost      string   `yaml:"imapHost"`
		IMAPPort      *int     `yaml:"imapPort"`
		SMTPHost      string   `yaml:"smtpHost"`
		SMTPPort      *int     `yaml:"smtpPort"`
		Address       string   `yaml:"address"`
		Password      string   `yaml:"password"`
		CheckInterval string   `yaml:"checkInterval"`
		VIPSenders    []string `yaml:"vipSenders"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.IMAPHost != "" {
		c.IMAPHost = raw.IMAPHost
	}
	if raw.IMAPPort != nil {
		c.IMAPPort = *raw.IMAPPort
	}
	if raw.SMTPHost != "" {
		c.SMTPHost = raw.SMTPHost
	}
	if raw.SMTPPort != nil {
		c.SMTPPort = *raw.SMTPPort
	}
	if raw.Address != "" {
		c.Address = raw.Address
	}
	if raw.Password != "" {
		c.Password = raw.Password
	}
	if raw.CheckInterval != "" {
		d, err := time.ParseDuration(raw.CheckInterval)
		if err != nil {
			return fmt.Errorf("email.checkInterval: %w", err)
		}
		c.CheckInterval = d
	}
	if len(raw.VIPSenders) > 0 {
		c.VIPSenders = raw.VIPSenders
	}
	return nil
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"`
}
