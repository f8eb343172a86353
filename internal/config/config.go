package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// IMAP holds the mailbox connection settings.
type IMAP struct {
	Server   string
	Port     int
	SSL      bool
	Username string
	Password string
}

// Address returns host:port.
func (i IMAP) Address() string {
	return fmt.Sprintf("%s:%d", i.Server, i.Port)
}

// LLM holds the classification oracle settings.
type LLM struct {
	Endpoint    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Prompt      string
}

// Processing holds the batch sweep settings.
type Processing struct {
	BatchSize          int
	MaxEmailsPerRun    int
	IncludeAttachments bool
	MaxEmailSizeKB     int
	Folders            []string
	SkipProcessed      bool
	DryRun             bool
	ProcessedFlag      string
	BatchDelay         time.Duration
	RetryDelay         time.Duration
}

// Report holds the optional SMTP settings used to notify an operator about
// messages that could not be routed.
type Report struct {
	Server   string
	Port     int
	Security string
	Username string
	Password string
	From     string
	To       []string
}

// Enabled reports whether an operator report should be sent.
func (r Report) Enabled() bool {
	return r.Server != "" && len(r.To) > 0
}

// Config is the complete, immutable runtime configuration.
type Config struct {
	IMAP           IMAP
	LLM            LLM
	Processing     Processing
	Report         Report
	FolderPrefixes []string
	Categories     Categories
}

// envBindings keeps the environment variable names of the legacy .env
// layout working next to config.yaml.
var envBindings = map[string]string{
	"imap.server":                    "IMAP_SERVER",
	"imap.port":                      "IMAP_PORT",
	"imap.ssl":                       "IMAP_USE_SSL",
	"imap.username":                  "EMAIL_USERNAME",
	"imap.password":                  "EMAIL_PASSWORD",
	"llm.endpoint":                   "LLM_API_ENDPOINT",
	"llm.api_key":                    "LLM_API_KEY",
	"llm.model":                      "LLM_MODEL",
	"llm.temperature":                "LLM_TEMPERATURE",
	"llm.max_tokens":                 "LLM_MAX_TOKENS",
	"llm.timeout":                    "LLM_TIMEOUT",
	"processing.batch_size":          "BATCH_SIZE",
	"processing.max_emails_per_run":  "MAX_EMAILS_PER_RUN",
	"processing.include_attachments": "INCLUDE_ATTACHMENTS",
	"processing.max_email_size_kb":   "MAX_EMAIL_SIZE_KB",
	"processing.folders":             "FOLDERS_TO_PROCESS",
	"processing.skip_processed":      "SKIP_PROCESSED",
	"processing.dry_run":             "DRY_RUN",
}

// SetDefaults registers defaults and environment bindings on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("imap.server", "localhost")
	v.SetDefault("imap.port", 1143)
	v.SetDefault("imap.ssl", false)

	v.SetDefault("llm.endpoint", "http://localhost:8000/v1")
	v.SetDefault("llm.model", "default")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.timeout", 30)

	v.SetDefault("processing.batch_size", 10)
	v.SetDefault("processing.max_emails_per_run", 100)
	v.SetDefault("processing.include_attachments", false)
	v.SetDefault("processing.max_email_size_kb", 500)
	v.SetDefault("processing.folders", []string{"INBOX"})
	v.SetDefault("processing.skip_processed", true)
	v.SetDefault("processing.dry_run", false)
	v.SetDefault("processing.processed_flag", "PROCESSED")
	v.SetDefault("processing.batch_delay", "1s")
	v.SetDefault("processing.retry_delay", "2s")

	v.SetDefault("folders.prefixes", []string{"INBOX/", "INBOX.", "Folders/", "Labels/"})
	v.SetDefault("categories.fallback", DefaultFallback)
	v.SetDefault("categories.items", DefaultCategories().toMaps())

	v.SetDefault("report.port", 465)
	v.SetDefault("report.security", "ssl")

	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
}

// Load builds a Config from v. SetDefaults must have been called.
func Load(v *viper.Viper) (Config, error) {
	var items []Category
	if err := v.UnmarshalKey("categories.items", &items); err != nil {
		return Config{}, fmt.Errorf("failed to read categories: %w", err)
	}

	cats, err := NewCategories(v.GetString("categories.fallback"), items...)
	if err != nil {
		return Config{}, fmt.Errorf("failed to load categories: %w", err)
	}

	cfg := Config{
		IMAP: IMAP{
			Server:   v.GetString("imap.server"),
			Port:     v.GetInt("imap.port"),
			SSL:      v.GetBool("imap.ssl"),
			Username: v.GetString("imap.username"),
			Password: v.GetString("imap.password"),
		},
		LLM: LLM{
			Endpoint:    v.GetString("llm.endpoint"),
			APIKey:      v.GetString("llm.api_key"),
			Model:       v.GetString("llm.model"),
			Temperature: v.GetFloat64("llm.temperature"),
			MaxTokens:   v.GetInt("llm.max_tokens"),
			Timeout:     time.Duration(v.GetInt("llm.timeout")) * time.Second,
			Prompt:      v.GetString("llm.prompt"),
		},
		Processing: Processing{
			BatchSize:          v.GetInt("processing.batch_size"),
			MaxEmailsPerRun:    v.GetInt("processing.max_emails_per_run"),
			IncludeAttachments: v.GetBool("processing.include_attachments"),
			MaxEmailSizeKB:     v.GetInt("processing.max_email_size_kb"),
			Folders:            splitList(v.GetStringSlice("processing.folders")),
			SkipProcessed:      v.GetBool("processing.skip_processed"),
			DryRun:             v.GetBool("processing.dry_run"),
			ProcessedFlag:      v.GetString("processing.processed_flag"),
			BatchDelay:         v.GetDuration("processing.batch_delay"),
			RetryDelay:         v.GetDuration("processing.retry_delay"),
		},
		Report: Report{
			Server:   v.GetString("report.server"),
			Port:     v.GetInt("report.port"),
			Security: v.GetString("report.security"),
			Username: v.GetString("report.username"),
			Password: v.GetString("report.password"),
			From:     v.GetString("report.from"),
			To:       splitList(v.GetStringSlice("report.to")),
		},
		FolderPrefixes: v.GetStringSlice("folders.prefixes"),
		Categories:     cats,
	}

	return cfg, nil
}

// WithCategories returns a copy of cfg using cats.
func (c Config) WithCategories(cats Categories) Config {
	c.Categories = cats
	return c
}

// splitList flattens comma separated entries, as FOLDERS_TO_PROCESS arrives
// as a single "INBOX,Archive" string from the environment.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}

	return out
}
