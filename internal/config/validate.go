package config

import (
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"
)

type Validator struct {
	errors []string
}

func NewValidator() *Validator {
	return &Validator{errors: make([]string, 0)}
}

// Validate returns every problem found in cfg. An empty result means the
// configuration is usable.
func (cv *Validator) Validate(cfg Config) []string {
	cv.errors = make([]string, 0)

	cv.validateIMAP(cfg.IMAP)
	cv.validateLLM(cfg.LLM)
	cv.validateProcessing(cfg.Processing)
	cv.validateCategories(cfg.Categories)
	cv.validateReport(cfg.Report)

	return cv.errors
}

func (cv *Validator) addError(message string) {
	cv.errors = append(cv.errors, message)
	slog.Debug("Config validation error", "error", message)
}

func (cv *Validator) validateIMAP(c IMAP) {
	if c.Server == "" {
		cv.addError("IMAP server is required")
	}

	if c.Port <= 0 || c.Port > 65535 {
		cv.addError("IMAP port must be between 1 and 65535")
	}

	if c.Username == "" {
		cv.addError("IMAP username is required")
	}

	if c.Password == "" {
		cv.addError("IMAP password is required (config, EMAIL_PASSWORD or keyring)")
	}
}

func (cv *Validator) validateLLM(c LLM) {
	u, err := url.Parse(c.Endpoint)
	if c.Endpoint == "" || err != nil || u.Scheme == "" || u.Host == "" {
		cv.addError(fmt.Sprintf("LLM endpoint must be an absolute URL: %q", c.Endpoint))
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		cv.addError("LLM temperature must be between 0 and 2")
	}

	if c.MaxTokens <= 0 {
		cv.addError("LLM max_tokens must be positive")
	}

	if c.Timeout <= 0 {
		cv.addError("LLM timeout must be positive")
	}
}

func (cv *Validator) validateProcessing(c Processing) {
	if c.BatchSize <= 0 {
		cv.addError("Batch size must be positive")
	}

	if c.MaxEmailsPerRun < 0 {
		cv.addError("max_emails_per_run must not be negative (0 means unlimited)")
	}

	if c.MaxEmailSizeKB <= 0 {
		cv.addError("max_email_size_kb must be positive")
	}

	if len(c.Folders) == 0 {
		cv.addError("At least one folder to process is required")
	}

	if c.ProcessedFlag == "" || strings.ContainsAny(c.ProcessedFlag, " ()\"\\") {
		cv.addError(fmt.Sprintf("Processed flag must be a bare IMAP keyword: %q", c.ProcessedFlag))
	}

	if c.BatchDelay < 0 || c.RetryDelay < 0 {
		cv.addError("Delays must not be negative")
	}
}

func (cv *Validator) validateCategories(c Categories) {
	if c.Len() == 0 {
		cv.addError("At least one category is required")
		return
	}

	if c.Len() == 1 {
		slog.Warn("Only the fallback category is configured - every message will be routed to it",
			"fallback", c.Fallback().Name)
	}
}

func (cv *Validator) validateReport(c Report) {
	if !c.Enabled() {
		return
	}

	if c.Port <= 0 || c.Port > 65535 {
		cv.addError("Report SMTP port must be between 1 and 65535")
	}

	validSecurityTypes := []string{"ssl", "starttls"}
	if !contains(validSecurityTypes, strings.ToLower(c.Security)) {
		cv.addError("Report SMTP security must be one of: ssl, starttls")
	}

	for _, recipient := range c.To {
		if _, err := mail.ParseAddress(recipient); err != nil {
			cv.addError(fmt.Sprintf("Invalid email format in report recipient: %s", recipient))
		}
	}
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
