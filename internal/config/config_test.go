package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `imap:
  server: 127.0.0.1
  port: 1143
  username: me@example.com
  password: secret

processing:
  folders:
    - INBOX
    - Archive
  max_emails_per_run: 25
  batch_delay: 250ms

categories:
  fallback: manual_review
  items:
    - name: manual_review
      folder: Folders/ManualReview
    - name: receipts
      folder: Folders/Receipts
`

func newViper(t *testing.T, content string) *viper.Viper {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	return v
}

func TestLoadReadsFileAndDefaults(t *testing.T) {
	v := newViper(t, sampleConfig)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:1143", cfg.IMAP.Address())
	assert.Equal(t, []string{"INBOX", "Archive"}, cfg.Processing.Folders)
	assert.Equal(t, 25, cfg.Processing.MaxEmailsPerRun)
	assert.Equal(t, 10, cfg.Processing.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Processing.BatchDelay)
	assert.Equal(t, 2*time.Second, cfg.Processing.RetryDelay)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "PROCESSED", cfg.Processing.ProcessedFlag)
	assert.Equal(t, []string{"manual_review", "receipts"}, cfg.Categories.Names())
	assert.Empty(t, NewValidator().Validate(cfg))
}

func TestLoadHonoursLegacyEnvironment(t *testing.T) {
	t.Setenv("FOLDERS_TO_PROCESS", "INBOX, Newsletters")
	t.Setenv("DRY_RUN", "true")
	t.Setenv("LLM_TIMEOUT", "5")

	v := newViper(t, sampleConfig)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, []string{"INBOX", "Newsletters"}, cfg.Processing.Folders)
	assert.True(t, cfg.Processing.DryRun)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
}

func TestValidateReportsProblems(t *testing.T) {
	t.Parallel()

	cfg := Config{
		IMAP:       IMAP{Port: 0},
		LLM:        LLM{Endpoint: "not a url", MaxTokens: 10, Timeout: time.Second},
		Processing: Processing{ProcessedFlag: "has space"},
		Categories: DefaultCategories(),
		Report:     Report{Server: "smtp.example.com", Port: 465, Security: "ssl", To: []string{"broken"}},
	}

	errs := NewValidator().Validate(cfg)
	joined := strings.Join(errs, "\n")

	assert.Contains(t, joined, "IMAP server is required")
	assert.Contains(t, joined, "IMAP port")
	assert.Contains(t, joined, "LLM endpoint")
	assert.Contains(t, joined, "Processed flag")
	assert.Contains(t, joined, "At least one folder")
	assert.Contains(t, joined, "report recipient")
}

func TestSaveCategoriesWritesBackup(t *testing.T) {
	v := newViper(t, sampleConfig)

	cfg, err := Load(v)
	require.NoError(t, err)

	cats, err := cfg.Categories.Add("travel", "Folders/Travel")
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "backups")
	require.NoError(t, SaveCategories(v, NewBackup(dir), cats, "add travel"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "add_travel")

	saved, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, sampleConfig, string(saved))

	reloaded := viper.New()
	SetDefaults(reloaded)
	reloaded.SetConfigFile(v.ConfigFileUsed())
	require.NoError(t, reloaded.ReadInConfig())

	cfg, err = Load(reloaded)
	require.NoError(t, err)
	assert.Equal(t, []string{"manual_review", "receipts", "travel"}, cfg.Categories.Names())
}

func TestSaveCategoriesRewritesOnlyCategories(t *testing.T) {
	t.Setenv("EMAIL_PASSWORD", "s3cret-from-env")
	t.Setenv("LLM_API_KEY", "sk-env-key")
	t.Setenv("DRY_RUN", "true")

	v := newViper(t, sampleConfig)

	cfg, err := Load(v)
	require.NoError(t, err)
	require.Equal(t, "sk-env-key", cfg.LLM.APIKey)

	cats, err := cfg.Categories.Update("receipts", "Folders/Paid")
	require.NoError(t, err)

	require.NoError(t, SaveCategories(v, NewBackup(filepath.Join(t.TempDir(), "backups")), cats, "update receipts"))

	raw, err := os.ReadFile(v.ConfigFileUsed())
	require.NoError(t, err)
	written := string(raw)

	assert.NotContains(t, written, "s3cret-from-env")
	assert.NotContains(t, written, "sk-env-key")
	assert.NotContains(t, written, "dry_run")
	assert.NotContains(t, written, "batch_size", "defaults stay out of the file")
	assert.Contains(t, written, "password: secret")
	assert.Contains(t, written, "max_emails_per_run: 25")
	assert.Contains(t, written, "folder: Folders/Paid")

	reloaded := viper.New()
	SetDefaults(reloaded)
	reloaded.SetConfigFile(v.ConfigFileUsed())
	require.NoError(t, reloaded.ReadInConfig())

	cfg, err = Load(reloaded)
	require.NoError(t, err)
	assert.Equal(t, []string{"manual_review", "receipts"}, cfg.Categories.Names())

	cat, ok := cfg.Categories.Get("receipts")
	require.True(t, ok)
	assert.Equal(t, "Folders/Paid", cat.Folder)
}

func TestSaveCategoriesAddsMissingSection(t *testing.T) {
	v := newViper(t, "imap:\n  server: 127.0.0.1\n")

	cats, err := DefaultCategories().Remove("promotional")
	require.NoError(t, err)

	require.NoError(t, SaveCategories(v, NewBackup(filepath.Join(t.TempDir(), "backups")), cats, "remove promotional"))

	raw, err := os.ReadFile(v.ConfigFileUsed())
	require.NoError(t, err)

	assert.Contains(t, string(raw), "server: 127.0.0.1")
	assert.Contains(t, string(raw), "fallback: manual_review")
	assert.NotContains(t, string(raw), "promotional")
}
