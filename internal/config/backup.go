package config

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Backup copies the active config file aside before it is rewritten.
type Backup struct {
	backupDir string
	now       func() time.Time
}

func NewBackup(dir string) *Backup {
	if dir == "" {
		dir = "config_backups"
	}

	return &Backup{
		backupDir: dir,
		now:       time.Now,
	}
}

// Create writes a timestamped copy of configPath and returns its path.
func (cb *Backup) Create(configPath, reason string) (string, error) {
	if err := os.MkdirAll(cb.backupDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	timestamp := cb.now().Format("2006-01-02_15-04-05")
	backupName := fmt.Sprintf("config_%s_%s%s", timestamp, sanitizeFilename(reason), filepath.Ext(configPath))
	backupPath := filepath.Join(cb.backupDir, backupName)

	srcFile, err := os.Open(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", configPath, err)
	}
	defer func() {
		if err := srcFile.Close(); err != nil {
			slog.Error("Failed to close source file", "error", err)
		}
	}()

	dstFile, err := os.OpenFile(backupPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("failed to create backup file: %w", err)
	}
	defer func() {
		if err := dstFile.Close(); err != nil {
			slog.Error("Failed to close backup file", "error", err)
		}
	}()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return "", fmt.Errorf("failed to copy config to backup: %w", err)
	}

	slog.Info("Configuration backup created", "path", backupPath, "reason", reason)
	return backupPath, nil
}

// SaveCategories replaces the categories section of the config file used by
// v, backing the previous file up first. Only that section is rewritten:
// values v got from defaults, flags or the environment never reach the file.
func SaveCategories(v *viper.Viper, backup *Backup, cats Categories, reason string) error {
	path := v.ConfigFileUsed()
	if path == "" {
		return fmt.Errorf("no config file in use; run `mail-sorter init` first")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode}}}
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("%s: top level is not a mapping", path)
	}

	var section yaml.Node
	if err := section.Encode(categoriesSection{Fallback: cats.Fallback().Name, Items: cats.All()}); err != nil {
		return fmt.Errorf("failed to encode categories: %w", err)
	}

	setMappingValue(root, "categories", &section)

	var out bytes.Buffer
	enc := yaml.NewEncoder(&out)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("failed to render %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to render %s: %w", path, err)
	}

	if _, err := backup.Create(path, reason); err != nil {
		return err
	}

	if err := os.WriteFile(path, out.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

type categoriesSection struct {
	Fallback string     `yaml:"fallback"`
	Items    []Category `yaml:"items"`
}

// setMappingValue replaces the value under key in a YAML mapping node, or
// appends the pair when key is absent.
func setMappingValue(mapping *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			mapping.Content[i+1] = value
			return
		}
	}

	mapping.Content = append(mapping.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		value,
	)
}

func sanitizeFilename(name string) string {
	// Replace problematic characters with underscores
	sanitized := strings.NewReplacer(
		" ", "_",
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	).Replace(name)

	if len(sanitized) > 50 {
		sanitized = sanitized[:50]
	}

	return sanitized
}
