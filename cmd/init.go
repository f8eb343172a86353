package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively generate a config.yaml file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		configFile := "config.yaml"

		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(configFile); err == nil && !force {
			fmt.Printf("config.yaml already exists. Use --force to overwrite.\n")
			return nil
		}

		reader := bufio.NewReader(os.Stdin)

		fmt.Println("Let's set up your config.yaml!")
		fmt.Println("Leave a value empty to use the default shown in brackets.")

		fmt.Println("\n--- IMAP ---")
		imapServer := promptDefault(reader, "IMAP server", "127.0.0.1")
		imapPort := promptDefault(reader, "IMAP port", "1143")
		imapSSL := promptDefault(reader, "Use implicit TLS (true/false)", "false")
		imapUser := prompt(reader, "IMAP username: ")
		fmt.Println("Store the password with `mail-sorter credentials set imap-password`,")
		fmt.Println("or set EMAIL_PASSWORD in the environment.")

		fmt.Println("\n--- LLM ---")
		llmEndpoint := promptDefault(reader, "OpenAI-compatible API endpoint", "http://localhost:8000/v1")
		llmModel := promptDefault(reader, "Model", "default")

		fmt.Println("\n--- PROCESSING ---")
		folders := promptMulti(reader, "Folders to process (comma-separated) [INBOX]: ")
		if len(folders) == 0 {
			folders = []string{"INBOX"}
		}

		fmt.Println("\n--- REPORT ---")
		reportTo := promptMulti(reader, "Report recipient email(s), empty to disable (comma-separated): ")

		content := fmt.Sprintf(`imap:
  server: %s
  port: %s
  ssl: %s
  username: %s

llm:
  endpoint: %s
  model: %s
  temperature: 0.1
  max_tokens: 1024
  timeout: 30

processing:
  batch_size: 10
  max_emails_per_run: 100
  max_email_size_kb: 500
  skip_processed: true
  dry_run: false
  folders:
%s

categories:
  fallback: manual_review
  items:
    - name: manual_review
      folder: Folders/ManualReview
    - name: bills
      folder: Folders/Bills
    - name: promotional
      folder: Folders/Promotions

report:
  to:
%s
`, imapServer, imapPort, imapSSL, imapUser,
			llmEndpoint, llmModel,
			yamlList("    - ", folders), yamlList("    - ", reportTo))

		if err := os.WriteFile(configFile, []byte(content), 0o600); err != nil {
			return fmt.Errorf("failed to write config.yaml: %w", err)
		}

		fmt.Println("\n✅ config.yaml created successfully.")
		fmt.Println("Run `mail-sorter folders` to check that every category folder resolves.")
		return nil
	},
}

func init() {
	initCmd.Flags().Bool("force", false, "Overwrite an existing config.yaml")
}

func prompt(r *bufio.Reader, label string) string {
	fmt.Print(label)
	text, _ := r.ReadString('\n')
	return strings.TrimSpace(text)
}

func promptDefault(r *bufio.Reader, label, def string) string {
	if v := prompt(r, fmt.Sprintf("%s [%s]: ", label, def)); v != "" {
		return v
	}

	return def
}

func promptMulti(r *bufio.Reader, label string) []string {
	raw := prompt(r, label)
	parts := strings.Split(raw, ",")
	var cleaned []string
	for _, s := range parts {
		s = strings.TrimSpace(s)
		if s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return cleaned
}

func yamlList(prefix string, values []string) string {
	var lines []string
	for _, v := range values {
		lines = append(lines, fmt.Sprintf("%s%s", prefix, v))
	}
	return strings.Join(lines, "\n")
}
