package oracle

import (
	"fmt"
	"strings"
)

// PromptData is the value the prompt template is rendered with.
type PromptData struct {
	Categories  string
	Subject     string
	Sender      string
	Date        string
	Body        string
	Attachments string
}

// DefaultPrompt asks for a bare category name.
const DefaultPrompt = `You are an email classification assistant. Categorize the following email into exactly one of these categories:
{{.Categories}}

Email:
Subject: {{.Subject}}
From: {{.Sender}}
Date: {{.Date}}
{{- if .Attachments}}
Attachments: {{.Attachments}}
{{- end}}
Body:
{{.Body}}

Guidelines:
1. For replies and forwarded threads, classify by the content, not only the subject line.
2. Newsletters and company updates are promotional unless they contain billing information.
3. Account statements, payment confirmations and receipts are bills.
4. Use the manual review category only when the email needs a personal response.

Respond with only the category name that best matches this email.
`

func (c *Client) render(email Email, categories []string) (string, error) {
	quoted := make([]string, 0, len(categories))
	for _, cat := range categories {
		quoted = append(quoted, "'"+cat+"'")
	}

	body := email.Body
	if r := []rune(body); len(r) > maxBodyChars {
		body = string(r[:maxBodyChars])
	}

	data := PromptData{
		Categories:  strings.Join(quoted, ", "),
		Subject:     email.Subject,
		Sender:      email.Sender,
		Date:        email.Date,
		Body:        body,
		Attachments: strings.Join(email.Attachments, ", "),
	}

	var b strings.Builder
	if err := c.prompt.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}

	return b.String(), nil
}
