package sorter

import (
	"bytes"
	"io"
	"log/slog"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"golang.org/x/net/html"

	"github.com/meko-christian/mail-sorter/internal/oracle"
)

// Attachment describes an attached file. Content is not kept.
type Attachment struct {
	Filename    string
	ContentType string
	Size        int
}

// Message is a fetched and parsed mail.
type Message struct {
	UID         uint32
	Folder      string
	Subject     string
	Sender      string
	Date        string
	BodyText    string
	SizeBytes   int
	Attachments []Attachment
}

// Email converts the message into the oracle's input.
func (m Message) Email() oracle.Email {
	email := oracle.Email{
		Subject: m.Subject,
		Sender:  m.Sender,
		Date:    m.Date,
		Body:    m.BodyText,
	}

	for _, a := range m.Attachments {
		email.Attachments = append(email.Attachments, a.Filename)
	}

	return email
}

// ParseMessage parses a raw RFC 5322 message. Parsing is lenient: a message
// go-message cannot read still yields its raw text as body so it can be
// classified and marked.
func ParseMessage(uid uint32, folder string, raw []byte, withAttachments bool) Message {
	msg := Message{UID: uid, Folder: folder, SizeBytes: len(raw)}

	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		slog.Warn("Failed to parse MIME message, using raw text", "uid", uid, "error", err)
		msg.BodyText = string(raw)
		return msg
	}

	header := mail.Header{Header: entity.Header}
	msg.Subject = decodedText(header, "Subject")
	msg.Sender = decodedText(header, "From")
	msg.Date = decodedText(header, "Date")

	text, htmlBody, attachments := extractBodies(entity)

	msg.BodyText = text
	if msg.BodyText == "" && htmlBody != "" {
		msg.BodyText = htmlToText(htmlBody)
	}

	if withAttachments {
		msg.Attachments = attachments
	}

	return msg
}

func decodedText(h mail.Header, key string) string {
	v, err := h.Text(key)
	if err != nil {
		return h.Get(key)
	}

	return v
}

// extractBodies walks a MIME entity and extracts:
// - text and HTML body (plain text parts are concatenated)
// - attachment metadata
func extractBodies(entity *message.Entity) (string, string, []Attachment) {
	var text, htmlBody strings.Builder
	var attachments []Attachment

	err := entity.Walk(func(_ []int, part *message.Entity, err error) error {
		if err != nil {
			// skip faulty parts
			return nil
		}

		mediaType, _, _ := part.Header.ContentType()
		if strings.HasPrefix(mediaType, "multipart/") {
			return nil
		}

		disposition, params, _ := part.Header.ContentDisposition()

		body, err := io.ReadAll(part.Body)
		if err != nil {
			slog.Warn("Failed to read part body", "error", err)
			return nil
		}

		if disposition == "attachment" {
			filename := params["filename"]
			if filename == "" {
				filename = "attachment"
			}

			attachments = append(attachments, Attachment{
				Filename:    filename,
				ContentType: mediaType,
				Size:        len(body),
			})

			return nil
		}

		switch mediaType {
		case "text/plain", "":
			text.Write(body)
		case "text/html":
			htmlBody.Write(body)
		default:
			if entity == part {
				text.WriteString("[Unsupported content type: " + mediaType + "]")
			}
		}

		return nil
	})
	if err != nil {
		slog.Warn("Failed to walk message parts", "error", err)
	}

	return text.String(), htmlBody.String(), attachments
}

// htmlToText keeps the visible text of an HTML document.
func htmlToText(doc string) string {
	z := html.NewTokenizer(strings.NewReader(doc))

	var b strings.Builder
	skip := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			if name, _ := z.TagName(); isInvisible(name) {
				skip++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); isInvisible(name) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
				b.WriteByte(' ')
			}
		}
	}
}

func isInvisible(tag []byte) bool {
	switch string(tag) {
	case "script", "style", "head", "title":
		return true
	}

	return false
}
