package notify

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"

	gomail "gopkg.in/gomail.v2"

	"github.com/meko-christian/mail-sorter/internal/config"
	"github.com/meko-christian/mail-sorter/internal/sorter"
)

// Sender delivers composed messages. *gomail.Dialer implements it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Reporter mails a run summary to an operator when some messages could not
// be routed.
type Reporter struct {
	cfg    config.Report
	sender Sender
}

// NewReporter configures an SMTP dialer from cfg.
func NewReporter(cfg config.Report) *Reporter {
	dialer := gomail.NewDialer(cfg.Server, cfg.Port, cfg.Username, cfg.Password)

	if cfg.Security == "ssl" {
		dialer.SSL = true
	} else {
		// STARTTLS against local bridges with self-signed certificates.
		dialer.TLSConfig = &tls.Config{InsecureSkipVerify: true, ServerName: cfg.Server}
	}

	return &Reporter{cfg: cfg, sender: dialer}
}

// WithSender replaces the SMTP transport.
func (r *Reporter) WithSender(s Sender) *Reporter {
	r.sender = s
	return r
}

// Send reports the messages of summary that need attention. Nothing is sent
// when every message was routed.
func (r *Reporter) Send(summary sorter.Summary) error {
	msg := r.Compose(summary)
	if msg == nil {
		return nil
	}

	if err := r.sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send report: %w", err)
	}

	slog.Info("Sent run report", "run_id", summary.RunID, "recipients", r.cfg.To)
	return nil
}

// Compose builds the report message, or returns nil when there is nothing to
// report.
func (r *Reporter) Compose(summary sorter.Summary) *gomail.Message {
	attention := summary.NeedsAttention()
	if len(attention) == 0 {
		return nil
	}

	from := r.cfg.From
	if from == "" {
		from = r.cfg.Username
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", r.cfg.To...)
	msg.SetHeader("Subject", fmt.Sprintf("[mail-sorter] %d message(s) need attention", len(attention)))
	msg.SetBody("text/plain", body(summary, attention))

	return msg
}

func body(summary sorter.Summary, attention []sorter.Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run %s processed %d message(s), %d routed successfully.\n\n",
		summary.RunID, summary.Processed, summary.Succeeded)
	b.WriteString("The following messages were classified but left in their source folder:\n\n")

	for _, res := range attention {
		fmt.Fprintf(&b, "- %s (uid %d in %s)\n", res.Subject, res.UID, res.Folder)
		fmt.Fprintf(&b, "  category: %s, destination: %s\n", res.Category, destination(res))
		fmt.Fprintf(&b, "  outcome: %s", res.Outcome)
		if res.Reason != "" {
			fmt.Fprintf(&b, " (%s)", res.Reason)
		}
		b.WriteString("\n")
	}

	b.WriteString("\nCreate the missing folders or move these messages by hand.\n")
	return b.String()
}

func destination(res sorter.Result) string {
	if res.Destination == "" {
		return "unresolved"
	}

	return res.Destination
}
