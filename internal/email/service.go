package email

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/labalert/internal/config"
	"github.com/jwalitptl/labalert/internal/model"
	"github.com/jwalitptl/labalert/pkg/logger"
)

// Notifier delivers a critical alert notice to the on-call doctors.
type Notifier interface {
	Send(ctx context.Context, subject, body string) error
}

// Sender is the part of gomail.Dialer the SMTP notifier needs.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPNotifier struct {
	sender Sender
	from   string
	to     []string
}

func NewSMTPNotifier(cfg config.SMTPConfig) (*SMTPNotifier, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if cfg.From == "" || len(cfg.To) == 0 {
		return nil, errors.New("smtp from and to addresses are required")
	}
	return NewSMTPNotifierWithSender(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg.From, cfg.To), nil
}

func NewSMTPNotifierWithSender(sender Sender, from string, to []string) *SMTPNotifier {
	return &SMTPNotifier{sender: sender, from: from, to: to}
}

func (n *SMTPNotifier) Send(ctx context.Context, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", n.to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := n.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}
	return nil
}

// LogNotifier writes alert notices to the log. Used when SMTP is disabled.
type LogNotifier struct {
	logger *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{logger: log}
}

func (n *LogNotifier) Send(_ context.Context, subject, body string) error {
	n.logger.Warn(subject, "notice", body)
	return nil
}

var checklist = []string{
	"Contact the emergency physician",
	"Review the patient's history",
	"Prepare an intervention if needed",
}

// FormatAlert renders the subject and plain-text body of a critical result
// notice, ending with the action checklist.
func FormatAlert(rec *model.ResultRecord, receivedAt time.Time) (subject, body string) {
	subject = fmt.Sprintf("CRITICAL RESULT: %s - %s", rec.PatientName(), rec.TestType())

	var b strings.Builder
	rule := strings.Repeat("=", 50)
	fmt.Fprintln(&b, "CRITICAL MEDICAL ALERT")
	fmt.Fprintf(&b, "Date: %s\n", receivedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Patient: %s (%s)\n", rec.PatientName(), rec.PatientID())
	fmt.Fprintf(&b, "Test: %s\n", rec.TestType())
	fmt.Fprintf(&b, "Value: %s\n", rec.FormattedValue())
	fmt.Fprintf(&b, "Reference: %s\n", rec.ReferenceRange())
	if notes := rec.DoctorNotes(); notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", notes)
	}
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "ACTION REQUIRED:")
	for i, step := range checklist {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, step)
	}
	fmt.Fprint(&b, rule)

	return subject, b.String()
}
