// Package notification emails caseworkers about early-warning changes.
package notification

import (
	"bytes"
	"fmt"
	"net/smtp"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/Rosevil15/TPMSS-sub001/internal/protocol"
	"github.com/Rosevil15/TPMSS-sub001/pkg/config"
)

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier sends email notifications
type EmailNotifier struct {
	config *config.SMTPConfig
	logger *zap.Logger
	send   SendFunc
	now    func() time.Time
}

// NewEmailNotifier creates a new email notifier
func NewEmailNotifier(cfg *config.SMTPConfig, logger *zap.Logger) *EmailNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailNotifier{config: cfg, logger: logger, send: smtp.SendMail, now: time.Now}
}

// Configured reports whether SMTP credentials are set. Without them mail is
// logged instead of sent.
func (e *EmailNotifier) Configured() bool {
	return e.config.Username != "" && e.config.Password != ""
}

var funcs = template.FuncMap{
	"upper": strings.ToUpper,
	"stamp": func(t time.Time) string { return t.Format("Jan 2, 2006 15:04") },
	"yesno": func(b bool) string {
		if b {
			return "Yes"
		}
		return "No"
	},
}

var raisedTmpl = template.Must(template.New("raised").Funcs(funcs).Parse(`
Early Warning Raised
====================

Name: {{.Name}}
Location: {{.Location}}
Risk Level: {{upper .RiskLevel}} (was {{upper .PreviousLevel}})
Pregnancies: {{.PregnancyCount}}
Repeated Pregnancy: {{yesno .RepeatedPregnancy}}
School Dropout: {{yesno .SchoolDropout}}
Detected: {{stamp .DetectedAt}}
Profile ID: {{.ProfileID}}

Please review this case and schedule a follow-up.
`))

var clearedTmpl = template.Must(template.New("cleared").Funcs(funcs).Parse(`
Early Warning Cleared
=====================

Name: {{.Name}}
Location: {{.Location}}
Previous Level: {{upper .PreviousLevel}}
Cleared: {{stamp .DetectedAt}}
Profile ID: {{.ProfileID}}

The profile no longer meets any early-warning criteria.
`))

var digestTmpl = template.Must(template.New("digest").Funcs(funcs).Parse(`
Early Warning Digest
====================

{{len .Raised}} raised, {{len .Cleared}} cleared.
{{if .Raised}}
Raised
------
{{range .Raised}}- {{.Name}} ({{.Location}}): {{upper .RiskLevel}}, {{.PregnancyCount}} pregnancies, dropout {{yesno .SchoolDropout}}
{{end}}{{end}}{{if .Cleared}}
Cleared
-------
{{range .Cleared}}- {{.Name}} ({{.Location}}), was {{upper .PreviousLevel}}
{{end}}{{end}}`))

// SendWarning sends one email for a single notification.
func (e *EmailNotifier) SendWarning(n *protocol.WarningNotification) error {
	var subject string
	var tmpl *template.Template

	switch n.Type {
	case protocol.WarningTypeRaised:
		subject = fmt.Sprintf("Early warning RAISED - %s, %s", n.Name, n.Location)
		tmpl = raisedTmpl
	case protocol.WarningTypeCleared:
		subject = fmt.Sprintf("Early warning CLEARED - %s, %s", n.Name, n.Location)
		tmpl = clearedTmpl
	default:
		return fmt.Errorf("unknown notification type: %s", n.Type)
	}

	body, err := render(tmpl, n)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}
	return e.sendEmail(subject, body)
}

// SendDigest sends one email summarizing a batch of notifications.
func (e *EmailNotifier) SendDigest(notifications []*protocol.WarningNotification) error {
	if len(notifications) == 0 {
		return nil
	}
	if len(notifications) == 1 {
		return e.SendWarning(notifications[0])
	}

	body, err := RenderDigest(notifications)
	if err != nil {
		return fmt.Errorf("failed to render digest: %w", err)
	}
	subject := fmt.Sprintf("Early warning digest - %d updates", len(notifications))
	return e.sendEmail(subject, body)
}

// RenderDigest renders the digest body, raised warnings first.
func RenderDigest(notifications []*protocol.WarningNotification) (string, error) {
	var data struct {
		Raised  []*protocol.WarningNotification
		Cleared []*protocol.WarningNotification
	}
	for _, n := range notifications {
		if n.Type == protocol.WarningTypeCleared {
			data.Cleared = append(data.Cleared, n)
		} else {
			data.Raised = append(data.Raised, n)
		}
	}
	return render(digestTmpl, data)
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (e *EmailNotifier) sendEmail(subject, body string) error {
	if !e.Configured() {
		e.logger.Info("SMTP not configured, skipping email",
			zap.String("subject", subject), zap.String("body", body))
		return nil
	}

	message := fmt.Sprintf("From: %s\r\n", e.config.From)
	message += fmt.Sprintf("To: %s\r\n", e.config.To)
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += fmt.Sprintf("Date: %s\r\n", e.now().Format(time.RFC1123Z))
	message += "\r\n"
	message += body

	auth := smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.Host)

	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)
	if err := e.send(addr, auth, e.config.From, []string{e.config.To}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	e.logger.Info("email sent", zap.String("subject", subject))
	return nil
}

// TestConnection tests the SMTP connection
func (e *EmailNotifier) TestConnection() error {
	if e.config.Username == "" {
		return fmt.Errorf("SMTP not configured")
	}

	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	return nil
}
