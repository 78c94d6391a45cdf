// Package notification sends email in response to domain events. The module
// subscribes to the bus and inverts the dependency: domain modules never know
// about SMTP or templates.
package notification

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net"
	"time"

	"funnelboard/platform/config"

	gomail "github.com/wneessen/go-mail"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	subjectLeadAssigned   = "Novo lead atribuído a você"
	subjectLeadWonFmt     = "Lead ganho: %s"
	subjectUnreadReminder = "Você tem mensagens não lidas"
)

type notificationData struct {
	Title   string
	Heading string
	Lines   []string
}

// Mailer delivers notification email over the configured SMTP server.
// A nil Mailer is valid and drops every send.
type Mailer struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewMailer returns nil when email is disabled or SMTP is not configured.
func NewMailer(cfg config.EmailConfig) *Mailer {
	if !cfg.GetEmailEnabled() || cfg.GetSMTPHost() == "" {
		return nil
	}

	return &Mailer{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
	}
}

func (m *Mailer) SendLeadAssigned(ctx context.Context, to, leadName, assignedBy string) error {
	return m.send(ctx, to, subjectLeadAssigned, notificationData{
		Title:   subjectLeadAssigned,
		Heading: "Um lead foi atribuído a você",
		Lines: []string{
			fmt.Sprintf("O lead %s foi atribuído a você por %s.", leadName, assignedBy),
			"Acesse o quadro para entrar em contato.",
		},
	})
}

func (m *Mailer) SendLeadWon(ctx context.Context, to, leadName string, valueCents int64) error {
	lines := []string{fmt.Sprintf("O lead %s foi movido para uma etapa de ganho.", leadName)}
	if valueCents > 0 {
		lines = append(lines, fmt.Sprintf("Valor da negociação: R$ %.2f.", float64(valueCents)/100))
	}
	return m.send(ctx, to, fmt.Sprintf(subjectLeadWonFmt, leadName), notificationData{
		Title:   "Lead ganho",
		Heading: "Parabéns, negócio fechado!",
		Lines:   lines,
	})
}

func (m *Mailer) SendUnreadReminder(ctx context.Context, to, leadName string, unread int) error {
	return m.send(ctx, to, subjectUnreadReminder, notificationData{
		Title:   subjectUnreadReminder,
		Heading: "Mensagens aguardando resposta",
		Lines: []string{
			fmt.Sprintf("O lead %s tem %d mensagem(ns) não lida(s).", leadName, unread),
			"Responda pelo quadro para não perder a conversa.",
		},
	})
}

func (m *Mailer) send(ctx context.Context, toEmail, subject string, data notificationData) error {
	if m == nil {
		return nil
	}

	content, err := renderTemplate(data)
	if err != nil {
		return err
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat(m.fromName, m.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, content)

	client, err := gomail.NewClient(m.host,
		gomail.WithPort(m.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(m.username),
		gomail.WithPassword(m.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func renderTemplate(data notificationData) (string, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/notification.html")
	if err != nil {
		return "", fmt.Errorf("parse notification template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render notification template: %w", err)
	}
	return buf.String(), nil
}
