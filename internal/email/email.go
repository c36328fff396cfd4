// Package email composes the digest as an HTML email and delivers it
// over SMTP. A failed run is never sent; an empty successful digest is
// sent only when configured to.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"pheme/internal/core"
	"pheme/internal/render"
)

// Settings configures composition and delivery.
type Settings struct {
	Recipient string
	From      string
	SMTPHost  string
	SMTPPort  int
	SMTPUser  string
	SMTPPass  string
	SendEmpty bool
}

var htmlTemplate = template.Must(template.New("digest").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: -apple-system, Helvetica, Arial, sans-serif; max-width: 640px; margin: 0 auto; color: #222;">
  <h1 style="border-bottom: 2px solid #444; padding-bottom: 8px;">Pheme Daily Digest</h1>
  <p style="color: #666;">{{.Date}} &middot; {{.EntryCount}} article{{if ne .EntryCount 1}}s{{end}}</p>
  {{if .Empty}}<p>No articles matched any topic today.</p>{{end}}
  {{range .Sections}}{{if .Entries}}
  <h2 style="margin-top: 28px;">{{.TopicName}}</h2>
    {{range .Entries}}
    <div style="margin-bottom: 18px;">
      <a href="{{.Link}}" style="font-weight: bold; color: #1a5276;">{{.Title}}</a>
      <p style="margin: 6px 0;">{{.Summary}}</p>
      <span style="color: #888; font-size: 13px;">{{.SourceName}}</span>
    </div>
    {{end}}
  {{end}}{{end}}
</body>
</html>
`))

type templateData struct {
	Date       string
	EntryCount int
	Empty      bool
	Sections   []core.TopicSection
}

// ComposeHTML renders the digest as an HTML email body.
func ComposeHTML(result *core.DigestResult) (string, error) {
	var buf bytes.Buffer
	err := htmlTemplate.Execute(&buf, templateData{
		Date:       result.GeneratedAt.UTC().Format("Monday, January 2, 2006"),
		EntryCount: result.EntryCount(),
		Empty:      result.Empty(),
		Sections:   result.Sections,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render email template: %w", err)
	}
	return buf.String(), nil
}

// Send composes and delivers the digest. Returns (false, nil) when
// sending was skipped by policy rather than failed.
func Send(result *core.DigestResult, settings Settings) (bool, error) {
	if settings.Recipient == "" {
		return false, nil
	}
	if result.Empty() && !settings.SendEmpty {
		return false, nil
	}

	html, err := ComposeHTML(result)
	if err != nil {
		return false, err
	}
	plain := render.Plain(result)
	subject := fmt.Sprintf("Pheme Daily Digest - %s", result.GeneratedAt.UTC().Format("Jan 2, 2006"))

	msg := buildMessage(settings.From, settings.Recipient, subject, plain, html)
	addr := fmt.Sprintf("%s:%d", settings.SMTPHost, settings.SMTPPort)

	var auth smtp.Auth
	if settings.SMTPUser != "" {
		auth = smtp.PlainAuth("", settings.SMTPUser, settings.SMTPPass, settings.SMTPHost)
	}
	if err := smtp.SendMail(addr, auth, settings.From, []string{settings.Recipient}, msg); err != nil {
		return false, fmt.Errorf("failed to send digest email: %w", err)
	}
	return true, nil
}

const boundary = "pheme-digest-boundary"

// buildMessage assembles a multipart/alternative message with plain
// text and HTML parts.
func buildMessage(from, to, subject, plain, html string) []byte {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("From: %s\r\n", from))
	sb.WriteString(fmt.Sprintf("To: %s\r\n", to))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q\r\n", boundary))
	sb.WriteString("\r\n")

	sb.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	sb.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	sb.WriteString(plain)
	sb.WriteString("\r\n")

	sb.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	sb.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	sb.WriteString(html)
	sb.WriteString("\r\n")

	sb.WriteString(fmt.Sprintf("--%s--\r\n", boundary))
	return []byte(sb.String())
}
