package delivery

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	"text/template"
	"time"
)

//go:embed templates
var templateFS embed.FS

// InviteSubject is the subject line of the invitation email.
const InviteSubject = "Convite: Responda seu Questionário de Avaliação Psicológica"

var portugueseMonths = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// PortugueseDate formats t as "02 de janeiro de 2006".
func PortugueseDate(t time.Time) string {
	return fmt.Sprintf("%02d de %s de %d", t.Day(), portugueseMonths[t.Month()-1], t.Year())
}

// InviteData fills the invitation templates
type InviteData struct {
	PatientName      string
	PatientEmail     string
	URL              string
	ExpiresAt        time.Time
	PsychologistName string
}

var funcs = map[string]any{"date": PortugueseDate}

var (
	inviteHTML = htmltemplate.Must(htmltemplate.New("invite.html.tmpl").Funcs(funcs).ParseFS(templateFS, "templates/invite.html.tmpl"))
	inviteText = template.Must(template.New("invite.txt.tmpl").Funcs(funcs).ParseFS(templateFS, "templates/invite.txt.tmpl"))
	whatsApp   = template.Must(template.New("whatsapp.txt.tmpl").Funcs(funcs).ParseFS(templateFS, "templates/whatsapp.txt.tmpl"))
)

func render(execute func(*bytes.Buffer) error) (string, error) {
	var buf bytes.Buffer
	if err := execute(&buf); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// InviteMessage renders the invitation email for data
func InviteMessage(data InviteData) (Message, error) {
	html, err := render(func(b *bytes.Buffer) error { return inviteHTML.Execute(b, data) })
	if err != nil {
		return Message{}, err
	}
	text, err := render(func(b *bytes.Buffer) error { return inviteText.Execute(b, data) })
	if err != nil {
		return Message{}, err
	}

	return Message{
		To:      data.PatientEmail,
		Subject: InviteSubject,
		HTML:    html,
		Text:    text,
	}, nil
}

// WhatsAppMessage renders the text a clinician pastes into WhatsApp
func WhatsAppMessage(data InviteData) (string, error) {
	return render(func(b *bytes.Buffer) error { return whatsApp.Execute(b, data) })
}
