package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var linkTemplate = template.Must(template.ParseFS(templateFS, "templates/link.html.tmpl"))

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Renderer turns a token into a link email.
type Renderer struct {
	frontendURL string
	linkTTL     time.Duration
}

// NewRenderer returns a renderer whose links point at frontendURL and mention linkTTL.
func NewRenderer(frontendURL string, linkTTL time.Duration) *Renderer {
	return &Renderer{frontendURL: frontendURL, linkTTL: linkTTL}
}

type linkData struct {
	Subject string
	Name    string
	Text    string
	URL     template.URL
	Ending  string
}

// Render builds the message for recipient. The link keeps the original address; the message is
// addressed to DeliveryAddress(recipient).
func (r *Renderer) Render(recipient, token string, kind Kind, displayName string) (*Message, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("email: unknown kind %q", kind)
	}
	if displayName == "" {
		displayName = "there"
	}
	link := Link(r.frontendURL, kind, recipient, token)
	data := linkData{
		Subject: kind.Subject(),
		Name:    displayName,
		URL:     template.URL(link),
	}
	switch kind {
	case KindResetPassword:
		data.Text = "There was a request to change your password. If you did not make this request then please ignore this email."
		data.Ending = fmt.Sprintf("The password recovery link expires after %s.", humanize(r.linkTTL))
	default:
		data.Text = "We just need to verify your email address before you can access your account."
		data.Ending = fmt.Sprintf("The email verification link expires after %s.", humanize(r.linkTTL))
	}

	var buf bytes.Buffer
	if err := linkTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("email: render: %w", err)
	}
	return &Message{
		To:      DeliveryAddress(recipient),
		Subject: data.Subject,
		HTML:    buf.String(),
		Text:    "Hi " + displayName + ",\n\n" + data.Text + "\n\n" + link + "\n\n" + data.Ending + "\n",
	}, nil
}

func humanize(d time.Duration) string {
	switch {
	case d <= 0:
		return "a short time"
	case d%time.Hour == 0:
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	case d%time.Minute == 0:
		m := int(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	default:
		return d.String()
	}
}
