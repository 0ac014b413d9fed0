// Package notification delivers user-facing messages through the configured
// email provider.
package notification

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

type MessageType string

const (
	MessageInvitation MessageType = "INVITATION"
)

type Message struct {
	To      string
	Type    MessageType
	Subject string
	HTML    string
}

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// InvitationView is the data rendered into the invitation email.
type InvitationView struct {
	InviterName string
	ServiceName string
	AcceptURL   string
}

func RenderInvitation(view InvitationView) (string, error) {
	if view.InviterName == "" {
		view.InviterName = "Someone"
	}
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, "invitation.html", view); err != nil {
		return "", fmt.Errorf("render invitation: %w", err)
	}
	return body.String(), nil
}
