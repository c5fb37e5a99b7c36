// Package mail renders transactional email bodies from embedded HTML
// templates.
package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

// Template ids.
const (
	BookingConfirmed = "booking_confirmed"
	ShowReminder     = "show_reminder"
	ShowAdded        = "show_added"
)

//go:embed templates/*.html
var files embed.FS

var templates = template.Must(template.ParseFS(files, "templates/*.html"))

// BookingConfirmedData fills the booking_confirmed template.
type BookingConfirmedData struct {
	UserName   string
	MovieTitle string
	ShowDate   string
	ShowTime   string
	Seats      string
	Amount     string
}

// ShowReminderData fills the show_reminder template.
type ShowReminderData struct {
	UserName   string
	MovieTitle string
	ShowDate   string
	ShowTime   string
	HoursAhead int
}

// ShowAddedData fills the show_added template.
type ShowAddedData struct {
	UserName   string
	MovieTitle string
}

// Render executes the template with the given id.  Values are HTML-escaped.
func Render(templateID string, data any) (string, error) {
	t := templates.Lookup(templateID + ".html")
	if t == nil {
		return "", fmt.Errorf("unknown email template %q", templateID)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", templateID, err)
	}
	return buf.String(), nil
}
