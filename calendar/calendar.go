// Package calendar reconciles a tenant's Google Calendar against the
// application's event records: it detects orphaned external events and
// missing app events, and optionally corrects the drift with batched,
// rate-limited create/delete calls.
package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// TenantContext identifies the tenant (and acting user) for every
// reconciliation operation. It is passed explicitly rather than read from
// ambient state.
type TenantContext struct {
	TenantID string
	UserID   string
}

// Integration is one tenant-provider calendar connection. Tokens are stored
// encrypted at rest; the caller decrypts before constructing this value.
// A zero TokenExpiresAt means no expiry was recorded for the token.
type Integration struct {
	ID             string
	TenantID       string
	Provider       string
	CalendarID     string
	CalendarName   string
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt time.Time
}

// EventTime is the Google Calendar start/end representation: all-day events
// carry Date, timed events carry DateTime.
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// Event is an external (Google) calendar event.
type Event struct {
	ID          string    `json:"id,omitempty"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       EventTime `json:"start"`
	End         EventTime `json:"end"`
}

// StartDate returns the YYYY-MM-DD date of the event start, from either the
// timed or the all-day representation.
func (e Event) StartDate() string {
	if e.Start.Date != "" {
		return e.Start.Date
	}
	if len(e.Start.DateTime) >= 10 {
		return e.Start.DateTime[:10]
	}
	return ""
}

// FormLine is one enabled form response surfaced in the calendar description.
type FormLine struct {
	Label string `json:"label"`
	Notes string `json:"notes,omitempty"`
}

// AppEvent is the application-side event record, as needed for sync. Dates
// are YYYY-MM-DD, times HH:MM.
type AppEvent struct {
	ID                   string     `json:"id"`
	Title                string     `json:"title"`
	EventType            string     `json:"event_type,omitempty"`
	EventDate            string     `json:"event_date"`
	EventEndDate         string     `json:"event_end_date,omitempty"`
	StartTime            string     `json:"start_time,omitempty"`
	EndTime              string     `json:"end_time,omitempty"`
	GuestCount           int        `json:"guest_count,omitempty"`
	VenueArea            string     `json:"venue_area,omitempty"`
	CustomerName         string     `json:"customer_name,omitempty"`
	PrimaryContactName   string     `json:"primary_contact_name,omitempty"`
	PrimaryContactNumber string     `json:"primary_contact_number,omitempty"`
	FormLines            []FormLine `json:"form_lines,omitempty"`
}

// TokenStore persists rotated access tokens back onto the integration row.
type TokenStore interface {
	SaveToken(ctx context.Context, integrationID, accessToken string, expiresAt time.Time) error
}

// EventStore is the application-side view the reconciler needs: the unlinked
// events in range, and a way to link an event to its external id the moment
// it is created so later passes exclude it.
type EventStore interface {
	ListUnlinkedEvents(ctx context.Context, tenant TenantContext, fromDate string) ([]AppEvent, error)
	LinkExternalID(ctx context.Context, eventID, externalID string) error
}

// DefaultTimeZone is applied to created events until per-tenant timezones are
// configurable.
const DefaultTimeZone = "Europe/London"

// FormatEvent renders an app event as a Google Calendar event.
func FormatEvent(app AppEvent) Event {
	summary := app.Title
	if summary == "" {
		summary = "Untitled Event"
	}

	endDate := app.EventEndDate
	if endDate == "" {
		endDate = app.EventDate
	}

	return Event{
		Summary:     summary,
		Description: buildDescription(app),
		Location:    app.VenueArea,
		Start: EventTime{
			DateTime: combineDateTime(app.EventDate, app.StartTime),
			TimeZone: DefaultTimeZone,
		},
		End: EventTime{
			DateTime: combineDateTime(endDate, app.EndTime),
			TimeZone: DefaultTimeZone,
		},
	}
}

// combineDateTime joins a date and an HH:MM time into the RFC3339-style local
// timestamp Google expects alongside an explicit timeZone. Events with no
// recorded time default to 09:00.
func combineDateTime(date, hhmm string) string {
	if hhmm == "" {
		hhmm = "09:00"
	}
	return fmt.Sprintf("%sT%s:00", date, hhmm)
}

func buildDescription(app AppEvent) string {
	var b strings.Builder

	if app.EventType != "" {
		fmt.Fprintf(&b, "Event Type: %s\n", app.EventType)
	}
	if app.GuestCount > 0 {
		fmt.Fprintf(&b, "Guests: %d\n", app.GuestCount)
	}
	if app.CustomerName != "" {
		fmt.Fprintf(&b, "\nCustomer: %s\n", app.CustomerName)
	}
	if app.PrimaryContactName != "" {
		fmt.Fprintf(&b, "Primary Contact: %s\n", app.PrimaryContactName)
	}
	if app.PrimaryContactNumber != "" {
		fmt.Fprintf(&b, "Primary Contact No.: %s\n", app.PrimaryContactNumber)
	}
	if app.VenueArea != "" {
		fmt.Fprintf(&b, "\nVenue Area: %s\n", app.VenueArea)
	}

	if len(app.FormLines) > 0 {
		b.WriteString("\nForm Details:\n")
		for _, line := range app.FormLines {
			if line.Notes != "" {
				fmt.Fprintf(&b, "- %s - %s\n", line.Label, line.Notes)
			} else {
				fmt.Fprintf(&b, "- %s\n", line.Label)
			}
		}
	}

	return strings.TrimSpace(b.String())
}
