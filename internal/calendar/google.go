package calendar

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// GoogleCalendar implements EventStore against the Google Calendar API.
type GoogleCalendar struct {
	svc    *gcal.Service
	logger *zap.Logger
}

// NewGoogleCalendar builds a calendar client from a service-account or
// application credentials file.
func NewGoogleCalendar(ctx context.Context, credentialsFile string, logger *zap.Logger) (*GoogleCalendar, error) {
	svc, err := gcal.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gcal.CalendarEventsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &GoogleCalendar{svc: svc, logger: logger}, nil
}

// NewGoogleCalendarWithToken builds a calendar client from a bare OAuth2
// access token.
func NewGoogleCalendarWithToken(ctx context.Context, accessToken string, logger *zap.Logger) (*GoogleCalendar, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	svc, err := gcal.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &GoogleCalendar{svc: svc, logger: logger}, nil
}

// CreateEvent inserts an event and returns its provider-assigned ID.
func (g *GoogleCalendar) CreateEvent(ctx context.Context, calendarID string, ev Event) (string, error) {
	event := &gcal.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		Start:       &gcal.EventDateTime{DateTime: ev.Start.Format(time.RFC3339)},
		End:         &gcal.EventDateTime{DateTime: ev.End.Format(time.RFC3339)},
	}

	created, err := g.svc.Events.Insert(calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create calendar event: %w", err)
	}

	g.logger.Debug("Calendar event created",
		zap.String("calendar_id", calendarID),
		zap.String("event_id", created.Id),
	)
	return created.Id, nil
}

// DeleteEvent removes an event by ID.
func (g *GoogleCalendar) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	if err := g.svc.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete calendar event %s: %w", eventID, err)
	}
	g.logger.Debug("Calendar event deleted",
		zap.String("calendar_id", calendarID),
		zap.String("event_id", eventID),
	)
	return nil
}
