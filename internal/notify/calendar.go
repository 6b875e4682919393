package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gmsas95/medremind/internal/config"
	"github.com/gmsas95/medremind/internal/store"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const calendarEventsURL = "https://www.googleapis.com/calendar/v3/calendars/primary/events"

// calendarEvent is the Google Calendar event payload
type calendarEvent struct {
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Start       eventTime `json:"start"`
	End         eventTime `json:"end"`
	Recurrence  []string  `json:"recurrence,omitempty"`
	Reminders   struct {
		UseDefault bool `json:"useDefault"`
		Overrides  []struct {
			Method  string `json:"method"`
			Minutes int    `json:"minutes"`
		} `json:"overrides,omitempty"`
	} `json:"reminders"`
}

type eventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

// CalendarClient creates medication reminder events on the patient's
// primary Google Calendar. All operations are best effort; failures are
// reported to the caller but never block reminder dispatch.
type CalendarClient struct {
	oauth     *oauth2.Config
	tokenPath string
	timezone  string
	logger    *zap.Logger
}

// NewCalendarClient creates a Google Calendar client. The OAuth token is
// persisted under dataDir and refreshed automatically by oauth2.
func NewCalendarClient(cfg config.CalendarConfig, dataDir string, logger *zap.Logger) *CalendarClient {
	return &CalendarClient{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"https://www.googleapis.com/auth/calendar.events"},
			Endpoint:     google.Endpoint,
		},
		tokenPath: filepath.Join(dataDir, "calendar_token.json"),
		timezone:  cfg.Timezone,
		logger:    logger,
	}
}

// AuthURL returns the OAuth authorization URL
func (c *CalendarClient) AuthURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// ExchangeCode exchanges an authorization code and persists the token
func (c *CalendarClient) ExchangeCode(ctx context.Context, code string) error {
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange code: %w", err)
	}
	return c.saveToken(token)
}

// Authorized reports whether a stored OAuth token exists
func (c *CalendarClient) Authorized() bool {
	_, err := c.loadToken()
	return err == nil
}

// SyncMedication creates one recurring event per reminder, repeating
// daily for the medication's reminder window
func (c *CalendarClient) SyncMedication(ctx context.Context, med store.Medication) error {
	token, err := c.loadToken()
	if err != nil {
		return fmt.Errorf("calendar not authorized: %w", err)
	}

	client := c.oauth.Client(ctx, token)

	for _, reminder := range med.Reminders {
		event := c.buildEvent(med, reminder.Time)
		if err := c.createEvent(ctx, client, event); err != nil {
			return fmt.Errorf("failed to create event for %s: %w", reminder.Time, err)
		}
	}

	c.logger.Info("calendar synced",
		zap.String("medication_id", med.ID),
		zap.Int("events", len(med.Reminders)))
	return nil
}

func (c *CalendarClient) buildEvent(med store.Medication, clock string) *calendarEvent {
	loc := time.Local
	if c.timezone != "" {
		if l, err := time.LoadLocation(c.timezone); err == nil {
			loc = l
		}
	}

	start := med.StartDate.In(loc)
	var h, m int
	fmt.Sscanf(clock, "%d:%d", &h, &m)
	start = time.Date(start.Year(), start.Month(), start.Day(), h, m, 0, 0, loc)
	end := start.Add(15 * time.Minute)

	summary := fmt.Sprintf("Take %s", med.Name)
	if med.Dosage != "" {
		summary += fmt.Sprintf(" (%s)", med.Dosage)
	}

	event := &calendarEvent{
		Summary:     summary,
		Description: med.Notes,
		Start:       eventTime{DateTime: start.Format(time.RFC3339), TimeZone: c.timezone},
		End:         eventTime{DateTime: end.Format(time.RFC3339), TimeZone: c.timezone},
	}
	if med.ReminderDays > 0 {
		event.Recurrence = []string{fmt.Sprintf("RRULE:FREQ=DAILY;COUNT=%d", med.ReminderDays)}
	}
	event.Reminders.UseDefault = true
	return event
}

func (c *CalendarClient) createEvent(ctx context.Context, client *http.Client, event *calendarEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, calendarEventsURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("calendar API returned status %d: %s", resp.StatusCode, string(data))
	}
	return nil
}

func (c *CalendarClient) loadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(c.tokenPath)
	if err != nil {
		return nil, err
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

func (c *CalendarClient) saveToken(token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return err
	}
	return os.WriteFile(c.tokenPath, data, 0600)
}
