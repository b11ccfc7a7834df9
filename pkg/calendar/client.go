package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Attendee is an invited participant on a calendar event.
type Attendee struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

// EventPayload describes the event fields sent to the provider.
type EventPayload struct {
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	TimeZone    string
	Attendees   []Attendee
}

// Event is the provider's view of a created or updated event.
type Event struct {
	ID       string `json:"id"`
	HTMLLink string `json:"htmlLink"`
}

// APIError is a non-2xx provider response.
type APIError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("calendar provider returned %d: %s", e.StatusCode, e.Body)
}

// Unauthorized reports whether the provider rejected our credentials, which
// maps to the needs-reauth classification upstream.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Client is a minimal REST client for a Google-Calendar-style events API.
type Client struct {
	baseURL    string
	calendarID string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient constructs a calendar client.
func NewClient(baseURL, calendarID string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		calendarID: calendarID,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type wireDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

type wireEvent struct {
	Summary     string       `json:"summary"`
	Description string       `json:"description,omitempty"`
	Location    string       `json:"location,omitempty"`
	Start       wireDateTime `json:"start"`
	End         wireDateTime `json:"end"`
	Attendees   []Attendee   `json:"attendees,omitempty"`
}

// CreateEvent creates a new event and asks the provider to notify attendees.
func (c *Client) CreateEvent(ctx context.Context, accessToken string, payload EventPayload) (*Event, error) {
	endpoint := fmt.Sprintf("%s/calendars/%s/events?sendUpdates=all", c.baseURL, url.PathEscape(c.calendarID))
	return c.send(ctx, http.MethodPost, endpoint, accessToken, payload)
}

// UpdateEvent rewrites an existing event; the provider notifies all attendees
// of the change.
func (c *Client) UpdateEvent(ctx context.Context, accessToken, eventID string, payload EventPayload) (*Event, error) {
	endpoint := fmt.Sprintf("%s/calendars/%s/events/%s?sendUpdates=all", c.baseURL, url.PathEscape(c.calendarID), url.PathEscape(eventID))
	return c.send(ctx, http.MethodPut, endpoint, accessToken, payload)
}

// DeleteEvent removes an event. A 404 or 410 is treated as already gone.
func (c *Client) DeleteEvent(ctx context.Context, accessToken, eventID string) error {
	endpoint := fmt.Sprintf("%s/calendars/%s/events/%s?sendUpdates=all", c.baseURL, url.PathEscape(c.calendarID), url.PathEscape(eventID))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build delete event request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, endpoint, accessToken string, payload EventPayload) (*Event, error) {
	body := wireEvent{
		Summary:     payload.Title,
		Description: payload.Description,
		Location:    payload.Location,
		Start:       wireDateTime{DateTime: payload.Start.Format(time.RFC3339), TimeZone: payload.TimeZone},
		End:         wireDateTime{DateTime: payload.End.Format(time.RFC3339), TimeZone: payload.TimeZone},
		Attendees:   payload.Attendees,
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode event payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build event request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send event request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		c.logger.Warn("calendar provider error",
			zap.String("method", method),
			zap.Int("status", resp.StatusCode),
		)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var event Event
	if err := json.Unmarshal(respBody, &event); err != nil {
		return nil, fmt.Errorf("decode event response: %w", err)
	}
	return &event, nil
}
