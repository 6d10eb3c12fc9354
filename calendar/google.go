package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultBaseURL = "https://www.googleapis.com/calendar/v3"

// maxResultsPerPage is Google's maximum page size for event listing.
const maxResultsPerPage = 2500

// RateLimitError is returned when the provider answers 429; RetryAfter
// carries the server-reported backoff when present.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// Client is a thin Google Calendar REST client. Methods take the access
// token explicitly so the caller controls refresh.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	CalendarID string
}

// NewClient returns a client for the given calendar with a 30s timeout.
func NewClient(calendarID string) *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		BaseURL:    defaultBaseURL,
		CalendarID: calendarID,
	}
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return defaultBaseURL
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (c *Client) do(ctx context.Context, accessToken, method, path string, query url.Values, body any) ([]byte, error) {
	u := c.baseURL() + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("calendar API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Duration(0)
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return nil, &RateLimitError{RetryAfter: retryAfter}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("calendar API returned %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

type eventListPage struct {
	Items         []Event `json:"items"`
	NextPageToken string  `json:"nextPageToken"`
}

// ListEvents returns all single events in [timeMin, timeMax], following
// pagination until exhausted.
func (c *Client) ListEvents(ctx context.Context, accessToken string, timeMin, timeMax time.Time) ([]Event, error) {
	var all []Event
	pageToken := ""

	for {
		query := url.Values{}
		query.Set("timeMin", timeMin.UTC().Format(time.RFC3339))
		query.Set("timeMax", timeMax.UTC().Format(time.RFC3339))
		query.Set("singleEvents", "true")
		query.Set("orderBy", "startTime")
		query.Set("maxResults", strconv.Itoa(maxResultsPerPage))
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}

		body, err := c.do(ctx, accessToken, http.MethodGet, "/calendars/"+url.PathEscape(c.CalendarID)+"/events", query, nil)
		if err != nil {
			return nil, fmt.Errorf("list calendar events: %w", err)
		}

		var page eventListPage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("parse event list: %w", err)
		}

		all = append(all, page.Items...)
		if page.NextPageToken == "" {
			return all, nil
		}
		pageToken = page.NextPageToken
	}
}

// InsertEvent creates an event and returns it with the provider-assigned id.
func (c *Client) InsertEvent(ctx context.Context, accessToken string, ev Event) (Event, error) {
	body, err := c.do(ctx, accessToken, http.MethodPost, "/calendars/"+url.PathEscape(c.CalendarID)+"/events", nil, ev)
	if err != nil {
		return Event{}, err
	}

	var created Event
	if err := json.Unmarshal(body, &created); err != nil {
		return Event{}, fmt.Errorf("parse created event: %w", err)
	}
	return created, nil
}

// UpdateEvent replaces an existing event.
func (c *Client) UpdateEvent(ctx context.Context, accessToken, eventID string, ev Event) error {
	_, err := c.do(ctx, accessToken, http.MethodPut, "/calendars/"+url.PathEscape(c.CalendarID)+"/events/"+url.PathEscape(eventID), nil, ev)
	return err
}

// DeleteEvent removes an event by id.
func (c *Client) DeleteEvent(ctx context.Context, accessToken, eventID string) error {
	_, err := c.do(ctx, accessToken, http.MethodDelete, "/calendars/"+url.PathEscape(c.CalendarID)+"/events/"+url.PathEscape(eventID), nil, nil)
	return err
}

// CalendarInfo describes a calendar from the user's calendar list.
type CalendarInfo struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
}

// PrimaryCalendar fetches the authenticated user's primary calendar, used
// once during the OAuth callback to pick the sync target.
func (c *Client) PrimaryCalendar(ctx context.Context, accessToken string) (CalendarInfo, error) {
	body, err := c.do(ctx, accessToken, http.MethodGet, "/users/me/calendarList/primary", nil, nil)
	if err != nil {
		return CalendarInfo{}, fmt.Errorf("fetch primary calendar: %w", err)
	}

	var info CalendarInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return CalendarInfo{}, fmt.Errorf("parse calendar info: %w", err)
	}
	return info, nil
}
