package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeCalendarAPI stands in for the provider's REST API.
type fakeCalendarAPI struct {
	mu        sync.Mutex
	events    []Event
	failIDs   map[string]bool
	listCalls int
	insertSeq int
	deleted   []string
	inserted  []Event

	server *httptest.Server
}

func newFakeCalendarAPI(t *testing.T, events []Event) *fakeCalendarAPI {
	t.Helper()
	api := &fakeCalendarAPI{events: events, failIDs: map[string]bool{}}
	api.server = httptest.NewServer(http.HandlerFunc(api.handle))
	t.Cleanup(api.server.Close)
	return api
}

func (f *fakeCalendarAPI) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/events"):
		f.listCalls++
		json.NewEncoder(w).Encode(eventListPage{Items: f.events})

	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/events"):
		var ev Event
		json.NewDecoder(r.Body).Decode(&ev)
		if f.failIDs[ev.Summary] {
			http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
			return
		}
		f.insertSeq++
		ev.ID = fmt.Sprintf("ext-%d", f.insertSeq)
		f.inserted = append(f.inserted, ev)
		json.NewEncoder(w).Encode(ev)

	case r.Method == http.MethodDelete:
		parts := strings.Split(r.URL.Path, "/")
		id := parts[len(parts)-1]
		if f.failIDs[id] {
			http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
			return
		}
		f.deleted = append(f.deleted, id)
		w.WriteHeader(http.StatusNoContent)

	default:
		http.NotFound(w, r)
	}
}

func (f *fakeCalendarAPI) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls + f.insertSeq + len(f.deleted)
}

type fakeEventStore struct {
	mu     sync.Mutex
	events []AppEvent
	linked map[string]string
}

func (s *fakeEventStore) ListUnlinkedEvents(ctx context.Context, tenant TenantContext, fromDate string) ([]AppEvent, error) {
	return s.events, nil
}

func (s *fakeEventStore) LinkExternalID(ctx context.Context, eventID, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.linked == nil {
		s.linked = map[string]string{}
	}
	s.linked[eventID] = externalID
	return nil
}

type fakeTokenStore struct {
	mu    sync.Mutex
	saved []string
}

func (s *fakeTokenStore) SaveToken(ctx context.Context, integrationID, accessToken string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, accessToken)
	return nil
}

// newTokenEndpoint serves the refresh grant. Pass a non-2xx status to
// simulate a revoked refresh token.
func newTokenEndpoint(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			http.Error(w, `{"error":"invalid_grant"}`, status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"rotated-token","token_type":"Bearer","expires_in":3600}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestReconciler(t *testing.T, api *fakeCalendarAPI, store *fakeEventStore, tokens *fakeTokenStore, integ *Integration, tokenURL string) *Reconciler {
	t.Helper()
	client := NewClient(integ.CalendarID)
	client.BaseURL = api.server.URL
	rec, err := NewReconciler(Config{
		Client: client,
		OAuth: &oauth2.Config{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
		},
		Events:      store,
		Tokens:      tokens,
		Tenant:      TenantContext{TenantID: "tenant-1", UserID: "user-1"},
		Integration: integ,
	})
	require.NoError(t, err)
	return rec
}

func validIntegration() *Integration {
	return &Integration{
		ID:             "integ-1",
		TenantID:       "tenant-1",
		Provider:       "google",
		CalendarID:     "primary",
		AccessToken:    "cached-token",
		RefreshToken:   "refresh-token",
		TokenExpiresAt: time.Now().Add(time.Hour),
	}
}

func externalEvent(id, summary, date string) Event {
	return Event{ID: id, Summary: summary, Start: EventTime{Date: date}}
}

func TestAnalyze_SplitsMatchedAndOrphaned(t *testing.T) {
	api := newFakeCalendarAPI(t, []Event{
		externalEvent("g1", "Smith Wedding", "2026-09-12"),
		externalEvent("g2", "Orphaned Booking", "2026-09-20"),
		externalEvent("g3", "Patel Engagement", "2026-10-01"),
	})

	store := &fakeEventStore{events: []AppEvent{
		{ID: "a1", Title: "Smith Wedding Reception", EventDate: "2026-09-12"},
		{ID: "a2", Title: "Patel Engagement Party", EventDate: "2026-10-01"},
		{ID: "a3", Title: "Khan Birthday", EventDate: "2026-11-05"},
	}}

	rec := newTestReconciler(t, api, store, &fakeTokenStore{}, validIntegration(), "")

	analysis, err := rec.Analyze(context.Background(), time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, 3, analysis.TotalGoogleEvents)

	require.Len(t, analysis.MatchedEvents, 2)
	assert.Equal(t, "g1", analysis.MatchedEvents[0].External.ID)
	assert.Equal(t, "a1", analysis.MatchedEvents[0].App.ID)

	require.Len(t, analysis.EventsToDelete, 1)
	assert.Equal(t, "g2", analysis.EventsToDelete[0].ID)

	// Matched app events must not be queued for creation again.
	require.Len(t, analysis.AppEventsToSync, 1)
	assert.Equal(t, "a3", analysis.AppEventsToSync[0].ID)

	assert.InDelta(t, 66.67, analysis.DuplicateRisk, 0.1)
}

func TestAnalyze_SameDayRequiredForMatch(t *testing.T) {
	api := newFakeCalendarAPI(t, []Event{
		externalEvent("g1", "Smith Wedding", "2026-09-12"),
	})

	// Same title, different date: still an orphan.
	store := &fakeEventStore{events: []AppEvent{
		{ID: "a1", Title: "Smith Wedding", EventDate: "2026-09-13"},
	}}

	rec := newTestReconciler(t, api, store, &fakeTokenStore{}, validIntegration(), "")

	analysis, err := rec.Analyze(context.Background(), time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Empty(t, analysis.MatchedEvents)
	assert.Len(t, analysis.EventsToDelete, 1)
	assert.Len(t, analysis.AppEventsToSync, 1)
	assert.Equal(t, 0.0, analysis.DuplicateRisk)
}

func TestPerformCleanup_DryRunMakesNoAPICalls(t *testing.T) {
	api := newFakeCalendarAPI(t, nil)

	rec := newTestReconciler(t, api, &fakeEventStore{}, &fakeTokenStore{}, validIntegration(), "")

	toDelete := []Event{
		externalEvent("g1", "One", "2026-09-12"),
		externalEvent("g2", "Two", "2026-09-13"),
	}
	result, err := rec.PerformCleanup(context.Background(), toDelete, true)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, result.DryRun)
	assert.Equal(t, 2, result.DeletedCount)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 0, api.totalCalls())
}

func TestPerformCleanup_PartialFailureContinues(t *testing.T) {
	api := newFakeCalendarAPI(t, nil)
	api.failIDs["g7"] = true

	rec := newTestReconciler(t, api, &fakeEventStore{}, &fakeTokenStore{}, validIntegration(), "")

	// Two batches; the failure sits in the first.
	var toDelete []Event
	for i := 1; i <= 12; i++ {
		toDelete = append(toDelete, externalEvent(fmt.Sprintf("g%d", i), fmt.Sprintf("Event %d", i), "2026-09-12"))
	}

	result, err := rec.PerformCleanup(context.Background(), toDelete, false)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 11, result.DeletedCount)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `"Event 7"`)
	assert.Len(t, api.deleted, 11)
}

func TestPerformBulkSync_LinksExternalIDs(t *testing.T) {
	api := newFakeCalendarAPI(t, nil)

	store := &fakeEventStore{}
	rec := newTestReconciler(t, api, store, &fakeTokenStore{}, validIntegration(), "")

	appEvents := []AppEvent{
		{ID: "a1", Title: "Smith Wedding", EventDate: "2026-09-12", StartTime: "14:00"},
		{ID: "a2", Title: "Patel Engagement", EventDate: "2026-10-01"},
	}

	result, err := rec.PerformBulkSync(context.Background(), appEvents, false)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.SyncedCount)
	assert.Empty(t, result.Errors)

	assert.Len(t, store.linked, 2)
	assert.NotEmpty(t, store.linked["a1"])
	assert.NotEmpty(t, store.linked["a2"])
	assert.Len(t, api.inserted, 2)
}

func TestPerformBulkSync_DryRunReportsCountOnly(t *testing.T) {
	api := newFakeCalendarAPI(t, nil)

	store := &fakeEventStore{}
	rec := newTestReconciler(t, api, store, &fakeTokenStore{}, validIntegration(), "")

	result, err := rec.PerformBulkSync(context.Background(), []AppEvent{{ID: "a1", Title: "Smith Wedding", EventDate: "2026-09-12"}}, true)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.SyncedCount)
	assert.Equal(t, 0, api.totalCalls())
	assert.Empty(t, store.linked)
}

func TestRefreshTokenIfNeeded(t *testing.T) {
	t.Run("fresh token reused", func(t *testing.T) {
		tokens := &fakeTokenStore{}
		rec := newTestReconciler(t, newFakeCalendarAPI(t, nil), &fakeEventStore{}, tokens, validIntegration(), "")

		got, err := rec.RefreshTokenIfNeeded(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "cached-token", got)
		assert.Empty(t, tokens.saved)
	})

	t.Run("missing expiry treated as valid", func(t *testing.T) {
		integ := validIntegration()
		integ.TokenExpiresAt = time.Time{}
		tokens := &fakeTokenStore{}
		rec := newTestReconciler(t, newFakeCalendarAPI(t, nil), &fakeEventStore{}, tokens, integ, "")

		got, err := rec.RefreshTokenIfNeeded(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "cached-token", got)
		assert.Empty(t, tokens.saved)
	})

	t.Run("token near expiry is rotated and persisted", func(t *testing.T) {
		endpoint := newTokenEndpoint(t, http.StatusOK)

		integ := validIntegration()
		integ.TokenExpiresAt = time.Now().Add(2 * time.Minute)
		tokens := &fakeTokenStore{}
		rec := newTestReconciler(t, newFakeCalendarAPI(t, nil), &fakeEventStore{}, tokens, integ, endpoint.URL)

		got, err := rec.RefreshTokenIfNeeded(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "rotated-token", got)
		assert.Equal(t, []string{"rotated-token"}, tokens.saved)
		assert.Equal(t, "rotated-token", integ.AccessToken)
	})

	t.Run("refresh failure aborts the run", func(t *testing.T) {
		endpoint := newTokenEndpoint(t, http.StatusBadRequest)

		integ := validIntegration()
		integ.TokenExpiresAt = time.Now().Add(-time.Minute)
		rec := newTestReconciler(t, newFakeCalendarAPI(t, nil), &fakeEventStore{}, &fakeTokenStore{}, integ, endpoint.URL)

		_, err := rec.Analyze(context.Background(), time.Now())
		require.Error(t, err)
	})
}

func TestPerformCleanup_Retries429WithRetryAfter(t *testing.T) {
	// First delete attempt 429s, retry succeeds.
	var (
		mu    sync.Mutex
		calls int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.NotFound(w, r)
			return
		}
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			w.Header().Set("Retry-After", "0")
			http.Error(w, `{"error":"rateLimitExceeded"}`, http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	api := &fakeCalendarAPI{server: srv}
	rec := newTestReconciler(t, api, &fakeEventStore{}, &fakeTokenStore{}, validIntegration(), "")

	result, err := rec.PerformCleanup(context.Background(), []Event{externalEvent("g1", "One", "2026-09-12")}, false)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.DeletedCount)
	assert.Equal(t, 2, calls)
}
