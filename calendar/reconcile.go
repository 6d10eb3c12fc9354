package calendar

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Batch shape for destructive/creative calls against the provider API. The
// sizes and cadence bound the request rate; pacing is enforced with a token
// bucket and the provider's Retry-After is honoured on 429.
const (
	deleteBatchSize = 10
	deletePause     = 1 * time.Second
	createBatchSize = 5
	createPause     = 2 * time.Second
)

// reconcileHorizon is the fixed upper bound of the external listing window.
var reconcileHorizon = time.Date(2028, time.January, 31, 23, 59, 59, 0, time.UTC)

// Match pairs an external event with the app event it most resembles.
type Match struct {
	External Event    `json:"external"`
	App      AppEvent `json:"app"`
	Score    float64  `json:"score"`
}

// Analysis is the read-only drift report for one reconciliation pass.
type Analysis struct {
	TotalGoogleEvents int        `json:"totalGoogleEvents"`
	EventsToDelete    []Event    `json:"eventsToDelete"`
	AppEventsToSync   []AppEvent `json:"appEventsToSync"`
	MatchedEvents     []Match    `json:"matchedEvents"`
	DuplicateRisk     float64    `json:"duplicateRisk"`
}

// CleanupResult reports a delete pass. Per-item failures are collected, not
// fatal; Success is true only when every item succeeded.
type CleanupResult struct {
	Success      bool     `json:"success"`
	DeletedCount int      `json:"deletedCount"`
	DryRun       bool     `json:"dryRun"`
	Errors       []string `json:"errors"`
}

// SyncResult reports a bulk-create pass, same failure semantics as cleanup.
type SyncResult struct {
	Success     bool     `json:"success"`
	SyncedCount int      `json:"syncedCount"`
	DryRun      bool     `json:"dryRun"`
	Errors      []string `json:"errors"`
}

// Reconciler drives one tenant's calendar reconciliation. Construct a fresh
// one per invocation; it caches the refreshed access token for the run.
type Reconciler struct {
	client      *Client
	oauth       *oauth2.Config
	events      EventStore
	tokens      TokenStore
	matcher     Matcher
	tenant      TenantContext
	integration *Integration
	now         func() time.Time

	accessToken string
}

// Config wires a Reconciler. Client, Events, Tokens, OAuth and Integration
// are required; Matcher defaults to TitleSimilarity.
type Config struct {
	Client      *Client
	OAuth       *oauth2.Config
	Events      EventStore
	Tokens      TokenStore
	Matcher     Matcher
	Tenant      TenantContext
	Integration *Integration
	Now         func() time.Time
}

// NewReconciler validates the wiring and returns a run-scoped reconciler.
func NewReconciler(cfg Config) (*Reconciler, error) {
	if cfg.Client == nil || cfg.Events == nil || cfg.Tokens == nil || cfg.Integration == nil || cfg.OAuth == nil {
		return nil, errors.New("reconciler: missing client, stores, oauth config or integration")
	}
	matcher := cfg.Matcher
	if matcher == nil {
		matcher = TitleSimilarity{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		client:      cfg.Client,
		oauth:       cfg.OAuth,
		events:      cfg.Events,
		tokens:      cfg.Tokens,
		matcher:     matcher,
		tenant:      cfg.Tenant,
		integration: cfg.Integration,
		now:         now,
	}, nil
}

// RefreshTokenIfNeeded returns a usable access token, rotating it via the
// refresh grant when it is within five minutes of expiry. A token with no
// recorded expiry is reused as-is. Refresh failure is fatal for the whole
// run; no event operations are attempted without a valid token.
func (r *Reconciler) RefreshTokenIfNeeded(ctx context.Context) (string, error) {
	if r.accessToken != "" {
		return r.accessToken, nil
	}

	expiry := r.integration.TokenExpiresAt
	if expiry.IsZero() || expiry.After(r.now().Add(refreshWindow)) {
		r.accessToken = r.integration.AccessToken
		return r.accessToken, nil
	}

	log.Printf("[Calendar] Refreshing access token for integration %s", r.integration.ID)

	tok, err := refreshAccessToken(ctx, r.oauth, r.integration.RefreshToken)
	if err != nil {
		return "", err
	}

	if err := r.tokens.SaveToken(ctx, r.integration.ID, tok.AccessToken, tok.Expiry); err != nil {
		return "", fmt.Errorf("persist refreshed token: %w", err)
	}

	r.integration.AccessToken = tok.AccessToken
	r.integration.TokenExpiresAt = tok.Expiry
	r.accessToken = tok.AccessToken
	return r.accessToken, nil
}

// Analyze diffs the external calendar against unlinked app events from
// targetDate onwards. External events with no same-date app event scoring
// above MatchThreshold are queued for deletion; unmatched app events are
// queued for bulk sync. Nothing is mutated.
func (r *Reconciler) Analyze(ctx context.Context, targetDate time.Time) (*Analysis, error) {
	token, err := r.RefreshTokenIfNeeded(ctx)
	if err != nil {
		return nil, err
	}

	external, err := r.client.ListEvents(ctx, token, targetDate, reconcileHorizon)
	if err != nil {
		return nil, err
	}

	appEvents, err := r.events.ListUnlinkedEvents(ctx, r.tenant, targetDate.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("fetch app events: %w", err)
	}

	log.Printf("[Calendar] Analyzing %d external against %d unlinked app events (tenant %s)",
		len(external), len(appEvents), r.tenant.TenantID)

	byDate := make(map[string][]AppEvent)
	for _, app := range appEvents {
		byDate[app.EventDate] = append(byDate[app.EventDate], app)
	}

	analysis := &Analysis{
		TotalGoogleEvents: len(external),
		EventsToDelete:    []Event{},
		AppEventsToSync:   []AppEvent{},
		MatchedEvents:     []Match{},
	}

	matchedApp := make(map[string]bool)
	for _, ext := range external {
		best := Match{Score: 0}
		for _, app := range byDate[ext.StartDate()] {
			score := r.matcher.Score(ext.Summary, app.Title)
			if score > best.Score {
				best = Match{External: ext, App: app, Score: score}
			}
		}
		if best.Score > MatchThreshold {
			analysis.MatchedEvents = append(analysis.MatchedEvents, best)
			matchedApp[best.App.ID] = true
		} else {
			analysis.EventsToDelete = append(analysis.EventsToDelete, ext)
		}
	}

	// App events already matched to an external event would only duplicate
	// themselves if recreated.
	for _, app := range appEvents {
		if !matchedApp[app.ID] {
			analysis.AppEventsToSync = append(analysis.AppEventsToSync, app)
		}
	}

	denom := len(external)
	if denom < 1 {
		denom = 1
	}
	analysis.DuplicateRisk = float64(len(analysis.MatchedEvents)) / float64(denom) * 100

	return analysis, nil
}

// PerformCleanup deletes orphaned external events. Dry-run mode reports the
// would-be count and makes zero API calls. Live mode deletes in concurrent
// batches; individual failures are collected and remaining batches continue.
func (r *Reconciler) PerformCleanup(ctx context.Context, eventsToDelete []Event, dryRun bool) (*CleanupResult, error) {
	if dryRun {
		log.Printf("[Calendar] DRY RUN cleanup of %d events", len(eventsToDelete))
		return &CleanupResult{Success: true, DeletedCount: len(eventsToDelete), DryRun: true, Errors: []string{}}, nil
	}

	token, err := r.RefreshTokenIfNeeded(ctx)
	if err != nil {
		return nil, err
	}

	log.Printf("[Calendar] Deleting %d external events", len(eventsToDelete))

	var (
		mu      sync.Mutex
		deleted int
	)
	errs := r.runBatches(ctx, len(eventsToDelete), deleteBatchSize, deletePause, func(ctx context.Context, i int) error {
		ev := eventsToDelete[i]
		if err := r.client.DeleteEvent(ctx, token, ev.ID); err != nil {
			return fmt.Errorf("failed to delete %q: %w", ev.Summary, err)
		}
		mu.Lock()
		deleted++
		mu.Unlock()
		return nil
	})

	return &CleanupResult{
		Success:      len(errs) == 0,
		DeletedCount: deleted,
		Errors:       errs,
	}, nil
}

// PerformBulkSync creates missing external events. On each successful create
// the external id is written back onto the app event immediately so the next
// analysis excludes it. Same dry-run and partial-failure semantics as
// cleanup.
func (r *Reconciler) PerformBulkSync(ctx context.Context, appEvents []AppEvent, dryRun bool) (*SyncResult, error) {
	if dryRun {
		log.Printf("[Calendar] DRY RUN bulk sync of %d events", len(appEvents))
		return &SyncResult{Success: true, SyncedCount: len(appEvents), DryRun: true, Errors: []string{}}, nil
	}

	token, err := r.RefreshTokenIfNeeded(ctx)
	if err != nil {
		return nil, err
	}

	log.Printf("[Calendar] Creating %d external events", len(appEvents))

	var (
		mu     sync.Mutex
		synced int
	)
	errs := r.runBatches(ctx, len(appEvents), createBatchSize, createPause, func(ctx context.Context, i int) error {
		app := appEvents[i]
		created, err := r.client.InsertEvent(ctx, token, FormatEvent(app))
		if err != nil {
			return fmt.Errorf("failed to sync %q: %w", app.Title, err)
		}
		mu.Lock()
		synced++
		mu.Unlock()

		if err := r.events.LinkExternalID(ctx, app.ID, created.ID); err != nil {
			return fmt.Errorf("created %q but failed to link external id: %v", app.Title, err)
		}
		return nil
	})

	return &SyncResult{
		Success:     len(errs) == 0,
		SyncedCount: synced,
		Errors:      errs,
	}, nil
}

// CreateEvent pushes one app event to the calendar and links the returned id.
func (r *Reconciler) CreateEvent(ctx context.Context, app AppEvent) (string, error) {
	token, err := r.RefreshTokenIfNeeded(ctx)
	if err != nil {
		return "", err
	}
	created, err := r.client.InsertEvent(ctx, token, FormatEvent(app))
	if err != nil {
		return "", err
	}
	if err := r.events.LinkExternalID(ctx, app.ID, created.ID); err != nil {
		return created.ID, fmt.Errorf("link external id: %w", err)
	}
	return created.ID, nil
}

// UpdateEvent replaces the linked external event with the app event's state.
func (r *Reconciler) UpdateEvent(ctx context.Context, app AppEvent, externalID string) error {
	token, err := r.RefreshTokenIfNeeded(ctx)
	if err != nil {
		return err
	}
	return r.client.UpdateEvent(ctx, token, externalID, FormatEvent(app))
}

// DeleteExternal removes one external event.
func (r *Reconciler) DeleteExternal(ctx context.Context, externalID string) error {
	token, err := r.RefreshTokenIfNeeded(ctx)
	if err != nil {
		return err
	}
	return r.client.DeleteEvent(ctx, token, externalID)
}

// runBatches fans out op over items in concurrent batches, pacing batch
// starts with a token bucket. A 429 is retried once after the reported (or
// default) backoff. Returned errors are per-item; a failure never aborts the
// remaining batches.
func (r *Reconciler) runBatches(ctx context.Context, total, batchSize int, pause time.Duration, op func(ctx context.Context, i int) error) []string {
	limiter := rate.NewLimiter(rate.Every(pause), 1)

	var (
		mu   sync.Mutex
		errs = []string{}
	)

	for start := 0; start < total; start += batchSize {
		if err := limiter.Wait(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Sprintf("batch aborted: %v", err))
			mu.Unlock()
			break
		}

		end := start + batchSize
		if end > total {
			end = total
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()

				err := op(ctx, i)

				var rl *RateLimitError
				if errors.As(err, &rl) {
					wait := rl.RetryAfter
					if wait <= 0 {
						wait = pause
					}
					select {
					case <-ctx.Done():
						err = ctx.Err()
					case <-time.After(wait):
						err = op(ctx, i)
					}
				}

				if err != nil {
					mu.Lock()
					errs = append(errs, err.Error())
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()
	}

	return errs
}
