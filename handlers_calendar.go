package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/banquethq/venue-crm/calendar"
	"github.com/banquethq/venue-crm/pricing"
	"github.com/banquethq/venue-crm/utils"
	"github.com/google/uuid"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"golang.org/x/oauth2"
)

// stateTTLSeconds bounds the OAuth consent round trip
const stateTTLSeconds = 600

func calendarOAuthConfig() (*oauth2.Config, error) {
	clientID := os.Getenv("GOOGLE_CLIENT_ID")
	clientSecret := os.Getenv("GOOGLE_CLIENT_SECRET")
	redirectURL := os.Getenv("GOOGLE_REDIRECT_URL")
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil, errors.New("GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET and GOOGLE_REDIRECT_URL must be set")
	}
	return calendar.OAuthConfig(clientID, clientSecret, redirectURL), nil
}

// --- Store adapters ---

// pbEventStore answers the reconciler's queries from the events collection.
type pbEventStore struct {
	app *pocketbase.PocketBase
}

func (s *pbEventStore) ListUnlinkedEvents(ctx context.Context, tenant calendar.TenantContext, fromDate string) ([]calendar.AppEvent, error) {
	filter := "event_date >= {:from} && external_calendar_id = ''"
	params := dbx.Params{"from": fromDate}
	if tenant.TenantID != "" {
		filter += " && tenant = {:tenant}"
		params["tenant"] = tenant.TenantID
	}

	records, err := s.app.FindRecordsByFilter(utils.CollectionEvents, filter, "event_date", 0, 0, params)
	if err != nil {
		return nil, err
	}

	defs, err := loadFieldDefinitions(s.app, tenant.TenantID)
	if err != nil {
		return nil, err
	}

	events := make([]calendar.AppEvent, len(records))
	for i, r := range records {
		events[i] = s.toAppEvent(r, defs)
	}
	return events, nil
}

func (s *pbEventStore) LinkExternalID(ctx context.Context, eventID, externalID string) error {
	record, err := s.app.FindRecordById(utils.CollectionEvents, eventID)
	if err != nil {
		return err
	}
	record.Set("external_calendar_id", externalID)
	return s.app.Save(record)
}

// toAppEvent shapes an event record for calendar sync, pulling the customer
// name and the enabled-with-notes form lines along.
func (s *pbEventStore) toAppEvent(r *core.Record, defs map[string]pricing.FieldDefinition) calendar.AppEvent {
	app := calendar.AppEvent{
		ID:                   r.Id,
		Title:                r.GetString("title"),
		EventType:            r.GetString("event_type"),
		EventDate:            normalizeDate(r.GetString("event_date")),
		EventEndDate:         normalizeDate(r.GetString("event_end_date")),
		StartTime:            r.GetString("start_time"),
		EndTime:              r.GetString("end_time"),
		GuestCount:           r.GetInt("men_count") + r.GetInt("ladies_count"),
		VenueArea:            r.GetString("venue_area"),
		PrimaryContactName:   r.GetString("primary_contact_name"),
		PrimaryContactNumber: r.GetString("primary_contact_number"),
	}

	if customerID := r.GetString("customer"); customerID != "" {
		if customer, err := s.app.FindRecordById(utils.CollectionCustomers, customerID); err == nil {
			app.CustomerName = customer.GetString("name")
		}
	}

	forms, _ := s.app.FindRecordsByFilter(utils.CollectionEventForms,
		"event = {:event} && active = true", "tab_order", 0, 0, dbx.Params{"event": r.Id})
	for _, f := range forms {
		var resps pricing.Responses
		if err := f.UnmarshalJSONField("form_responses", &resps); err != nil {
			continue
		}
		for fieldID, resp := range resps {
			if !resp.IsEnabled() {
				continue
			}
			label := resp.Label
			if label == "" {
				if def, ok := defs[fieldID]; ok {
					label = def.Label
				}
			}
			if label == "" {
				continue
			}
			app.FormLines = append(app.FormLines, calendar.FormLine{Label: label, Notes: resp.Notes})
		}
	}
	return app
}

// normalizeDate trims a PocketBase datetime down to YYYY-MM-DD
func normalizeDate(v string) string {
	if len(v) >= 10 {
		return v[:10]
	}
	return v
}

// pbTokenStore persists rotated tokens; the encryption hook handles at-rest
// encryption on save.
type pbTokenStore struct {
	app *pocketbase.PocketBase
}

func (s *pbTokenStore) SaveToken(ctx context.Context, integrationID, accessToken string, expiresAt time.Time) error {
	record, err := s.app.FindRecordById(utils.CollectionCalendarIntegrations, integrationID)
	if err != nil {
		return err
	}
	record.Set("access_token", accessToken)
	if !expiresAt.IsZero() {
		record.Set("token_expires_at", expiresAt.UTC().Format("2006-01-02 15:04:05.000Z"))
	}
	return s.app.Save(record)
}

// --- Integration loading ---

// loadIntegration finds the user's active connection and decrypts its tokens
func loadIntegration(app *pocketbase.PocketBase, userID, tenantID string) (*core.Record, *calendar.Integration, error) {
	record, err := app.FindFirstRecordByFilter(utils.CollectionCalendarIntegrations,
		"user = {:user} && is_active = true", dbx.Params{"user": userID})
	if err != nil {
		return nil, nil, fmt.Errorf("no active calendar connection: %w", err)
	}

	integ := &calendar.Integration{
		ID:           record.Id,
		TenantID:     tenantID,
		Provider:     record.GetString("provider"),
		CalendarID:   record.GetString("calendar_id"),
		CalendarName: record.GetString("calendar_name"),
		AccessToken:  utils.DecryptField(record.GetString("access_token")),
		RefreshToken: utils.DecryptField(record.GetString("refresh_token")),
	}
	if raw := record.GetString("token_expires_at"); raw != "" {
		if t, err := utils.ParseExpiryDate(raw); err == nil {
			integ.TokenExpiresAt = t
		}
	}
	return record, integ, nil
}

// newReconcilerForUser wires a run-scoped reconciler for the authenticated
// user's connection.
func newReconcilerForUser(app *pocketbase.PocketBase, userID, tenantID string) (*calendar.Reconciler, *calendar.Integration, error) {
	oauthConf, err := calendarOAuthConfig()
	if err != nil {
		return nil, nil, err
	}
	_, integ, err := loadIntegration(app, userID, tenantID)
	if err != nil {
		return nil, nil, err
	}

	rec, err := calendar.NewReconciler(calendar.Config{
		Client:      calendar.NewClient(integ.CalendarID),
		OAuth:       oauthConf,
		Events:      &pbEventStore{app: app},
		Tokens:      &pbTokenStore{app: app},
		Tenant:      calendar.TenantContext{TenantID: tenantID, UserID: userID},
		Integration: integ,
	})
	if err != nil {
		return nil, nil, err
	}
	return rec, integ, nil
}

// --- OAuth Handlers ---

// handleCalendarAuthorize returns the Google consent URL for the current user
func handleCalendarAuthorize(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	tenant, ok := tenantScope(re)
	if !ok {
		return utils.ForbiddenResponse(re, "User has no tenant assigned")
	}

	oauthConf, err := calendarOAuthConfig()
	if err != nil {
		return utils.InternalErrorResponse(re, "Calendar integration is not configured")
	}

	state, err := utils.CreateOAuthState(re.Auth.Id, tenant, stateTTLSeconds)
	if err != nil {
		return utils.InternalErrorResponse(re, "Failed to create state token")
	}

	return utils.DataResponse(re, map[string]any{
		"url": calendar.AuthCodeURL(oauthConf, state),
	})
}

// handleCalendarCallback completes the consent flow: it validates the signed
// state, exchanges the code, resolves the primary calendar and upserts the
// integration row. Tokens are encrypted by the record hooks on save.
func handleCalendarCallback(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	query := re.Request.URL.Query()
	if errMsg := query.Get("error"); errMsg != "" {
		return utils.BadRequestResponse(re, "Consent was denied: "+errMsg)
	}

	claims, err := utils.ValidateOAuthState(query.Get("state"))
	if err != nil {
		return utils.BadRequestResponse(re, "Invalid or expired state token")
	}
	code := query.Get("code")
	if code == "" {
		return utils.BadRequestResponse(re, "Missing authorization code")
	}

	oauthConf, err := calendarOAuthConfig()
	if err != nil {
		return utils.InternalErrorResponse(re, "Calendar integration is not configured")
	}

	ctx := re.Request.Context()
	token, err := calendar.ExchangeCode(ctx, oauthConf, code)
	if err != nil {
		utils.LogAuthEvent(app, "api_call", claims.UserID, "", re.RealIP(), "", "failure", err.Error())
		return utils.BadRequestResponse(re, "Failed to exchange authorization code")
	}

	client := calendar.NewClient("primary")
	info, err := client.PrimaryCalendar(ctx, token.AccessToken)
	if err != nil {
		return utils.InternalErrorResponse(re, "Failed to resolve primary calendar")
	}

	record, err := app.FindFirstRecordByFilter(utils.CollectionCalendarIntegrations,
		"user = {:user} && provider = 'google'", dbx.Params{"user": claims.UserID})
	if err != nil {
		collection, cerr := app.FindCollectionByNameOrId(utils.CollectionCalendarIntegrations)
		if cerr != nil {
			return utils.InternalErrorResponse(re, "Failed to find integrations collection")
		}
		record = core.NewRecord(collection)
		record.Set("user", claims.UserID)
		record.Set("provider", "google")
		record.Set("tenant", claims.TenantID)
	}

	record.Set("calendar_id", info.ID)
	record.Set("calendar_name", info.Summary)
	record.Set("access_token", token.AccessToken)
	if token.RefreshToken != "" {
		record.Set("refresh_token", token.RefreshToken)
	}
	if !token.Expiry.IsZero() {
		record.Set("token_expires_at", token.Expiry.UTC().Format("2006-01-02 15:04:05.000Z"))
	}
	record.Set("is_active", true)

	if err := app.Save(record); err != nil {
		return utils.InternalErrorResponse(re, "Failed to save calendar connection")
	}

	utils.LogRecordChange(app, "update", utils.CollectionCalendarIntegrations, record.Id,
		map[string]any{"calendar_id": info.ID, "connected": true})

	return utils.SuccessResponse(re, "Calendar connected: "+info.Summary)
}

// handleCalendarTokenRefresh forces a rotation check on the stored token
func handleCalendarTokenRefresh(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	tenant, ok := tenantScope(re)
	if !ok {
		return utils.ForbiddenResponse(re, "User has no tenant assigned")
	}

	rec, integ, err := newReconcilerForUser(app, re.Auth.Id, tenant)
	if err != nil {
		return utils.BadRequestResponse(re, err.Error())
	}

	if _, err := rec.RefreshTokenIfNeeded(re.Request.Context()); err != nil {
		return utils.BadRequestResponse(re, "Token refresh failed: "+err.Error())
	}

	result := map[string]any{"calendar_id": integ.CalendarID}
	if !integ.TokenExpiresAt.IsZero() {
		result["expires_at"] = integ.TokenExpiresAt.UTC().Format(time.RFC3339)
	}
	return utils.DataResponse(re, result)
}

// handleCalendarDisconnect deactivates the connection. The row and its
// encrypted tokens are kept so sync history stays attributable.
func handleCalendarDisconnect(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	record, err := app.FindFirstRecordByFilter(utils.CollectionCalendarIntegrations,
		"user = {:user} && is_active = true", dbx.Params{"user": re.Auth.Id})
	if err != nil {
		return utils.NotFoundResponse(re, "No active calendar connection")
	}

	record.Set("is_active", false)
	if err := app.Save(record); err != nil {
		return utils.InternalErrorResponse(re, "Failed to disconnect calendar")
	}

	utils.LogFromRequest(app, re, "update", utils.CollectionCalendarIntegrations, record.Id, "success",
		map[string]any{"is_active": false}, "")
	return utils.SuccessResponse(re, "Calendar disconnected")
}

// --- Sync Handlers ---

// handleCalendarSync pushes a single event to the external calendar
func handleCalendarSync(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	tenant, ok := tenantScope(re)
	if !ok {
		return utils.ForbiddenResponse(re, "User has no tenant assigned")
	}

	var input struct {
		Action  string `json:"action"`
		EventID string `json:"event_id"`
	}
	if err := json.NewDecoder(re.Request.Body).Decode(&input); err != nil {
		return utils.BadRequestResponse(re, "Invalid request body")
	}

	event, err := findTenantRecord(re, app, utils.CollectionEvents, input.EventID)
	if err != nil {
		return utils.NotFoundResponse(re, "Event not found")
	}

	rec, integ, err := newReconcilerForUser(app, re.Auth.Id, tenant)
	if err != nil {
		return utils.BadRequestResponse(re, err.Error())
	}

	defs, err := loadFieldDefinitions(app, tenant)
	if err != nil {
		return utils.InternalErrorResponse(re, "Failed to load field library")
	}
	store := &pbEventStore{app: app}
	appEvent := store.toAppEvent(event, defs)
	externalID := event.GetString("external_calendar_id")

	ctx := re.Request.Context()
	runID := uuid.NewString()
	var opErr error

	switch input.Action {
	case "create":
		if externalID != "" {
			return utils.BadRequestResponse(re, "Event is already linked to an external event")
		}
		externalID, opErr = rec.CreateEvent(ctx, appEvent)
	case "update":
		if externalID == "" {
			return utils.BadRequestResponse(re, "Event has no external link to update")
		}
		opErr = rec.UpdateEvent(ctx, appEvent, externalID)
	case "delete":
		if externalID == "" {
			return utils.BadRequestResponse(re, "Event has no external link to delete")
		}
		opErr = rec.DeleteExternal(ctx, externalID)
		if opErr == nil {
			event.Set("external_calendar_id", "")
			app.Save(event)
		}
	default:
		return utils.BadRequestResponse(re, "action must be create, update or delete")
	}

	status := utils.SyncStatusSuccess
	errMsg := ""
	if opErr != nil {
		status = utils.SyncStatusFailed
		errMsg = opErr.Error()
	}
	writeSyncLog(app, syncLogEntry{
		Tenant:        tenant,
		IntegrationID: integ.ID,
		EventID:       event.Id,
		RunID:         runID,
		ExternalID:    externalID,
		Operation:     input.Action,
		Direction:     "to_calendar",
		Status:        status,
		ErrorMessage:  errMsg,
	})

	if opErr != nil {
		return utils.WrappedErrorResponse(re, errMsg)
	}
	return utils.WrappedDataResponse(re, map[string]any{
		"event_id":          event.Id,
		"external_event_id": externalID,
		"operation":         input.Action,
		"run_id":            runID,
	})
}

// handleCalendarReconcile runs drift analysis and the optional corrective
// passes. Destructive actions default to dry-run; the caller must opt in to
// live changes explicitly.
func handleCalendarReconcile(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	tenant, ok := tenantScope(re)
	if !ok {
		return utils.ForbiddenResponse(re, "User has no tenant assigned")
	}

	var input struct {
		Action          string               `json:"action"`
		TargetDate      string               `json:"target_date"`
		DryRun          *bool                `json:"dry_run"`
		EventsToDelete  []calendar.Event     `json:"events_to_delete"`
		AppEventsToSync []calendar.AppEvent  `json:"app_events_to_sync"`
	}
	if err := json.NewDecoder(re.Request.Body).Decode(&input); err != nil {
		return utils.WrappedErrorResponse(re, "Invalid request body")
	}

	dryRun := true
	if input.DryRun != nil {
		dryRun = *input.DryRun
	}

	targetDate := time.Now().UTC()
	if input.TargetDate != "" {
		parsed, err := time.Parse("2006-01-02", input.TargetDate)
		if err != nil {
			return utils.WrappedErrorResponse(re, "target_date must be YYYY-MM-DD")
		}
		targetDate = parsed
	}

	rec, integ, err := newReconcilerForUser(app, re.Auth.Id, tenant)
	if err != nil {
		return utils.WrappedErrorResponse(re, err.Error())
	}

	ctx := re.Request.Context()
	runID := uuid.NewString()

	switch input.Action {
	case "analyze":
		analysis, err := rec.Analyze(ctx, targetDate)
		if err != nil {
			logReconcileRun(app, re, integ, runID, "analyze", utils.SyncStatusFailed, dryRun, nil, err.Error())
			return utils.WrappedErrorResponse(re, err.Error())
		}
		logReconcileRun(app, re, integ, runID, "analyze", utils.SyncStatusSuccess, dryRun, map[string]any{
			"total_google_events": analysis.TotalGoogleEvents,
			"events_to_delete":    len(analysis.EventsToDelete),
			"app_events_to_sync":  len(analysis.AppEventsToSync),
			"duplicate_risk":      analysis.DuplicateRisk,
		}, "")
		return utils.WrappedDataResponse(re, analysis)

	case "cleanup":
		if len(input.EventsToDelete) == 0 {
			return utils.WrappedErrorResponse(re, "events_to_delete is required for cleanup")
		}
		result, err := rec.PerformCleanup(ctx, input.EventsToDelete, dryRun)
		if err != nil {
			logReconcileRun(app, re, integ, runID, "cleanup", utils.SyncStatusFailed, dryRun, nil, err.Error())
			return utils.WrappedErrorResponse(re, err.Error())
		}
		logReconcileRun(app, re, integ, runID, "cleanup", cleanupStatus(result.Success, len(result.Errors)), dryRun,
			map[string]any{"deleted": result.DeletedCount, "errors": result.Errors}, "")
		return utils.WrappedDataResponse(re, result)

	case "bulk-sync":
		if len(input.AppEventsToSync) == 0 {
			return utils.WrappedErrorResponse(re, "app_events_to_sync is required for bulk-sync")
		}
		result, err := rec.PerformBulkSync(ctx, input.AppEventsToSync, dryRun)
		if err != nil {
			logReconcileRun(app, re, integ, runID, "bulk-sync", utils.SyncStatusFailed, dryRun, nil, err.Error())
			return utils.WrappedErrorResponse(re, err.Error())
		}
		logReconcileRun(app, re, integ, runID, "bulk-sync", cleanupStatus(result.Success, len(result.Errors)), dryRun,
			map[string]any{"synced": result.SyncedCount, "errors": result.Errors}, "")
		return utils.WrappedDataResponse(re, result)

	default:
		return utils.WrappedErrorResponse(re, "action must be analyze, cleanup or bulk-sync")
	}
}

func cleanupStatus(success bool, errCount int) string {
	switch {
	case success:
		return utils.SyncStatusSuccess
	case errCount > 0:
		return utils.SyncStatusPartial
	default:
		return utils.SyncStatusFailed
	}
}

// handleCalendarSyncLogs returns the tenant's sync history, newest first
func handleCalendarSyncLogs(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	tenant, ok := tenantScope(re)
	if !ok {
		return utils.ForbiddenResponse(re, "User has no tenant assigned")
	}

	filter, params := tenantRecordFilter(tenant)
	if op := re.Request.URL.Query().Get("operation"); op != "" {
		filter = andFilter(filter, "operation = {:operation}")
		params["operation"] = op
	}
	if runID := re.Request.URL.Query().Get("runId"); runID != "" {
		filter = andFilter(filter, "run_id = {:runId}")
		params["runId"] = runID
	}

	records, err := app.FindRecordsByFilter(utils.CollectionCalendarSyncLogs, filter, "-created", 100, 0, params)
	if err != nil {
		return utils.InternalErrorResponse(re, "Failed to load sync logs")
	}

	items := make([]map[string]any, len(records))
	for i, r := range records {
		var data map[string]any
		r.UnmarshalJSONField("sync_data", &data)
		items[i] = map[string]any{
			"id":                r.Id,
			"run_id":            r.GetString("run_id"),
			"event":             r.GetString("event"),
			"external_event_id": r.GetString("external_event_id"),
			"operation":         r.GetString("operation"),
			"sync_direction":    r.GetString("sync_direction"),
			"status":            r.GetString("status"),
			"error_message":     r.GetString("error_message"),
			"sync_data":         data,
			"dry_run":           r.GetBool("dry_run"),
			"created":           r.GetString("created"),
		}
	}
	return utils.DataResponse(re, map[string]any{"items": items})
}

// --- Sync log plumbing ---

type syncLogEntry struct {
	Tenant        string
	IntegrationID string
	EventID       string
	RunID         string
	ExternalID    string
	Operation     string
	Direction     string
	Status        string
	ErrorMessage  string
	Data          map[string]any
	DryRun        bool
}

func writeSyncLog(app *pocketbase.PocketBase, entry syncLogEntry) {
	collection, err := app.FindCollectionByNameOrId(utils.CollectionCalendarSyncLogs)
	if err != nil {
		log.Printf("[Calendar] Failed to find sync logs collection: %v", err)
		return
	}

	record := core.NewRecord(collection)
	record.Set("integration", entry.IntegrationID)
	record.Set("event", entry.EventID)
	record.Set("run_id", entry.RunID)
	record.Set("external_event_id", entry.ExternalID)
	record.Set("operation", entry.Operation)
	record.Set("sync_direction", entry.Direction)
	record.Set("status", entry.Status)
	record.Set("error_message", entry.ErrorMessage)
	record.Set("dry_run", entry.DryRun)
	record.Set("tenant", entry.Tenant)
	if entry.Data != nil {
		record.Set("sync_data", entry.Data)
	}

	if err := app.Save(record); err != nil {
		log.Printf("[Calendar] Failed to write sync log: %v", err)
	}
}

func logReconcileRun(app *pocketbase.PocketBase, re *core.RequestEvent, integ *calendar.Integration, runID, operation, status string, dryRun bool, data map[string]any, errMsg string) {
	tenant, _ := tenantScope(re)
	writeSyncLog(app, syncLogEntry{
		Tenant:        tenant,
		IntegrationID: integ.ID,
		RunID:         runID,
		Operation:     operation,
		Direction:     "to_calendar",
		Status:        status,
		ErrorMessage:  errMsg,
		Data:          data,
		DryRun:        dryRun,
	})
	utils.LogSyncRun(app, re.Auth.Id, operation, runID, status, data, errMsg)
}

// --- CLI reconcile ---

// runReconcileCommand drives a reconciliation from the command line using the
// first active connection of the tenant. Without --apply it stops after
// analysis and a dry-run preview.
func runReconcileCommand(app *pocketbase.PocketBase, tenantID, fromDate string, apply bool) error {
	integRecord, err := app.FindFirstRecordByFilter(utils.CollectionCalendarIntegrations,
		"tenant = {:tenant} && is_active = true", dbx.Params{"tenant": tenantID})
	if err != nil {
		return fmt.Errorf("no active calendar connection for tenant %s: %w", tenantID, err)
	}
	userID := integRecord.GetString("user")

	rec, integ, err := newReconcilerForUser(app, userID, tenantID)
	if err != nil {
		return err
	}

	targetDate := time.Now().UTC()
	if fromDate != "" {
		targetDate, err = time.Parse("2006-01-02", fromDate)
		if err != nil {
			return fmt.Errorf("invalid --from date %q: %w", fromDate, err)
		}
	}

	ctx := context.Background()
	runID := uuid.NewString()

	log.Printf("[Calendar] Analyzing %s (calendar %s) from %s",
		tenantID, integ.CalendarID, targetDate.Format("2006-01-02"))

	analysis, err := rec.Analyze(ctx, targetDate)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	log.Printf("[Calendar] %d external events, %d matched, %d orphaned, %d app events missing, duplicate risk %.1f%%",
		analysis.TotalGoogleEvents, len(analysis.MatchedEvents),
		len(analysis.EventsToDelete), len(analysis.AppEventsToSync), analysis.DuplicateRisk)

	dryRun := !apply
	if dryRun {
		log.Printf("[Calendar] Dry run; pass --apply to perform changes")
	}

	if len(analysis.EventsToDelete) > 0 {
		result, err := rec.PerformCleanup(ctx, analysis.EventsToDelete, dryRun)
		if err != nil {
			return fmt.Errorf("cleanup failed: %w", err)
		}
		log.Printf("[Calendar] Cleanup: %d deleted, %d errors (dry_run=%v)",
			result.DeletedCount, len(result.Errors), result.DryRun)
		for _, e := range result.Errors {
			log.Printf("[Calendar]   %s", e)
		}
		writeSyncLog(app, syncLogEntry{
			Tenant: tenantID, IntegrationID: integ.ID, RunID: runID,
			Operation: "cleanup", Direction: "to_calendar",
			Status: cleanupStatus(result.Success, len(result.Errors)),
			Data:   map[string]any{"deleted": result.DeletedCount, "errors": result.Errors},
			DryRun: dryRun,
		})
	}

	if len(analysis.AppEventsToSync) > 0 {
		result, err := rec.PerformBulkSync(ctx, analysis.AppEventsToSync, dryRun)
		if err != nil {
			return fmt.Errorf("bulk sync failed: %w", err)
		}
		log.Printf("[Calendar] Bulk sync: %d created, %d errors (dry_run=%v)",
			result.SyncedCount, len(result.Errors), result.DryRun)
		for _, e := range result.Errors {
			log.Printf("[Calendar]   %s", e)
		}
		writeSyncLog(app, syncLogEntry{
			Tenant: tenantID, IntegrationID: integ.ID, RunID: runID,
			Operation: "bulk-sync", Direction: "to_calendar",
			Status: cleanupStatus(result.Success, len(result.Errors)),
			Data:   map[string]any{"synced": result.SyncedCount, "errors": result.Errors},
			DryRun: dryRun,
		})
	}

	return nil
}
