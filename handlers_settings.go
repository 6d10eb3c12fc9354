package main

import (
	"context"
	"encoding/json"
	"log"

	"github.com/banquethq/venue-crm/utils"
	"github.com/google/uuid"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
)

// settingCalendarSync holds the per-tenant calendar preferences
// (auto_sync bool, timezone string).
const settingCalendarSync = "calendar_sync"

// handleSettingGet returns one tenant setting by key
func handleSettingGet(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	tenant, ok := tenantScope(re)
	if !ok {
		return utils.ForbiddenResponse(re, "User has no tenant assigned")
	}

	key := re.Request.PathValue("key")
	value, found := tenantSetting(app, tenant, key)
	if !found {
		return utils.NotFoundResponse(re, "Setting not found")
	}
	return utils.DataResponse(re, map[string]any{"key": key, "value": value})
}

// handleSettingSave upserts one tenant setting
func handleSettingSave(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	tenant, ok := tenantScope(re)
	if !ok {
		return utils.ForbiddenResponse(re, "User has no tenant assigned")
	}

	key := re.Request.PathValue("key")
	var input struct {
		Value map[string]any `json:"value"`
	}
	if err := json.NewDecoder(re.Request.Body).Decode(&input); err != nil || input.Value == nil {
		return utils.BadRequestResponse(re, "value object is required")
	}

	record, err := app.FindFirstRecordByFilter(utils.CollectionAppSettings,
		"tenant = {:tenant} && key = {:key}", dbx.Params{"tenant": tenant, "key": key})
	if err != nil {
		collection, cerr := app.FindCollectionByNameOrId(utils.CollectionAppSettings)
		if cerr != nil {
			return utils.InternalErrorResponse(re, "Failed to find settings collection")
		}
		record = core.NewRecord(collection)
		record.Set("key", key)
		record.Set("tenant", tenant)
	}
	record.Set("value", input.Value)

	if err := app.Save(record); err != nil {
		return utils.BadRequestResponse(re, "Failed to save setting: "+err.Error())
	}

	utils.LogFromRequest(app, re, "update", utils.CollectionAppSettings, record.Id, "success",
		map[string]any{"key": key}, "")
	return utils.DataResponse(re, map[string]any{"key": key, "value": input.Value})
}

// tenantSetting reads one setting's JSON value for a tenant
func tenantSetting(app *pocketbase.PocketBase, tenant, key string) (map[string]any, bool) {
	record, err := app.FindFirstRecordByFilter(utils.CollectionAppSettings,
		"tenant = {:tenant} && key = {:key}", dbx.Params{"tenant": tenant, "key": key})
	if err != nil {
		return nil, false
	}
	var value map[string]any
	if err := record.UnmarshalJSONField("value", &value); err != nil {
		return nil, false
	}
	return value, true
}

// calendarAutoSyncEnabled reports whether the tenant opted into pushing
// event changes to the calendar automatically.
func calendarAutoSyncEnabled(app *pocketbase.PocketBase, tenant string) bool {
	value, ok := tenantSetting(app, tenant, settingCalendarSync)
	if !ok {
		return false
	}
	enabled, _ := value["auto_sync"].(bool)
	return enabled
}

// autoSyncEvent pushes a saved event to the calendar in the background when
// the tenant has auto-sync on. Best effort; failures land in the sync log.
func autoSyncEvent(app *pocketbase.PocketBase, userID, tenant, eventID string) {
	if !calendarAutoSyncEnabled(app, tenant) {
		return
	}

	go func() {
		event, err := app.FindRecordById(utils.CollectionEvents, eventID)
		if err != nil {
			return
		}

		rec, integ, err := newReconcilerForUser(app, userID, tenant)
		if err != nil {
			log.Printf("[Calendar] Auto-sync skipped for event %s: %v", eventID, err)
			return
		}

		defs, err := loadFieldDefinitions(app, tenant)
		if err != nil {
			log.Printf("[Calendar] Auto-sync skipped for event %s: %v", eventID, err)
			return
		}
		store := &pbEventStore{app: app}
		appEvent := store.toAppEvent(event, defs)

		ctx := context.Background()
		externalID := event.GetString("external_calendar_id")
		operation := "update"
		var opErr error
		if externalID == "" {
			operation = "create"
			externalID, opErr = rec.CreateEvent(ctx, appEvent)
			if opErr == nil {
				opErr = store.LinkExternalID(ctx, eventID, externalID)
			}
		} else {
			opErr = rec.UpdateEvent(ctx, appEvent, externalID)
		}

		status := utils.SyncStatusSuccess
		errMsg := ""
		if opErr != nil {
			status = utils.SyncStatusFailed
			errMsg = opErr.Error()
			log.Printf("[Calendar] Auto-sync %s failed for event %s: %v", operation, eventID, opErr)
		}
		writeSyncLog(app, syncLogEntry{
			Tenant:        tenant,
			IntegrationID: integ.ID,
			EventID:       eventID,
			RunID:         uuid.NewString(),
			ExternalID:    externalID,
			Operation:     operation,
			Direction:     "to_calendar",
			Status:        status,
			ErrorMessage:  errMsg,
		})
	}()
}
