package migrations

import (
	"log"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

func init() {
	m.Register(func(app core.App) error {
		if err := createCalendarIntegrationsCollection(app); err != nil {
			return err
		}
		return createCalendarSyncLogsCollection(app)
	}, func(app core.App) error {
		for _, name := range []string{"calendar_sync_logs", "calendar_integrations"} {
			if collection, err := app.FindCollectionByNameOrId(name); err == nil {
				if err := app.Delete(collection); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func createCalendarIntegrationsCollection(app core.App) error {
	existing, _ := app.FindCollectionByNameOrId("calendar_integrations")
	if existing != nil {
		log.Println("[Migration] calendar_integrations collection already exists")
		return nil
	}

	users, _ := app.FindCollectionByNameOrId("users")
	usersId := ""
	if users != nil {
		usersId = users.Id
	}

	collection := core.NewBaseCollection("calendar_integrations")
	collection.Fields.Add(
		&core.RelationField{
			Id:           "ci_user",
			Name:         "user",
			Required:     true,
			CollectionId: usersId,
			MaxSelect:    1,
		},
		&core.SelectField{
			Id:        "ci_provider",
			Name:      "provider",
			Required:  true,
			MaxSelect: 1,
			Values:    []string{"google"},
		},
		&core.TextField{
			Id:       "ci_calendar_id",
			Name:     "calendar_id",
			Required: true,
			Max:      300,
		},
		&core.TextField{
			Id:       "ci_calendar_name",
			Name:     "calendar_name",
			Required: false,
			Max:      300,
		},
		// Encrypted at rest via record hooks ("enc:" prefix)
		&core.TextField{
			Id:       "ci_access_token",
			Name:     "access_token",
			Required: true,
			Max:      5000,
		},
		&core.TextField{
			Id:       "ci_refresh_token",
			Name:     "refresh_token",
			Required: false,
			Max:      5000,
		},
		&core.DateField{
			Id:       "ci_token_expires_at",
			Name:     "token_expires_at",
			Required: false,
		},
		&core.BoolField{
			Id:   "ci_is_active",
			Name: "is_active",
		},
		tenantRelation(app, "ci"),
		&core.AutodateField{
			Id:       "ci_created",
			Name:     "created",
			OnCreate: true,
		},
		&core.AutodateField{
			Id:       "ci_updated",
			Name:     "updated",
			OnCreate: true,
			OnUpdate: true,
		},
	)

	collection.Indexes = []string{
		"CREATE INDEX idx_calendar_integrations_tenant ON calendar_integrations (tenant)",
		"CREATE UNIQUE INDEX idx_calendar_integrations_user_provider ON calendar_integrations (user, provider)",
	}

	// Token material never leaves the server through the record API
	collection.ListRule = nil
	collection.ViewRule = nil
	collection.CreateRule = nil
	collection.UpdateRule = nil
	collection.DeleteRule = nil

	if err := app.Save(collection); err != nil {
		return err
	}

	log.Println("[Migration] Created calendar_integrations collection")
	return nil
}

func createCalendarSyncLogsCollection(app core.App) error {
	existing, _ := app.FindCollectionByNameOrId("calendar_sync_logs")
	if existing != nil {
		return nil
	}

	integrations, _ := app.FindCollectionByNameOrId("calendar_integrations")
	integrationsId := ""
	if integrations != nil {
		integrationsId = integrations.Id
	}
	events, _ := app.FindCollectionByNameOrId("events")
	eventsId := ""
	if events != nil {
		eventsId = events.Id
	}

	collection := core.NewBaseCollection("calendar_sync_logs")
	collection.Fields.Add(
		&core.RelationField{
			Id:           "csl_integration",
			Name:         "integration",
			Required:     false,
			CollectionId: integrationsId,
			MaxSelect:    1,
		},
		&core.RelationField{
			Id:           "csl_event",
			Name:         "event",
			Required:     false,
			CollectionId: eventsId,
			MaxSelect:    1,
		},
		&core.TextField{
			Id:       "csl_run_id",
			Name:     "run_id",
			Required: false,
			Max:      50,
		},
		&core.TextField{
			Id:       "csl_external_event_id",
			Name:     "external_event_id",
			Required: false,
			Max:      300,
		},
		&core.SelectField{
			Id:        "csl_operation",
			Name:      "operation",
			Required:  true,
			MaxSelect: 1,
			Values:    []string{"create", "update", "delete", "analyze", "cleanup", "bulk-sync"},
		},
		&core.SelectField{
			Id:        "csl_sync_direction",
			Name:      "sync_direction",
			Required:  false,
			MaxSelect: 1,
			Values:    []string{"to_calendar", "from_calendar"},
		},
		&core.SelectField{
			Id:        "csl_status",
			Name:      "status",
			Required:  true,
			MaxSelect: 1,
			Values:    []string{"success", "failed", "partial"},
		},
		&core.TextField{
			Id:       "csl_error_message",
			Name:     "error_message",
			Required: false,
			Max:      5000,
		},
		&core.JSONField{
			Id:      "csl_sync_data",
			Name:    "sync_data",
			MaxSize: 100000,
		},
		&core.BoolField{
			Id:   "csl_dry_run",
			Name: "dry_run",
		},
		tenantRelation(app, "csl"),
		&core.AutodateField{
			Id:       "csl_created",
			Name:     "created",
			OnCreate: true,
		},
	)

	collection.Indexes = []string{
		"CREATE INDEX idx_calendar_sync_logs_tenant ON calendar_sync_logs (tenant)",
		"CREATE INDEX idx_calendar_sync_logs_run ON calendar_sync_logs (run_id)",
		"CREATE INDEX idx_calendar_sync_logs_created ON calendar_sync_logs (created)",
	}

	collection.ListRule = types.Pointer(ruleSameTenant)
	collection.ViewRule = types.Pointer(ruleSameTenant)
	collection.CreateRule = nil // Only system writes sync logs
	collection.UpdateRule = nil
	collection.DeleteRule = nil

	return app.Save(collection)
}
