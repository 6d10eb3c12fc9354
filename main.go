package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/banquethq/venue-crm/utils"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/spf13/cobra"

	_ "github.com/banquethq/venue-crm/migrations"
)

func main() {
	app := pocketbase.New()

	// Register migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: false,
	})

	// Register reconcile-calendar command for running a reconciliation pass
	// from the ops box (same path the HTTP endpoint uses)
	var reconcileDate string
	var reconcileApply bool
	reconcileCmd := &cobra.Command{
		Use:   "reconcile-calendar [tenant-id]",
		Short: "Analyze calendar drift for a tenant and optionally apply cleanup + bulk sync",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := app.Bootstrap(); err != nil {
				log.Fatalf("Failed to bootstrap: %v", err)
			}
			if err := runReconcileCommand(app, args[0], reconcileDate, reconcileApply); err != nil {
				log.Fatalf("Reconciliation failed: %v", err)
			}
		},
	}
	reconcileCmd.Flags().StringVar(&reconcileDate, "from", time.Now().Format("2006-01-02"), "start date (YYYY-MM-DD) of the reconciliation window")
	reconcileCmd.Flags().BoolVar(&reconcileApply, "apply", false, "apply cleanup and bulk sync (default is analyze only)")
	app.RootCmd.AddCommand(reconcileCmd)

	// Register backup-now command for an on-demand backup + S3 upload
	app.RootCmd.AddCommand(&cobra.Command{
		Use:   "backup-now",
		Short: "Create a backup and upload it to S3 immediately",
		Run: func(cmd *cobra.Command, args []string) {
			if err := app.Bootstrap(); err != nil {
				log.Fatalf("Failed to bootstrap: %v", err)
			}
			if err := runBackup(app); err != nil {
				log.Fatalf("Backup failed: %v", err)
			}
		},
	})

	// Register seed-field-library command to load the starter pricing fields
	app.RootCmd.AddCommand(&cobra.Command{
		Use:   "seed-field-library [tenant-id]",
		Short: "Seed the field library with the standard banqueting fields for a tenant",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := app.Bootstrap(); err != nil {
				log.Fatalf("Failed to bootstrap: %v", err)
			}
			count, err := seedFieldLibrary(app, args[0])
			if err != nil {
				log.Fatalf("Seed failed: %v", err)
			}
			log.Printf("[Seed] Created %d field library entries", count)
		},
	})

	// OnServe hook - runs when the server starts
	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// Configure SMTP for outbound notifications
		configurePocketBaseSMTP(app)

		// Security headers middleware
		e.Router.BindFunc(securityHeadersMiddleware)

		// Register custom routes
		registerRoutes(e, app)

		// Serve frontend SPA
		serveFrontend(e)

		// Start the backup scheduler (runs at 03:00 daily)
		go scheduleBackups(app)

		return e.Next()
	})

	// Register audit logging hooks
	registerAuditHooks(app)

	// Register encryption hooks for calendar tokens
	registerEncryptionHooks(app)

	// Notify the venue team when a new lead lands
	app.OnRecordAfterCreateSuccess(utils.CollectionLeads).BindFunc(func(e *core.RecordEvent) error {
		go sendNewLeadNotification(app, e.Record)
		return e.Next()
	})

	// Start the application
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
}

// securityHeadersMiddleware adds security headers to all responses
func securityHeadersMiddleware(e *core.RequestEvent) error {
	h := e.Response.Header()

	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-XSS-Protection", "1; mode=block")

	// HSTS - enforce HTTPS for 1 year, include subdomains
	h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")

	h.Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data: https:; connect-src 'self' https:; frame-ancestors 'none'")

	// Referrer Policy - don't leak URLs to external sites
	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")

	h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(), payment=()")

	return e.Next()
}

// registerRoutes sets up all custom API endpoints
func registerRoutes(e *core.ServeEvent, app *pocketbase.PocketBase) {
	// Dashboard stats
	e.Router.GET("/api/dashboard/stats", func(re *core.RequestEvent) error {
		return handleDashboardStats(re, app)
	}).BindFunc(utils.RequireAuth)

	// Leads CRUD
	e.Router.GET("/api/leads", func(re *core.RequestEvent) error {
		return handleLeadsList(re, app)
	}).BindFunc(utils.RequireAuth)

	e.Router.GET("/api/leads/{id}", func(re *core.RequestEvent) error {
		return handleLeadGet(re, app)
	}).BindFunc(utils.RequireAuth)

	e.Router.POST("/api/leads", func(re *core.RequestEvent) error {
		return handleLeadCreate(re, app)
	}).BindFunc(utils.RequireStaff)

	e.Router.PATCH("/api/leads/{id}", func(re *core.RequestEvent) error {
		return handleLeadUpdate(re, app)
	}).BindFunc(utils.RequireStaff)

	e.Router.DELETE("/api/leads/{id}", func(re *core.RequestEvent) error {
		return handleLeadDelete(re, app)
	}).BindFunc(utils.RequireAdmin)

	// Convert a won lead into a customer + event
	e.Router.POST("/api/leads/{id}/convert", func(re *core.RequestEvent) error {
		return handleLeadConvert(re, app)
	}).BindFunc(utils.RateLimitAuth).BindFunc(utils.RequireStaff)

	// Customers CRUD
	e.Router.GET("/api/customers", func(re *core.RequestEvent) error {
		return handleCustomersList(re, app)
	}).BindFunc(utils.RequireAuth)

	e.Router.GET("/api/customers/{id}", func(re *core.RequestEvent) error {
		return handleCustomerGet(re, app)
	}).BindFunc(utils.RequireAuth)

	e.Router.POST("/api/customers", func(re *core.RequestEvent) error {
		return handleCustomerCreate(re, app)
	}).BindFunc(utils.RequireStaff)

	e.Router.PATCH("/api/customers/{id}", func(re *core.RequestEvent) error {
		return handleCustomerUpdate(re, app)
	}).BindFunc(utils.RequireStaff)

	e.Router.DELETE("/api/customers/{id}", func(re *core.RequestEvent) error {
		return handleCustomerDelete(re, app)
	}).BindFunc(utils.RequireAdmin)

	// Events CRUD
	e.Router.GET("/api/events", func(re *core.RequestEvent) error {
		return handleEventsList(re, app)
	}).BindFunc(utils.RequireAuth)

	e.Router.GET("/api/events/{id}", func(re *core.RequestEvent) error {
		return handleEventGet(re, app)
	}).BindFunc(utils.RequireAuth)

	e.Router.POST("/api/events", func(re *core.RequestEvent) error {
		return handleEventCreate(re, app)
	}).BindFunc(utils.RequireStaff)

	e.Router.PATCH("/api/events/{id}", func(re *core.RequestEvent) error {
		return handleEventUpdate(re, app)
	}).BindFunc(utils.RequireStaff)

	e.Router.DELETE("/api/events/{id}", func(re *core.RequestEvent) error {
		return handleEventDelete(re, app)
	}).BindFunc(utils.RequireAdmin)

	// Event pricing
	e.Router.GET("/api/events/{id}/totals", func(re *core.RequestEvent) error {
		return handleEventTotals(re, app)
	}).BindFunc(utils.RequireAuth)

	e.Router.PUT("/api/events/{id}/forms/{formId}/responses", func(re *core.RequestEvent) error {
		return handleFormResponsesSave(re, app)
	}).BindFunc(utils.RateLimitAuth).BindFunc(utils.RequireStaff)

	e.Router.GET("/api/events/{id}/line-items", func(re *core.RequestEvent) error {
		return handleEventLineItems(re, app)
	}).BindFunc(utils.RequireAuth)

	// Field library (admin manages, everyone reads)
	e.Router.GET("/api/field-library", func(re *core.RequestEvent) error {
		return handleFieldLibraryList(re, app)
	}).BindFunc(utils.RequireAuth)

	e.Router.POST("/api/field-library", func(re *core.RequestEvent) error {
		return handleFieldLibraryCreate(re, app)
	}).BindFunc(utils.RequireAdmin)

	e.Router.PATCH("/api/field-library/{id}", func(re *core.RequestEvent) error {
		return handleFieldLibraryUpdate(re, app)
	}).BindFunc(utils.RequireAdmin)

	// Soft delete - flips active off, references stay valid
	e.Router.DELETE("/api/field-library/{id}", func(re *core.RequestEvent) error {
		return handleFieldLibraryDeactivate(re, app)
	}).BindFunc(utils.RequireAdmin)

	// Form templates
	e.Router.GET("/api/form-templates", func(re *core.RequestEvent) error {
		return handleFormTemplatesList(re, app)
	}).BindFunc(utils.RequireAuth)

	e.Router.GET("/api/form-templates/{id}", func(re *core.RequestEvent) error {
		return handleFormTemplateGet(re, app)
	}).BindFunc(utils.RequireAuth)

	e.Router.POST("/api/form-templates", func(re *core.RequestEvent) error {
		return handleFormTemplateCreate(re, app)
	}).BindFunc(utils.RequireAdmin)

	e.Router.PATCH("/api/form-templates/{id}", func(re *core.RequestEvent) error {
		return handleFormTemplateUpdate(re, app)
	}).BindFunc(utils.RequireAdmin)

	e.Router.DELETE("/api/form-templates/{id}", func(re *core.RequestEvent) error {
		return handleFormTemplateDelete(re, app)
	}).BindFunc(utils.RequireAdmin)

	// Template sections and field instances
	e.Router.POST("/api/form-templates/{id}/sections", func(re *core.RequestEvent) error {
		return handleFormSectionCreate(re, app)
	}).BindFunc(utils.RequireAdmin)

	e.Router.PATCH("/api/form-sections/{id}", func(re *core.RequestEvent) error {
		return handleFormSectionUpdate(re, app)
	}).BindFunc(utils.RequireAdmin)

	e.Router.DELETE("/api/form-sections/{id}", func(re *core.RequestEvent) error {
		return handleFormSectionDelete(re, app)
	}).BindFunc(utils.RequireAdmin)

	e.Router.POST("/api/form-sections/{id}/fields", func(re *core.RequestEvent) error {
		return handleFieldInstanceCreate(re, app)
	}).BindFunc(utils.RequireAdmin)

	e.Router.PATCH("/api/field-instances/{id}", func(re *core.RequestEvent) error {
		return handleFieldInstanceUpdate(re, app)
	}).BindFunc(utils.RequireAdmin)

	e.Router.DELETE("/api/field-instances/{id}", func(re *core.RequestEvent) error {
		return handleFieldInstanceDelete(re, app)
	}).BindFunc(utils.RequireAdmin)

	// Event forms (tabs attached to an event)
	e.Router.GET("/api/events/{id}/forms", func(re *core.RequestEvent) error {
		return handleEventFormsList(re, app)
	}).BindFunc(utils.RequireAuth)

	e.Router.POST("/api/events/{id}/forms", func(re *core.RequestEvent) error {
		return handleEventFormCreate(re, app)
	}).BindFunc(utils.RequireStaff)

	e.Router.DELETE("/api/event-forms/{id}", func(re *core.RequestEvent) error {
		return handleEventFormDelete(re, app)
	}).BindFunc(utils.RequireStaff)

	// Calendar integration (Google OAuth)
	e.Router.GET("/api/calendar/oauth/authorize", func(re *core.RequestEvent) error {
		return handleCalendarAuthorize(re, app)
	}).BindFunc(utils.RateLimitAuth).BindFunc(utils.RequireAuth)

	e.Router.GET("/api/calendar/oauth/callback", func(re *core.RequestEvent) error {
		return handleCalendarCallback(re, app)
	}).BindFunc(utils.RateLimitPublic)

	e.Router.POST("/api/calendar/oauth/refresh", func(re *core.RequestEvent) error {
		return handleCalendarTokenRefresh(re, app)
	}).BindFunc(utils.RateLimitSync).BindFunc(utils.RequireAuth)

	e.Router.POST("/api/calendar/disconnect", func(re *core.RequestEvent) error {
		return handleCalendarDisconnect(re, app)
	}).BindFunc(utils.RateLimitAuth).BindFunc(utils.RequireAuth)

	// Calendar sync + reconciliation
	e.Router.POST("/api/calendar/sync", func(re *core.RequestEvent) error {
		return handleCalendarSync(re, app)
	}).BindFunc(utils.RateLimitSync).BindFunc(utils.RequireAuth)

	e.Router.POST("/api/calendar/reconcile", func(re *core.RequestEvent) error {
		return handleCalendarReconcile(re, app)
	}).BindFunc(utils.RateLimitSync).BindFunc(utils.RequireAuth)

	e.Router.GET("/api/calendar/sync-logs", func(re *core.RequestEvent) error {
		return handleCalendarSyncLogs(re, app)
	}).BindFunc(utils.RequireAuth)

	// Tenant settings
	e.Router.GET("/api/settings/{key}", func(re *core.RequestEvent) error {
		return handleSettingGet(re, app)
	}).BindFunc(utils.RequireAuth)

	e.Router.PUT("/api/settings/{key}", func(re *core.RequestEvent) error {
		return handleSettingSave(re, app)
	}).BindFunc(utils.RequireAdmin)

	log.Printf("[Routes] Registered API endpoints")
}

// serveFrontend serves the SPA frontend
func serveFrontend(e *core.ServeEvent) {
	// Check if frontend dist exists
	staticDir := "./pb_public"
	if _, err := os.Stat(staticDir); os.IsNotExist(err) {
		staticDir = "../frontend/dist"
	}

	// Serve static files
	e.Router.GET("/{path...}", func(re *core.RequestEvent) error {
		path := re.Request.PathValue("path")

		// Don't handle API routes - let them 404 if not matched
		if len(path) >= 4 && path[:4] == "api/" {
			return re.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
		}

		// Root path or empty - serve index.html
		if path == "" || path == "/" {
			return re.FileFS(os.DirFS(staticDir), "index.html")
		}

		filePath := staticDir + "/" + path

		// Check if file exists (and is not a directory)
		if info, err := os.Stat(filePath); err == nil && !info.IsDir() {
			return re.FileFS(os.DirFS(staticDir), path)
		}

		// SPA fallback - serve index.html for client-side routing
		return re.FileFS(os.DirFS(staticDir), "index.html")
	})
}

// registerEncryptionHooks encrypts calendar tokens before they hit the database.
// OnRecordCreateExecute/OnRecordUpdateExecute fire after validation passes.
func registerEncryptionHooks(app *pocketbase.PocketBase) {
	tokenFields := utils.SecretFields[utils.CollectionCalendarIntegrations]

	encrypt := func(e *core.RecordEvent) error {
		if !utils.IsEncryptionEnabled() {
			return e.Next()
		}

		for _, field := range tokenFields {
			val := e.Record.GetString(field)
			if val == "" {
				continue
			}
			// Skip if already encrypted
			if len(val) > 4 && val[:4] == "enc:" {
				continue
			}
			encrypted, err := utils.Encrypt(val)
			if err == nil {
				e.Record.Set(field, encrypted)
			}
		}
		return e.Next()
	}

	app.OnRecordCreateExecute(utils.CollectionCalendarIntegrations).BindFunc(encrypt)
	app.OnRecordUpdateExecute(utils.CollectionCalendarIntegrations).BindFunc(encrypt)
}

// registerAuditHooks sets up audit logging for CRUD operations and auth events
func registerAuditHooks(app *pocketbase.PocketBase) {
	// Collections to audit
	collections := []string{
		utils.CollectionLeads,
		utils.CollectionCustomers,
		utils.CollectionEvents,
		utils.CollectionEventForms,
		utils.CollectionFieldLibrary,
		utils.CollectionFormTemplates,
		utils.CollectionCalendarIntegrations,
	}

	for _, coll := range collections {
		collName := coll // capture for closure

		// Log after successful create
		app.OnRecordAfterCreateSuccess(collName).BindFunc(func(e *core.RecordEvent) error {
			utils.LogRecordChange(app, "create", collName, e.Record.Id, map[string]any{
				"data": auditFieldsData(collName, e.Record),
			})
			return e.Next()
		})

		// Log after successful update
		app.OnRecordAfterUpdateSuccess(collName).BindFunc(func(e *core.RecordEvent) error {
			utils.LogRecordChange(app, "update", collName, e.Record.Id, map[string]any{
				"data": auditFieldsData(collName, e.Record),
			})
			return e.Next()
		})

		// Log after successful delete
		app.OnRecordAfterDeleteSuccess(collName).BindFunc(func(e *core.RecordEvent) error {
			utils.LogRecordChange(app, "delete", collName, e.Record.Id, nil)
			return e.Next()
		})
	}

	// Log successful authentication
	app.OnRecordAuthRequest("users").BindFunc(func(e *core.RecordAuthRequestEvent) error {
		utils.LogAuthEvent(app, "login", e.Record.Id, e.Record.GetString("email"),
			"", "", "success", "")
		return e.Next()
	})
}

// auditFieldsData strips secret fields from the audited snapshot so token
// material never lands in audit_logs.
func auditFieldsData(collectionName string, record *core.Record) map[string]any {
	data := record.FieldsData()
	for _, field := range utils.SecretFields[collectionName] {
		delete(data, field)
	}
	return data
}
