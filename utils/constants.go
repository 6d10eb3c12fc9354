package utils

// Collection names
const (
	CollectionTenants              = "tenants"
	CollectionUsers                = "users"
	CollectionLeads                = "leads"
	CollectionCustomers            = "customers"
	CollectionEvents               = "events"
	CollectionFieldLibrary         = "field_library"
	CollectionFormTemplates        = "form_templates"
	CollectionFormSections         = "form_sections"
	CollectionFormFieldInstances   = "form_field_instances"
	CollectionEventForms           = "event_forms"
	CollectionCalendarIntegrations = "calendar_integrations"
	CollectionCalendarSyncLogs     = "calendar_sync_logs"
	CollectionAuditLogs            = "audit_logs"
	CollectionAppSettings          = "app_settings"
)

// Field names shared across handlers
const (
	FieldTenant = "tenant"
	FieldStatus = "status"
	FieldActive = "active"
	FieldRole   = "role"
)

// Status values
var (
	LeadStatuses   = []string{"new", "contacted", "qualified", "quoted", "won", "lost"}
	LeadSources    = []string{"website", "referral", "phone", "walk_in", "social", "other"}
	LeadPriorities = []string{"low", "medium", "high"}
	UserRoles      = []string{"admin", "staff", "viewer"}
)

// Field library values
var (
	FieldTypes = []string{
		"toggle",
		"price_notes",
		"per_person_price_notes",
		"quantity_price_notes",
		"dropdown_price_notes",
		"text_notes_only",
	}
	PricingBehaviors = []string{"none", "fixed", "per_person", "quantity_based"}
)

// Calendar sync values
const (
	SyncStatusSuccess = "success"
	SyncStatusFailed  = "failed"
	SyncStatusPartial = "partial"
)

var (
	SyncOperations = []string{"create", "update", "delete", "analyze", "cleanup", "bulk-sync"}
	SyncDirections = []string{"to_calendar", "from_calendar"}
	SyncStatuses   = []string{"success", "failed", "partial"}
)
