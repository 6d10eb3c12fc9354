package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

// Access rule fragments shared by the tenant-scoped collections.
const (
	ruleSameTenant = "@request.auth.id != '' && tenant = @request.auth.tenant"
	ruleStaffWrite = "(@request.auth.role = 'admin' || @request.auth.role = 'staff') && tenant = @request.auth.tenant"
	ruleAdminWrite = "@request.auth.role = 'admin' && tenant = @request.auth.tenant"
)

func init() {
	m.Register(func(app core.App) error {
		// Tenants first, everything else hangs off it
		if err := createTenantsCollection(app); err != nil {
			return err
		}

		if err := extendUsersCollection(app); err != nil {
			return err
		}

		// Customers before leads (leads reference the converted customer)
		if err := createCustomersCollection(app); err != nil {
			return err
		}

		if err := createLeadsCollection(app); err != nil {
			return err
		}

		if err := createEventsCollection(app); err != nil {
			return err
		}

		return createAppSettingsCollection(app)
	}, nil)
}

// tenantRelation builds the tenant relation field every scoped collection
// carries. Field ids stay unique per collection via the prefix.
func tenantRelation(app core.App, idPrefix string) *core.RelationField {
	tenants, _ := app.FindCollectionByNameOrId("tenants")
	tenantsId := ""
	if tenants != nil {
		tenantsId = tenants.Id
	}
	return &core.RelationField{
		Id:           idPrefix + "_tenant",
		Name:         "tenant",
		Required:     true,
		CollectionId: tenantsId,
		MaxSelect:    1,
	}
}

func createTenantsCollection(app core.App) error {
	existing, _ := app.FindCollectionByNameOrId("tenants")
	if existing != nil {
		return nil
	}

	collection := core.NewBaseCollection("tenants")
	collection.Fields.Add(
		&core.TextField{
			Id:       "tenant_name",
			Name:     "name",
			Required: true,
			Max:      200,
		},
		&core.TextField{
			Id:       "tenant_slug",
			Name:     "slug",
			Required: true,
			Max:      100,
			Pattern:  `^[a-z0-9-]+$`,
		},
		&core.BoolField{
			Id:   "tenant_active",
			Name: "active",
		},
		&core.AutodateField{
			Id:       "tenant_created",
			Name:     "created",
			OnCreate: true,
		},
		&core.AutodateField{
			Id:       "tenant_updated",
			Name:     "updated",
			OnCreate: true,
			OnUpdate: true,
		},
	)

	collection.Indexes = []string{
		"CREATE UNIQUE INDEX idx_tenants_slug ON tenants (slug)",
	}

	// Users may read their own tenant row; management is superuser-only
	collection.ListRule = types.Pointer("@request.auth.id != '' && id = @request.auth.tenant")
	collection.ViewRule = types.Pointer("@request.auth.id != '' && id = @request.auth.tenant")
	collection.CreateRule = nil
	collection.UpdateRule = nil
	collection.DeleteRule = nil

	return app.Save(collection)
}

func extendUsersCollection(app core.App) error {
	collection, err := app.FindCollectionByNameOrId("users")
	if err != nil {
		// Users collection should exist by default, just extend it
		return nil
	}

	if !fieldExists(collection, "role") {
		collection.Fields.Add(&core.SelectField{
			Id:        "users_role",
			Name:      "role",
			Required:  false,
			MaxSelect: 1,
			Values:    []string{"admin", "staff", "viewer"},
		})
	}

	if !fieldExists(collection, "name") {
		collection.Fields.Add(&core.TextField{
			Id:       "users_name",
			Name:     "name",
			Required: false,
			Max:      200,
		})
	}

	if !fieldExists(collection, "tenant") {
		collection.Fields.Add(tenantRelation(app, "users"))
	}

	return app.Save(collection)
}

func createCustomersCollection(app core.App) error {
	existing, _ := app.FindCollectionByNameOrId("customers")
	if existing != nil {
		return nil
	}

	collection := core.NewBaseCollection("customers")
	collection.Fields.Add(
		&core.TextField{
			Id:       "cust_name",
			Name:     "name",
			Required: true,
			Max:      200,
		},
		&core.EmailField{
			Id:       "cust_email",
			Name:     "email",
			Required: false,
		},
		&core.TextField{
			Id:       "cust_phone",
			Name:     "phone",
			Required: false,
			Max:      50,
		},
		&core.TextField{
			Id:       "cust_address",
			Name:     "address",
			Required: false,
			Max:      500,
		},
		&core.TextField{
			Id:       "cust_notes",
			Name:     "notes",
			Required: false,
			Max:      5000,
		},
		tenantRelation(app, "cust"),
		&core.AutodateField{
			Id:       "cust_created",
			Name:     "created",
			OnCreate: true,
		},
		&core.AutodateField{
			Id:       "cust_updated",
			Name:     "updated",
			OnCreate: true,
			OnUpdate: true,
		},
	)

	collection.Indexes = []string{
		"CREATE INDEX idx_customers_tenant ON customers (tenant)",
		"CREATE INDEX idx_customers_name ON customers (name)",
	}

	collection.ListRule = types.Pointer(ruleSameTenant)
	collection.ViewRule = types.Pointer(ruleSameTenant)
	collection.CreateRule = types.Pointer(ruleStaffWrite)
	collection.UpdateRule = types.Pointer(ruleStaffWrite)
	collection.DeleteRule = types.Pointer(ruleAdminWrite)

	return app.Save(collection)
}

func createLeadsCollection(app core.App) error {
	existing, _ := app.FindCollectionByNameOrId("leads")
	if existing != nil {
		return nil
	}

	customers, _ := app.FindCollectionByNameOrId("customers")
	customersId := ""
	if customers != nil {
		customersId = customers.Id
	}

	collection := core.NewBaseCollection("leads")
	collection.Fields.Add(
		&core.TextField{
			Id:       "lead_name",
			Name:     "name",
			Required: true,
			Max:      200,
		},
		&core.EmailField{
			Id:       "lead_email",
			Name:     "email",
			Required: false,
		},
		&core.TextField{
			Id:       "lead_phone",
			Name:     "phone",
			Required: false,
			Max:      50,
		},
		&core.TextField{
			Id:       "lead_company",
			Name:     "company",
			Required: false,
			Max:      200,
		},
		&core.TextField{
			Id:       "lead_event_type",
			Name:     "event_type",
			Required: false,
			Max:      100,
		},
		&core.DateField{
			Id:       "lead_event_date",
			Name:     "event_date",
			Required: false,
		},
		&core.NumberField{
			Id:      "lead_estimated_guests",
			Name:    "estimated_guests",
			OnlyInt: true,
			Min:     types.Pointer(0.0),
		},
		&core.NumberField{
			Id:   "lead_estimated_budget",
			Name: "estimated_budget",
			Min:  types.Pointer(0.0),
		},
		&core.SelectField{
			Id:        "lead_source",
			Name:      "source",
			Required:  false,
			MaxSelect: 1,
			Values:    []string{"website", "referral", "phone", "walk_in", "social", "other"},
		},
		&core.SelectField{
			Id:        "lead_status",
			Name:      "status",
			Required:  true,
			MaxSelect: 1,
			Values:    []string{"new", "contacted", "qualified", "quoted", "won", "lost"},
		},
		&core.SelectField{
			Id:        "lead_priority",
			Name:      "priority",
			Required:  false,
			MaxSelect: 1,
			Values:    []string{"low", "medium", "high"},
		},
		&core.TextField{
			Id:       "lead_notes",
			Name:     "notes",
			Required: false,
			Max:      5000,
		},
		&core.TextField{
			Id:       "lead_lost_reason",
			Name:     "lost_reason",
			Required: false,
			Max:      500,
		},
		&core.RelationField{
			Id:           "lead_converted_customer",
			Name:         "converted_customer",
			Required:     false,
			CollectionId: customersId,
			MaxSelect:    1,
		},
		&core.DateField{
			Id:       "lead_conversion_date",
			Name:     "conversion_date",
			Required: false,
		},
		tenantRelation(app, "lead"),
		&core.AutodateField{
			Id:       "lead_created",
			Name:     "created",
			OnCreate: true,
		},
		&core.AutodateField{
			Id:       "lead_updated",
			Name:     "updated",
			OnCreate: true,
			OnUpdate: true,
		},
	)

	collection.Indexes = []string{
		"CREATE INDEX idx_leads_tenant ON leads (tenant)",
		"CREATE INDEX idx_leads_status ON leads (status)",
		"CREATE INDEX idx_leads_event_date ON leads (event_date)",
	}

	collection.ListRule = types.Pointer(ruleSameTenant)
	collection.ViewRule = types.Pointer(ruleSameTenant)
	collection.CreateRule = types.Pointer(ruleStaffWrite)
	collection.UpdateRule = types.Pointer(ruleStaffWrite)
	collection.DeleteRule = types.Pointer(ruleAdminWrite)

	return app.Save(collection)
}

func createEventsCollection(app core.App) error {
	existing, _ := app.FindCollectionByNameOrId("events")
	if existing != nil {
		return nil
	}

	customers, _ := app.FindCollectionByNameOrId("customers")
	customersId := ""
	if customers != nil {
		customersId = customers.Id
	}

	collection := core.NewBaseCollection("events")
	collection.Fields.Add(
		&core.TextField{
			Id:       "evt_title",
			Name:     "title",
			Required: true,
			Max:      300,
		},
		&core.TextField{
			Id:       "evt_event_type",
			Name:     "event_type",
			Required: false,
			Max:      100,
		},
		&core.RelationField{
			Id:           "evt_customer",
			Name:         "customer",
			Required:     false,
			CollectionId: customersId,
			MaxSelect:    1,
		},
		&core.DateField{
			Id:       "evt_event_date",
			Name:     "event_date",
			Required: true,
		},
		&core.DateField{
			Id:       "evt_event_end_date",
			Name:     "event_end_date",
			Required: false,
		},
		&core.TextField{
			Id:      "evt_start_time",
			Name:    "start_time",
			Max:     5,
			Pattern: `^\d{2}:\d{2}$`,
		},
		&core.TextField{
			Id:      "evt_end_time",
			Name:    "end_time",
			Max:     5,
			Pattern: `^\d{2}:\d{2}$`,
		},
		&core.NumberField{
			Id:      "evt_men_count",
			Name:    "men_count",
			OnlyInt: true,
			Min:     types.Pointer(0.0),
		},
		&core.NumberField{
			Id:      "evt_ladies_count",
			Name:    "ladies_count",
			OnlyInt: true,
			Min:     types.Pointer(0.0),
		},
		&core.NumberField{
			Id:   "evt_guest_price",
			Name: "guest_price",
			Min:  types.Pointer(0.0),
		},
		&core.NumberField{
			Id:   "evt_total_guest_price",
			Name: "total_guest_price",
		},
		&core.NumberField{
			Id:   "evt_form_total",
			Name: "form_total",
		},
		&core.NumberField{
			Id:   "evt_deposit_amount",
			Name: "deposit_amount",
			Min:  types.Pointer(0.0),
		},
		&core.TextField{
			Id:       "evt_primary_contact_name",
			Name:     "primary_contact_name",
			Required: false,
			Max:      200,
		},
		&core.TextField{
			Id:       "evt_primary_contact_number",
			Name:     "primary_contact_number",
			Required: false,
			Max:      50,
		},
		&core.TextField{
			Id:       "evt_secondary_contact_name",
			Name:     "secondary_contact_name",
			Required: false,
			Max:      200,
		},
		&core.TextField{
			Id:       "evt_secondary_contact_number",
			Name:     "secondary_contact_number",
			Required: false,
			Max:      50,
		},
		&core.TextField{
			Id:       "evt_venue_area",
			Name:     "venue_area",
			Required: false,
			Max:      200,
		},
		&core.TextField{
			Id:       "evt_external_calendar_id",
			Name:     "external_calendar_id",
			Required: false,
			Max:      300,
		},
		tenantRelation(app, "evt"),
		&core.AutodateField{
			Id:       "evt_created",
			Name:     "created",
			OnCreate: true,
		},
		&core.AutodateField{
			Id:       "evt_updated",
			Name:     "updated",
			OnCreate: true,
			OnUpdate: true,
		},
	)

	collection.Indexes = []string{
		"CREATE INDEX idx_events_tenant ON events (tenant)",
		"CREATE INDEX idx_events_event_date ON events (event_date)",
		"CREATE INDEX idx_events_customer ON events (customer)",
		"CREATE INDEX idx_events_external_calendar ON events (external_calendar_id)",
	}

	collection.ListRule = types.Pointer(ruleSameTenant)
	collection.ViewRule = types.Pointer(ruleSameTenant)
	collection.CreateRule = types.Pointer(ruleStaffWrite)
	collection.UpdateRule = types.Pointer(ruleStaffWrite)
	collection.DeleteRule = types.Pointer(ruleAdminWrite)

	return app.Save(collection)
}

func createAppSettingsCollection(app core.App) error {
	existing, _ := app.FindCollectionByNameOrId("app_settings")
	if existing != nil {
		return nil
	}

	collection := core.NewBaseCollection("app_settings")
	collection.Fields.Add(
		&core.TextField{
			Id:       "settings_key",
			Name:     "key",
			Required: true,
			Max:      100,
		},
		&core.JSONField{
			Id:      "settings_value",
			Name:    "value",
			MaxSize: 10000,
		},
		tenantRelation(app, "settings"),
		&core.AutodateField{
			Id:       "settings_updated",
			Name:     "updated",
			OnCreate: true,
			OnUpdate: true,
		},
	)

	collection.Indexes = []string{
		"CREATE UNIQUE INDEX idx_app_settings_tenant_key ON app_settings (tenant, `key`)",
	}

	collection.ListRule = types.Pointer(ruleSameTenant)
	collection.ViewRule = types.Pointer(ruleSameTenant)
	collection.CreateRule = types.Pointer(ruleAdminWrite)
	collection.UpdateRule = types.Pointer(ruleAdminWrite)
	collection.DeleteRule = types.Pointer(ruleAdminWrite)

	return app.Save(collection)
}

// fieldExists checks if a field with the given name exists in the collection
func fieldExists(collection *core.Collection, fieldName string) bool {
	for _, f := range collection.Fields {
		if f.GetName() == fieldName {
			return true
		}
	}
	return false
}
