package migrations

import (
	"log"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

func init() {
	m.Register(func(app core.App) error {
		if err := createFieldLibraryCollection(app); err != nil {
			return err
		}
		if err := createFormTemplatesCollection(app); err != nil {
			return err
		}
		if err := createFormSectionsCollection(app); err != nil {
			return err
		}
		if err := createFormFieldInstancesCollection(app); err != nil {
			return err
		}
		return createEventFormsCollection(app)
	}, func(app core.App) error {
		// Rollback in reverse dependency order
		for _, name := range []string{
			"event_forms", "form_field_instances", "form_sections",
			"form_templates", "field_library",
		} {
			if collection, err := app.FindCollectionByNameOrId(name); err == nil {
				if err := app.Delete(collection); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func createFieldLibraryCollection(app core.App) error {
	existing, _ := app.FindCollectionByNameOrId("field_library")
	if existing != nil {
		log.Println("[Migration] field_library collection already exists")
		return nil
	}

	collection := core.NewBaseCollection("field_library")
	collection.Fields.Add(
		&core.TextField{
			Id:       "fld_name",
			Name:     "name",
			Required: true,
			Max:      100,
		},
		&core.TextField{
			Id:       "fld_label",
			Name:     "label",
			Required: true,
			Max:      200,
		},
		&core.SelectField{
			Id:        "fld_field_type",
			Name:      "field_type",
			Required:  true,
			MaxSelect: 1,
			Values: []string{
				"toggle", "price_notes", "per_person_price_notes",
				"quantity_price_notes", "dropdown_price_notes", "text_notes_only",
			},
		},
		&core.SelectField{
			Id:        "fld_pricing_behavior",
			Name:      "pricing_behavior",
			Required:  true,
			MaxSelect: 1,
			Values:    []string{"none", "fixed", "per_person", "quantity_based"},
		},
		&core.NumberField{
			Id:   "fld_unit_price",
			Name: "unit_price",
			Min:  types.Pointer(0.0),
		},
		&core.NumberField{
			Id:      "fld_min_quantity",
			Name:    "min_quantity",
			OnlyInt: true,
			Min:     types.Pointer(0.0),
		},
		&core.NumberField{
			Id:      "fld_max_quantity",
			Name:    "max_quantity",
			OnlyInt: true,
		},
		&core.NumberField{
			Id:      "fld_default_quantity",
			Name:    "default_quantity",
			OnlyInt: true,
			Min:     types.Pointer(0.0),
		},
		&core.BoolField{
			Id:   "fld_show_quantity_field",
			Name: "show_quantity_field",
		},
		&core.BoolField{
			Id:   "fld_show_notes_field",
			Name: "show_notes_field",
		},
		&core.BoolField{
			Id:   "fld_allow_zero_price",
			Name: "allow_zero_price",
		},
		&core.TextField{
			Id:       "fld_category",
			Name:     "category",
			Required: false,
			Max:      100,
		},
		&core.JSONField{
			Id:      "fld_dropdown_options",
			Name:    "dropdown_options",
			MaxSize: 20000,
		},
		&core.TextField{
			Id:       "fld_help_text",
			Name:     "help_text",
			Required: false,
			Max:      500,
		},
		&core.NumberField{
			Id:      "fld_sort_order",
			Name:    "sort_order",
			OnlyInt: true,
		},
		&core.BoolField{
			Id:   "fld_active",
			Name: "active",
		},
		tenantRelation(app, "fld"),
		&core.AutodateField{
			Id:       "fld_created",
			Name:     "created",
			OnCreate: true,
		},
		&core.AutodateField{
			Id:       "fld_updated",
			Name:     "updated",
			OnCreate: true,
			OnUpdate: true,
		},
	)

	collection.Indexes = []string{
		"CREATE INDEX idx_field_library_tenant ON field_library (tenant)",
		"CREATE INDEX idx_field_library_category ON field_library (category)",
		"CREATE INDEX idx_field_library_active ON field_library (active)",
	}

	collection.ListRule = types.Pointer(ruleSameTenant)
	collection.ViewRule = types.Pointer(ruleSameTenant)
	collection.CreateRule = types.Pointer(ruleAdminWrite)
	collection.UpdateRule = types.Pointer(ruleAdminWrite)
	collection.DeleteRule = types.Pointer(ruleAdminWrite)

	if err := app.Save(collection); err != nil {
		return err
	}

	log.Println("[Migration] Created field_library collection")
	return nil
}

func createFormTemplatesCollection(app core.App) error {
	existing, _ := app.FindCollectionByNameOrId("form_templates")
	if existing != nil {
		return nil
	}

	collection := core.NewBaseCollection("form_templates")
	collection.Fields.Add(
		&core.TextField{
			Id:       "tmpl_name",
			Name:     "name",
			Required: true,
			Max:      200,
		},
		&core.TextField{
			Id:       "tmpl_description",
			Name:     "description",
			Required: false,
			Max:      1000,
		},
		&core.BoolField{
			Id:   "tmpl_active",
			Name: "active",
		},
		tenantRelation(app, "tmpl"),
		&core.AutodateField{
			Id:       "tmpl_created",
			Name:     "created",
			OnCreate: true,
		},
		&core.AutodateField{
			Id:       "tmpl_updated",
			Name:     "updated",
			OnCreate: true,
			OnUpdate: true,
		},
	)

	collection.Indexes = []string{
		"CREATE INDEX idx_form_templates_tenant ON form_templates (tenant)",
	}

	collection.ListRule = types.Pointer(ruleSameTenant)
	collection.ViewRule = types.Pointer(ruleSameTenant)
	collection.CreateRule = types.Pointer(ruleAdminWrite)
	collection.UpdateRule = types.Pointer(ruleAdminWrite)
	collection.DeleteRule = types.Pointer(ruleAdminWrite)

	return app.Save(collection)
}

func createFormSectionsCollection(app core.App) error {
	existing, _ := app.FindCollectionByNameOrId("form_sections")
	if existing != nil {
		return nil
	}

	templates, _ := app.FindCollectionByNameOrId("form_templates")
	templatesId := ""
	if templates != nil {
		templatesId = templates.Id
	}

	collection := core.NewBaseCollection("form_sections")
	collection.Fields.Add(
		&core.RelationField{
			Id:            "sect_template",
			Name:          "template",
			Required:      true,
			CollectionId:  templatesId,
			MaxSelect:     1,
			CascadeDelete: true,
		},
		&core.TextField{
			Id:       "sect_title",
			Name:     "title",
			Required: true,
			Max:      200,
		},
		&core.NumberField{
			Id:      "sect_sort_order",
			Name:    "sort_order",
			OnlyInt: true,
		},
		&core.AutodateField{
			Id:       "sect_created",
			Name:     "created",
			OnCreate: true,
		},
		&core.AutodateField{
			Id:       "sect_updated",
			Name:     "updated",
			OnCreate: true,
			OnUpdate: true,
		},
	)

	collection.Indexes = []string{
		"CREATE INDEX idx_form_sections_template ON form_sections (template)",
	}

	rule := "@request.auth.id != '' && template.tenant = @request.auth.tenant"
	writeRule := "@request.auth.role = 'admin' && template.tenant = @request.auth.tenant"
	collection.ListRule = &rule
	collection.ViewRule = &rule
	collection.CreateRule = &writeRule
	collection.UpdateRule = &writeRule
	collection.DeleteRule = &writeRule

	return app.Save(collection)
}

func createFormFieldInstancesCollection(app core.App) error {
	existing, _ := app.FindCollectionByNameOrId("form_field_instances")
	if existing != nil {
		return nil
	}

	sections, _ := app.FindCollectionByNameOrId("form_sections")
	sectionsId := ""
	if sections != nil {
		sectionsId = sections.Id
	}
	fields, _ := app.FindCollectionByNameOrId("field_library")
	fieldsId := ""
	if fields != nil {
		fieldsId = fields.Id
	}

	collection := core.NewBaseCollection("form_field_instances")
	collection.Fields.Add(
		&core.RelationField{
			Id:            "inst_section",
			Name:          "section",
			Required:      true,
			CollectionId:  sectionsId,
			MaxSelect:     1,
			CascadeDelete: true,
		},
		// References the library definition, never copies it
		&core.RelationField{
			Id:           "inst_field",
			Name:         "field",
			Required:     true,
			CollectionId: fieldsId,
			MaxSelect:    1,
		},
		&core.NumberField{
			Id:      "inst_sort_order",
			Name:    "sort_order",
			OnlyInt: true,
		},
		&core.TextField{
			Id:       "inst_label_override",
			Name:     "label_override",
			Required: false,
			Max:      200,
		},
		&core.TextField{
			Id:       "inst_help_text_override",
			Name:     "help_text_override",
			Required: false,
			Max:      500,
		},
		&core.AutodateField{
			Id:       "inst_created",
			Name:     "created",
			OnCreate: true,
		},
	)

	collection.Indexes = []string{
		"CREATE INDEX idx_form_field_instances_section ON form_field_instances (section)",
		"CREATE UNIQUE INDEX idx_form_field_instances_order ON form_field_instances (section, sort_order)",
	}

	rule := "@request.auth.id != '' && section.template.tenant = @request.auth.tenant"
	writeRule := "@request.auth.role = 'admin' && section.template.tenant = @request.auth.tenant"
	collection.ListRule = &rule
	collection.ViewRule = &rule
	collection.CreateRule = &writeRule
	collection.UpdateRule = &writeRule
	collection.DeleteRule = &writeRule

	return app.Save(collection)
}

func createEventFormsCollection(app core.App) error {
	existing, _ := app.FindCollectionByNameOrId("event_forms")
	if existing != nil {
		return nil
	}

	events, _ := app.FindCollectionByNameOrId("events")
	eventsId := ""
	if events != nil {
		eventsId = events.Id
	}
	templates, _ := app.FindCollectionByNameOrId("form_templates")
	templatesId := ""
	if templates != nil {
		templatesId = templates.Id
	}

	collection := core.NewBaseCollection("event_forms")
	collection.Fields.Add(
		&core.RelationField{
			Id:            "ef_event",
			Name:          "event",
			Required:      true,
			CollectionId:  eventsId,
			MaxSelect:     1,
			CascadeDelete: true,
		},
		&core.RelationField{
			Id:           "ef_template",
			Name:         "template",
			Required:     true,
			CollectionId: templatesId,
			MaxSelect:    1,
		},
		&core.TextField{
			Id:       "ef_form_label",
			Name:     "form_label",
			Required: false,
			Max:      200,
		},
		&core.NumberField{
			Id:      "ef_tab_order",
			Name:    "tab_order",
			OnlyInt: true,
		},
		&core.TextField{
			Id:      "ef_start_time",
			Name:    "start_time",
			Max:     5,
			Pattern: `^\d{2}:\d{2}$`,
		},
		&core.NumberField{
			Id:      "ef_men_count",
			Name:    "men_count",
			OnlyInt: true,
			Min:     types.Pointer(0.0),
		},
		&core.NumberField{
			Id:      "ef_ladies_count",
			Name:    "ladies_count",
			OnlyInt: true,
			Min:     types.Pointer(0.0),
		},
		// Full response map keyed by field library id; overwritten whole on save
		&core.JSONField{
			Id:      "ef_form_responses",
			Name:    "form_responses",
			MaxSize: 200000,
		},
		&core.NumberField{
			Id:   "ef_form_total",
			Name: "form_total",
		},
		&core.BoolField{
			Id:   "ef_active",
			Name: "active",
		},
		tenantRelation(app, "ef"),
		&core.AutodateField{
			Id:       "ef_created",
			Name:     "created",
			OnCreate: true,
		},
		&core.AutodateField{
			Id:       "ef_updated",
			Name:     "updated",
			OnCreate: true,
			OnUpdate: true,
		},
	)

	collection.Indexes = []string{
		"CREATE INDEX idx_event_forms_event ON event_forms (event)",
		"CREATE INDEX idx_event_forms_tenant ON event_forms (tenant)",
	}

	collection.ListRule = types.Pointer(ruleSameTenant)
	collection.ViewRule = types.Pointer(ruleSameTenant)
	collection.CreateRule = types.Pointer(ruleStaffWrite)
	collection.UpdateRule = types.Pointer(ruleStaffWrite)
	collection.DeleteRule = types.Pointer(ruleStaffWrite)

	return app.Save(collection)
}
