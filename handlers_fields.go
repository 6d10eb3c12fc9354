package main

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/banquethq/venue-crm/pricing"
	"github.com/banquethq/venue-crm/utils"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
)

// --- Field Library Handlers ---

// handleFieldLibraryList returns the tenant's field library, optionally
// including deactivated fields.
func handleFieldLibraryList(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	tenant, ok := tenantScope(re)
	if !ok {
		return utils.ForbiddenResponse(re, "User has no tenant assigned")
	}

	filter, params := tenantRecordFilter(tenant)
	if re.Request.URL.Query().Get("includeInactive") != "true" {
		filter = andFilter(filter, "active = true")
	}
	if category := re.Request.URL.Query().Get("category"); category != "" {
		filter = andFilter(filter, "category = {:category}")
		params["category"] = category
	}

	records, err := app.FindRecordsByFilter(utils.CollectionFieldLibrary, filter, "sort_order", 0, 0, params)
	if err != nil {
		return utils.InternalErrorResponse(re, "Failed to load field library")
	}

	items := make([]pricing.FieldDefinition, len(records))
	for i, r := range records {
		items[i] = recordToFieldDefinition(r)
	}

	return utils.DataResponse(re, map[string]any{"items": items})
}

// handleFieldLibraryCreate adds a field definition to the library
func handleFieldLibraryCreate(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	tenant, ok := tenantScope(re)
	if !ok {
		return utils.ForbiddenResponse(re, "User has no tenant assigned")
	}

	var input map[string]any
	if err := json.NewDecoder(re.Request.Body).Decode(&input); err != nil {
		return utils.BadRequestResponse(re, "Invalid request body")
	}

	name, _ := input["name"].(string)
	label, _ := input["label"].(string)
	fieldType, _ := input["field_type"].(string)
	if strings.TrimSpace(name) == "" || strings.TrimSpace(label) == "" || fieldType == "" {
		return utils.BadRequestResponse(re, "name, label and field_type are required")
	}

	collection, err := app.FindCollectionByNameOrId(utils.CollectionFieldLibrary)
	if err != nil {
		return utils.InternalErrorResponse(re, "Failed to find field library collection")
	}

	record := core.NewRecord(collection)
	record.Set("name", strings.TrimSpace(name))
	record.Set("label", strings.TrimSpace(label))
	record.Set("field_type", fieldType)
	record.Set("pricing_behavior", "none")
	record.Set("active", true)
	record.Set("tenant", tenant)
	if err := applyFieldLibraryInput(record, input); err != nil {
		return utils.BadRequestResponse(re, err.Error())
	}

	if err := app.Save(record); err != nil {
		return utils.BadRequestResponse(re, "Failed to create field: "+err.Error())
	}

	utils.LogFromRequest(app, re, "create", utils.CollectionFieldLibrary, record.Id, "success", nil, "")
	return utils.DataResponse(re, recordToFieldDefinition(record))
}

// handleFieldLibraryUpdate edits a library definition. Every form referencing
// it picks up the change on its next recalculation.
func handleFieldLibraryUpdate(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	record, err := findTenantRecord(re, app, utils.CollectionFieldLibrary, re.Request.PathValue("id"))
	if err != nil {
		return utils.NotFoundResponse(re, "Field not found")
	}

	var input map[string]any
	if err := json.NewDecoder(re.Request.Body).Decode(&input); err != nil {
		return utils.BadRequestResponse(re, "Invalid request body")
	}

	for _, field := range []string{"name", "label", "field_type"} {
		if v, ok := input[field].(string); ok && strings.TrimSpace(v) != "" {
			record.Set(field, strings.TrimSpace(v))
		}
	}
	if err := applyFieldLibraryInput(record, input); err != nil {
		return utils.BadRequestResponse(re, err.Error())
	}
	if v, ok := input["active"].(bool); ok {
		record.Set("active", v)
	}

	if err := app.Save(record); err != nil {
		return utils.BadRequestResponse(re, "Failed to update field: "+err.Error())
	}

	utils.LogFromRequest(app, re, "update", utils.CollectionFieldLibrary, record.Id, "success", nil, "")
	return utils.DataResponse(re, recordToFieldDefinition(record))
}

// handleFieldLibraryDeactivate soft-deletes a field. Historical responses
// keyed by its id keep pricing; it just stops appearing in builders.
func handleFieldLibraryDeactivate(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	record, err := findTenantRecord(re, app, utils.CollectionFieldLibrary, re.Request.PathValue("id"))
	if err != nil {
		return utils.NotFoundResponse(re, "Field not found")
	}

	record.Set("active", false)
	if err := app.Save(record); err != nil {
		return utils.InternalErrorResponse(re, "Failed to deactivate field")
	}

	utils.LogFromRequest(app, re, "delete", utils.CollectionFieldLibrary, record.Id, "success",
		map[string]any{"soft_delete": true}, "")
	return utils.SuccessResponse(re, "Field deactivated")
}

func applyFieldLibraryInput(record *core.Record, input map[string]any) error {
	if v, ok := input["pricing_behavior"].(string); ok && v != "" {
		valid := false
		for _, b := range utils.PricingBehaviors {
			if v == b {
				valid = true
				break
			}
		}
		if !valid {
			return errInvalidBehavior
		}
		record.Set("pricing_behavior", v)
	}
	for _, field := range []string{"category", "help_text"} {
		if v, ok := input[field].(string); ok {
			record.Set(field, v)
		}
	}
	for _, field := range []string{"unit_price"} {
		if v, ok := input[field].(float64); ok {
			record.Set(field, v)
		}
	}
	for _, field := range []string{"min_quantity", "max_quantity", "default_quantity", "sort_order"} {
		if v, ok := input[field].(float64); ok {
			record.Set(field, int(v))
		}
	}
	for _, field := range []string{"show_quantity_field", "show_notes_field", "allow_zero_price"} {
		if v, ok := input[field].(bool); ok {
			record.Set(field, v)
		}
	}
	if raw, ok := input["dropdown_options"]; ok {
		encoded, err := json.Marshal(raw)
		if err != nil {
			return err
		}
		var opts []pricing.DropdownOption
		if err := json.Unmarshal(encoded, &opts); err != nil {
			return err
		}
		for _, opt := range opts {
			if opt.Price < 0 {
				return errNegativeOptionPrice
			}
		}
		record.Set("dropdown_options", opts)
	}
	return nil
}

var (
	errInvalidBehavior     = errors.New("unknown pricing_behavior")
	errNegativeOptionPrice = errors.New("dropdown option prices must be non-negative")
)

// --- Form Template Handlers ---

func handleFormTemplatesList(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	tenant, ok := tenantScope(re)
	if !ok {
		return utils.ForbiddenResponse(re, "User has no tenant assigned")
	}

	filter, params := tenantRecordFilter(tenant)
	if re.Request.URL.Query().Get("includeInactive") != "true" {
		filter = andFilter(filter, "active = true")
	}

	records, err := app.FindRecordsByFilter(utils.CollectionFormTemplates, filter, "name", 0, 0, params)
	if err != nil {
		return utils.InternalErrorResponse(re, "Failed to load templates")
	}

	items := make([]map[string]any, len(records))
	for i, r := range records {
		items[i] = map[string]any{
			"id":          r.Id,
			"name":        r.GetString("name"),
			"description": r.GetString("description"),
			"active":      r.GetBool("active"),
		}
	}
	return utils.DataResponse(re, map[string]any{"items": items})
}

// handleFormTemplateGet returns a template with its sections and field
// instances fully expanded, ready for the form builder.
func handleFormTemplateGet(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	template, err := findTenantRecord(re, app, utils.CollectionFormTemplates, re.Request.PathValue("id"))
	if err != nil {
		return utils.NotFoundResponse(re, "Template not found")
	}

	defs, err := loadFieldDefinitions(app, template.GetString("tenant"))
	if err != nil {
		return utils.InternalErrorResponse(re, "Failed to load field library")
	}

	sections, _ := app.FindRecordsByFilter(utils.CollectionFormSections,
		"template = {:template}", "sort_order", 0, 0, dbx.Params{"template": template.Id})

	sectionItems := make([]map[string]any, len(sections))
	for i, section := range sections {
		instances, _ := app.FindRecordsByFilter(utils.CollectionFormFieldInstances,
			"section = {:section}", "sort_order", 0, 0, dbx.Params{"section": section.Id})

		fieldItems := make([]map[string]any, 0, len(instances))
		for _, inst := range instances {
			item := map[string]any{
				"id":         inst.Id,
				"field":      inst.GetString("field"),
				"sort_order": inst.GetInt("sort_order"),
			}
			if v := inst.GetString("label_override"); v != "" {
				item["label_override"] = v
			}
			if v := inst.GetString("help_text_override"); v != "" {
				item["help_text_override"] = v
			}
			if def, ok := defs[inst.GetString("field")]; ok {
				item["definition"] = def
			}
			fieldItems = append(fieldItems, item)
		}

		sectionItems[i] = map[string]any{
			"id":         section.Id,
			"title":      section.GetString("title"),
			"sort_order": section.GetInt("sort_order"),
			"fields":     fieldItems,
		}
	}

	return utils.DataResponse(re, map[string]any{
		"id":          template.Id,
		"name":        template.GetString("name"),
		"description": template.GetString("description"),
		"active":      template.GetBool("active"),
		"sections":    sectionItems,
	})
}

func handleFormTemplateCreate(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	tenant, ok := tenantScope(re)
	if !ok {
		return utils.ForbiddenResponse(re, "User has no tenant assigned")
	}

	var input struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(re.Request.Body).Decode(&input); err != nil {
		return utils.BadRequestResponse(re, "Invalid request body")
	}
	if strings.TrimSpace(input.Name) == "" {
		return utils.BadRequestResponse(re, "Name is required")
	}

	collection, err := app.FindCollectionByNameOrId(utils.CollectionFormTemplates)
	if err != nil {
		return utils.InternalErrorResponse(re, "Failed to find templates collection")
	}

	record := core.NewRecord(collection)
	record.Set("name", strings.TrimSpace(input.Name))
	record.Set("description", input.Description)
	record.Set("active", true)
	record.Set("tenant", tenant)

	if err := app.Save(record); err != nil {
		return utils.BadRequestResponse(re, "Failed to create template: "+err.Error())
	}

	utils.LogFromRequest(app, re, "create", utils.CollectionFormTemplates, record.Id, "success", nil, "")
	return utils.DataResponse(re, map[string]any{"id": record.Id, "name": record.GetString("name")})
}

func handleFormTemplateUpdate(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	record, err := findTenantRecord(re, app, utils.CollectionFormTemplates, re.Request.PathValue("id"))
	if err != nil {
		return utils.NotFoundResponse(re, "Template not found")
	}

	var input map[string]any
	if err := json.NewDecoder(re.Request.Body).Decode(&input); err != nil {
		return utils.BadRequestResponse(re, "Invalid request body")
	}

	if v, ok := input["name"].(string); ok && strings.TrimSpace(v) != "" {
		record.Set("name", strings.TrimSpace(v))
	}
	if v, ok := input["description"].(string); ok {
		record.Set("description", v)
	}
	if v, ok := input["active"].(bool); ok {
		record.Set("active", v)
	}

	if err := app.Save(record); err != nil {
		return utils.BadRequestResponse(re, "Failed to update template: "+err.Error())
	}
	return utils.DataResponse(re, map[string]any{"id": record.Id, "name": record.GetString("name")})
}

// handleFormTemplateDelete removes a template. Event forms created from it
// keep their own response snapshots and survive the deletion.
func handleFormTemplateDelete(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	record, err := findTenantRecord(re, app, utils.CollectionFormTemplates, re.Request.PathValue("id"))
	if err != nil {
		return utils.NotFoundResponse(re, "Template not found")
	}

	if err := app.Delete(record); err != nil {
		return utils.InternalErrorResponse(re, "Failed to delete template")
	}
	return utils.SuccessResponse(re, "Template deleted")
}

// --- Form Section Handlers ---

func handleFormSectionCreate(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	template, err := findTenantRecord(re, app, utils.CollectionFormTemplates, re.Request.PathValue("id"))
	if err != nil {
		return utils.NotFoundResponse(re, "Template not found")
	}

	var input struct {
		Title     string `json:"title"`
		SortOrder int    `json:"sort_order"`
	}
	if err := json.NewDecoder(re.Request.Body).Decode(&input); err != nil {
		return utils.BadRequestResponse(re, "Invalid request body")
	}
	if strings.TrimSpace(input.Title) == "" {
		return utils.BadRequestResponse(re, "Title is required")
	}

	collection, err := app.FindCollectionByNameOrId(utils.CollectionFormSections)
	if err != nil {
		return utils.InternalErrorResponse(re, "Failed to find sections collection")
	}

	record := core.NewRecord(collection)
	record.Set("template", template.Id)
	record.Set("title", strings.TrimSpace(input.Title))
	record.Set("sort_order", input.SortOrder)

	if err := app.Save(record); err != nil {
		return utils.BadRequestResponse(re, "Failed to create section: "+err.Error())
	}
	return utils.DataResponse(re, map[string]any{
		"id":         record.Id,
		"title":      record.GetString("title"),
		"sort_order": record.GetInt("sort_order"),
	})
}

func handleFormSectionUpdate(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	record, err := findSectionForTenant(re, app, re.Request.PathValue("id"))
	if err != nil {
		return utils.NotFoundResponse(re, "Section not found")
	}

	var input map[string]any
	if err := json.NewDecoder(re.Request.Body).Decode(&input); err != nil {
		return utils.BadRequestResponse(re, "Invalid request body")
	}

	if v, ok := input["title"].(string); ok && strings.TrimSpace(v) != "" {
		record.Set("title", strings.TrimSpace(v))
	}
	if v, ok := input["sort_order"].(float64); ok {
		record.Set("sort_order", int(v))
	}

	if err := app.Save(record); err != nil {
		return utils.BadRequestResponse(re, "Failed to update section: "+err.Error())
	}
	return utils.DataResponse(re, map[string]any{
		"id":         record.Id,
		"title":      record.GetString("title"),
		"sort_order": record.GetInt("sort_order"),
	})
}

// handleFormSectionDelete deletes a section; its field instances cascade
func handleFormSectionDelete(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	record, err := findSectionForTenant(re, app, re.Request.PathValue("id"))
	if err != nil {
		return utils.NotFoundResponse(re, "Section not found")
	}

	if err := app.Delete(record); err != nil {
		return utils.InternalErrorResponse(re, "Failed to delete section")
	}
	return utils.SuccessResponse(re, "Section deleted")
}

// --- Field Instance Handlers ---

// handleFieldInstanceCreate places a library field on a section. Sort order
// is unique per section; a collision is a client error, not a silent shift.
func handleFieldInstanceCreate(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	section, err := findSectionForTenant(re, app, re.Request.PathValue("id"))
	if err != nil {
		return utils.NotFoundResponse(re, "Section not found")
	}

	var input struct {
		Field            string `json:"field"`
		SortOrder        int    `json:"sort_order"`
		LabelOverride    string `json:"label_override"`
		HelpTextOverride string `json:"help_text_override"`
	}
	if err := json.NewDecoder(re.Request.Body).Decode(&input); err != nil {
		return utils.BadRequestResponse(re, "Invalid request body")
	}
	if input.Field == "" {
		return utils.BadRequestResponse(re, "field is required")
	}

	fieldDef, err := findTenantRecord(re, app, utils.CollectionFieldLibrary, input.Field)
	if err != nil {
		return utils.NotFoundResponse(re, "Library field not found")
	}
	if !fieldDef.GetBool("active") {
		return utils.BadRequestResponse(re, "Cannot place a deactivated field")
	}

	taken, _ := app.FindRecordsByFilter(utils.CollectionFormFieldInstances,
		"section = {:section} && sort_order = {:order}", "", 1, 0,
		dbx.Params{"section": section.Id, "order": input.SortOrder})
	if len(taken) > 0 {
		return utils.BadRequestResponse(re, "sort_order is already used in this section")
	}

	collection, err := app.FindCollectionByNameOrId(utils.CollectionFormFieldInstances)
	if err != nil {
		return utils.InternalErrorResponse(re, "Failed to find field instances collection")
	}

	record := core.NewRecord(collection)
	record.Set("section", section.Id)
	record.Set("field", input.Field)
	record.Set("sort_order", input.SortOrder)
	record.Set("label_override", input.LabelOverride)
	record.Set("help_text_override", input.HelpTextOverride)

	if err := app.Save(record); err != nil {
		return utils.BadRequestResponse(re, "Failed to place field: "+err.Error())
	}
	return utils.DataResponse(re, map[string]any{
		"id":         record.Id,
		"field":      input.Field,
		"sort_order": input.SortOrder,
	})
}

func handleFieldInstanceUpdate(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	record, err := findInstanceForTenant(re, app, re.Request.PathValue("id"))
	if err != nil {
		return utils.NotFoundResponse(re, "Field instance not found")
	}

	var input map[string]any
	if err := json.NewDecoder(re.Request.Body).Decode(&input); err != nil {
		return utils.BadRequestResponse(re, "Invalid request body")
	}

	if v, ok := input["sort_order"].(float64); ok {
		order := int(v)
		taken, _ := app.FindRecordsByFilter(utils.CollectionFormFieldInstances,
			"section = {:section} && sort_order = {:order} && id != {:id}", "", 1, 0,
			dbx.Params{"section": record.GetString("section"), "order": order, "id": record.Id})
		if len(taken) > 0 {
			return utils.BadRequestResponse(re, "sort_order is already used in this section")
		}
		record.Set("sort_order", order)
	}
	for _, field := range []string{"label_override", "help_text_override"} {
		if v, ok := input[field].(string); ok {
			record.Set(field, v)
		}
	}

	if err := app.Save(record); err != nil {
		return utils.BadRequestResponse(re, "Failed to update field instance: "+err.Error())
	}
	return utils.DataResponse(re, map[string]any{
		"id":         record.Id,
		"sort_order": record.GetInt("sort_order"),
	})
}

func handleFieldInstanceDelete(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	record, err := findInstanceForTenant(re, app, re.Request.PathValue("id"))
	if err != nil {
		return utils.NotFoundResponse(re, "Field instance not found")
	}

	if err := app.Delete(record); err != nil {
		return utils.InternalErrorResponse(re, "Failed to delete field instance")
	}
	return utils.SuccessResponse(re, "Field instance deleted")
}

// findSectionForTenant resolves a section and checks tenancy through its
// owning template, since sections carry no tenant column of their own.
func findSectionForTenant(re *core.RequestEvent, app *pocketbase.PocketBase, id string) (*core.Record, error) {
	section, err := app.FindRecordById(utils.CollectionFormSections, id)
	if err != nil {
		return nil, err
	}
	if _, err := findTenantRecord(re, app, utils.CollectionFormTemplates, section.GetString("template")); err != nil {
		return nil, err
	}
	return section, nil
}

func findInstanceForTenant(re *core.RequestEvent, app *pocketbase.PocketBase, id string) (*core.Record, error) {
	instance, err := app.FindRecordById(utils.CollectionFormFieldInstances, id)
	if err != nil {
		return nil, err
	}
	if _, err := findSectionForTenant(re, app, instance.GetString("section")); err != nil {
		return nil, err
	}
	return instance, nil
}
