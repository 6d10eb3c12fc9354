package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/banquethq/venue-crm/pricing"
	"github.com/banquethq/venue-crm/utils"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
)

// --- Events Handlers ---

// handleEventsList returns a paginated events list with date range filtering
func handleEventsList(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	tenant, ok := tenantScope(re)
	if !ok {
		return utils.ForbiddenResponse(re, "User has no tenant assigned")
	}

	page, _ := strconv.Atoi(re.Request.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(re.Request.URL.Query().Get("perPage"))
	if perPage < 1 || perPage > 500 {
		perPage = 50
	}
	search := re.Request.URL.Query().Get("search")
	from := re.Request.URL.Query().Get("from")
	to := re.Request.URL.Query().Get("to")
	sort := re.Request.URL.Query().Get("sort")
	if sort == "" {
		sort = "-event_date"
	}

	filter, params := tenantRecordFilter(tenant)
	if search != "" {
		filter = andFilter(filter, "(title ~ {:search} || event_type ~ {:search} || venue_area ~ {:search})")
		params["search"] = search
	}
	if from != "" {
		filter = andFilter(filter, "event_date >= {:from}")
		params["from"] = from
	}
	if to != "" {
		filter = andFilter(filter, "event_date <= {:to}")
		params["to"] = to
	}

	allRecords, _ := app.FindRecordsByFilter(utils.CollectionEvents, filter, "", 0, 0, params)
	totalItems := len(allRecords)

	offset := (page - 1) * perPage
	records, err := app.FindRecordsByFilter(utils.CollectionEvents, filter, sort, perPage, offset, params)
	if err != nil {
		records = nil
	}

	items := make([]map[string]any, len(records))
	for i, r := range records {
		items[i] = buildEventResponse(r)
	}

	return utils.DataResponse(re, map[string]any{
		"items":      items,
		"page":       page,
		"perPage":    perPage,
		"totalItems": totalItems,
		"totalPages": (totalItems + perPage - 1) / perPage,
	})
}

// handleEventGet returns a single event with its attached forms
func handleEventGet(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	record, err := findTenantRecord(re, app, utils.CollectionEvents, re.Request.PathValue("id"))
	if err != nil {
		return utils.NotFoundResponse(re, "Event not found")
	}

	result := buildEventResponse(record)

	forms, _ := app.FindRecordsByFilter(utils.CollectionEventForms,
		"event = {:event} && active = true", "tab_order", 0, 0,
		dbx.Params{"event": record.Id})
	summaries := make([]map[string]any, len(forms))
	for i, f := range forms {
		summaries[i] = map[string]any{
			"id":         f.Id,
			"form_label": f.GetString("form_label"),
			"tab_order":  f.GetInt("tab_order"),
			"form_total": f.GetFloat("form_total"),
		}
	}
	result["forms"] = summaries

	return utils.DataResponse(re, result)
}

// handleEventCreate creates a new event
func handleEventCreate(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	tenant, ok := tenantScope(re)
	if !ok {
		return utils.ForbiddenResponse(re, "User has no tenant assigned")
	}

	var input map[string]any
	if err := json.NewDecoder(re.Request.Body).Decode(&input); err != nil {
		return utils.BadRequestResponse(re, "Invalid request body")
	}

	title, _ := input["title"].(string)
	eventDate, _ := input["event_date"].(string)
	if strings.TrimSpace(title) == "" || eventDate == "" {
		return utils.BadRequestResponse(re, "title and event_date are required")
	}

	collection, err := app.FindCollectionByNameOrId(utils.CollectionEvents)
	if err != nil {
		return utils.InternalErrorResponse(re, "Failed to find events collection")
	}

	record := core.NewRecord(collection)
	record.Set("title", strings.TrimSpace(title))
	record.Set("event_date", eventDate)
	record.Set("tenant", tenant)
	applyEventInput(record, input)
	refreshGuestTotal(record)

	if err := app.Save(record); err != nil {
		return utils.BadRequestResponse(re, "Failed to create event: "+err.Error())
	}

	utils.LogFromRequest(app, re, "create", utils.CollectionEvents, record.Id, "success", nil, "")
	if re.Auth != nil {
		autoSyncEvent(app, re.Auth.Id, record.GetString("tenant"), record.Id)
	}
	return utils.DataResponse(re, buildEventResponse(record))
}

// handleEventUpdate updates an event and keeps the cached guest total current
func handleEventUpdate(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	record, err := findTenantRecord(re, app, utils.CollectionEvents, re.Request.PathValue("id"))
	if err != nil {
		return utils.NotFoundResponse(re, "Event not found")
	}

	var input map[string]any
	if err := json.NewDecoder(re.Request.Body).Decode(&input); err != nil {
		return utils.BadRequestResponse(re, "Invalid request body")
	}

	if v, ok := input["title"].(string); ok && strings.TrimSpace(v) != "" {
		record.Set("title", strings.TrimSpace(v))
	}
	applyEventInput(record, input)
	refreshGuestTotal(record)

	if err := app.Save(record); err != nil {
		return utils.BadRequestResponse(re, "Failed to update event: "+err.Error())
	}

	if re.Auth != nil {
		autoSyncEvent(app, re.Auth.Id, record.GetString("tenant"), record.Id)
	}
	return utils.DataResponse(re, buildEventResponse(record))
}

// handleEventDelete deletes an event; attached forms cascade
func handleEventDelete(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	record, err := findTenantRecord(re, app, utils.CollectionEvents, re.Request.PathValue("id"))
	if err != nil {
		return utils.NotFoundResponse(re, "Event not found")
	}

	if err := app.Delete(record); err != nil {
		return utils.InternalErrorResponse(re, "Failed to delete event")
	}

	return utils.SuccessResponse(re, "Event deleted")
}

// handleEventTotals recomputes the full money breakdown from source data,
// refreshing the cached columns if they drifted.
func handleEventTotals(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	record, err := findTenantRecord(re, app, utils.CollectionEvents, re.Request.PathValue("id"))
	if err != nil {
		return utils.NotFoundResponse(re, "Event not found")
	}

	guestTotal := pricing.GuestTotal(
		record.GetInt("men_count"),
		record.GetInt("ladies_count"),
		record.GetFloat("guest_price"),
	)

	defs, err := loadFieldDefinitions(app, record.GetString("tenant"))
	if err != nil {
		return utils.InternalErrorResponse(re, "Failed to load field library")
	}

	forms, _ := app.FindRecordsByFilter(utils.CollectionEventForms,
		"event = {:event} && active = true", "tab_order", 0, 0,
		dbx.Params{"event": record.Id})

	var formTotal float64
	perForm := make([]map[string]any, len(forms))
	for i, f := range forms {
		var resps pricing.Responses
		if err := f.UnmarshalJSONField("form_responses", &resps); err != nil {
			resps = pricing.Responses{}
		}
		t := pricing.EventTotal(defs, resps)
		formTotal += t
		perForm[i] = map[string]any{
			"id":         f.Id,
			"form_label": f.GetString("form_label"),
			"total":      t,
		}
		if t != f.GetFloat("form_total") {
			f.Set("form_total", t)
			app.Save(f)
		}
	}

	if guestTotal != record.GetFloat("total_guest_price") || formTotal != record.GetFloat("form_total") {
		record.Set("total_guest_price", guestTotal)
		record.Set("form_total", formTotal)
		app.Save(record)
	}

	return utils.DataResponse(re, map[string]any{
		"guest_total": guestTotal,
		"form_total":  formTotal,
		"grand_total": guestTotal + formTotal,
		"deposit":     record.GetFloat("deposit_amount"),
		"balance":     guestTotal + formTotal - record.GetFloat("deposit_amount"),
		"forms":       perForm,
	})
}

// handleFormResponsesSave overwrites a form's response map in full and
// recomputes the cached totals. Partial merges are never performed; the
// client always sends the complete map.
func handleFormResponsesSave(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	event, err := findTenantRecord(re, app, utils.CollectionEvents, re.Request.PathValue("id"))
	if err != nil {
		return utils.NotFoundResponse(re, "Event not found")
	}

	form, err := app.FindRecordById(utils.CollectionEventForms, re.Request.PathValue("formId"))
	if err != nil || form.GetString("event") != event.Id {
		return utils.NotFoundResponse(re, "Form not found for this event")
	}

	var input struct {
		Responses   pricing.Responses `json:"responses"`
		MenCount    *int              `json:"men_count"`
		LadiesCount *int              `json:"ladies_count"`
		StartTime   *string           `json:"start_time"`
	}
	if err := json.NewDecoder(re.Request.Body).Decode(&input); err != nil {
		return utils.BadRequestResponse(re, "Invalid request body")
	}
	if input.Responses == nil {
		return utils.BadRequestResponse(re, "responses map is required")
	}

	defs, err := loadFieldDefinitions(app, event.GetString("tenant"))
	if err != nil {
		return utils.InternalErrorResponse(re, "Failed to load field library")
	}

	// Quantity bounds are enforced at save time; totals never reject input
	for fieldID, resp := range input.Responses {
		def, ok := defs[fieldID]
		if !ok {
			continue
		}
		if resp.IsEnabled() && def.ShowQuantity {
			if err := pricing.ValidateQuantity(def, pricing.Num(resp.Quantity)); err != nil {
				return utils.BadRequestResponse(re, fmt.Sprintf("%s: %v", def.Label, err))
			}
		}
	}

	form.Set("form_responses", input.Responses)
	if input.MenCount != nil {
		form.Set("men_count", *input.MenCount)
	}
	if input.LadiesCount != nil {
		form.Set("ladies_count", *input.LadiesCount)
	}
	if input.StartTime != nil {
		form.Set("start_time", *input.StartTime)
	}
	total := pricing.EventTotal(defs, input.Responses)
	form.Set("form_total", total)

	if err := app.Save(form); err != nil {
		return utils.BadRequestResponse(re, "Failed to save responses: "+err.Error())
	}

	if err := refreshEventFormTotal(app, event); err != nil {
		return utils.InternalErrorResponse(re, "Failed to update event totals")
	}

	utils.LogFromRequest(app, re, "update", utils.CollectionEventForms, form.Id, "success",
		map[string]any{"form_total": total}, "")

	return utils.DataResponse(re, map[string]any{
		"form_id":     form.Id,
		"form_total":  total,
		"event_total": event.GetFloat("total_guest_price") + event.GetFloat("form_total"),
	})
}

// handleEventLineItems returns the priced rows across all active forms,
// ready for quote or invoice rendering.
func handleEventLineItems(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	event, err := findTenantRecord(re, app, utils.CollectionEvents, re.Request.PathValue("id"))
	if err != nil {
		return utils.NotFoundResponse(re, "Event not found")
	}

	defs, err := loadFieldDefinitions(app, event.GetString("tenant"))
	if err != nil {
		return utils.InternalErrorResponse(re, "Failed to load field library")
	}

	forms, _ := app.FindRecordsByFilter(utils.CollectionEventForms,
		"event = {:event} && active = true", "tab_order", 0, 0,
		dbx.Params{"event": event.Id})

	type formItems struct {
		FormID    string             `json:"form_id"`
		FormLabel string             `json:"form_label"`
		Items     []pricing.LineItem `json:"items"`
		Total     float64            `json:"total"`
	}
	groups := make([]formItems, 0, len(forms))
	var grand float64
	for _, f := range forms {
		var resps pricing.Responses
		if err := f.UnmarshalJSONField("form_responses", &resps); err != nil {
			continue
		}
		items := pricing.LineItems(defs, resps)
		var t float64
		for _, it := range items {
			t += it.Total
		}
		grand += t
		groups = append(groups, formItems{
			FormID:    f.Id,
			FormLabel: f.GetString("form_label"),
			Items:     items,
			Total:     t,
		})
	}

	guestTotal := pricing.GuestTotal(
		event.GetInt("men_count"), event.GetInt("ladies_count"), event.GetFloat("guest_price"))

	return utils.DataResponse(re, map[string]any{
		"forms":       groups,
		"guest_total": guestTotal,
		"form_total":  grand,
		"grand_total": guestTotal + grand,
	})
}

// --- Event Forms ---

// handleEventFormsList returns all forms attached to an event, including
// their full response maps.
func handleEventFormsList(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	event, err := findTenantRecord(re, app, utils.CollectionEvents, re.Request.PathValue("id"))
	if err != nil {
		return utils.NotFoundResponse(re, "Event not found")
	}

	forms, _ := app.FindRecordsByFilter(utils.CollectionEventForms,
		"event = {:event} && active = true", "tab_order", 0, 0,
		dbx.Params{"event": event.Id})

	items := make([]map[string]any, len(forms))
	for i, f := range forms {
		var resps pricing.Responses
		if err := f.UnmarshalJSONField("form_responses", &resps); err != nil {
			resps = pricing.Responses{}
		}
		items[i] = map[string]any{
			"id":           f.Id,
			"template":     f.GetString("template"),
			"form_label":   f.GetString("form_label"),
			"tab_order":    f.GetInt("tab_order"),
			"start_time":   f.GetString("start_time"),
			"men_count":    f.GetInt("men_count"),
			"ladies_count": f.GetInt("ladies_count"),
			"responses":    resps,
			"form_total":   f.GetFloat("form_total"),
		}
	}

	return utils.DataResponse(re, map[string]any{"items": items})
}

// handleEventFormCreate attaches a template instance to an event. The
// response map is seeded from the template's field defaults so toggled-on
// defaults price immediately.
func handleEventFormCreate(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	event, err := findTenantRecord(re, app, utils.CollectionEvents, re.Request.PathValue("id"))
	if err != nil {
		return utils.NotFoundResponse(re, "Event not found")
	}

	var input struct {
		Template  string `json:"template"`
		FormLabel string `json:"form_label"`
		TabOrder  int    `json:"tab_order"`
		StartTime string `json:"start_time"`
	}
	if err := json.NewDecoder(re.Request.Body).Decode(&input); err != nil {
		return utils.BadRequestResponse(re, "Invalid request body")
	}
	if input.Template == "" {
		return utils.BadRequestResponse(re, "template is required")
	}

	template, err := findTenantRecord(re, app, utils.CollectionFormTemplates, input.Template)
	if err != nil {
		return utils.NotFoundResponse(re, "Template not found")
	}
	if !template.GetBool("active") {
		return utils.BadRequestResponse(re, "Template is inactive")
	}

	defs, err := loadFieldDefinitions(app, event.GetString("tenant"))
	if err != nil {
		return utils.InternalErrorResponse(re, "Failed to load field library")
	}

	seeded, err := seedTemplateResponses(app, template.Id, defs)
	if err != nil {
		return utils.InternalErrorResponse(re, "Failed to seed form responses")
	}

	collection, err := app.FindCollectionByNameOrId(utils.CollectionEventForms)
	if err != nil {
		return utils.InternalErrorResponse(re, "Failed to find event forms collection")
	}

	label := input.FormLabel
	if label == "" {
		label = template.GetString("name")
	}

	form := core.NewRecord(collection)
	form.Set("event", event.Id)
	form.Set("template", template.Id)
	form.Set("form_label", label)
	form.Set("tab_order", input.TabOrder)
	form.Set("start_time", input.StartTime)
	form.Set("form_responses", seeded)
	form.Set("form_total", pricing.EventTotal(defs, seeded))
	form.Set("active", true)
	form.Set("tenant", event.GetString("tenant"))

	if err := app.Save(form); err != nil {
		return utils.BadRequestResponse(re, "Failed to create form: "+err.Error())
	}

	if err := refreshEventFormTotal(app, event); err != nil {
		return utils.InternalErrorResponse(re, "Failed to update event totals")
	}

	utils.LogFromRequest(app, re, "create", utils.CollectionEventForms, form.Id, "success", nil, "")
	return utils.DataResponse(re, map[string]any{
		"id":         form.Id,
		"form_label": label,
		"responses":  seeded,
		"form_total": form.GetFloat("form_total"),
	})
}

// handleEventFormDelete soft-deletes a form; its responses survive for audit
func handleEventFormDelete(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	form, err := findTenantRecord(re, app, utils.CollectionEventForms, re.Request.PathValue("id"))
	if err != nil {
		return utils.NotFoundResponse(re, "Form not found")
	}

	form.Set("active", false)
	if err := app.Save(form); err != nil {
		return utils.InternalErrorResponse(re, "Failed to remove form")
	}

	if event, err := app.FindRecordById(utils.CollectionEvents, form.GetString("event")); err == nil {
		refreshEventFormTotal(app, event)
	}

	return utils.SuccessResponse(re, "Form removed")
}

// --- Shared helpers ---

// loadFieldDefinitions converts the tenant's active field library records
// into the calculation structs.
func loadFieldDefinitions(app *pocketbase.PocketBase, tenant string) (map[string]pricing.FieldDefinition, error) {
	filter := "active = true"
	params := dbx.Params{}
	if tenant != "" {
		filter += " && tenant = {:tenant}"
		params["tenant"] = tenant
	}
	records, err := app.FindRecordsByFilter(utils.CollectionFieldLibrary, filter, "sort_order", 0, 0, params)
	if err != nil {
		return nil, err
	}

	defs := make(map[string]pricing.FieldDefinition, len(records))
	for _, r := range records {
		defs[r.Id] = recordToFieldDefinition(r)
	}
	return defs, nil
}

func recordToFieldDefinition(r *core.Record) pricing.FieldDefinition {
	def := pricing.FieldDefinition{
		ID:              r.Id,
		Name:            r.GetString("name"),
		Label:           r.GetString("label"),
		FieldType:       r.GetString("field_type"),
		Behavior:        pricing.Behavior(r.GetString("pricing_behavior")),
		UnitPrice:       r.GetFloat("unit_price"),
		MinQuantity:     r.GetInt("min_quantity"),
		DefaultQuantity: r.GetInt("default_quantity"),
		ShowQuantity:    r.GetBool("show_quantity_field"),
		ShowNotes:       r.GetBool("show_notes_field"),
		AllowZeroPrice:  r.GetBool("allow_zero_price"),
		Category:        r.GetString("category"),
		HelpText:        r.GetString("help_text"),
		SortOrder:       r.GetInt("sort_order"),
		Active:          r.GetBool("active"),
	}
	// Zero means unbounded in storage
	if max := r.GetInt("max_quantity"); max > 0 {
		def.MaxQuantity = utils.IntPointer(max)
	}
	var opts []pricing.DropdownOption
	if err := r.UnmarshalJSONField("dropdown_options", &opts); err == nil {
		def.DropdownOptions = opts
	}
	return def
}

// seedTemplateResponses builds the initial response map for a template by
// walking its sections and field instances in order.
func seedTemplateResponses(app *pocketbase.PocketBase, templateID string, defs map[string]pricing.FieldDefinition) (pricing.Responses, error) {
	sections, err := app.FindRecordsByFilter(utils.CollectionFormSections,
		"template = {:template}", "sort_order", 0, 0, dbx.Params{"template": templateID})
	if err != nil {
		return nil, err
	}

	seeded := pricing.Responses{}
	for _, section := range sections {
		instances, err := app.FindRecordsByFilter(utils.CollectionFormFieldInstances,
			"section = {:section}", "sort_order", 0, 0, dbx.Params{"section": section.Id})
		if err != nil {
			return nil, err
		}
		for _, inst := range instances {
			fieldID := inst.GetString("field")
			def, ok := defs[fieldID]
			if !ok {
				continue
			}
			resp := pricing.SeedResponse(def)
			if override := inst.GetString("label_override"); override != "" {
				resp.Label = override
			}
			seeded[fieldID] = resp
		}
	}
	return seeded, nil
}

// refreshGuestTotal keeps total_guest_price consistent with the head counts
func refreshGuestTotal(record *core.Record) {
	record.Set("total_guest_price", pricing.GuestTotal(
		record.GetInt("men_count"),
		record.GetInt("ladies_count"),
		record.GetFloat("guest_price"),
	))
}

// refreshEventFormTotal recalculates the event's cached form_total from its
// active forms and saves the passed record in place.
func refreshEventFormTotal(app *pocketbase.PocketBase, event *core.Record) error {
	var total float64
	err := app.DB().NewQuery(
		"SELECT COALESCE(SUM(form_total), 0) FROM event_forms WHERE event = {:event} AND active = true").
		Bind(dbx.Params{"event": event.Id}).Row(&total)
	if err != nil {
		return err
	}
	event.Set("form_total", total)
	return app.Save(event)
}

func applyEventInput(record *core.Record, input map[string]any) {
	for _, field := range []string{
		"event_type", "customer", "event_date", "event_end_date",
		"start_time", "end_time", "venue_area",
		"primary_contact_name", "primary_contact_number",
		"secondary_contact_name", "secondary_contact_number",
	} {
		if v, ok := input[field].(string); ok {
			record.Set(field, v)
		}
	}
	for _, field := range []string{"men_count", "ladies_count"} {
		if v, ok := input[field].(float64); ok {
			record.Set(field, int(v))
		}
	}
	for _, field := range []string{"guest_price", "deposit_amount"} {
		if v, ok := input[field].(float64); ok {
			record.Set(field, v)
		}
	}
}

func buildEventResponse(r *core.Record) map[string]any {
	return map[string]any{
		"id":                       r.Id,
		"title":                    r.GetString("title"),
		"event_type":               r.GetString("event_type"),
		"customer":                 r.GetString("customer"),
		"event_date":               r.GetString("event_date"),
		"event_end_date":           r.GetString("event_end_date"),
		"start_time":               r.GetString("start_time"),
		"end_time":                 r.GetString("end_time"),
		"men_count":                r.GetInt("men_count"),
		"ladies_count":             r.GetInt("ladies_count"),
		"guest_price":              r.GetFloat("guest_price"),
		"total_guest_price":        r.GetFloat("total_guest_price"),
		"form_total":               r.GetFloat("form_total"),
		"deposit_amount":           r.GetFloat("deposit_amount"),
		"primary_contact_name":     r.GetString("primary_contact_name"),
		"primary_contact_number":   r.GetString("primary_contact_number"),
		"secondary_contact_name":   r.GetString("secondary_contact_name"),
		"secondary_contact_number": r.GetString("secondary_contact_number"),
		"venue_area":               r.GetString("venue_area"),
		"external_calendar_id":     r.GetString("external_calendar_id"),
		"created":                  r.GetString("created"),
		"updated":                  r.GetString("updated"),
	}
}
