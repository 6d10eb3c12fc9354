package main

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/banquethq/venue-crm/utils"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
)

// --- Leads Handlers ---

// handleLeadsList returns a paginated leads list
func handleLeadsList(re *core.RequestEvent, app *pocketbase.PocketBase) error {
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
	status := re.Request.URL.Query().Get("status")
	sort := re.Request.URL.Query().Get("sort")
	if sort == "" {
		sort = "-created"
	}

	filter, params := tenantRecordFilter(tenant)
	if status != "" {
		filter = andFilter(filter, "status = {:status}")
		params["status"] = status
	}
	if search != "" {
		filter = andFilter(filter, "(name ~ {:search} || email ~ {:search} || company ~ {:search})")
		params["search"] = search
	}

	allRecords, _ := app.FindRecordsByFilter(utils.CollectionLeads, filter, "", 0, 0, params)
	totalItems := len(allRecords)

	offset := (page - 1) * perPage
	records, err := app.FindRecordsByFilter(utils.CollectionLeads, filter, sort, perPage, offset, params)
	if err != nil {
		records = nil
	}

	items := make([]map[string]any, len(records))
	for i, r := range records {
		items[i] = buildLeadResponse(r)
	}

	totalPages := (totalItems + perPage - 1) / perPage

	return utils.DataResponse(re, map[string]any{
		"items":      items,
		"page":       page,
		"perPage":    perPage,
		"totalItems": totalItems,
		"totalPages": totalPages,
	})
}

// handleLeadGet returns a single lead by ID
func handleLeadGet(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	record, err := findTenantRecord(re, app, utils.CollectionLeads, re.Request.PathValue("id"))
	if err != nil {
		return utils.NotFoundResponse(re, "Lead not found")
	}
	return utils.DataResponse(re, buildLeadResponse(record))
}

// handleLeadCreate creates a new lead
func handleLeadCreate(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	tenant, ok := tenantScope(re)
	if !ok {
		return utils.ForbiddenResponse(re, "User has no tenant assigned")
	}

	var input map[string]any
	if err := json.NewDecoder(re.Request.Body).Decode(&input); err != nil {
		return utils.BadRequestResponse(re, "Invalid request body")
	}

	name, _ := input["name"].(string)
	if strings.TrimSpace(name) == "" {
		return utils.BadRequestResponse(re, "Name is required")
	}

	collection, err := app.FindCollectionByNameOrId(utils.CollectionLeads)
	if err != nil {
		return utils.InternalErrorResponse(re, "Failed to find leads collection")
	}

	record := core.NewRecord(collection)
	record.Set("name", strings.TrimSpace(name))
	record.Set("status", "new")
	record.Set("tenant", tenant)

	if v, ok := input["email"].(string); ok {
		record.Set("email", utils.NormalizeEmail(v))
	}
	for _, field := range []string{"phone", "company", "event_type", "event_date", "source", "priority", "notes"} {
		if v, ok := input[field].(string); ok {
			record.Set(field, v)
		}
	}
	if v, ok := input["estimated_guests"].(float64); ok {
		record.Set("estimated_guests", int(v))
	}
	if v, ok := input["estimated_budget"].(float64); ok {
		record.Set("estimated_budget", v)
	}
	if v, ok := input["status"].(string); ok && v != "" {
		record.Set("status", v)
	}

	if err := app.Save(record); err != nil {
		return utils.BadRequestResponse(re, "Failed to create lead: "+err.Error())
	}

	utils.LogFromRequest(app, re, "create", utils.CollectionLeads, record.Id, "success", nil, "")
	return utils.DataResponse(re, buildLeadResponse(record))
}

// handleLeadUpdate updates an existing lead
func handleLeadUpdate(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	record, err := findTenantRecord(re, app, utils.CollectionLeads, re.Request.PathValue("id"))
	if err != nil {
		return utils.NotFoundResponse(re, "Lead not found")
	}

	var input map[string]any
	if err := json.NewDecoder(re.Request.Body).Decode(&input); err != nil {
		return utils.BadRequestResponse(re, "Invalid request body")
	}

	for _, field := range []string{
		"name", "phone", "company", "event_type", "event_date",
		"source", "priority", "notes", "lost_reason",
	} {
		if v, ok := input[field].(string); ok {
			record.Set(field, v)
		}
	}
	if v, ok := input["email"].(string); ok {
		record.Set("email", utils.NormalizeEmail(v))
	}
	if v, ok := input["estimated_guests"].(float64); ok {
		record.Set("estimated_guests", int(v))
	}
	if v, ok := input["estimated_budget"].(float64); ok {
		record.Set("estimated_budget", v)
	}
	if v, ok := input["status"].(string); ok && v != "" {
		record.Set("status", v)
		// Losing a lead needs a reason to make the pipeline report useful
		if v == "lost" {
			if reason, _ := input["lost_reason"].(string); reason == "" && record.GetString("lost_reason") == "" {
				return utils.BadRequestResponse(re, "lost_reason is required when marking a lead lost")
			}
		}
	}

	if err := app.Save(record); err != nil {
		return utils.BadRequestResponse(re, "Failed to update lead: "+err.Error())
	}

	return utils.DataResponse(re, buildLeadResponse(record))
}

// handleLeadDelete deletes a lead
func handleLeadDelete(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	record, err := findTenantRecord(re, app, utils.CollectionLeads, re.Request.PathValue("id"))
	if err != nil {
		return utils.NotFoundResponse(re, "Lead not found")
	}

	if err := app.Delete(record); err != nil {
		return utils.InternalErrorResponse(re, "Failed to delete lead")
	}

	return utils.SuccessResponse(re, "Lead deleted")
}

// handleLeadConvert converts a lead into a customer and a provisional event.
// The lead is marked won and keeps a pointer to the created customer.
func handleLeadConvert(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	lead, err := findTenantRecord(re, app, utils.CollectionLeads, re.Request.PathValue("id"))
	if err != nil {
		return utils.NotFoundResponse(re, "Lead not found")
	}

	if lead.GetString("converted_customer") != "" {
		return utils.BadRequestResponse(re, "Lead has already been converted")
	}

	var input struct {
		EventTitle string `json:"event_title"`
		EventDate  string `json:"event_date"`
	}
	if re.Request.Body != nil {
		json.NewDecoder(re.Request.Body).Decode(&input)
	}

	customersCollection, err := app.FindCollectionByNameOrId(utils.CollectionCustomers)
	if err != nil {
		return utils.InternalErrorResponse(re, "Failed to find customers collection")
	}
	eventsCollection, err := app.FindCollectionByNameOrId(utils.CollectionEvents)
	if err != nil {
		return utils.InternalErrorResponse(re, "Failed to find events collection")
	}

	tenant := lead.GetString("tenant")

	var customer *core.Record
	var event *core.Record

	// Customer + event + lead status move together or not at all
	txErr := app.RunInTransaction(func(txApp core.App) error {
		customer = core.NewRecord(customersCollection)
		customer.Set("name", lead.GetString("name"))
		customer.Set("email", lead.GetString("email"))
		customer.Set("phone", lead.GetString("phone"))
		customer.Set("tenant", tenant)
		if err := txApp.Save(customer); err != nil {
			return err
		}

		eventDate := input.EventDate
		if eventDate == "" {
			eventDate = lead.GetString("event_date")
		}
		if eventDate != "" {
			title := input.EventTitle
			if title == "" {
				title = lead.GetString("name") + " " + lead.GetString("event_type")
			}
			event = core.NewRecord(eventsCollection)
			event.Set("title", strings.TrimSpace(title))
			event.Set("event_type", lead.GetString("event_type"))
			event.Set("customer", customer.Id)
			event.Set("event_date", eventDate)
			event.Set("primary_contact_name", lead.GetString("name"))
			event.Set("primary_contact_number", lead.GetString("phone"))
			event.Set("tenant", tenant)
			if err := txApp.Save(event); err != nil {
				return err
			}
		}

		lead.Set("status", "won")
		lead.Set("converted_customer", customer.Id)
		lead.Set("conversion_date", time.Now().UTC().Format("2006-01-02 15:04:05.000Z"))
		return txApp.Save(lead)
	})
	if txErr != nil {
		return utils.BadRequestResponse(re, "Failed to convert lead: "+txErr.Error())
	}

	utils.LogFromRequest(app, re, "update", utils.CollectionLeads, lead.Id, "success",
		map[string]any{"converted_customer": customer.Id}, "")

	result := map[string]any{
		"lead":     buildLeadResponse(lead),
		"customer": map[string]any{"id": customer.Id, "name": customer.GetString("name")},
	}
	if event != nil {
		result["event"] = map[string]any{"id": event.Id, "title": event.GetString("title")}
	}
	return utils.DataResponse(re, result)
}

// buildLeadResponse shapes a lead record for API output
func buildLeadResponse(r *core.Record) map[string]any {
	return map[string]any{
		"id":                 r.Id,
		"name":               r.GetString("name"),
		"email":              r.GetString("email"),
		"phone":              r.GetString("phone"),
		"company":            r.GetString("company"),
		"event_type":         r.GetString("event_type"),
		"event_date":         r.GetString("event_date"),
		"estimated_guests":   r.GetInt("estimated_guests"),
		"estimated_budget":   r.GetFloat("estimated_budget"),
		"source":             r.GetString("source"),
		"status":             r.GetString("status"),
		"priority":           r.GetString("priority"),
		"notes":              r.GetString("notes"),
		"lost_reason":        r.GetString("lost_reason"),
		"converted_customer": r.GetString("converted_customer"),
		"conversion_date":    r.GetString("conversion_date"),
		"created":            r.GetString("created"),
		"updated":            r.GetString("updated"),
	}
}
