package main

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/banquethq/venue-crm/utils"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
)

// --- Customers Handlers ---

// handleCustomersList returns a paginated customers list
func handleCustomersList(re *core.RequestEvent, app *pocketbase.PocketBase) error {
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
	sort := re.Request.URL.Query().Get("sort")
	if sort == "" {
		sort = "name"
	}

	filter, params := tenantRecordFilter(tenant)
	if search != "" {
		filter = andFilter(filter, "(name ~ {:search} || email ~ {:search} || phone ~ {:search})")
		params["search"] = search
	}

	allRecords, _ := app.FindRecordsByFilter(utils.CollectionCustomers, filter, "", 0, 0, params)
	totalItems := len(allRecords)

	offset := (page - 1) * perPage
	records, err := app.FindRecordsByFilter(utils.CollectionCustomers, filter, sort, perPage, offset, params)
	if err != nil {
		records = nil
	}

	items := make([]map[string]any, len(records))
	for i, r := range records {
		items[i] = buildCustomerResponse(r)
	}

	return utils.DataResponse(re, map[string]any{
		"items":      items,
		"page":       page,
		"perPage":    perPage,
		"totalItems": totalItems,
		"totalPages": (totalItems + perPage - 1) / perPage,
	})
}

// handleCustomerGet returns a single customer along with their event history
func handleCustomerGet(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	record, err := findTenantRecord(re, app, utils.CollectionCustomers, re.Request.PathValue("id"))
	if err != nil {
		return utils.NotFoundResponse(re, "Customer not found")
	}

	result := buildCustomerResponse(record)

	events, _ := app.FindRecordsByFilter(utils.CollectionEvents,
		"customer = {:customer}", "-event_date", 50, 0,
		dbx.Params{"customer": record.Id})
	history := make([]map[string]any, len(events))
	for i, ev := range events {
		history[i] = map[string]any{
			"id":         ev.Id,
			"title":      ev.GetString("title"),
			"event_type": ev.GetString("event_type"),
			"event_date": ev.GetString("event_date"),
		}
	}
	result["events"] = history

	return utils.DataResponse(re, result)
}

// handleCustomerCreate creates a new customer
func handleCustomerCreate(re *core.RequestEvent, app *pocketbase.PocketBase) error {
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

	collection, err := app.FindCollectionByNameOrId(utils.CollectionCustomers)
	if err != nil {
		return utils.InternalErrorResponse(re, "Failed to find customers collection")
	}

	record := core.NewRecord(collection)
	record.Set("name", strings.TrimSpace(name))
	record.Set("tenant", tenant)
	applyCustomerInput(record, input)

	if err := app.Save(record); err != nil {
		return utils.BadRequestResponse(re, "Failed to create customer: "+err.Error())
	}

	utils.LogFromRequest(app, re, "create", utils.CollectionCustomers, record.Id, "success", nil, "")
	return utils.DataResponse(re, buildCustomerResponse(record))
}

// handleCustomerUpdate updates an existing customer
func handleCustomerUpdate(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	record, err := findTenantRecord(re, app, utils.CollectionCustomers, re.Request.PathValue("id"))
	if err != nil {
		return utils.NotFoundResponse(re, "Customer not found")
	}

	var input map[string]any
	if err := json.NewDecoder(re.Request.Body).Decode(&input); err != nil {
		return utils.BadRequestResponse(re, "Invalid request body")
	}

	if v, ok := input["name"].(string); ok && strings.TrimSpace(v) != "" {
		record.Set("name", strings.TrimSpace(v))
	}
	applyCustomerInput(record, input)

	if err := app.Save(record); err != nil {
		return utils.BadRequestResponse(re, "Failed to update customer: "+err.Error())
	}

	return utils.DataResponse(re, buildCustomerResponse(record))
}

// handleCustomerDelete deletes a customer. Events keep their record via the
// nullify behaviour on the relation.
func handleCustomerDelete(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	record, err := findTenantRecord(re, app, utils.CollectionCustomers, re.Request.PathValue("id"))
	if err != nil {
		return utils.NotFoundResponse(re, "Customer not found")
	}

	if err := app.Delete(record); err != nil {
		return utils.InternalErrorResponse(re, "Failed to delete customer")
	}

	return utils.SuccessResponse(re, "Customer deleted")
}

func applyCustomerInput(record *core.Record, input map[string]any) {
	if v, ok := input["email"].(string); ok {
		record.Set("email", utils.NormalizeEmail(v))
	}
	for _, field := range []string{"phone", "address", "notes"} {
		if v, ok := input[field].(string); ok {
			record.Set(field, v)
		}
	}
}

func buildCustomerResponse(r *core.Record) map[string]any {
	return map[string]any{
		"id":      r.Id,
		"name":    r.GetString("name"),
		"email":   r.GetString("email"),
		"phone":   r.GetString("phone"),
		"address": r.GetString("address"),
		"notes":   r.GetString("notes"),
		"created": r.GetString("created"),
		"updated": r.GetString("updated"),
	}
}
