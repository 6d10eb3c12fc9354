package main

import (
	"errors"
	"time"

	"github.com/banquethq/venue-crm/utils"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
)

// tenantScope returns the authenticated user's tenant id. Handlers call this
// first; an empty result for a non-superuser means a misconfigured account.
func tenantScope(re *core.RequestEvent) (string, bool) {
	tenant := utils.TenantID(re.Auth)
	if tenant == "" && re.Auth != nil && re.Auth.Collection().Name != "_superusers" {
		return "", false
	}
	return tenant, true
}

// tenantExp builds the tenant guard expression for dbx counts. Superusers
// (empty tenant) see across tenants.
func tenantExp(tenant string, expr string, params dbx.Params) dbx.Expression {
	if params == nil {
		params = dbx.Params{}
	}
	if tenant == "" {
		if expr == "" {
			return dbx.NewExp("1 = 1")
		}
		return dbx.NewExp(expr, params)
	}
	params["tenant"] = tenant
	if expr == "" {
		return dbx.NewExp("tenant = {:tenant}", params)
	}
	return dbx.NewExp("tenant = {:tenant} AND "+expr, params)
}

// tenantRecordFilter returns the base filter and params for record-API style
// queries. Superusers get an always-true filter.
func tenantRecordFilter(tenant string) (string, dbx.Params) {
	if tenant == "" {
		return "id != ''", dbx.Params{}
	}
	return "tenant = {:tenant}", dbx.Params{"tenant": tenant}
}

func andFilter(filter, clause string) string {
	return filter + " && " + clause
}

// findTenantRecord loads a record by id and enforces that it belongs to the
// requester's tenant. Superusers can reach any tenant's records.
func findTenantRecord(re *core.RequestEvent, app *pocketbase.PocketBase, collection, id string) (*core.Record, error) {
	record, err := app.FindRecordById(collection, id)
	if err != nil {
		return nil, err
	}
	tenant, ok := tenantScope(re)
	if !ok {
		return nil, errTenantMismatch
	}
	if tenant != "" && record.GetString(utils.FieldTenant) != tenant {
		return nil, errTenantMismatch
	}
	return record, nil
}

var errTenantMismatch = errors.New("record belongs to another tenant")

// handleDashboardStats returns the aggregate counts for the overview screen
func handleDashboardStats(re *core.RequestEvent, app *pocketbase.PocketBase) error {
	tenant, ok := tenantScope(re)
	if !ok {
		return utils.ForbiddenResponse(re, "User has no tenant assigned")
	}

	// Lead pipeline by status
	leadStats := map[string]int64{}
	var totalLeads int64
	for _, status := range utils.LeadStatuses {
		n, _ := app.CountRecords(utils.CollectionLeads,
			tenantExp(tenant, "status = {:status}", dbx.Params{"status": status}))
		leadStats[status] = n
		totalLeads += n
	}
	leadStats["total"] = totalLeads

	customers, _ := app.CountRecords(utils.CollectionCustomers, tenantExp(tenant, "", nil))

	today := time.Now().UTC().Format("2006-01-02")
	upcomingEvents, _ := app.CountRecords(utils.CollectionEvents,
		tenantExp(tenant, "event_date >= {:today}", dbx.Params{"today": today}))
	totalEvents, _ := app.CountRecords(utils.CollectionEvents, tenantExp(tenant, "", nil))

	// Booked value of upcoming events (guest base + form extras)
	var bookedValue float64
	query := "SELECT COALESCE(SUM(total_guest_price + form_total), 0) FROM events WHERE event_date >= {:today}"
	params := dbx.Params{"today": today}
	if tenant != "" {
		query += " AND tenant = {:tenant}"
		params["tenant"] = tenant
	}
	if err := app.DB().NewQuery(query).Bind(params).Row(&bookedValue); err != nil {
		bookedValue = 0
	}

	// Leads landed in the last 30 days
	thirtyDaysAgo := time.Now().UTC().AddDate(0, 0, -30).Format("2006-01-02 15:04:05.000Z")
	recentLeads, _ := app.CountRecords(utils.CollectionLeads,
		tenantExp(tenant, "created >= {:since}", dbx.Params{"since": thirtyDaysAgo}))

	return utils.DataResponse(re, map[string]any{
		"leads": leadStats,
		"events": map[string]int64{
			"upcoming": upcomingEvents,
			"total":    totalEvents,
		},
		"customers":    customers,
		"booked_value": bookedValue,
		"recent_leads": recentLeads,
	})
}
