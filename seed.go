package main

import (
	"fmt"
	"log"

	"github.com/banquethq/venue-crm/pricing"
	"github.com/banquethq/venue-crm/utils"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
)

// starterFields is the field library a fresh venue starts from. Prices are
// placeholders the venue edits; the shapes cover every pricing behavior.
var starterFields = []pricing.FieldDefinition{
	{
		Name: "welcome_drinks", Label: "Welcome Drinks",
		FieldType: pricing.FieldTypePerPersonPrice, Behavior: pricing.BehaviorPerPerson,
		UnitPrice: 4.50, ShowQuantity: true, ShowNotes: true,
		Category: "Drinks", SortOrder: 10,
	},
	{
		Name: "table_centrepieces", Label: "Table Centrepieces",
		FieldType: pricing.FieldTypeQuantityPrice, Behavior: pricing.BehaviorQuantityBased,
		UnitPrice: 25, MinQuantity: 1, DefaultQuantity: 10,
		ShowQuantity: true, ShowNotes: true,
		Category: "Decor", SortOrder: 20,
	},
	{
		Name: "dance_floor", Label: "LED Dance Floor",
		FieldType: pricing.FieldTypePriceNotes, Behavior: pricing.BehaviorFixed,
		UnitPrice: 350, ShowNotes: true,
		Category: "Entertainment", SortOrder: 30,
	},
	{
		Name: "dj_package", Label: "DJ Package",
		FieldType: pricing.FieldTypeDropdownPrice, Behavior: pricing.BehaviorFixed,
		ShowNotes: true, Category: "Entertainment", SortOrder: 40,
		DropdownOptions: []pricing.DropdownOption{
			{Label: "4 hours", Value: "4h", Price: 400},
			{Label: "6 hours", Value: "6h", Price: 550},
			{Label: "Full day", Value: "full", Price: 750},
		},
	},
	{
		Name: "cake_table", Label: "Cake Table Setup",
		FieldType: pricing.FieldTypeToggle, Behavior: pricing.BehaviorFixed,
		UnitPrice: 45, Category: "Decor", SortOrder: 50,
	},
	{
		Name: "chair_covers", Label: "Chair Covers",
		FieldType: pricing.FieldTypeQuantityPrice, Behavior: pricing.BehaviorQuantityBased,
		UnitPrice: 3, MinQuantity: 10, DefaultQuantity: 100,
		MaxQuantity: utils.IntPointer(600),
		ShowQuantity: true, Category: "Decor", SortOrder: 60,
	},
	{
		Name: "dietary_requirements", Label: "Dietary Requirements",
		FieldType: pricing.FieldTypeTextNotesOnly, Behavior: pricing.BehaviorNone,
		ShowNotes: true, Category: "Catering", SortOrder: 70,
	},
	{
		Name: "kids_meals", Label: "Kids Meals",
		FieldType: pricing.FieldTypePerPersonPrice, Behavior: pricing.BehaviorPerPerson,
		UnitPrice: 12, ShowQuantity: true, ShowNotes: true, AllowZeroPrice: true,
		Category: "Catering", SortOrder: 80,
	},
}

// seedFieldLibrary inserts the starter field library for a tenant, skipping
// names that already exist so re-running is safe.
func seedFieldLibrary(app *pocketbase.PocketBase, tenantID string) (int, error) {
	if _, err := app.FindRecordById(utils.CollectionTenants, tenantID); err != nil {
		return 0, fmt.Errorf("tenant %s not found: %w", tenantID, err)
	}

	collection, err := app.FindCollectionByNameOrId(utils.CollectionFieldLibrary)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, def := range starterFields {
		existing, _ := app.FindRecordsByFilter(utils.CollectionFieldLibrary,
			"tenant = {:tenant} && name = {:name}", "", 1, 0,
			dbx.Params{"tenant": tenantID, "name": def.Name})
		if len(existing) > 0 {
			continue
		}

		record := core.NewRecord(collection)
		record.Set("name", def.Name)
		record.Set("label", def.Label)
		record.Set("field_type", def.FieldType)
		record.Set("pricing_behavior", string(def.Behavior))
		record.Set("unit_price", def.UnitPrice)
		record.Set("min_quantity", def.MinQuantity)
		if def.MaxQuantity != nil {
			record.Set("max_quantity", *def.MaxQuantity)
		}
		record.Set("default_quantity", def.DefaultQuantity)
		record.Set("show_quantity_field", def.ShowQuantity)
		record.Set("show_notes_field", def.ShowNotes)
		record.Set("allow_zero_price", def.AllowZeroPrice)
		record.Set("category", def.Category)
		record.Set("sort_order", def.SortOrder)
		record.Set("active", true)
		record.Set("tenant", tenantID)
		if len(def.DropdownOptions) > 0 {
			record.Set("dropdown_options", def.DropdownOptions)
		}

		if err := app.Save(record); err != nil {
			return created, fmt.Errorf("seed %s: %w", def.Name, err)
		}
		created++
		log.Printf("[Seed] Created field %s", def.Name)
	}

	return created, nil
}
