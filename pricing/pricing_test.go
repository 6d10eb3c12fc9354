package pricing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }

func fixedField() FieldDefinition {
	return FieldDefinition{
		ID:        "f1",
		Label:     "Fruit Table",
		FieldType: FieldTypeToggle,
		Behavior:  BehaviorFixed,
		UnitPrice: 15,
		Active:    true,
	}
}

func perPersonField() FieldDefinition {
	return FieldDefinition{
		ID:           "f2",
		Label:        "Welcome Drinks",
		FieldType:    FieldTypePerPersonPrice,
		Behavior:     BehaviorPerPerson,
		ShowQuantity: true,
		MinQuantity:  1,
		Active:       true,
	}
}

func quantityField() FieldDefinition {
	return FieldDefinition{
		ID:           "f3",
		Label:        "Top Up Lamb",
		FieldType:    FieldTypeQuantityPrice,
		Behavior:     BehaviorQuantityBased,
		ShowQuantity: true,
		MinQuantity:  0,
		MaxQuantity:  intPtr(10),
		Active:       true,
	}
}

func dropdownField() FieldDefinition {
	return FieldDefinition{
		ID:        "f4",
		Label:     "Starter",
		FieldType: FieldTypeDropdownPrice,
		Behavior:  BehaviorFixed,
		DropdownOptions: []DropdownOption{
			{Label: "Soup", Value: "soup", Price: 4.50},
			{Label: "Mixed Grill", Value: "mixed_grill", Price: 8},
		},
		Active: true,
	}
}

func TestFieldTotal_NoneAlwaysZero(t *testing.T) {
	def := FieldDefinition{ID: "n1", Label: "Notes", Behavior: BehaviorNone}

	responses := []Response{
		{},
		{Enabled: boolPtr(true), Price: 99.0, Quantity: 5},
		{Enabled: boolPtr(true), Price: "garbage", Quantity: "more garbage"},
		{Price: map[string]any{"nested": true}},
	}
	for _, resp := range responses {
		assert.Zero(t, FieldTotal(def, resp))
	}
}

func TestFieldTotal_Fixed(t *testing.T) {
	def := fixedField()

	assert.Equal(t, 15.0, FieldTotal(def, Response{Enabled: boolPtr(true), Price: 15.0}))
	assert.Zero(t, FieldTotal(def, Response{Enabled: boolPtr(false), Price: 15.0}))
	// No enabled flag at all: toggle-gated variants require an explicit on.
	assert.Zero(t, FieldTotal(def, Response{Price: 15.0}))
	// The response price wins over the definition's unit price; the latter
	// only seeds the initial value.
	assert.Equal(t, 20.0, FieldTotal(def, Response{Enabled: boolPtr(true), Price: 20.0}))
}

func TestFieldTotal_QuantityBased(t *testing.T) {
	def := quantityField()

	cases := []struct {
		name string
		resp Response
		want float64
	}{
		{"ints", Response{Enabled: boolPtr(true), Quantity: 3, Price: 10.0}, 30},
		{"numeric strings", Response{Enabled: boolPtr(true), Quantity: "3", Price: "10"}, 30},
		{"garbage price", Response{Enabled: boolPtr(true), Quantity: 3, Price: "abc"}, 0},
		{"garbage quantity", Response{Enabled: boolPtr(true), Quantity: "abc", Price: 10.0}, 0},
		{"disabled keeps values but contributes nothing", Response{Enabled: boolPtr(false), Quantity: 3, Price: 10.0}, 0},
		{"missing quantity", Response{Enabled: boolPtr(true), Price: 10.0}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FieldTotal(def, tc.resp))
		})
	}
}

func TestFieldTotal_PerPerson(t *testing.T) {
	def := perPersonField()
	assert.Equal(t, 250.0, FieldTotal(def, Response{Enabled: boolPtr(true), Quantity: 100, Price: 2.50}))
}

func TestFieldTotal_DropdownOption(t *testing.T) {
	def := dropdownField()

	assert.Equal(t, 4.50, FieldTotal(def, Response{SelectedOption: "soup"}))
	assert.Equal(t, 8.0, FieldTotal(def, Response{SelectedOption: "mixed_grill"}))
	assert.Zero(t, FieldTotal(def, Response{}))
	assert.Zero(t, FieldTotal(def, Response{SelectedOption: "unknown"}))
	// Explicitly disabled zeroes even a selected option.
	assert.Zero(t, FieldTotal(def, Response{SelectedOption: "soup", Enabled: boolPtr(false)}))
}

func TestFieldTotal_DisableReenableRestoresTotal(t *testing.T) {
	def := fixedField()
	resp := Response{Enabled: boolPtr(true), Price: 15.0, Notes: "extra large"}

	require.Equal(t, 15.0, FieldTotal(def, resp))

	resp.Enabled = boolPtr(false)
	require.Zero(t, FieldTotal(def, resp))
	// Values are retained while disabled.
	assert.Equal(t, 15.0, Num(resp.Price))
	assert.Equal(t, "extra large", resp.Notes)

	resp.Enabled = boolPtr(true)
	assert.Equal(t, 15.0, FieldTotal(def, resp))
}

func TestEventTotal_OrderIndependent(t *testing.T) {
	defs := map[string]FieldDefinition{
		"f1": fixedField(),
		"f2": perPersonField(),
		"f3": quantityField(),
		"f4": dropdownField(),
	}
	resps := Responses{
		"f1": {Enabled: boolPtr(true), Price: 15.0},
		"f2": {Enabled: boolPtr(true), Quantity: 100, Price: 2.50},
		"f3": {Enabled: boolPtr(true), Quantity: 3, Price: 10.0},
		"f4": {SelectedOption: "soup"},
	}

	want := 15.0 + 250 + 30 + 4.50
	// Maps iterate in randomised order; repeated evaluation exercises
	// different orders and must always agree.
	for i := 0; i < 50; i++ {
		assert.Equal(t, want, EventTotal(defs, resps))
	}
}

func TestEventTotal_UnknownFieldIgnored(t *testing.T) {
	defs := map[string]FieldDefinition{"f1": fixedField()}
	resps := Responses{
		"f1":      {Enabled: boolPtr(true), Price: 15.0},
		"deleted": {Enabled: boolPtr(true), Price: 1000.0},
	}
	assert.Equal(t, 15.0, EventTotal(defs, resps))
}

func TestNum_Coercion(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{nil, 0},
		{10.0, 10},
		{3, 3},
		{int64(7), 7},
		{"10", 10},
		{" 12.5 ", 12.5},
		{"abc", 0},
		{"", 0},
		{true, 0},
		{json.Number("42.5"), 42.5},
		{json.Number("bogus"), 0},
		{[]any{1, 2}, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Num(tc.in), "Num(%#v)", tc.in)
	}
}

func TestNum_RoundTripThroughJSON(t *testing.T) {
	// The persisted blob decodes into map[string]any; make sure responses
	// survive that representation.
	raw := `{"enabled":true,"quantity":"3","price":10,"notes":"n"}`
	var resp Response
	require.NoError(t, json.Unmarshal([]byte(raw), &resp))

	assert.Equal(t, 30.0, FieldTotal(quantityField(), resp))
}

func TestGuestTotal(t *testing.T) {
	assert.Equal(t, 3000.0, GuestTotal(120, 80, 15))
	assert.Zero(t, GuestTotal(0, 0, 15))
	assert.Equal(t, 150.0, GuestTotal(-5, 10, 15))
}

func TestValidateQuantity(t *testing.T) {
	def := quantityField() // min 0, max 10

	assert.NoError(t, ValidateQuantity(def, 0))
	assert.NoError(t, ValidateQuantity(def, 10))
	assert.Error(t, ValidateQuantity(def, -1))
	assert.Error(t, ValidateQuantity(def, 11))

	unbounded := perPersonField() // min 1, no max
	assert.NoError(t, ValidateQuantity(unbounded, 100000))
	assert.Error(t, ValidateQuantity(unbounded, 0))
}

func TestSeedResponse(t *testing.T) {
	def := quantityField()
	def.UnitPrice = 12.5
	def.DefaultQuantity = 2

	resp := SeedResponse(def)
	assert.Equal(t, 12.5, Num(resp.Price))
	assert.Equal(t, 2.0, Num(resp.Quantity))
	assert.Equal(t, def.Label, resp.Label)
	assert.False(t, resp.IsEnabled())

	// Dropdown fields price on the option, so nothing is seeded.
	dd := SeedResponse(dropdownField())
	assert.Nil(t, dd.Price)
}

func TestLineItems(t *testing.T) {
	defs := map[string]FieldDefinition{
		"f1": fixedField(),
		"f3": quantityField(),
		"f4": dropdownField(),
	}
	defs["f1"] = func() FieldDefinition { d := defs["f1"]; d.SortOrder = 2; return d }()
	defs["f3"] = func() FieldDefinition { d := defs["f3"]; d.SortOrder = 1; return d }()

	resps := Responses{
		"f1": {Enabled: boolPtr(true), Price: 15.0},
		"f3": {Enabled: boolPtr(true), Quantity: 3, Price: 10.0, Notes: "well done"},
		"f4": {SelectedOption: "soup"},
		// Enabled at zero price with notes still appears on the document.
		"f5": {Enabled: boolPtr(true), Notes: "no charge"},
	}
	defs["f5"] = FieldDefinition{ID: "f5", Label: "Cake Stand", FieldType: FieldTypeToggle, Behavior: BehaviorFixed}

	items := LineItems(defs, resps)
	require.Len(t, items, 4)

	// Sorted by field sort order (f5=0, f3=1, f1=2, f4=0-by-label).
	assert.Equal(t, "Cake Stand", items[0].Label)
	assert.Equal(t, "Starter", items[1].Label)
	assert.Equal(t, "Top Up Lamb", items[2].Label)
	assert.Equal(t, 30.0, items[2].Total)
	assert.Equal(t, "Fruit Table", items[3].Label)
}
