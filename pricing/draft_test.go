package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraft_SetAndTotal(t *testing.T) {
	defs := map[string]FieldDefinition{
		"f1": fixedField(),
		"f3": quantityField(),
	}
	d := NewDraft(defs, nil)
	assert.False(t, d.Dirty())
	assert.Zero(t, d.Total())

	d.Set("f1", Response{Enabled: boolPtr(true), Price: 15.0})
	d.Set("f3", Response{Enabled: boolPtr(true), Quantity: 3, Price: 10.0})
	assert.True(t, d.Dirty())
	assert.Equal(t, 45.0, d.Total())
}

func TestDraft_ToggleRetainsValues(t *testing.T) {
	defs := map[string]FieldDefinition{"f3": quantityField()}
	d := NewDraft(defs, Responses{
		"f3": {Enabled: boolPtr(true), Quantity: 3, Price: 10.0, Notes: "keep me"},
	})
	require.Equal(t, 30.0, d.Total())

	d.Toggle("f3", false)
	assert.Zero(t, d.Total())

	resp, ok := d.Get("f3")
	require.True(t, ok)
	assert.Equal(t, 10.0, Num(resp.Price))
	assert.Equal(t, 3.0, Num(resp.Quantity))
	assert.Equal(t, "keep me", resp.Notes)

	d.Toggle("f3", true)
	assert.Equal(t, 30.0, d.Total())
}

func TestDraft_CommitOverwritesFullMap(t *testing.T) {
	defs := map[string]FieldDefinition{
		"f1": fixedField(),
		"f3": quantityField(),
	}
	d := NewDraft(defs, Responses{
		"f1": {Enabled: boolPtr(true), Price: 15.0},
	})

	d.Set("f3", Response{Enabled: boolPtr(true), Quantity: 2, Price: 5.0})
	out := d.Commit()

	// Commit returns the merged full map, not just the edits.
	require.Len(t, out, 2)
	assert.Equal(t, 15.0, Num(out["f1"].Price))
	assert.Equal(t, 2.0, Num(out["f3"].Quantity))
	assert.False(t, d.Dirty())

	// Mutating the returned map must not leak into the draft.
	out["f1"] = Response{Enabled: boolPtr(true), Price: 999.0}
	assert.Equal(t, 25.0, d.Total())
}

func TestDraft_EditsShadowCommitted(t *testing.T) {
	defs := map[string]FieldDefinition{"f1": fixedField()}
	d := NewDraft(defs, Responses{
		"f1": {Enabled: boolPtr(true), Price: 15.0},
	})

	d.Set("f1", Response{Enabled: boolPtr(true), Price: 18.0})
	assert.Equal(t, 18.0, d.Total())

	resp, _ := d.Get("f1")
	assert.Equal(t, 18.0, Num(resp.Price))
}
