// Package pricing computes the monetary contribution of dynamic form fields
// to an event total. Field definitions live in the field library; responses
// are stored as an opaque JSON map keyed by field id on the owning event
// form, so every numeric input is coerced and malformed values degrade to 0
// rather than erroring.
package pricing

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Behavior selects the pricing formula for a field.
type Behavior string

const (
	BehaviorNone          Behavior = "none"
	BehaviorFixed         Behavior = "fixed"
	BehaviorPerPerson     Behavior = "per_person"
	BehaviorQuantityBased Behavior = "quantity_based"
)

// Field types with pricing-relevant rendering. Dropdown fields carry their
// price on the selected option rather than the response.
const (
	FieldTypeToggle          = "toggle"
	FieldTypePriceNotes      = "price_notes"
	FieldTypePerPersonPrice  = "per_person_price_notes"
	FieldTypeQuantityPrice   = "quantity_price_notes"
	FieldTypeDropdownPrice   = "dropdown_price_notes"
	FieldTypeTextNotesOnly   = "text_notes_only"
)

// DropdownOption is one selectable option; priced options carry their own
// price, which must be non-negative.
type DropdownOption struct {
	Label string  `json:"label"`
	Value string  `json:"value"`
	Price float64 `json:"price,omitempty"`
}

// FieldDefinition is a reusable, pricing-capable form field from the field
// library. It is referenced (never copied) by form field instances.
type FieldDefinition struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Label           string           `json:"label"`
	FieldType       string           `json:"field_type"`
	Behavior        Behavior         `json:"pricing_behavior"`
	UnitPrice       float64          `json:"unit_price"`
	MinQuantity     int              `json:"min_quantity"`
	MaxQuantity     *int             `json:"max_quantity,omitempty"` // nil = unbounded
	DefaultQuantity int              `json:"default_quantity"`
	ShowQuantity    bool             `json:"show_quantity_field"`
	ShowNotes       bool             `json:"show_notes_field"`
	AllowZeroPrice  bool             `json:"allow_zero_price"`
	Category        string           `json:"category,omitempty"`
	DropdownOptions []DropdownOption `json:"dropdown_options,omitempty"`
	HelpText        string           `json:"help_text,omitempty"`
	SortOrder       int              `json:"sort_order"`
	Active          bool             `json:"active"`
}

// IsDropdownPriced reports whether the price comes from the selected dropdown
// option instead of the response.
func (d FieldDefinition) IsDropdownPriced() bool {
	return d.FieldType == FieldTypeDropdownPrice
}

// OptionPrice returns the price of the option with the given value, or 0 when
// the option is unknown.
func (d FieldDefinition) OptionPrice(value string) float64 {
	for _, opt := range d.DropdownOptions {
		if opt.Value == value {
			return opt.Price
		}
	}
	return 0
}

// Response is the captured per-event value for one field. Price and Quantity
// are untyped because the persisted JSON blob may hold numbers, numeric
// strings, or garbage from older clients; Num coerces them at calculation
// time. Enabled is a pointer so that "absent" and "explicitly off" survive a
// round trip; toggling a field off retains price/quantity/notes.
type Response struct {
	Value          any    `json:"value,omitempty"`
	Quantity       any    `json:"quantity,omitempty"`
	Price          any    `json:"price,omitempty"`
	Notes          string `json:"notes,omitempty"`
	Enabled        *bool  `json:"enabled,omitempty"`
	SelectedOption string `json:"selectedOption,omitempty"`
	Label          string `json:"label,omitempty"`
}

// IsEnabled reports whether the response is explicitly switched on.
func (r Response) IsEnabled() bool {
	return r.Enabled != nil && *r.Enabled
}

// isDisabled reports an explicit off state, which zeroes the contribution
// regardless of any stored price or quantity.
func (r Response) isDisabled() bool {
	return r.Enabled != nil && !*r.Enabled
}

// Responses is the full per-form response map keyed by field id. It is
// persisted as a single JSON blob and only ever superseded by a full-map
// overwrite on save.
type Responses map[string]Response

// Num coerces an arbitrary JSON-decoded value to a float64. Anything that
// fails to parse, including NaN and infinities, becomes 0 so a malformed
// response can never poison an event total.
func Num(v any) float64 {
	var f float64
	switch t := v.(type) {
	case nil:
		return 0
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		f = parsed
	case bool:
		return 0
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// FieldTotal returns the monetary contribution of one field. It never errors:
// pricing_behavior none is always 0, disabled responses are always 0, and
// malformed numerics coerce to 0. Quantity bounds are a save-time concern
// (ValidateQuantity); the stored quantity is trusted here.
func FieldTotal(def FieldDefinition, resp Response) float64 {
	if resp.isDisabled() {
		return 0
	}

	if def.IsDropdownPriced() {
		if resp.SelectedOption == "" {
			return 0
		}
		return def.OptionPrice(resp.SelectedOption)
	}

	switch def.Behavior {
	case BehaviorFixed:
		if !resp.IsEnabled() {
			return 0
		}
		return Num(resp.Price)
	case BehaviorPerPerson, BehaviorQuantityBased:
		if !resp.IsEnabled() {
			return 0
		}
		return Num(resp.Quantity) * Num(resp.Price)
	}

	// BehaviorNone and anything unrecognised.
	return 0
}

// EventTotal sums FieldTotal over every response. Responses without a known
// field definition contribute 0. Addition is commutative, so the map
// iteration order never affects the result.
func EventTotal(defs map[string]FieldDefinition, resps Responses) float64 {
	var total float64
	for fieldID, resp := range resps {
		def, ok := defs[fieldID]
		if !ok {
			continue
		}
		total += FieldTotal(def, resp)
	}
	return total
}

// GuestTotal is the guest-based base price kept separate from the form total:
// headcount times the per-head price.
func GuestTotal(men, ladies int, perHead float64) float64 {
	if men < 0 {
		men = 0
	}
	if ladies < 0 {
		ladies = 0
	}
	return float64(men+ladies) * perHead
}

// ValidateQuantity enforces the field's quantity bounds. This runs at the
// input boundary (the form save handler); FieldTotal deliberately does not
// re-validate.
func ValidateQuantity(def FieldDefinition, quantity float64) error {
	if quantity < float64(def.MinQuantity) {
		return fmt.Errorf("quantity %v below minimum %d for field %q", quantity, def.MinQuantity, def.Label)
	}
	if def.MaxQuantity != nil && quantity > float64(*def.MaxQuantity) {
		return fmt.Errorf("quantity %v above maximum %d for field %q", quantity, *def.MaxQuantity, def.Label)
	}
	return nil
}

// SeedResponse builds the initial response for a field: the definition's unit
// price and default quantity only seed the starting values, they are not
// re-applied afterwards.
func SeedResponse(def FieldDefinition) Response {
	resp := Response{Label: def.Label}
	if def.Behavior != BehaviorNone && !def.IsDropdownPriced() {
		resp.Price = def.UnitPrice
	}
	if def.ShowQuantity {
		qty := def.DefaultQuantity
		if qty < def.MinQuantity {
			qty = def.MinQuantity
		}
		resp.Quantity = qty
	}
	return resp
}
