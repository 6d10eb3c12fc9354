package pricing

import "sort"

// LineItem is one row of the computed quote/invoice list. The document
// renderer consumes these; byte-level PDF/Word generation happens elsewhere.
type LineItem struct {
	FieldID   string  `json:"field_id"`
	Label     string  `json:"label"`
	Quantity  float64 `json:"quantity,omitempty"`
	UnitPrice float64 `json:"unit_price,omitempty"`
	Total     float64 `json:"total"`
	Notes     string  `json:"notes,omitempty"`
}

// LineItems builds the contributing rows for a response map, ordered by the
// field library sort order then label. Fields contributing 0 are included
// only when explicitly enabled with notes, so "free but confirmed" extras
// still appear on the document.
func LineItems(defs map[string]FieldDefinition, resps Responses) []LineItem {
	items := make([]LineItem, 0, len(resps))
	for fieldID, resp := range resps {
		def, ok := defs[fieldID]
		if !ok {
			continue
		}

		total := FieldTotal(def, resp)
		if total == 0 && !(resp.IsEnabled() && resp.Notes != "") {
			continue
		}

		label := resp.Label
		if label == "" {
			label = def.Label
		}

		item := LineItem{
			FieldID: fieldID,
			Label:   label,
			Total:   total,
			Notes:   resp.Notes,
		}
		switch {
		case def.IsDropdownPriced():
			item.UnitPrice = total
		case def.Behavior == BehaviorPerPerson || def.Behavior == BehaviorQuantityBased:
			item.Quantity = Num(resp.Quantity)
			item.UnitPrice = Num(resp.Price)
		case def.Behavior == BehaviorFixed:
			item.UnitPrice = Num(resp.Price)
		}
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool {
		di, dj := defs[items[i].FieldID], defs[items[j].FieldID]
		if di.SortOrder != dj.SortOrder {
			return di.SortOrder < dj.SortOrder
		}
		return items[i].Label < items[j].Label
	})
	return items
}
