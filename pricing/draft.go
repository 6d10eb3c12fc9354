package pricing

// Draft is the in-memory working copy of a form's response map. Edits
// accumulate on top of the last committed state; Commit produces the full map
// used to overwrite the persisted blob. This keeps the "optimistic local
// edits, explicit save" flow out of handler code.
type Draft struct {
	defs      map[string]FieldDefinition
	committed Responses
	edits     Responses
}

// NewDraft starts a draft over the committed response map. A nil map is
// treated as empty.
func NewDraft(defs map[string]FieldDefinition, committed Responses) *Draft {
	base := make(Responses, len(committed))
	for id, resp := range committed {
		base[id] = resp
	}
	return &Draft{
		defs:      defs,
		committed: base,
		edits:     make(Responses),
	}
}

// Get returns the current (edited or committed) response for a field.
func (d *Draft) Get(fieldID string) (Response, bool) {
	if resp, ok := d.edits[fieldID]; ok {
		return resp, true
	}
	resp, ok := d.committed[fieldID]
	return resp, ok
}

// Set replaces the draft response for a field.
func (d *Draft) Set(fieldID string, resp Response) {
	d.edits[fieldID] = resp
}

// Toggle flips the enabled flag while retaining price, quantity and notes, so
// re-enabling a field restores its previous values untouched.
func (d *Draft) Toggle(fieldID string, enabled bool) {
	resp, _ := d.Get(fieldID)
	resp.Enabled = &enabled
	d.edits[fieldID] = resp
}

// Dirty reports whether the draft holds uncommitted edits.
func (d *Draft) Dirty() bool {
	return len(d.edits) > 0
}

// Total computes the live form total over the draft state.
func (d *Draft) Total() float64 {
	return EventTotal(d.defs, d.snapshot())
}

// Commit folds the edits into the committed state and returns the full
// response map for persistence. The caller overwrites the stored blob with
// it; individual responses are never deleted, only superseded.
func (d *Draft) Commit() Responses {
	merged := d.snapshot()
	d.committed = merged
	d.edits = make(Responses)

	out := make(Responses, len(merged))
	for id, resp := range merged {
		out[id] = resp
	}
	return out
}

func (d *Draft) snapshot() Responses {
	merged := make(Responses, len(d.committed)+len(d.edits))
	for id, resp := range d.committed {
		merged[id] = resp
	}
	for id, resp := range d.edits {
		merged[id] = resp
	}
	return merged
}
