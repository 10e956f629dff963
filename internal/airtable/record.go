package airtable

// Record is a raw Airtable record: an opaque id plus a schemaless field map.
// Typed accessors over the fields live with the entities that use them
// (dispatch.Request, dispatch.Volunteer), not here.
type Record struct {
	ID          string         `json:"id,omitempty"`
	CreatedTime string         `json:"createdTime,omitempty"`
	Fields      map[string]any `json:"fields"`
}

// GetString returns the named field as a string, or "" when the field is
// missing or not a string.
func (r *Record) GetString(field string) string {
	if r.Fields == nil {
		return ""
	}
	s, _ := r.Fields[field].(string)
	return s
}

// GetStrings returns the named multiple-select field as a string slice.
func (r *Record) GetStrings(field string) []string {
	if r.Fields == nil {
		return nil
	}

	switch v := r.Fields[field].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// CopyFields returns a shallow copy of the field map. Cloning a record for a
// split must never alias the original's map.
func (r *Record) CopyFields() map[string]any {
	fields := make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	return fields
}
