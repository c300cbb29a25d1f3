package attribution

import "time"

// Tag appends the reserved attribution attributes to a cart's attribute list
// and returns the result. Tagging is idempotent: reserved keys already
// present are left untouched, so re-tagging a payload never clobbers the
// original conversation identity. Values longer than the platform limit are
// truncated rather than rejected.
func Tag(attrs []Attribute, t Tuple) []Attribute {
	present := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		present[a.key()] = true
	}

	source := t.Source
	if source == "" {
		source = DefaultSource
	}

	add := []Attribute{
		{Key: KeyConversationID, Value: t.ConversationID},
		{Key: KeyUserID, Value: t.UserID},
		{Key: KeySource, Value: source},
	}
	if !t.IssuedAt.IsZero() {
		add = append(add, Attribute{Key: KeyTimestamp, Value: t.IssuedAt.UTC().Format(time.RFC3339)})
	}

	out := append([]Attribute(nil), attrs...)
	for _, a := range add {
		if a.Value == "" || present[a.Key] {
			continue
		}
		a.Value = capValue(a.Value)
		out = append(out, a)
	}
	return out
}

func capValue(v string) string {
	if len(v) <= MaxAttributeValueLen {
		return v
	}
	return v[:MaxAttributeValueLen]
}
