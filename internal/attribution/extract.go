package attribution

import "time"

// Extract scans the merged attribute sources of an order for the reserved
// keys and recovers the tuple stamped at cart creation. The second return is
// false when no conversation id is present: orders placed outside the agent
// are expected and carry no attribution. Malformed or missing sources never
// fail extraction; they simply contribute nothing.
func Extract(sources ...[]Attribute) (Tuple, bool) {
	var t Tuple
	attributed := false

	for _, attrs := range sources {
		for _, a := range attrs {
			switch a.key() {
			case KeyConversationID:
				if t.ConversationID == "" {
					t.ConversationID = a.Value
				}
			case KeyUserID:
				if t.UserID == "" {
					t.UserID = a.Value
				}
			case KeySource:
				if t.Source == "" {
					t.Source = a.Value
				}
			case KeyTimestamp:
				if t.IssuedAt.IsZero() {
					if ts, err := time.Parse(time.RFC3339, a.Value); err == nil {
						t.IssuedAt = ts.UTC()
					}
				}
			}
		}
	}

	attributed = t.ConversationID != ""
	return t, attributed
}
