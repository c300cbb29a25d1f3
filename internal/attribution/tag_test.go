package attribution

import (
	"strings"
	"testing"
	"time"
)

func TestTagAddsReservedKeys(t *testing.T) {
	issued := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	got := Tag(nil, Tuple{ConversationID: "s1", UserID: "u1", IssuedAt: issued})

	want := map[string]string{
		KeyConversationID: "s1",
		KeyUserID:         "u1",
		KeySource:         DefaultSource,
		KeyTimestamp:      "2026-03-02T10:00:00Z",
	}
	if len(got) != len(want) {
		t.Fatalf("tagged attributes = %v, want %d entries", got, len(want))
	}
	for _, a := range got {
		if want[a.Key] != a.Value {
			t.Fatalf("attribute %q = %q, want %q", a.Key, a.Value, want[a.Key])
		}
	}
}

func TestTagPreservesExistingAttributes(t *testing.T) {
	existing := []Attribute{{Key: "gift_wrap", Value: "yes"}}
	got := Tag(existing, Tuple{ConversationID: "s1", UserID: "u1"})

	if got[0].Key != "gift_wrap" || got[0].Value != "yes" {
		t.Fatalf("pre-existing attribute lost: %v", got)
	}
	if len(existing) != 1 {
		t.Fatalf("Tag mutated its input")
	}
}

func TestTagIdempotent(t *testing.T) {
	once := Tag(nil, Tuple{ConversationID: "s1", UserID: "u1"})
	twice := Tag(once, Tuple{ConversationID: "s2", UserID: "u2"})

	if len(twice) != len(once) {
		t.Fatalf("re-tagging grew attributes: %v", twice)
	}
	for _, a := range twice {
		if a.Key == KeyConversationID && a.Value != "s1" {
			t.Fatalf("re-tagging overwrote conversation id: %q", a.Value)
		}
	}
}

func TestTagTruncatesOversizedValues(t *testing.T) {
	long := strings.Repeat("c", MaxAttributeValueLen+40)
	got := Tag(nil, Tuple{ConversationID: long, UserID: "u1"})

	for _, a := range got {
		if len(a.Value) > MaxAttributeValueLen {
			t.Fatalf("attribute %q length = %d, want <= %d", a.Key, len(a.Value), MaxAttributeValueLen)
		}
		if a.Key == KeyConversationID && a.Value != long[:MaxAttributeValueLen] {
			t.Fatalf("truncation is not a deterministic prefix")
		}
	}
}

func TestTagSkipsEmptyTimestamp(t *testing.T) {
	got := Tag(nil, Tuple{ConversationID: "s1", UserID: "u1"})
	for _, a := range got {
		if a.Key == KeyTimestamp {
			t.Fatalf("zero IssuedAt should not produce a timestamp attribute")
		}
	}
}
