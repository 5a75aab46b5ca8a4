package service

import (
	"testing"
)

// TestGenerateDeterministicPointID verifies that the same input always produces the same UUID
func TestGenerateDeterministicPointID(t *testing.T) {
	testCases := []struct {
		name        string
		identityKey string
		collection  string
	}{
		{
			name:        "basic test",
			identityKey: "辦公設備採購案_1a2b3c4d",
			collection:  "tender_episodes",
		},
		{
			name:        "different collection",
			identityKey: "辦公設備採購案_1a2b3c4d",
			collection:  "tender_episodes_test",
		},
		{
			name:        "different key",
			identityKey: "道路維修工程_9f8e7d6c",
			collection:  "tender_episodes",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			id1 := generateDeterministicPointID(tc.identityKey, tc.collection)
			id2 := generateDeterministicPointID(tc.identityKey, tc.collection)
			id3 := generateDeterministicPointID(tc.identityKey, tc.collection)

			if id1 != id2 {
				t.Errorf("UUID mismatch: first=%s, second=%s", id1, id2)
			}
			if id1 != id3 {
				t.Errorf("UUID mismatch: first=%s, third=%s", id1, id3)
			}

			if len(id1) != 36 {
				t.Errorf("Invalid UUID length: got %d, want 36", len(id1))
			}
		})
	}
}

// TestGenerateDeterministicPointIDUniqueness verifies that different inputs produce different UUIDs
func TestGenerateDeterministicPointIDUniqueness(t *testing.T) {
	id1 := generateDeterministicPointID("a_00000001", "tender_episodes")
	id2 := generateDeterministicPointID("b_00000002", "tender_episodes")
	id3 := generateDeterministicPointID("a_00000001", "tender_episodes_test")

	if id1 == id2 {
		t.Errorf("Different identity keys should produce different UUIDs: %s == %s", id1, id2)
	}
	if id1 == id3 {
		t.Errorf("Different collections should produce different UUIDs: %s == %s", id1, id3)
	}
	if id2 == id3 {
		t.Errorf("Different inputs should produce different UUIDs: %s == %s", id2, id3)
	}
}
