package stage

import "testing"

func TestAllStagesAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, name := range All() {
		if name == "" || seen[name] {
			t.Fatalf("duplicate or empty stage name %q", name)
		}
		seen[name] = true
	}
	if seen[Recovery] {
		t.Fatal("recovery runs once at startup and is not a processor stage")
	}
}
