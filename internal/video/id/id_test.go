package id

import (
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	got := Generate("vid")
	if !strings.HasPrefix(got, "vid-") {
		t.Errorf("expected vid- prefix, got %q", got)
	}
	parts := strings.Split(got, "-")
	if len(parts) != 3 {
		t.Fatalf("expected three segments, got %q", got)
	}
	if len(parts[2]) != 8 {
		t.Errorf("expected 8 random characters, got %q", parts[2])
	}
}

func TestGenerate_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		id := Generate("trk")
		if seen[id] {
			t.Fatalf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}
