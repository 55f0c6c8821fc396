package keys

import (
	"regexp"
	"strings"
	"testing"
)

var keyPattern = regexp.MustCompile(`^dataset:[a-z0-9_\-]*:u=[0-9a-f]{16}$`)

func TestDataset_Deterministic(t *testing.T) {
	k1 := Dataset("shops", "https://example.org/toronto_bicycle_shops.geojson")
	k2 := Dataset("shops", "https://example.org/toronto_bicycle_shops.geojson")
	if k1 != k2 {
		t.Fatalf("determinism failed:\n k1=%s\n k2=%s", k1, k2)
	}
	if !keyPattern.MatchString(k1) {
		t.Fatalf("key has unexpected shape: %s", k1)
	}
}

func TestDataset_EquivalentURLsShareKey(t *testing.T) {
	a := Dataset("weather", " HTTPS://API.Example.org/v1?b=2&a=1#frag ")
	b := Dataset("weather", "https://api.example.org/v1?a=1&b=2")
	if a != b {
		t.Fatalf("normalized keys differ:\n a=%s\n b=%s", a, b)
	}
}

func TestDataset_DifferentURLsDiffer(t *testing.T) {
	a := Dataset("parking", "https://example.org/toronto_bicycle_parking.geojson")
	b := Dataset("parking", "https://example.org/york_bicycle_parking.geojson")
	if a == b {
		t.Fatalf("different urls must produce different keys")
	}
}

func TestDataset_NameSanitized(t *testing.T) {
	k := Dataset("  Parking / Toronto  ", "https://example.org/p.geojson")
	if !strings.HasPrefix(k, "dataset:parking_-_toronto:") {
		t.Fatalf("name not sanitized: %s", k)
	}
	if !keyPattern.MatchString(k) {
		t.Fatalf("key contains disallowed characters: %s", k)
	}
}
