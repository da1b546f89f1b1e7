package alerts

import "testing"

func TestLookup_AliasOrder(t *testing.T) {
	record := RawRecord{
		"name":  "second choice",
		"title": "first choice",
	}

	got, ok := record.Lookup([]string{"title", "name"})
	if !ok || got != "first choice" {
		t.Errorf("expected first alias to win, got %q (ok=%v)", got, ok)
	}

	// Empty values are skipped in favor of later aliases.
	record["title"] = "  "
	got, ok = record.Lookup([]string{"title", "name"})
	if !ok || got != "second choice" {
		t.Errorf("expected fallthrough past empty value, got %q (ok=%v)", got, ok)
	}
}

func TestLookup_DotPath(t *testing.T) {
	record := RawRecord{
		"location": map[string]interface{}{
			"city": "Reykjavik",
		},
	}

	got, ok := record.Lookup([]string{"location.city"})
	if !ok || got != "Reykjavik" {
		t.Errorf("expected nested lookup, got %q (ok=%v)", got, ok)
	}

	if _, ok := record.Lookup([]string{"location.missing", "location.city.deeper"}); ok {
		t.Error("expected missing nested paths to fail")
	}
}

func TestLookup_StringifiesNumbers(t *testing.T) {
	record := RawRecord{
		"severity": float64(3),
		"score":    float64(2.5),
	}

	if got, _ := record.Lookup([]string{"severity"}); got != "3" {
		t.Errorf("expected integral float to drop decimal, got %q", got)
	}
	if got, _ := record.Lookup([]string{"score"}); got != "2.5" {
		t.Errorf("expected 2.5, got %q", got)
	}
}
