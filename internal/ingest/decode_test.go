package ingest

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeJSON_Array(t *testing.T) {
	records, err := DecodeJSON(strings.NewReader(`[{"title":"a"},{"title":"b"}]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if v, _ := records[0].Lookup([]string{"title"}); v != "a" {
		t.Errorf("unexpected first record: %v", records[0])
	}
}

func TestDecodeJSON_SingleObject(t *testing.T) {
	records, err := DecodeJSON(strings.NewReader(`{"title":"only one"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
}

func TestDecodeJSON_Envelopes(t *testing.T) {
	for _, envelope := range []string{"value", "alerts"} {
		input := `{"` + envelope + `":[{"title":"a"},{"title":"b"},{"title":"c"}]}`
		records, err := DecodeJSON(strings.NewReader(input))
		if err != nil {
			t.Fatalf("envelope %q: unexpected error: %v", envelope, err)
		}
		if len(records) != 3 {
			t.Errorf("envelope %q: expected 3 records, got %d", envelope, len(records))
		}
	}
}

func TestDecodeJSON_StructuralErrors(t *testing.T) {
	cases := []string{
		`not json at all`,
		`{"value":"not an array"}`,
		`{"alerts":[{"ok":true},"not an object"]}`,
	}
	for _, input := range cases {
		_, err := DecodeJSON(strings.NewReader(input))
		var structural *StructuralError
		if !errors.As(err, &structural) {
			t.Errorf("input %q: expected StructuralError, got %v", input, err)
		}
	}
}

func TestDecodeCSV(t *testing.T) {
	input := "title,severity,timestamp\nLogin spike,high,2025-03-10T12:00:00Z\nMalware hit,critical,2025-03-10T13:00:00Z\n"

	records, err := DecodeCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if v, _ := records[1].Lookup([]string{"severity"}); v != "critical" {
		t.Errorf("unexpected severity: %q", v)
	}
}

func TestDecodeCSV_SkipsEmptyCells(t *testing.T) {
	input := "title,user\nNo user here,\n"
	records, err := DecodeCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := records[0]["user"]; ok {
		t.Error("empty cells must not produce keys")
	}
}

func TestDecodeCSV_EmptyFile(t *testing.T) {
	records, err := DecodeCSV(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}

func TestDecode_PicksFormatFromFilename(t *testing.T) {
	csv, err := Decode(strings.NewReader("title\nfrom csv\n"), "export.CSV")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := csv[0].Lookup([]string{"title"}); v != "from csv" {
		t.Errorf("csv decode failed: %v", csv)
	}

	jsonRecords, err := Decode(strings.NewReader(`[{"title":"from json"}]`), "export.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := jsonRecords[0].Lookup([]string{"title"}); v != "from json" {
		t.Errorf("json decode failed: %v", jsonRecords)
	}
}
