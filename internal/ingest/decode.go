// Package ingest decodes uploaded alert files into raw records for
// normalization. Decoding failures abort the whole upload; per-record
// problems are the normalizer's job and never surface here.
package ingest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/triagehub/triagehub/internal/alerts"
)

// StructuralError means the stream as a whole could not be decoded, as
// opposed to individual records being rejected.
type StructuralError struct {
	Format string
	Err    error
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("cannot decode %s input: %v", e.Format, e.Err)
}

func (e *StructuralError) Unwrap() error {
	return e.Err
}

// Decode reads records from an uploaded file. Filename extension picks the
// format; anything other than .csv is treated as JSON.
func Decode(r io.Reader, filename string) ([]alerts.RawRecord, error) {
	if strings.HasSuffix(strings.ToLower(filename), ".csv") {
		return DecodeCSV(r)
	}
	return DecodeJSON(r)
}

// DecodeJSON accepts the JSON shapes alert exports come in: a top-level
// array, a single object, or an envelope with the records under "value"
// (Microsoft Graph style) or "alerts".
func DecodeJSON(r io.Reader) ([]alerts.RawRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &StructuralError{Format: "JSON", Err: err}
	}

	var records []alerts.RawRecord
	if err := json.Unmarshal(data, &records); err == nil {
		return records, nil
	}

	var object alerts.RawRecord
	if err := json.Unmarshal(data, &object); err != nil {
		return nil, &StructuralError{Format: "JSON", Err: err}
	}

	for _, envelope := range []string{"value", "alerts"} {
		nested, ok := object[envelope]
		if !ok {
			continue
		}
		items, ok := nested.([]interface{})
		if !ok {
			return nil, &StructuralError{Format: "JSON", Err: fmt.Errorf("field %q is not an array", envelope)}
		}
		records = make([]alerts.RawRecord, 0, len(items))
		for i, item := range items {
			record, ok := item.(map[string]interface{})
			if !ok {
				return nil, &StructuralError{Format: "JSON", Err: fmt.Errorf("element %d under %q is not an object", i, envelope)}
			}
			records = append(records, alerts.RawRecord(record))
		}
		return records, nil
	}

	// A bare object is a single record.
	return []alerts.RawRecord{object}, nil
}

// DecodeCSV reads a header row plus data rows into raw records. Every cell
// stays a string; the normalizer handles type coercion.
func DecodeCSV(r io.Reader) ([]alerts.RawRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, &StructuralError{Format: "CSV", Err: err}
	}

	var records []alerts.RawRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &StructuralError{Format: "CSV", Err: err}
		}

		record := make(alerts.RawRecord, len(header))
		for i, name := range header {
			if i >= len(row) {
				break
			}
			if value := strings.TrimSpace(row[i]); value != "" {
				record[strings.TrimSpace(name)] = value
			}
		}
		records = append(records, record)
	}
	return records, nil
}
