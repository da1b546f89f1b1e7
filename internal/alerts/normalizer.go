package alerts

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// timestampFormats is the ordered list of accepted timestamp layouts.
// The first successful parse wins. Epoch seconds are handled separately.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
}

// Normalizer converts raw source records into canonical Alerts. The mapping
// configuration is injected at construction so tests can substitute their
// own alias tables.
type Normalizer struct {
	config MappingConfig
}

// NewNormalizer creates a Normalizer with the given mapping configuration.
func NewNormalizer(config MappingConfig) *Normalizer {
	if config.Sources == nil {
		config = DefaultMappingConfig()
	}
	return &Normalizer{config: config}
}

// Normalize maps one raw record to a canonical Alert. On failure it returns
// a RejectedRecord carrying the record's batch index and the reason.
// Normalization is deterministic: the same input always yields a
// structurally identical Alert.
func (n *Normalizer) Normalize(record RawRecord, sourceHint string, index int) (*Alert, *RejectedRecord) {
	mapping := n.mappingFor(record, sourceHint)

	title, ok := record.Lookup(mapping.Title)
	if !ok {
		return nil, &RejectedRecord{Index: index, Reason: ReasonMissingTitle}
	}

	severityRaw, _ := record.Lookup(mapping.Severity)
	severity, ok := n.resolveSeverity(severityRaw)
	if !ok {
		// Fail closed: guessing a severity would corrupt scoring.
		return nil, &RejectedRecord{Index: index, Reason: ReasonUnrecognizedSeverity}
	}

	timestampRaw, ok := record.Lookup(mapping.Timestamp)
	if !ok {
		return nil, &RejectedRecord{Index: index, Reason: ReasonUnparseableTimestamp}
	}
	timestamp, err := ParseTimestamp(timestampRaw)
	if err != nil {
		return nil, &RejectedRecord{Index: index, Reason: ReasonUnparseableTimestamp}
	}

	category, _ := record.Lookup(mapping.Category)
	if category == "" {
		category = "Unknown"
	}

	description, _ := record.Lookup(mapping.Description)
	user, _ := record.Lookup(mapping.EntityUser)
	ip, _ := record.Lookup(mapping.EntityIP)
	device, _ := record.Lookup(mapping.EntityDevice)
	location, _ := record.Lookup(mapping.EntityLocation)

	source, _ := record.Lookup([]string{"source"})
	if source == "" {
		source = displaySource(sourceHint)
	}

	alertID, _ := record.Lookup(mapping.AlertID)
	if alertID == "" {
		alertID = synthesizeAlertID(source, title, user, ip, timestamp)
	}

	rawData, err := json.Marshal(record)
	if err != nil {
		rawData = []byte("{}")
	}

	return &Alert{
		AlertID:        alertID,
		Source:         source,
		Category:       category,
		Severity:       severity,
		Title:          title,
		Description:    description,
		EntityUser:     user,
		EntityIP:       ip,
		EntityDevice:   device,
		EntityLocation: location,
		Timestamp:      timestamp,
		RawData:        string(rawData),
	}, nil
}

// mappingFor picks the field mapping for the record. An explicit source
// hint wins; otherwise the source format is detected from field presence.
func (n *Normalizer) mappingFor(record RawRecord, sourceHint string) FieldMappings {
	name := sourceHint
	if name == "" {
		name = DetectSource(record)
	}
	if m, ok := n.config.Sources[name]; ok {
		return m
	}
	return n.config.Sources["generic"]
}

// resolveSeverity maps a raw severity string to a canonical Severity.
// Matching is case-insensitive against the canonical values first, then
// against the configured alias table. Anything else is unrecognized.
func (n *Normalizer) resolveSeverity(raw string) (Severity, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	switch Severity(normalized) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return Severity(normalized), true
	}
	if sev, ok := n.config.SeverityAliases[normalized]; ok {
		return sev, true
	}
	return "", false
}

// DetectSource guesses the source format of a record from field presence,
// used when the caller supplies no source hint.
func DetectSource(record RawRecord) string {
	if _, ok := record["alertId"]; ok {
		return "defender"
	}
	if _, ok := record["detectionSource"]; ok {
		return "defender"
	}
	if _, ok := record["riskEventType"]; ok {
		return "azure_ad"
	}
	if _, ok := record["riskLevel"]; ok {
		return "azure_ad"
	}
	if source, ok := record.Lookup([]string{"source"}); ok {
		lower := strings.ToLower(source)
		if strings.Contains(lower, "defender") {
			return "defender"
		}
		if strings.Contains(lower, "azure") || strings.Contains(lower, "aad") {
			return "azure_ad"
		}
	}
	return "generic"
}

// ParseTimestamp parses a timestamp string against the ordered format list,
// accepting epoch seconds as well. The result is always UTC.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	for _, format := range timestampFormats {
		if t, err := time.Parse(format, value); err == nil {
			return t.UTC(), nil
		}
	}

	// Epoch seconds (a bare integer).
	if epoch, err := strconv.ParseInt(value, 10, 64); err == nil && epoch > 0 {
		return time.Unix(epoch, 0).UTC(), nil
	}

	return time.Time{}, fmt.Errorf("unparseable timestamp %q", value)
}

// synthesizeAlertID derives a stable identifier for records without one,
// so re-importing the same file never creates duplicate alerts.
func synthesizeAlertID(source, title, user, ip string, timestamp time.Time) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%d", source, title, user, ip, timestamp.Unix())
	return "auto-" + hex.EncodeToString(h.Sum(nil))[:16]
}

// displaySource turns a source hint into a display name ("azure_ad" ->
// "Azure Ad"), matching what uploads without an explicit source field get.
func displaySource(hint string) string {
	if hint == "" {
		hint = "generic"
	}
	words := strings.Split(strings.ReplaceAll(hint, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
