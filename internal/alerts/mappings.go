package alerts

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FieldMappings holds the ordered alias lists used to resolve each canonical
// alert field from a raw record. One FieldMappings exists per source format.
type FieldMappings struct {
	AlertID        []string `yaml:"alert_id"`
	Title          []string `yaml:"title"`
	Description    []string `yaml:"description"`
	Severity       []string `yaml:"severity"`
	Category       []string `yaml:"category"`
	Timestamp      []string `yaml:"timestamp"`
	EntityUser     []string `yaml:"entity_user"`
	EntityIP       []string `yaml:"entity_ip"`
	EntityDevice   []string `yaml:"entity_device"`
	EntityLocation []string `yaml:"entity_location"`
}

// MappingConfig is the full normalizer configuration: per-source field
// mappings plus the severity alias table. It is explicit configuration
// injected at construction, never process-wide mutable state.
type MappingConfig struct {
	// Sources maps a source hint ("generic", "defender", ...) to its
	// field mappings. Unknown hints fall back to "generic".
	Sources map[string]FieldMappings `yaml:"sources"`

	// SeverityAliases maps lowercase source severity spellings to a
	// canonical severity. Values not present here and not already
	// canonical are rejected, never guessed.
	SeverityAliases map[string]Severity `yaml:"severity_aliases"`
}

// DefaultMappingConfig returns the built-in mapping tables covering
// Microsoft Defender, Azure AD risk detections, and generic JSON/CSV
// exports.
func DefaultMappingConfig() MappingConfig {
	return MappingConfig{
		Sources: map[string]FieldMappings{
			"defender": {
				AlertID:        []string{"alertId", "id", "AlertId"},
				Title:          []string{"title", "alertTitle", "Title"},
				Description:    []string{"description", "alertDescription", "Description"},
				Severity:       []string{"severity", "alertSeverity", "Severity"},
				Category:       []string{"category", "alertCategory", "Category"},
				Timestamp:      []string{"createdDateTime", "timestamp", "detectionTime", "CreatedDateTime"},
				EntityUser:     []string{"userPrincipalName", "accountName", "user", "User", "userEmail"},
				EntityIP:       []string{"ipAddress", "sourceIp", "clientIp", "IpAddress"},
				EntityDevice:   []string{"deviceName", "machineName", "computerName", "DeviceName"},
				EntityLocation: []string{"location", "country", "city", "Location"},
			},
			"azure_ad": {
				AlertID:        []string{"id", "correlationId"},
				Title:          []string{"riskEventType", "riskType"},
				Description:    []string{"additionalInfo", "riskDetail"},
				Severity:       []string{"riskLevel", "riskState"},
				Category:       []string{"riskEventType", "detectionTimingType"},
				Timestamp:      []string{"activityDateTime", "detectedDateTime"},
				EntityUser:     []string{"userPrincipalName", "userDisplayName"},
				EntityIP:       []string{"ipAddress"},
				EntityDevice:   []string{"deviceDetail.displayName", "deviceDetail.deviceId"},
				EntityLocation: []string{"location.city", "location.countryOrRegion"},
			},
			"generic": {
				AlertID:        []string{"id", "alert_id", "alertId", "ID"},
				Title:          []string{"title", "name", "alert_name", "Title"},
				Description:    []string{"description", "details", "message", "Description"},
				Severity:       []string{"severity", "priority", "risk_level", "Severity"},
				Category:       []string{"category", "type", "alert_type", "Category"},
				Timestamp:      []string{"timestamp", "time", "date", "created_at", "Timestamp"},
				EntityUser:     []string{"user", "username", "user_email", "account", "identity", "User"},
				EntityIP:       []string{"ip", "ip_address", "source_ip", "client_ip", "IP"},
				EntityDevice:   []string{"device", "machine", "hostname", "computer", "Device"},
				EntityLocation: []string{"location", "country", "region", "Location"},
			},
		},
		SeverityAliases: map[string]Severity{
			"informational": SeverityLow,
			"none":          SeverityLow,
			"hidden":        SeverityLow,
			"1":             SeverityLow,
			"2":             SeverityMedium,
			"elevated":      SeverityMedium,
			"3":             SeverityHigh,
			"significant":   SeverityHigh,
			"4":             SeverityCritical,
			"severe":        SeverityCritical,
		},
	}
}

// LoadMappingConfig reads a MappingConfig from a YAML file. Sources and
// severity aliases from the file are merged over the built-in defaults,
// so a deployment only has to declare what differs.
func LoadMappingConfig(path string) (MappingConfig, error) {
	cfg := DefaultMappingConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read mapping config: %w", err)
	}

	var fileCfg MappingConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return cfg, fmt.Errorf("failed to parse mapping config: %w", err)
	}

	for name, m := range fileCfg.Sources {
		cfg.Sources[name] = m
	}
	for alias, sev := range fileCfg.SeverityAliases {
		cfg.SeverityAliases[alias] = sev
	}

	return cfg, nil
}
