package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// JSONB is a custom type for JSON-encoded object columns (jsonb on
// PostgreSQL, TEXT on SQLite).
type JSONB map[string]interface{}

// Scan implements the sql.Scanner interface.
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, isString := value.(string); isString {
			bytes = []byte(s)
		} else {
			return errors.New("type assertion to []byte failed")
		}
	}
	return json.Unmarshal(bytes, j)
}

// Value implements the driver.Valuer interface.
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// StringList stores an ordered string slice as a JSON array column. The
// JSON encoding is strictly a persistence-boundary concern: in memory the
// related-entity lists are always native ordered slices.
type StringList []string

// Scan implements the sql.Scanner interface.
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, isString := value.(string); isString {
			bytes = []byte(s)
		} else {
			return errors.New("type assertion to []byte failed")
		}
	}
	if len(bytes) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(bytes, l)
}

// Value implements the driver.Valuer interface.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// IncidentStatus is the analyst workflow state of an incident. The enum is
// open: any status can follow any other. A forward-only transition table,
// if ever wanted, belongs in the handler that accepts analyst updates,
// not here.
type IncidentStatus string

const (
	IncidentStatusNew           IncidentStatus = "new"
	IncidentStatusInvestigating IncidentStatus = "investigating"
	IncidentStatusContained     IncidentStatus = "contained"
	IncidentStatusClosed        IncidentStatus = "closed"
)

// ValidIncidentStatus reports whether s is a known workflow status.
func ValidIncidentStatus(s IncidentStatus) bool {
	switch s {
	case IncidentStatusNew, IncidentStatusInvestigating, IncidentStatusContained, IncidentStatusClosed:
		return true
	}
	return false
}

// Alert is a normalized security alert. Rows are immutable once created;
// only the IncidentID foreign key moves during recorrelation. The single
// nullable-free FK is what enforces the partition invariant at the schema
// level: an alert can never belong to two incidents.
type Alert struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	AlertID string `gorm:"uniqueIndex;size:255;not null" json:"alert_id"`

	Source      string `gorm:"size:100;index" json:"source"`
	Category    string `gorm:"size:100" json:"category"`
	Severity    string `gorm:"size:20;index" json:"severity"`
	Title       string `gorm:"size:500" json:"title"`
	Description string `gorm:"type:text" json:"description"`

	EntityUser     string `gorm:"size:255;index" json:"entity_user"`
	EntityIP       string `gorm:"size:45;index" json:"entity_ip"` // supports IPv6
	EntityDevice   string `gorm:"size:255;index" json:"entity_device"`
	EntityLocation string `gorm:"size:255" json:"entity_location"`

	Timestamp time.Time `gorm:"index;not null" json:"timestamp"`
	RawData   string    `gorm:"type:text" json:"raw_data"`

	IncidentID uint `gorm:"index" json:"incident_id"`

	CreatedAt time.Time `json:"created_at"`
}

func (Alert) TableName() string {
	return "alerts"
}

// Incident is a correlated group of related alerts with a single priority
// score and analyst workflow state.
type Incident struct {
	ID     uint           `gorm:"primaryKey" json:"id"`
	UUID   string         `gorm:"uniqueIndex;size:36;not null" json:"uuid"`
	Title  string         `gorm:"size:500" json:"title"`
	Status IncidentStatus `gorm:"size:20;not null;default:'new';index" json:"status"`

	PriorityScore    float64 `gorm:"index" json:"priority_score"`
	ScoreExplanation JSONB   `gorm:"type:jsonb" json:"score_explanation"`

	RelatedUsers     StringList `gorm:"type:text" json:"related_users"`
	RelatedIPs       StringList `gorm:"type:text" json:"related_ips"`
	RelatedDevices   StringList `gorm:"type:text" json:"related_devices"`
	RelatedLocations StringList `gorm:"type:text" json:"related_locations"`

	AlertCount int `gorm:"default:0" json:"alert_count"`

	// Analyst free text, never touched by correlation or scoring.
	Notes    string `gorm:"type:text" json:"notes"`
	Evidence string `gorm:"type:text" json:"evidence"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Alerts []Alert `gorm:"foreignKey:IncidentID" json:"alerts,omitempty"`
}

func (Incident) TableName() string {
	return "incidents"
}

// IncidentMerge records a manual incident merge for audit purposes. The
// correlator never merges incidents automatically; merges are explicit
// analyst actions.
type IncidentMerge struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	SourceIncidentID uint      `gorm:"not null;index" json:"source_incident_id"` // merged away (closed)
	TargetIncidentID uint      `gorm:"not null;index" json:"target_incident_id"` // absorbed the source
	Reason           string    `gorm:"type:text" json:"reason"`
	MergedBy         string    `gorm:"size:50;not null" json:"merged_by"`
	CreatedAt        time.Time `json:"created_at"`
}

func (IncidentMerge) TableName() string {
	return "incident_merges"
}

// AuditLog is the audit trail for key system actions.
type AuditLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Action     string    `gorm:"size:100;index" json:"action"`      // data_import, recorrelate, status_change, report_export
	EntityType string    `gorm:"size:50" json:"entity_type"`        // incident, alert, system
	EntityID   string    `gorm:"size:100" json:"entity_id"`
	Details    JSONB     `gorm:"type:jsonb" json:"details"`
	User       string    `gorm:"size:255;default:'analyst'" json:"user"`
	IPAddress  string    `gorm:"size:45" json:"ip_address"`
	Timestamp  time.Time `gorm:"index" json:"timestamp"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}
