package database

import (
	"time"

	"gorm.io/gorm"
)

// TriageSettings controls correlation and scoring behavior (singleton row).
type TriageSettings struct {
	ID uint `gorm:"primaryKey" json:"id"`

	CorrelationWindowMinutes int `gorm:"default:60" json:"correlation_window_minutes"`

	HighRiskCategories   StringList `gorm:"type:text" json:"high_risk_categories"`
	FailedAuthCategories StringList `gorm:"type:text" json:"failed_auth_categories"`

	// Business hours window in UTC hours [start, end) on the configured
	// business days; any other day is entirely off-hours.
	BusinessHoursStart int        `gorm:"default:7" json:"business_hours_start"`
	BusinessHoursEnd   int        `gorm:"default:19" json:"business_hours_end"`
	BusinessDays       StringList `gorm:"type:text" json:"business_days"`

	RecorrelationEnabled         bool `gorm:"default:false" json:"recorrelation_enabled"`
	RecorrelationIntervalMinutes int  `gorm:"default:60" json:"recorrelation_interval_minutes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (TriageSettings) TableName() string {
	return "triage_settings"
}

// NewDefaultTriageSettings returns settings with default values.
func NewDefaultTriageSettings() *TriageSettings {
	return &TriageSettings{
		CorrelationWindowMinutes: 60,
		HighRiskCategories: StringList{
			"malware", "ransomware", "phishing", "credential theft",
			"lateral movement", "data exfiltration", "privilege escalation",
		},
		FailedAuthCategories: StringList{
			"failed sign-in", "failed login", "failed authentication", "brute force",
		},
		BusinessHoursStart:           7,
		BusinessHoursEnd:             19,
		BusinessDays:                 StringList{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"},
		RecorrelationEnabled:         false,
		RecorrelationIntervalMinutes: 60,
	}
}

// GetOrCreateTriageSettings retrieves or creates triage settings. Accepts a
// db parameter to support transactions and in-memory test databases.
func GetOrCreateTriageSettings(db *gorm.DB) (*TriageSettings, error) {
	var settings TriageSettings
	result := db.First(&settings)
	if result.Error == gorm.ErrRecordNotFound {
		settings = *NewDefaultTriageSettings()
		if err := db.Create(&settings).Error; err != nil {
			return nil, err
		}
	} else if result.Error != nil {
		return nil, result.Error
	}
	return &settings, nil
}

// UpdateTriageSettings persists changed triage settings.
func UpdateTriageSettings(db *gorm.DB, settings *TriageSettings) error {
	return db.Save(settings).Error
}

// NotificationSettings stores Slack notification configuration (singleton).
type NotificationSettings struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	BotToken         string    `gorm:"type:text" json:"bot_token"`
	AlertsChannel    string    `gorm:"size:255" json:"alerts_channel"`
	MinPriorityScore float64   `gorm:"default:70" json:"min_priority_score"`
	Enabled          bool      `gorm:"default:false" json:"enabled"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (NotificationSettings) TableName() string {
	return "notification_settings"
}

// IsActive returns true if notifications are enabled and configured.
func (s *NotificationSettings) IsActive() bool {
	return s.Enabled && s.BotToken != "" && s.AlertsChannel != ""
}

// GetOrCreateNotificationSettings retrieves or creates notification settings.
func GetOrCreateNotificationSettings(db *gorm.DB) (*NotificationSettings, error) {
	var settings NotificationSettings
	result := db.First(&settings)
	if result.Error == gorm.ErrRecordNotFound {
		settings = NotificationSettings{MinPriorityScore: 70, Enabled: false}
		if err := db.Create(&settings).Error; err != nil {
			return nil, err
		}
	} else if result.Error != nil {
		return nil, result.Error
	}
	return &settings, nil
}

// UpdateNotificationSettings persists changed notification settings.
func UpdateNotificationSettings(db *gorm.DB, settings *NotificationSettings) error {
	return db.Save(settings).Error
}
