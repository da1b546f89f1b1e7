package database

import (
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func mustTime(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func TestJSONB_RoundTrip(t *testing.T) {
	db := setupTestDB(t)

	inc := Incident{
		UUID:   "uuid-1",
		Status: IncidentStatusNew,
		ScoreExplanation: JSONB{
			"total_score": 65.0,
			"risk_reasons": []interface{}{
				"off-hours activity",
			},
		},
	}
	if err := db.Create(&inc).Error; err != nil {
		t.Fatalf("create failed: %v", err)
	}

	var loaded Incident
	if err := db.First(&loaded, inc.ID).Error; err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.ScoreExplanation["total_score"] != 65.0 {
		t.Errorf("total_score = %v, want 65", loaded.ScoreExplanation["total_score"])
	}
}

func TestStringList_RoundTrip(t *testing.T) {
	db := setupTestDB(t)

	inc := Incident{
		UUID:         "uuid-2",
		Status:       IncidentStatusNew,
		RelatedUsers: StringList{"alice", "Bob"},
	}
	if err := db.Create(&inc).Error; err != nil {
		t.Fatalf("create failed: %v", err)
	}

	var loaded Incident
	if err := db.First(&loaded, inc.ID).Error; err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(loaded.RelatedUsers) != 2 || loaded.RelatedUsers[0] != "alice" || loaded.RelatedUsers[1] != "Bob" {
		t.Errorf("related users = %v, order must be preserved", loaded.RelatedUsers)
	}

	// nil persists as an empty JSON array and loads back empty.
	empty := Incident{UUID: "uuid-3", Status: IncidentStatusNew}
	if err := db.Create(&empty).Error; err != nil {
		t.Fatalf("create failed: %v", err)
	}
	var emptyLoaded Incident
	if err := db.First(&emptyLoaded, empty.ID).Error; err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(emptyLoaded.RelatedUsers) != 0 {
		t.Errorf("expected empty list, got %v", emptyLoaded.RelatedUsers)
	}
}

func TestAlert_UniqueAlertID(t *testing.T) {
	db := setupTestDB(t)

	a := Alert{AlertID: "dup-1", Timestamp: mustTime(t)}
	if err := db.Create(&a).Error; err != nil {
		t.Fatalf("create failed: %v", err)
	}
	b := Alert{AlertID: "dup-1", Timestamp: mustTime(t)}
	if err := db.Create(&b).Error; err == nil {
		t.Error("expected unique constraint violation for duplicate alert_id")
	}
}

func TestValidIncidentStatus(t *testing.T) {
	for _, s := range []IncidentStatus{IncidentStatusNew, IncidentStatusInvestigating, IncidentStatusContained, IncidentStatusClosed} {
		if !ValidIncidentStatus(s) {
			t.Errorf("expected %s to be valid", s)
		}
	}
	if ValidIncidentStatus("resolved") {
		t.Error("expected unknown status to be invalid")
	}
}

func TestGetOrCreateTriageSettings_Defaults(t *testing.T) {
	db := setupTestDB(t)

	settings, err := GetOrCreateTriageSettings(db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.CorrelationWindowMinutes != 60 {
		t.Errorf("window = %d, want 60", settings.CorrelationWindowMinutes)
	}
	if settings.BusinessHoursStart != 7 || settings.BusinessHoursEnd != 19 {
		t.Errorf("business hours = %d-%d, want 7-19", settings.BusinessHoursStart, settings.BusinessHoursEnd)
	}
	if len(settings.HighRiskCategories) == 0 {
		t.Error("expected default high-risk categories")
	}
	if len(settings.BusinessDays) != 5 || settings.BusinessDays[0] != "Monday" {
		t.Errorf("business days = %v, want Monday through Friday", settings.BusinessDays)
	}

	// Second call returns the same row.
	again, err := GetOrCreateTriageSettings(db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.ID != settings.ID {
		t.Errorf("expected singleton row, got IDs %d and %d", settings.ID, again.ID)
	}
}

func TestNotificationSettings_IsActive(t *testing.T) {
	cases := []struct {
		s    NotificationSettings
		want bool
	}{
		{NotificationSettings{Enabled: true, BotToken: "xoxb-1", AlertsChannel: "#sec"}, true},
		{NotificationSettings{Enabled: false, BotToken: "xoxb-1", AlertsChannel: "#sec"}, false},
		{NotificationSettings{Enabled: true, AlertsChannel: "#sec"}, false},
		{NotificationSettings{Enabled: true, BotToken: "xoxb-1"}, false},
	}
	for i, tc := range cases {
		if got := tc.s.IsActive(); got != tc.want {
			t.Errorf("case %d: IsActive = %v, want %v", i, got, tc.want)
		}
	}
}
