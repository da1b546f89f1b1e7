package services

import (
	"strings"
	"testing"

	"github.com/triagehub/triagehub/internal/database"
	"github.com/triagehub/triagehub/internal/testhelpers"
)

func TestBuildIncidentReport(t *testing.T) {
	db := testhelpers.SetupTestDB(t)

	incident := &database.Incident{
		UUID:          "rep-uuid",
		Title:         "Critical Malware Incident (2 alerts)",
		Status:        database.IncidentStatusInvestigating,
		PriorityScore: 65,
		AlertCount:    2,
		ScoreExplanation: database.JSONB{
			"severity_score":         float64(40),
			"severity_reason":        "Highest severity: critical",
			"entity_frequency_score": float64(10),
			"entity_reason":          "User \"alice\" in 3 alerts",
			"risk_indicator_score":   float64(15),
			"risk_reasons":           []interface{}{"off-hours activity"},
			"total_score":            float64(65),
		},
		RelatedUsers: database.StringList{"alice"},
		Notes:        "escalated to IR",
		Alerts: []database.Alert{
			{AlertID: "a1", Severity: "critical", Source: "Defender", Title: "Malware detected", Timestamp: mustTimestamp()},
		},
	}

	report := BuildIncidentReport(db, incident, "analyst", "127.0.0.1")

	for _, want := range []string{
		"# Incident Report: Critical Malware Incident (2 alerts)",
		"rep-uuid",
		"Priority score:** 65",
		"off-hours activity",
		"**Users:** alice",
		"Malware detected",
		"escalated to IR",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q", want)
		}
	}

	var entries []database.AuditLog
	db.Where("action = ?", AuditActionReportExport).Find(&entries)
	if len(entries) != 1 {
		t.Errorf("audit entries = %d, want 1", len(entries))
	}
}
