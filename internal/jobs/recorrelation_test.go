package jobs

import (
	"testing"
	"time"

	"github.com/triagehub/triagehub/internal/alerts"
	"github.com/triagehub/triagehub/internal/database"
	"github.com/triagehub/triagehub/internal/services"
	"github.com/triagehub/triagehub/internal/testhelpers"
)

func TestRecorrelationInterval_ClampsToMinimum(t *testing.T) {
	cases := []struct {
		minutes int
		want    time.Duration
	}{
		{0, time.Minute},
		{-5, time.Minute},
		{1, time.Minute},
		{30, 30 * time.Minute},
	}
	for _, tc := range cases {
		got := recorrelationInterval(&database.TriageSettings{RecorrelationIntervalMinutes: tc.minutes})
		if got != tc.want {
			t.Errorf("interval(%d) = %v, want %v", tc.minutes, got, tc.want)
		}
	}
}

func TestRun_NoOpWhenDisabled(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	importer := services.NewImportService(db, alerts.DefaultMappingConfig(), nil)
	job := NewRecorrelationJob(db, importer)

	summary, err := job.Run()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary != nil {
		t.Errorf("expected nil summary while recorrelation is disabled, got %+v", summary)
	}
}

func TestRun_NoOpWithoutAlerts(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	importer := services.NewImportService(db, alerts.DefaultMappingConfig(), nil)
	job := NewRecorrelationJob(db, importer)

	settings, err := database.GetOrCreateTriageSettings(db)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	settings.RecorrelationEnabled = true
	if err := database.UpdateTriageSettings(db, settings); err != nil {
		t.Fatalf("update settings: %v", err)
	}

	summary, err := job.Run()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary != nil {
		t.Errorf("expected nil summary with empty corpus, got %+v", summary)
	}
}

func TestRun_RecorrelatesWhenEnabled(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	importer := services.NewImportService(db, alerts.DefaultMappingConfig(), nil)
	job := NewRecorrelationJob(db, importer)

	records := []alerts.RawRecord{
		{"id": "j1", "title": "Failed login", "severity": "high", "timestamp": "2025-03-10T12:00:00Z", "user": "alice"},
		{"id": "j2", "title": "Failed login", "severity": "high", "timestamp": "2025-03-10T12:30:00Z", "user": "alice"},
	}
	if _, err := importer.ImportRecords(records, "", "analyst", ""); err != nil {
		t.Fatalf("import: %v", err)
	}

	settings, err := database.GetOrCreateTriageSettings(db)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	settings.RecorrelationEnabled = true
	if err := database.UpdateTriageSettings(db, settings); err != nil {
		t.Fatalf("update settings: %v", err)
	}

	summary, err := job.Run()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary == nil {
		t.Fatal("expected a recorrelation summary")
	}
	if summary.Alerts != 2 || summary.Incidents != 1 {
		t.Errorf("summary = %d alerts / %d incidents, want 2/1", summary.Alerts, summary.Incidents)
	}
}
