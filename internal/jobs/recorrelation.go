// Package jobs contains background workers.
package jobs

import (
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/triagehub/triagehub/internal/database"
	"github.com/triagehub/triagehub/internal/services"
)

// RecorrelationJob periodically rebuilds incidents from the stored alert
// corpus so that settings changes (window size, categories) take effect
// without a manual trigger. The rebuild goes through the import service,
// so it serializes against concurrent imports.
type RecorrelationJob struct {
	db       *gorm.DB
	importer *services.ImportService
}

// NewRecorrelationJob creates a new recorrelation job.
func NewRecorrelationJob(db *gorm.DB, importer *services.ImportService) *RecorrelationJob {
	return &RecorrelationJob{db: db, importer: importer}
}

// Run executes one iteration. It is a no-op while recorrelation is disabled
// in settings or no alerts exist.
func (j *RecorrelationJob) Run() (*services.RecorrelateSummary, error) {
	settings, err := database.GetOrCreateTriageSettings(j.db)
	if err != nil {
		return nil, err
	}
	if !settings.RecorrelationEnabled {
		return nil, nil
	}

	var alertCount int64
	if err := j.db.Model(&database.Alert{}).Count(&alertCount).Error; err != nil {
		return nil, err
	}
	if alertCount == 0 {
		return nil, nil
	}

	return j.importer.Recorrelate("system", "")
}

// recorrelationInterval clamps the configured interval to at least one
// minute; time.NewTicker and Reset panic on non-positive durations.
func recorrelationInterval(settings *database.TriageSettings) time.Duration {
	minutes := settings.RecorrelationIntervalMinutes
	if minutes < 1 {
		minutes = 1
	}
	return time.Duration(minutes) * time.Minute
}

// Start begins the periodic recorrelation loop. The interval follows the
// stored settings and is re-read after every run.
func (j *RecorrelationJob) Start(stop <-chan struct{}) {
	settings, err := database.GetOrCreateTriageSettings(j.db)
	if err != nil {
		log.Printf("Failed to load triage settings, using default interval: %v", err)
		settings = database.NewDefaultTriageSettings()
	}

	interval := recorrelationInterval(settings)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			summary, err := j.Run()
			if err != nil {
				log.Printf("Recorrelation job error: %v", err)
			} else if summary != nil {
				log.Printf("Recorrelation job: %d alerts into %d incidents", summary.Alerts, summary.Incidents)
			}

			newSettings, err := database.GetOrCreateTriageSettings(j.db)
			if err == nil && newSettings.RecorrelationIntervalMinutes != settings.RecorrelationIntervalMinutes {
				settings = newSettings
				interval = recorrelationInterval(settings)
				ticker.Reset(interval)
				log.Printf("Recorrelation interval updated to %d minutes", settings.RecorrelationIntervalMinutes)
			}

		case <-stop:
			log.Println("Recorrelation job stopped")
			return
		}
	}
}
