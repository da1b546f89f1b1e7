// Package services implements the application layer: the single-writer
// ingestion pipeline, incident queries and analyst actions, reports, and
// the audit trail.
package services

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/triagehub/triagehub/internal/alerts"
	"github.com/triagehub/triagehub/internal/correlation"
	"github.com/triagehub/triagehub/internal/database"
	"github.com/triagehub/triagehub/internal/metrics"
)

// IncidentNotifier pushes notifications for incidents touched by an import.
type IncidentNotifier interface {
	NotifyIncident(incident *database.Incident)
}

// ImportSummary reports the outcome of one import batch. Rejections carry
// the zero-based index of the record within the uploaded batch.
type ImportSummary struct {
	AlertsImported   int                     `json:"alerts_imported"`
	Duplicates       int                     `json:"duplicates"`
	IncidentsCreated int                     `json:"incidents_created"`
	IncidentsUpdated int                     `json:"incidents_updated"`
	Rejected         []alerts.RejectedRecord `json:"rejected"`
}

// RecorrelateSummary reports the outcome of a full recorrelation run.
type RecorrelateSummary struct {
	Alerts    int `json:"alerts"`
	Incidents int `json:"incidents"`
}

// ImportService owns the ingestion pipeline: normalize, deduplicate,
// correlate, persist. The mutex makes it the single writer for correlation
// state; HTTP handlers and the background job all funnel through it, so
// every correlation decision observes the fully settled result of the
// previous one.
type ImportService struct {
	db       *gorm.DB
	mapping  alerts.MappingConfig
	notifier IncidentNotifier

	mu sync.Mutex
}

// NewImportService creates the import service. notifier may be nil.
func NewImportService(db *gorm.DB, mapping alerts.MappingConfig, notifier IncidentNotifier) *ImportService {
	if mapping.Sources == nil {
		mapping = alerts.DefaultMappingConfig()
	}
	return &ImportService{db: db, mapping: mapping, notifier: notifier}
}

// ImportRecords runs a batch of raw records through the full pipeline.
// Per-record failures are collected, never fatal; only storage errors abort
// the batch.
func (s *ImportService) ImportRecords(records []alerts.RawRecord, sourceHint, user, ipAddress string) (*ImportSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	defer func() {
		metrics.ImportDuration.Observe(time.Since(start).Seconds())
	}()

	summary := &ImportSummary{Rejected: []alerts.RejectedRecord{}}

	normalizer := alerts.NewNormalizer(s.mapping)
	var accepted []alerts.Alert
	for i, record := range records {
		alert, rejected := normalizer.Normalize(record, sourceHint, i)
		if rejected != nil {
			summary.Rejected = append(summary.Rejected, *rejected)
			metrics.AlertsRejected.WithLabelValues(rejected.Reason).Inc()
			continue
		}
		accepted = append(accepted, *alert)
	}

	fresh, duplicates, err := s.dropDuplicates(accepted)
	if err != nil {
		return nil, fmt.Errorf("duplicate check failed: %w", err)
	}
	summary.Duplicates = duplicates
	if duplicates > 0 {
		metrics.AlertsDuplicate.Add(float64(duplicates))
	}

	// Deterministic processing order: timestamp ascending, alert_id ties.
	correlation.SortDeterministic(fresh)

	cfg, err := s.correlationConfig()
	if err != nil {
		return nil, err
	}
	engine, err := s.hydrateEngine(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to hydrate correlation state: %w", err)
	}

	affected := make(map[*correlation.Incident]bool)
	created := make(map[*correlation.Incident]bool)
	newByID := make(map[string]bool, len(fresh))

	for _, a := range fresh {
		inc, isNew, err := engine.Assign(a)
		if err != nil {
			return nil, err
		}
		affected[inc] = true
		if isNew {
			created[inc] = true
		}
		newByID[a.AlertID] = true
	}

	var touched []*database.Incident
	err = s.db.Transaction(func(tx *gorm.DB) error {
		for inc := range affected {
			row, err := persistIncident(tx, inc, newByID)
			if err != nil {
				return err
			}
			touched = append(touched, row)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist import: %w", err)
	}

	summary.AlertsImported = len(fresh)
	for inc := range affected {
		if created[inc] {
			summary.IncidentsCreated++
		} else {
			summary.IncidentsUpdated++
		}
	}

	for _, a := range fresh {
		metrics.AlertsImported.WithLabelValues(a.Source).Inc()
	}
	if summary.IncidentsCreated > 0 {
		metrics.IncidentsCreated.Add(float64(summary.IncidentsCreated))
	}

	RecordAudit(s.db, AuditActionImport, "system", "", database.JSONB{
		"source":            sourceHint,
		"records":           len(records),
		"alerts_imported":   summary.AlertsImported,
		"duplicates":        summary.Duplicates,
		"rejected":          len(summary.Rejected),
		"incidents_created": summary.IncidentsCreated,
		"incidents_updated": summary.IncidentsUpdated,
	}, user, ipAddress)

	if s.notifier != nil {
		for _, row := range touched {
			s.notifier.NotifyIncident(row)
		}
	}

	log.Printf("Import complete: %d imported, %d duplicates, %d rejected, %d incidents created, %d updated",
		summary.AlertsImported, summary.Duplicates, len(summary.Rejected),
		summary.IncidentsCreated, summary.IncidentsUpdated)

	return summary, nil
}

// Recorrelate rebuilds all incidents from the stored alert corpus in
// deterministic order. Analyst notes and statuses on existing incidents are
// carried over to the rebuilt incident holding the old incident's earliest
// alert.
func (s *ImportService) Recorrelate(user, ipAddress string) (*RecorrelateSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []database.Alert
	if err := s.db.Order("timestamp, alert_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load alerts: %w", err)
	}

	corpus := make([]alerts.Alert, 0, len(rows))
	for _, row := range rows {
		corpus = append(corpus, toDomainAlert(row))
	}

	cfg, err := s.correlationConfig()
	if err != nil {
		return nil, err
	}

	incidents, err := correlation.Recorrelate(corpus, cfg)
	if err != nil {
		return nil, err
	}

	// Remember analyst state keyed by member alert_id before the rebuild.
	analystState, err := s.loadAnalystState()
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&database.Incident{}).Error; err != nil {
			return err
		}
		for _, inc := range incidents {
			row := database.Incident{
				UUID:   uuid.NewString(),
				Status: database.IncidentStatusNew,
			}
			applyDerived(&row, inc)
			if prior := analystState.match(inc); prior != nil {
				row.Status = prior.Status
				row.Notes = prior.Notes
				row.Evidence = prior.Evidence
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			for _, m := range inc.Members {
				if err := tx.Model(&database.Alert{}).
					Where("alert_id = ?", m.AlertID).
					Update("incident_id", row.ID).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist recorrelation: %w", err)
	}

	metrics.Recorrelations.Inc()
	RecordAudit(s.db, AuditActionRecorrelate, "system", "", database.JSONB{
		"alerts":    len(corpus),
		"incidents": len(incidents),
	}, user, ipAddress)

	log.Printf("Recorrelation complete: %d alerts into %d incidents", len(corpus), len(incidents))
	return &RecorrelateSummary{Alerts: len(corpus), Incidents: len(incidents)}, nil
}

// dropDuplicates removes alerts whose alert_id already exists in storage or
// earlier in the same batch.
func (s *ImportService) dropDuplicates(batch []alerts.Alert) ([]alerts.Alert, int, error) {
	if len(batch) == 0 {
		return nil, 0, nil
	}

	ids := make([]string, 0, len(batch))
	for _, a := range batch {
		ids = append(ids, a.AlertID)
	}

	var existing []string
	if err := s.db.Model(&database.Alert{}).
		Where("alert_id IN ?", ids).
		Pluck("alert_id", &existing).Error; err != nil {
		return nil, 0, err
	}

	seen := make(map[string]bool, len(existing))
	for _, id := range existing {
		seen[id] = true
	}

	var fresh []alerts.Alert
	duplicates := 0
	for _, a := range batch {
		if seen[a.AlertID] {
			duplicates++
			continue
		}
		seen[a.AlertID] = true
		fresh = append(fresh, a)
	}
	return fresh, duplicates, nil
}

// correlationConfig builds engine configuration from the stored settings.
func (s *ImportService) correlationConfig() (correlation.Config, error) {
	settings, err := database.GetOrCreateTriageSettings(s.db)
	if err != nil {
		return correlation.Config{}, fmt.Errorf("failed to load triage settings: %w", err)
	}

	cfg := correlation.DefaultConfig()
	cfg.Window = time.Duration(settings.CorrelationWindowMinutes) * time.Minute
	cfg.Triage = triageConfigFrom(settings)
	return cfg, nil
}

// hydrateEngine loads the persisted incidents and any unassigned alerts
// into a fresh engine, in incident creation order.
func (s *ImportService) hydrateEngine(cfg correlation.Config) (*correlation.Engine, error) {
	engine := correlation.NewEngine(cfg)

	var rows []database.Incident
	if err := s.db.Preload("Alerts").Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		inc := &correlation.Incident{
			StoreID:   row.ID,
			Title:     row.Title,
			CreatedAt: row.CreatedAt.UTC(),
			UpdatedAt: row.UpdatedAt.UTC(),
		}
		for _, a := range row.Alerts {
			inc.Members = append(inc.Members, toDomainAlert(a))
		}
		if err := engine.Hydrate(inc); err != nil {
			return nil, err
		}
	}

	var loose []database.Alert
	if err := s.db.Where("incident_id = 0").Find(&loose).Error; err != nil {
		return nil, err
	}
	for _, a := range loose {
		engine.AddUnassigned(toDomainAlert(a))
	}

	return engine, nil
}

// persistIncident writes one affected incident and its new member alerts.
// Members already in storage only have their incident_id moved.
func persistIncident(tx *gorm.DB, inc *correlation.Incident, newByID map[string]bool) (*database.Incident, error) {
	var row database.Incident
	if inc.StoreID == 0 {
		row = database.Incident{
			UUID:   uuid.NewString(),
			Status: database.IncidentStatusNew,
		}
		applyDerived(&row, inc)
		if err := tx.Create(&row).Error; err != nil {
			return nil, err
		}
		inc.StoreID = row.ID
	} else {
		if err := tx.First(&row, inc.StoreID).Error; err != nil {
			return nil, err
		}
		applyDerived(&row, inc)
		if err := tx.Save(&row).Error; err != nil {
			return nil, err
		}
	}

	for _, m := range inc.Members {
		if newByID[m.AlertID] {
			alertRow := toAlertRow(m, row.ID)
			if err := tx.Create(&alertRow).Error; err != nil {
				return nil, err
			}
			continue
		}
		if err := tx.Model(&database.Alert{}).
			Where("alert_id = ? AND incident_id <> ?", m.AlertID, row.ID).
			Update("incident_id", row.ID).Error; err != nil {
			return nil, err
		}
	}
	return &row, nil
}

// analystState preserves Status/Notes/Evidence across a recorrelation.
type analystState struct {
	byAlertID map[string]*database.Incident
}

// loadAnalystState snapshots current incidents keyed by member alert_id.
func (s *ImportService) loadAnalystState() (*analystState, error) {
	var rows []database.Incident
	if err := s.db.Preload("Alerts").Find(&rows).Error; err != nil {
		return nil, err
	}
	state := &analystState{byAlertID: make(map[string]*database.Incident)}
	for i := range rows {
		for _, a := range rows[i].Alerts {
			state.byAlertID[a.AlertID] = &rows[i]
		}
	}
	return state, nil
}

// match returns the prior incident that held the rebuilt incident's first
// member, if any. First member means earliest in deterministic order since
// the rebuilt incident's members arrive sorted.
func (st *analystState) match(inc *correlation.Incident) *database.Incident {
	for _, m := range inc.Members {
		if prior, ok := st.byAlertID[m.AlertID]; ok {
			return prior
		}
	}
	return nil
}
