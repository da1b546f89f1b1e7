package services

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/triagehub/triagehub/internal/alerts"
	"github.com/triagehub/triagehub/internal/api"
	"github.com/triagehub/triagehub/internal/correlation"
	"github.com/triagehub/triagehub/internal/database"
	"github.com/triagehub/triagehub/internal/triage"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidStatus is returned for an unknown incident status value.
var ErrInvalidStatus = errors.New("invalid incident status")

// IncidentFilter narrows incident listings.
type IncidentFilter struct {
	Status   string
	MinScore float64
	Search   string
}

// IncidentService serves incident queries and analyst actions.
type IncidentService struct {
	db *gorm.DB
}

// NewIncidentService creates an incident service.
func NewIncidentService(db *gorm.DB) *IncidentService {
	return &IncidentService{db: db}
}

// List returns incidents ordered by priority score descending, then newest
// first, applying the filter and pagination.
func (s *IncidentService) List(filter IncidentFilter, p api.PaginationParams) ([]database.Incident, int64, error) {
	query := s.db.Model(&database.Incident{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.MinScore > 0 {
		query = query.Where("priority_score >= ?", filter.MinScore)
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(title) LIKE ?", pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var incidents []database.Incident
	err := query.Order("priority_score DESC, created_at DESC").
		Limit(p.PerPage).Offset(p.Offset()).
		Find(&incidents).Error
	return incidents, total, err
}

// HighPriority returns open incidents at or above the score threshold,
// highest first. Closed incidents never appear regardless of score.
func (s *IncidentService) HighPriority(threshold float64) ([]database.Incident, error) {
	var incidents []database.Incident
	err := s.db.Where("priority_score >= ? AND status <> ?", threshold, database.IncidentStatusClosed).
		Order("priority_score DESC, created_at DESC").
		Find(&incidents).Error
	return incidents, err
}

// Get returns one incident by UUID with its member alerts.
func (s *IncidentService) Get(uuid string) (*database.Incident, error) {
	var incident database.Incident
	err := s.db.Preload("Alerts", func(db *gorm.DB) *gorm.DB {
		return db.Order("timestamp, alert_id")
	}).Where("uuid = ?", uuid).First(&incident).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &incident, nil
}

// Update applies analyst changes to an incident and records status changes
// in the audit trail.
func (s *IncidentService) Update(uuid string, req api.IncidentUpdateRequest, user, ipAddress string) (*database.Incident, error) {
	incident, err := s.Get(uuid)
	if err != nil {
		return nil, err
	}

	if req.Status != nil {
		status := database.IncidentStatus(*req.Status)
		if !database.ValidIncidentStatus(status) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *req.Status)
		}
		if status != incident.Status {
			RecordAudit(s.db, AuditActionStatusChange, "incident", incident.UUID, database.JSONB{
				"from": string(incident.Status),
				"to":   string(status),
			}, user, ipAddress)
		}
		incident.Status = status
	}
	if req.Notes != nil {
		incident.Notes = *req.Notes
	}
	if req.Evidence != nil {
		incident.Evidence = *req.Evidence
	}

	if err := s.db.Save(incident).Error; err != nil {
		return nil, err
	}
	return incident, nil
}

// Merge moves all alerts from the source incident into the target, closes
// the source, and records the merge. This is strictly a manual analyst
// action; correlation never merges incidents on its own.
func (s *IncidentService) Merge(targetUUID string, sourceID uint, reason, user, ipAddress string) (*database.Incident, error) {
	target, err := s.Get(targetUUID)
	if err != nil {
		return nil, err
	}

	var source database.Incident
	if err := s.db.First(&source, sourceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if source.ID == target.ID {
		return nil, errors.New("cannot merge an incident into itself")
	}

	settings, err := database.GetOrCreateTriageSettings(s.db)
	if err != nil {
		return nil, fmt.Errorf("failed to load triage settings: %w", err)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&database.Alert{}).
			Where("incident_id = ?", source.ID).
			Update("incident_id", target.ID).Error; err != nil {
			return err
		}

		source.Status = database.IncidentStatusClosed
		source.AlertCount = 0
		if err := tx.Save(&source).Error; err != nil {
			return err
		}

		merge := database.IncidentMerge{
			SourceIncidentID: source.ID,
			TargetIncidentID: target.ID,
			Reason:           reason,
			MergedBy:         user,
		}
		if err := tx.Create(&merge).Error; err != nil {
			return err
		}

		// Membership changed, so the target's title, score and related
		// entities are recomputed over the combined member set, the same
		// way correlation recomputes them.
		var memberRows []database.Alert
		if err := tx.Where("incident_id = ?", target.ID).
			Order("timestamp, alert_id").Find(&memberRows).Error; err != nil {
			return err
		}
		members := make([]alerts.Alert, 0, len(memberRows))
		for _, row := range memberRows {
			members = append(members, toDomainAlert(row))
		}

		derived := &correlation.Incident{
			Members: members,
			Title:   correlation.SynthesizeTitle(members),
			Score:   triage.Score(members, triageConfigFrom(settings)),
		}
		derived.Users, derived.IPs, derived.Devices, derived.Locations = correlation.RelatedEntities(members)

		var row database.Incident
		if err := tx.First(&row, target.ID).Error; err != nil {
			return err
		}
		applyDerived(&row, derived)
		return tx.Save(&row).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to merge incidents: %w", err)
	}

	RecordAudit(s.db, AuditActionMerge, "incident", target.UUID, database.JSONB{
		"source_incident_id": source.ID,
		"target_incident_id": target.ID,
		"reason":             reason,
	}, user, ipAddress)

	return s.Get(targetUUID)
}

// GetAlert returns one alert by its alert ID.
func (s *IncidentService) GetAlert(alertID string) (*database.Alert, error) {
	var alert database.Alert
	err := s.db.Where("alert_id = ?", alertID).First(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// ListAlerts returns alerts newest first with optional source and severity
// filters.
func (s *IncidentService) ListAlerts(source, severity string, p api.PaginationParams) ([]database.Alert, int64, error) {
	query := s.db.Model(&database.Alert{})
	if source != "" {
		query = query.Where("source = ?", source)
	}
	if severity != "" {
		query = query.Where("severity = ?", severity)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []database.Alert
	err := query.Order("timestamp DESC, alert_id").
		Limit(p.PerPage).Offset(p.Offset()).
		Find(&rows).Error
	return rows, total, err
}

// Stats aggregates the dashboard counters.
func (s *IncidentService) Stats() (*api.DashboardStats, error) {
	stats := &api.DashboardStats{
		BySeverity: make(map[string]int64),
		ByStatus:   make(map[string]int64),
		BySource:   make(map[string]int64),
	}

	if err := s.db.Model(&database.Alert{}).Count(&stats.TotalAlerts).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&database.Incident{}).Count(&stats.TotalIncidents).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&database.Incident{}).
		Where("status <> ?", database.IncidentStatusClosed).
		Count(&stats.OpenIncidents).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&database.Incident{}).
		Where("priority_score >= ? AND status <> ?", 70, database.IncidentStatusClosed).
		Count(&stats.HighPriorityCount).Error; err != nil {
		return nil, err
	}

	type bucket struct {
		Key   string
		Count int64
	}

	var severities []bucket
	if err := s.db.Model(&database.Alert{}).
		Select("severity AS key, COUNT(*) AS count").
		Group("severity").Scan(&severities).Error; err != nil {
		return nil, err
	}
	for _, b := range severities {
		stats.BySeverity[b.Key] = b.Count
	}

	var statuses []bucket
	if err := s.db.Model(&database.Incident{}).
		Select("status AS key, COUNT(*) AS count").
		Group("status").Scan(&statuses).Error; err != nil {
		return nil, err
	}
	for _, b := range statuses {
		stats.ByStatus[b.Key] = b.Count
	}

	var sources []bucket
	if err := s.db.Model(&database.Alert{}).
		Select("source AS key, COUNT(*) AS count").
		Group("source").Scan(&sources).Error; err != nil {
		return nil, err
	}
	for _, b := range sources {
		stats.BySource[b.Key] = b.Count
	}

	return stats, nil
}
