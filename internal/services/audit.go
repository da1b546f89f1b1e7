package services

import (
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/triagehub/triagehub/internal/database"
)

// Audit actions recorded by the system.
const (
	AuditActionImport       = "data_import"
	AuditActionRecorrelate  = "recorrelate"
	AuditActionStatusChange = "status_change"
	AuditActionMerge        = "incident_merge"
	AuditActionReportExport = "report_export"
	AuditActionSeed         = "demo_seed"
)

// RecordAudit appends an audit trail entry. Audit failures are logged and
// swallowed so they never fail the action being audited.
func RecordAudit(db *gorm.DB, action, entityType, entityID string, details database.JSONB, user, ipAddress string) {
	if user == "" {
		user = "analyst"
	}
	entry := database.AuditLog{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		User:       user,
		IPAddress:  ipAddress,
		Timestamp:  time.Now().UTC(),
	}
	if err := db.Create(&entry).Error; err != nil {
		log.Printf("Failed to record audit entry %s/%s: %v", action, entityID, err)
	}
}

// ListAuditLog returns audit entries newest first.
func ListAuditLog(db *gorm.DB, limit, offset int) ([]database.AuditLog, int64, error) {
	var total int64
	if err := db.Model(&database.AuditLog{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []database.AuditLog
	err := db.Order("timestamp DESC, id DESC").Limit(limit).Offset(offset).Find(&entries).Error
	return entries, total, err
}
