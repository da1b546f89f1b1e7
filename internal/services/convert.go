package services

import (
	"encoding/json"

	"github.com/triagehub/triagehub/internal/alerts"
	"github.com/triagehub/triagehub/internal/correlation"
	"github.com/triagehub/triagehub/internal/database"
	"github.com/triagehub/triagehub/internal/triage"
)

// toDomainAlert converts a persisted alert row to the domain type.
func toDomainAlert(row database.Alert) alerts.Alert {
	return alerts.Alert{
		AlertID:        row.AlertID,
		Source:         row.Source,
		Category:       row.Category,
		Severity:       alerts.Severity(row.Severity),
		Title:          row.Title,
		Description:    row.Description,
		EntityUser:     row.EntityUser,
		EntityIP:       row.EntityIP,
		EntityDevice:   row.EntityDevice,
		EntityLocation: row.EntityLocation,
		Timestamp:      row.Timestamp.UTC(),
		RawData:        row.RawData,
	}
}

// toAlertRow converts a domain alert to a row ready for insertion.
func toAlertRow(a alerts.Alert, incidentID uint) database.Alert {
	return database.Alert{
		AlertID:        a.AlertID,
		Source:         a.Source,
		Category:       a.Category,
		Severity:       string(a.Severity),
		Title:          a.Title,
		Description:    a.Description,
		EntityUser:     a.EntityUser,
		EntityIP:       a.EntityIP,
		EntityDevice:   a.EntityDevice,
		EntityLocation: a.EntityLocation,
		Timestamp:      a.Timestamp,
		RawData:        a.RawData,
		IncidentID:     incidentID,
	}
}

// applyDerived copies the correlator's derived state onto an incident row.
// Analyst-owned fields (Status, Notes, Evidence) are never touched.
func applyDerived(row *database.Incident, inc *correlation.Incident) {
	row.Title = inc.Title
	row.PriorityScore = inc.Score.TotalScore
	row.ScoreExplanation = explanationJSONB(inc.Score)
	row.RelatedUsers = database.StringList(inc.Users)
	row.RelatedIPs = database.StringList(inc.IPs)
	row.RelatedDevices = database.StringList(inc.Devices)
	row.RelatedLocations = database.StringList(inc.Locations)
	row.AlertCount = len(inc.Members)
}

// triageConfigFrom builds scoring configuration from the stored settings.
// Empty category lists keep the built-in defaults.
func triageConfigFrom(settings *database.TriageSettings) triage.Config {
	cfg := triage.DefaultConfig()
	if len(settings.HighRiskCategories) > 0 {
		cfg.HighRiskCategories = settings.HighRiskCategories
	}
	if len(settings.FailedAuthCategories) > 0 {
		cfg.FailedAuthCategories = settings.FailedAuthCategories
	}
	cfg.BusinessHoursStart = settings.BusinessHoursStart
	cfg.BusinessHoursEnd = settings.BusinessHoursEnd
	cfg.BusinessDays = triage.BusinessDaysFrom(settings.BusinessDays)
	return cfg
}

// explanationJSONB converts a score explanation into the JSONB column type
// via its JSON encoding, so the stored shape matches the API shape.
func explanationJSONB(e triage.Explanation) database.JSONB {
	data, err := json.Marshal(e)
	if err != nil {
		return database.JSONB{}
	}
	var out database.JSONB
	if err := json.Unmarshal(data, &out); err != nil {
		return database.JSONB{}
	}
	return out
}
