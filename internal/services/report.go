package services

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/triagehub/triagehub/internal/database"
)

// BuildIncidentReport renders a Markdown report for one incident, suitable
// for pasting into a ticket or handoff document. The export is recorded in
// the audit trail.
func BuildIncidentReport(db *gorm.DB, incident *database.Incident, user, ipAddress string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Incident Report: %s\n\n", incident.Title)
	fmt.Fprintf(&b, "- **Incident ID:** %s\n", incident.UUID)
	fmt.Fprintf(&b, "- **Status:** %s\n", incident.Status)
	fmt.Fprintf(&b, "- **Priority score:** %.0f / 100\n", incident.PriorityScore)
	fmt.Fprintf(&b, "- **Alerts:** %d\n", incident.AlertCount)
	fmt.Fprintf(&b, "- **Created:** %s\n", incident.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- **Generated:** %s\n\n", time.Now().UTC().Format(time.RFC3339))

	b.WriteString("## Score breakdown\n\n")
	writeExplanation(&b, incident.ScoreExplanation)

	b.WriteString("\n## Related entities\n\n")
	writeEntityList(&b, "Users", incident.RelatedUsers)
	writeEntityList(&b, "IPs", incident.RelatedIPs)
	writeEntityList(&b, "Devices", incident.RelatedDevices)
	writeEntityList(&b, "Locations", incident.RelatedLocations)

	if len(incident.Alerts) > 0 {
		b.WriteString("\n## Timeline\n\n")
		b.WriteString("| Time (UTC) | Severity | Source | Title |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, a := range incident.Alerts {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
				a.Timestamp.UTC().Format("2006-01-02 15:04:05"),
				a.Severity, a.Source, a.Title)
		}
	}

	if incident.Notes != "" {
		fmt.Fprintf(&b, "\n## Analyst notes\n\n%s\n", incident.Notes)
	}
	if incident.Evidence != "" {
		fmt.Fprintf(&b, "\n## Evidence\n\n%s\n", incident.Evidence)
	}

	RecordAudit(db, AuditActionReportExport, "incident", incident.UUID, nil, user, ipAddress)
	return b.String()
}

// writeExplanation renders the stored score explanation. The JSONB column
// preserves the scorer's field names.
func writeExplanation(b *strings.Builder, explanation database.JSONB) {
	if len(explanation) == 0 {
		b.WriteString("No score explanation recorded.\n")
		return
	}

	fmt.Fprintf(b, "- Severity: %v (%v)\n", explanation["severity_score"], explanation["severity_reason"])
	fmt.Fprintf(b, "- Entity frequency: %v (%v)\n", explanation["entity_frequency_score"], explanation["entity_reason"])
	fmt.Fprintf(b, "- Risk indicators: %v\n", explanation["risk_indicator_score"])

	if reasons, ok := explanation["risk_reasons"].([]interface{}); ok {
		for _, r := range reasons {
			fmt.Fprintf(b, "  - %v\n", r)
		}
	}
	fmt.Fprintf(b, "- **Total: %v**\n", explanation["total_score"])
}

func writeEntityList(b *strings.Builder, label string, values []string) {
	if len(values) == 0 {
		return
	}
	fmt.Fprintf(b, "- **%s:** %s\n", label, strings.Join(values, ", "))
}
