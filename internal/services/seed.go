package services

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/triagehub/triagehub/internal/ingest"
)

// SeedDemoData imports every JSON and CSV file found in dir through the
// normal pipeline, in filename order so the result is reproducible. Files
// that fail to decode are skipped with a log line; the remaining files
// still load.
func SeedDemoData(importer *ImportService, dir, user, ipAddress string) (*ImportSummary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read demo data directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".json" || ext == ".csv" {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	combined := &ImportSummary{}
	for _, name := range names {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			log.Printf("Seed: cannot open %s: %v", name, err)
			continue
		}
		records, err := ingest.Decode(f, name)
		f.Close()
		if err != nil {
			log.Printf("Seed: cannot decode %s: %v", name, err)
			continue
		}

		summary, err := importer.ImportRecords(records, sourceHintFromFilename(name), user, ipAddress)
		if err != nil {
			return nil, fmt.Errorf("seed import of %s failed: %w", name, err)
		}

		combined.AlertsImported += summary.AlertsImported
		combined.Duplicates += summary.Duplicates
		combined.IncidentsCreated += summary.IncidentsCreated
		combined.IncidentsUpdated += summary.IncidentsUpdated
		combined.Rejected = append(combined.Rejected, summary.Rejected...)
	}

	RecordAudit(importer.db, AuditActionSeed, "system", "", nil, user, ipAddress)
	return combined, nil
}

// sourceHintFromFilename guesses the source format from the filename, so
// demo files named defender_alerts.json map without an explicit hint.
func sourceHintFromFilename(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "defender"):
		return "defender"
	case strings.Contains(lower, "azure") || strings.Contains(lower, "aad"):
		return "azure_ad"
	default:
		return ""
	}
}
