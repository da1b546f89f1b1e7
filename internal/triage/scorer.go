// Package triage computes explainable 0-100 priority scores for incidents.
//
// Scoring is a pure function of the incident's member alerts and the
// configuration: no clock reads, no database access, no randomness. The
// explanation it produces is the sole audit trail for why an incident
// ranks where it does, so given the same member set the output must be
// reproducible byte for byte.
package triage

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/triagehub/triagehub/internal/alerts"
)

// Component caps. Severity contributes 10-40, the other two 0-30 each.
const (
	maxSeverityScore  = 40
	maxEntityScore    = 30
	maxRiskScore      = 30
	maxTotalScore     = 100
	entityFreqMinimum = 3
)

// Config controls the configurable scoring inputs.
type Config struct {
	// HighRiskCategories trigger the +10 risk indicator (lowercase match).
	HighRiskCategories []string

	// FailedAuthCategories identify failed-authentication alerts for the
	// repeated-failure indicator (lowercase match).
	FailedAuthCategories []string

	// Business hours window, in UTC hours [Start, End).
	BusinessHoursStart int
	BusinessHoursEnd   int

	// BusinessDays is the set of weekdays considered working days.
	BusinessDays map[time.Weekday]bool
}

// DefaultConfig returns the standard scoring configuration: the original
// high-risk category list, 07:00-19:00 business hours, Monday-Friday.
func DefaultConfig() Config {
	return Config{
		HighRiskCategories: []string{
			"malware", "ransomware", "phishing", "credential theft",
			"lateral movement", "data exfiltration", "privilege escalation",
		},
		FailedAuthCategories: []string{
			"failed sign-in", "failed login", "failed authentication", "brute force",
		},
		BusinessHoursStart: 7,
		BusinessHoursEnd:   19,
		BusinessDays: map[time.Weekday]bool{
			time.Monday: true, time.Tuesday: true, time.Wednesday: true,
			time.Thursday: true, time.Friday: true,
		},
	}
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// BusinessDaysFrom builds a weekday set from day names ("Monday", ...).
// Matching is case-insensitive and unrecognized names are skipped; when
// nothing matches, the default Monday through Friday set applies.
func BusinessDaysFrom(names []string) map[time.Weekday]bool {
	days := make(map[time.Weekday]bool)
	for _, name := range names {
		if d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]; ok {
			days[d] = true
		}
	}
	if len(days) == 0 {
		return DefaultConfig().BusinessDays
	}
	return days
}

// Explanation is the structured score breakdown attached to an incident.
type Explanation struct {
	SeverityScore        float64  `json:"severity_score"`
	SeverityReason       string   `json:"severity_reason"`
	EntityFrequencyScore float64  `json:"entity_frequency_score"`
	EntityReason         string   `json:"entity_reason"`
	RiskIndicatorScore   float64  `json:"risk_indicator_score"`
	RiskReasons          []string `json:"risk_reasons"`
	TotalScore           float64  `json:"total_score"`
	AlertCount           int      `json:"alert_count"`
}

// Score computes the priority score and explanation for an incident's
// member alerts. Members must be non-empty and are evaluated in the order
// given; all internal iteration is deterministic.
func Score(members []alerts.Alert, cfg Config) Explanation {
	severity, severityReason := severityComponent(members)
	entity, entityReason := entityFrequencyComponent(members)
	risk, riskReasons := riskIndicatorComponent(members, cfg)

	total := severity + entity + risk
	if total > maxTotalScore {
		total = maxTotalScore
	}
	if total < 0 {
		total = 0
	}

	return Explanation{
		SeverityScore:        severity,
		SeverityReason:       severityReason,
		EntityFrequencyScore: entity,
		EntityReason:         entityReason,
		RiskIndicatorScore:   risk,
		RiskReasons:          riskReasons,
		TotalScore:           total,
		AlertCount:           len(members),
	}
}

// severityComponent: base from the highest member severity, +5 for each
// additional high or critical member beyond the first, capped at 40.
func severityComponent(members []alerts.Alert) (float64, string) {
	if len(members) == 0 {
		return 0, "no alerts"
	}

	maxSev := members[0].Severity
	highOrCritical := 0
	for _, a := range members {
		if a.Severity.Rank() > maxSev.Rank() {
			maxSev = a.Severity
		}
		if a.Severity == alerts.SeverityHigh || a.Severity == alerts.SeverityCritical {
			highOrCritical++
		}
	}

	score := float64(10 * maxSev.Rank())
	reason := fmt.Sprintf("Highest severity: %s", maxSev)

	if highOrCritical > 1 {
		bonus := float64(5 * (highOrCritical - 1))
		score += bonus
		reason += fmt.Sprintf(", %d additional high/critical alerts (+%.0f)", highOrCritical-1, bonus)
	}

	if score > maxSeverityScore {
		score = maxSeverityScore
	}
	return score, reason
}

// entityFrequencyComponent: +10 per distinct user, +8 per distinct IP and
// +5 per distinct device appearing in at least three members, capped at 30.
func entityFrequencyComponent(members []alerts.Alert) (float64, string) {
	userCounts := countEntities(members, func(a alerts.Alert) string { return a.EntityUser })
	ipCounts := countEntities(members, func(a alerts.Alert) string { return a.EntityIP })
	deviceCounts := countEntities(members, func(a alerts.Alert) string { return a.EntityDevice })

	score := 0.0
	var reasons []string

	for _, e := range frequentEntities(userCounts) {
		score += 10
		reasons = append(reasons, fmt.Sprintf("User %q in %d alerts", e.value, e.count))
	}
	for _, e := range frequentEntities(ipCounts) {
		score += 8
		reasons = append(reasons, fmt.Sprintf("IP %q in %d alerts", e.value, e.count))
	}
	for _, e := range frequentEntities(deviceCounts) {
		score += 5
		reasons = append(reasons, fmt.Sprintf("Device %q in %d alerts", e.value, e.count))
	}

	if score > maxEntityScore {
		score = maxEntityScore
	}

	reason := "No frequent entities"
	if len(reasons) > 0 {
		reason = strings.Join(reasons, "; ")
	}
	return score, reason
}

// riskIndicatorComponent evaluates each heuristic independently and records
// a reason string for every triggered indicator, capped at 30.
func riskIndicatorComponent(members []alerts.Alert, cfg Config) (float64, []string) {
	score := 0.0
	reasons := []string{}

	// Two or more distinct users sharing one IP.
	if ip, users := sharedIPUsers(members); len(users) >= 2 {
		score += 15
		reasons = append(reasons, fmt.Sprintf("multiple users on same IP: %d users on %s", len(users), ip))
	}

	// Any member in a high-risk category (counted once, first match).
	for _, a := range members {
		if containsFold(cfg.HighRiskCategories, a.Category) {
			score += 10
			reasons = append(reasons, fmt.Sprintf("high-risk category: %s", a.Category))
			break
		}
	}

	// Impossible travel: same user, different non-empty locations, under
	// an hour apart.
	if user, from, to := impossibleTravel(members); user != "" {
		score += 20
		reasons = append(reasons, fmt.Sprintf("impossible travel: user %s seen in %s and %s within an hour", user, from, to))
	}

	// Three or more failed-authentication members.
	failedCount := 0
	for _, a := range members {
		if containsFold(cfg.FailedAuthCategories, a.Category) {
			failedCount++
		}
	}
	if failedCount >= 3 {
		score += 10
		reasons = append(reasons, "multiple failed authentication attempts")
	}

	// Any member outside business hours.
	for _, a := range members {
		if !withinBusinessHours(a.Timestamp, cfg) {
			score += 5
			reasons = append(reasons, "off-hours activity")
			break
		}
	}

	if score > maxRiskScore {
		score = maxRiskScore
	}
	return score, reasons
}

type entityCount struct {
	value string
	count int
}

// countEntities tallies members per lowercase entity value, remembering the
// first-seen spelling for reporting.
func countEntities(members []alerts.Alert, extract func(alerts.Alert) string) []entityCount {
	counts := make(map[string]*entityCount)
	var order []string
	for _, a := range members {
		v := extract(a)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if c, ok := counts[key]; ok {
			c.count++
		} else {
			counts[key] = &entityCount{value: v, count: 1}
			order = append(order, key)
		}
	}
	result := make([]entityCount, 0, len(order))
	for _, key := range order {
		result = append(result, *counts[key])
	}
	return result
}

func frequentEntities(counts []entityCount) []entityCount {
	var frequent []entityCount
	for _, c := range counts {
		if c.count >= entityFreqMinimum {
			frequent = append(frequent, c)
		}
	}
	return frequent
}

// sharedIPUsers finds the first IP (in member order) used by two or more
// distinct users and returns that IP with its sorted user list.
func sharedIPUsers(members []alerts.Alert) (string, []string) {
	usersByIP := make(map[string]map[string]bool)
	var ipOrder []string
	for _, a := range members {
		if a.EntityIP == "" || a.EntityUser == "" {
			continue
		}
		ip := a.EntityIP
		if _, ok := usersByIP[ip]; !ok {
			usersByIP[ip] = make(map[string]bool)
			ipOrder = append(ipOrder, ip)
		}
		usersByIP[ip][strings.ToLower(a.EntityUser)] = true
	}
	for _, ip := range ipOrder {
		if len(usersByIP[ip]) >= 2 {
			users := make([]string, 0, len(usersByIP[ip]))
			for u := range usersByIP[ip] {
				users = append(users, u)
			}
			sort.Strings(users)
			return ip, users
		}
	}
	return "", nil
}

// impossibleTravel returns the first member pair (in member order) sharing
// a user but reporting different non-empty locations less than an hour
// apart.
func impossibleTravel(members []alerts.Alert) (user, from, to string) {
	for i := 0; i < len(members); i++ {
		a := members[i]
		if a.EntityUser == "" || a.EntityLocation == "" {
			continue
		}
		for j := i + 1; j < len(members); j++ {
			b := members[j]
			if b.EntityUser == "" || b.EntityLocation == "" {
				continue
			}
			if !strings.EqualFold(a.EntityUser, b.EntityUser) {
				continue
			}
			if strings.EqualFold(a.EntityLocation, b.EntityLocation) {
				continue
			}
			gap := a.Timestamp.Sub(b.Timestamp)
			if gap < 0 {
				gap = -gap
			}
			if gap < time.Hour {
				return a.EntityUser, a.EntityLocation, b.EntityLocation
			}
		}
	}
	return "", "", ""
}

// withinBusinessHours reports whether a timestamp (UTC) falls inside the
// configured business window on a configured business day.
func withinBusinessHours(t time.Time, cfg Config) bool {
	t = t.UTC()
	if !cfg.BusinessDays[t.Weekday()] {
		return false
	}
	hour := t.Hour()
	return hour >= cfg.BusinessHoursStart && hour < cfg.BusinessHoursEnd
}

func containsFold(set []string, value string) bool {
	for _, s := range set {
		if strings.EqualFold(s, value) {
			return true
		}
	}
	return false
}
