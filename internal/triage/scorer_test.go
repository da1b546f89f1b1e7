package triage

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/triagehub/triagehub/internal/alerts"
)

// 2025-03-10 is a Monday.
func businessTime(hour int) time.Time {
	return time.Date(2025, 3, 10, hour, 0, 0, 0, time.UTC)
}

func member(id string, sev alerts.Severity, opts ...func(*alerts.Alert)) alerts.Alert {
	a := alerts.Alert{
		AlertID:   id,
		Severity:  sev,
		Category:  "Suspicious Activity",
		Timestamp: businessTime(12),
	}
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

func withUser(u string) func(*alerts.Alert)     { return func(a *alerts.Alert) { a.EntityUser = u } }
func withIP(ip string) func(*alerts.Alert)      { return func(a *alerts.Alert) { a.EntityIP = ip } }
func withDevice(d string) func(*alerts.Alert)   { return func(a *alerts.Alert) { a.EntityDevice = d } }
func withLocation(l string) func(*alerts.Alert) { return func(a *alerts.Alert) { a.EntityLocation = l } }
func withCategory(c string) func(*alerts.Alert) { return func(a *alerts.Alert) { a.Category = c } }
func at(t time.Time) func(*alerts.Alert)        { return func(a *alerts.Alert) { a.Timestamp = t } }

func TestScore_KnownFixture(t *testing.T) {
	// One critical and two high alerts on the same user, one in a
	// high-risk category, one at 02:00. Severity: 40 + 5*2 capped at 40.
	// Entity: the user appears in 3 alerts, +10. Risk: high-risk category
	// +10, off-hours +5. Total 65.
	members := []alerts.Alert{
		member("a1", alerts.SeverityCritical, withUser("alice"), withCategory("Malware")),
		member("a2", alerts.SeverityHigh, withUser("alice")),
		member("a3", alerts.SeverityHigh, withUser("alice"), at(time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC))),
	}

	e := Score(members, DefaultConfig())

	if e.SeverityScore != 40 {
		t.Errorf("severity score = %.0f, want 40", e.SeverityScore)
	}
	if e.EntityFrequencyScore != 10 {
		t.Errorf("entity score = %.0f, want 10", e.EntityFrequencyScore)
	}
	if e.RiskIndicatorScore != 15 {
		t.Errorf("risk score = %.0f, want 15", e.RiskIndicatorScore)
	}
	if e.TotalScore != 65 {
		t.Errorf("total = %.0f, want 65", e.TotalScore)
	}
	if e.AlertCount != 3 {
		t.Errorf("alert count = %d, want 3", e.AlertCount)
	}
}

func TestScore_IsReproducible(t *testing.T) {
	members := []alerts.Alert{
		member("a1", alerts.SeverityCritical, withUser("alice"), withIP("10.0.0.1"), withCategory("Phishing")),
		member("a2", alerts.SeverityHigh, withUser("bob"), withIP("10.0.0.1")),
		member("a3", alerts.SeverityMedium, withUser("alice"), withLocation("Berlin")),
	}

	first, err := json.Marshal(Score(members, DefaultConfig()))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, _ := json.Marshal(Score(members, DefaultConfig()))
		if string(first) != string(again) {
			t.Fatalf("explanation differs between runs:\n%s\n%s", first, again)
		}
	}
}

func TestScore_SeverityComponent(t *testing.T) {
	cases := []struct {
		name    string
		members []alerts.Alert
		want    float64
	}{
		{"single low", []alerts.Alert{member("a", alerts.SeverityLow)}, 10},
		{"single medium", []alerts.Alert{member("a", alerts.SeverityMedium)}, 20},
		{"single high", []alerts.Alert{member("a", alerts.SeverityHigh)}, 30},
		{"single critical", []alerts.Alert{member("a", alerts.SeverityCritical)}, 40},
		{"high plus high", []alerts.Alert{
			member("a", alerts.SeverityHigh), member("b", alerts.SeverityHigh),
		}, 35},
		{"cap at 40", []alerts.Alert{
			member("a", alerts.SeverityCritical), member("b", alerts.SeverityCritical),
			member("c", alerts.SeverityCritical), member("d", alerts.SeverityCritical),
		}, 40},
	}

	for _, tc := range cases {
		e := Score(tc.members, DefaultConfig())
		if e.SeverityScore != tc.want {
			t.Errorf("%s: severity = %.0f, want %.0f", tc.name, e.SeverityScore, tc.want)
		}
	}
}

func TestScore_EntityFrequency(t *testing.T) {
	// Two alerts with the same user stay under the frequency threshold.
	under := []alerts.Alert{
		member("a", alerts.SeverityLow, withUser("alice")),
		member("b", alerts.SeverityLow, withUser("alice")),
	}
	if e := Score(under, DefaultConfig()); e.EntityFrequencyScore != 0 {
		t.Errorf("two occurrences should not score, got %.0f", e.EntityFrequencyScore)
	}

	// User (3x, +10), IP (3x, +8) and device (3x, +5) all at threshold.
	full := []alerts.Alert{
		member("a", alerts.SeverityLow, withUser("alice"), withIP("10.0.0.1"), withDevice("ws1")),
		member("b", alerts.SeverityLow, withUser("Alice"), withIP("10.0.0.1"), withDevice("WS1")),
		member("c", alerts.SeverityLow, withUser("ALICE"), withIP("10.0.0.1"), withDevice("ws1")),
	}
	e := Score(full, DefaultConfig())
	if e.EntityFrequencyScore != 23 {
		t.Errorf("entity score = %.0f, want 23", e.EntityFrequencyScore)
	}
	if !strings.Contains(e.EntityReason, "alice") && !strings.Contains(e.EntityReason, "Alice") {
		t.Errorf("expected user named in reason, got %q", e.EntityReason)
	}
}

func TestScore_EntityFrequencyCap(t *testing.T) {
	// Four distinct frequent users would be 40; the component caps at 30.
	var members []alerts.Alert
	for _, u := range []string{"u1", "u2", "u3", "u4"} {
		for i := 0; i < 3; i++ {
			members = append(members, member(u+string(rune('a'+i)), alerts.SeverityLow, withUser(u)))
		}
	}
	if e := Score(members, DefaultConfig()); e.EntityFrequencyScore != 30 {
		t.Errorf("entity score = %.0f, want cap 30", e.EntityFrequencyScore)
	}
}

func TestScore_RiskIndicators(t *testing.T) {
	t.Run("shared IP across users", func(t *testing.T) {
		members := []alerts.Alert{
			member("a", alerts.SeverityLow, withUser("alice"), withIP("10.0.0.9")),
			member("b", alerts.SeverityLow, withUser("bob"), withIP("10.0.0.9")),
		}
		e := Score(members, DefaultConfig())
		if e.RiskIndicatorScore != 15 {
			t.Errorf("risk = %.0f, want 15", e.RiskIndicatorScore)
		}
		if len(e.RiskReasons) != 1 || !strings.Contains(e.RiskReasons[0], "10.0.0.9") {
			t.Errorf("unexpected reasons: %v", e.RiskReasons)
		}
	})

	t.Run("high-risk category counted once", func(t *testing.T) {
		members := []alerts.Alert{
			member("a", alerts.SeverityLow, withCategory("Ransomware")),
			member("b", alerts.SeverityLow, withCategory("Phishing")),
		}
		e := Score(members, DefaultConfig())
		if e.RiskIndicatorScore != 10 {
			t.Errorf("risk = %.0f, want 10 (single category bonus)", e.RiskIndicatorScore)
		}
	})

	t.Run("impossible travel", func(t *testing.T) {
		members := []alerts.Alert{
			member("a", alerts.SeverityLow, withUser("alice"), withLocation("Berlin"), at(businessTime(12))),
			member("b", alerts.SeverityLow, withUser("alice"), withLocation("Tokyo"), at(businessTime(12).Add(30*time.Minute))),
		}
		e := Score(members, DefaultConfig())
		if e.RiskIndicatorScore != 20 {
			t.Errorf("risk = %.0f, want 20", e.RiskIndicatorScore)
		}
	})

	t.Run("same locations are not travel", func(t *testing.T) {
		members := []alerts.Alert{
			member("a", alerts.SeverityLow, withUser("alice"), withLocation("Berlin")),
			member("b", alerts.SeverityLow, withUser("alice"), withLocation("berlin")),
		}
		if e := Score(members, DefaultConfig()); e.RiskIndicatorScore != 0 {
			t.Errorf("risk = %.0f, want 0", e.RiskIndicatorScore)
		}
	})

	t.Run("repeated failed auth", func(t *testing.T) {
		members := []alerts.Alert{
			member("a", alerts.SeverityLow, withCategory("Failed sign-in")),
			member("b", alerts.SeverityLow, withCategory("Failed sign-in")),
			member("c", alerts.SeverityLow, withCategory("Failed sign-in")),
		}
		e := Score(members, DefaultConfig())
		if e.RiskIndicatorScore != 10 {
			t.Errorf("risk = %.0f, want 10", e.RiskIndicatorScore)
		}

		// Two failures stay quiet.
		if e := Score(members[:2], DefaultConfig()); e.RiskIndicatorScore != 0 {
			t.Errorf("risk = %.0f, want 0 for two failures", e.RiskIndicatorScore)
		}
	})

	t.Run("weekend counts as off-hours", func(t *testing.T) {
		// 2025-03-09 is a Sunday.
		members := []alerts.Alert{
			member("a", alerts.SeverityLow, at(time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC))),
		}
		e := Score(members, DefaultConfig())
		if e.RiskIndicatorScore != 5 {
			t.Errorf("risk = %.0f, want 5", e.RiskIndicatorScore)
		}
	})

	t.Run("risk cap", func(t *testing.T) {
		// Shared IP (15) + category (10) + travel (20) exceeds the cap.
		members := []alerts.Alert{
			member("a", alerts.SeverityLow, withUser("alice"), withIP("10.0.0.9"), withLocation("Berlin"), withCategory("Malware")),
			member("b", alerts.SeverityLow, withUser("bob"), withIP("10.0.0.9")),
			member("c", alerts.SeverityLow, withUser("alice"), withLocation("Tokyo"), at(businessTime(12).Add(20*time.Minute))),
		}
		e := Score(members, DefaultConfig())
		if e.RiskIndicatorScore != 30 {
			t.Errorf("risk = %.0f, want cap 30", e.RiskIndicatorScore)
		}
	})
}

func TestBusinessDaysFrom(t *testing.T) {
	days := BusinessDaysFrom([]string{"saturday", "Sunday"})
	if !days[time.Saturday] || !days[time.Sunday] {
		t.Errorf("weekend set = %v, want Saturday and Sunday", days)
	}
	if days[time.Monday] {
		t.Error("Monday must not appear in a weekend-only set")
	}

	// Empty or unrecognized input falls back to Monday through Friday.
	for _, names := range [][]string{nil, {"funday"}} {
		days = BusinessDaysFrom(names)
		if !days[time.Monday] || !days[time.Friday] || days[time.Saturday] {
			t.Errorf("BusinessDaysFrom(%v) = %v, want weekdays", names, days)
		}
	}
}

func TestScore_ConfiguredBusinessDays(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BusinessDays = BusinessDaysFrom([]string{"Saturday"})

	// 2025-03-15 is a Saturday; inside hours it counts as business time.
	saturdayNoon := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	members := []alerts.Alert{member("a", alerts.SeverityLow, at(saturdayNoon))}
	if e := Score(members, cfg); e.RiskIndicatorScore != 0 {
		t.Errorf("risk = %.0f, want 0 on a configured business day", e.RiskIndicatorScore)
	}

	// A Monday is off-hours under a Saturday-only schedule.
	members = []alerts.Alert{member("a", alerts.SeverityLow, at(businessTime(12)))}
	if e := Score(members, cfg); e.RiskIndicatorScore != 5 {
		t.Errorf("risk = %.0f, want 5 off the configured days", e.RiskIndicatorScore)
	}
}

func TestScore_TotalNeverExceeds100(t *testing.T) {
	var members []alerts.Alert
	for i := 0; i < 6; i++ {
		members = append(members, member(string(rune('a'+i)), alerts.SeverityCritical,
			withUser("alice"), withIP("10.0.0.9"), withDevice("ws1"), withCategory("Malware"),
			at(time.Date(2025, 3, 9, 2, 0, 0, 0, time.UTC))))
	}
	members = append(members, member("z", alerts.SeverityCritical, withUser("bob"), withIP("10.0.0.9")))

	e := Score(members, DefaultConfig())
	if e.TotalScore > 100 {
		t.Errorf("total = %.0f, must not exceed 100", e.TotalScore)
	}
	if e.TotalScore != e.SeverityScore+e.EntityFrequencyScore+e.RiskIndicatorScore &&
		e.TotalScore != 100 {
		t.Errorf("total %.0f does not match components %v", e.TotalScore, e)
	}
}
