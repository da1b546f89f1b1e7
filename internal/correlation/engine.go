// Package correlation groups alerts into incidents using a time-window plus
// entity-overlap rule with deterministic tie-breaking.
//
// The engine is an in-memory view of the alert corpus. Callers hydrate it
// from storage, then feed new alerts through Assign one at a time; every
// decision observes the fully updated result of all prior decisions, so a
// batch must be applied sequentially by a single writer.
package correlation

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/triagehub/triagehub/internal/alerts"
	"github.com/triagehub/triagehub/internal/triage"
)

// ErrInvariantViolation signals internal state that must never occur in
// correct operation, such as an alert assigned to two incidents. It is
// surfaced loudly rather than silently repaired: silent repair would mask
// a correctness bug in the tie-break logic.
var ErrInvariantViolation = errors.New("correlation invariant violation")

// Entity overlap weights. A user match weighs more than IP or device;
// location is never part of the overlap score (reporting only).
const (
	userOverlapWeight   = 2
	ipOverlapWeight     = 1
	deviceOverlapWeight = 1
	minOverlapScore     = 1
)

// Config controls correlation behavior.
type Config struct {
	// Window is the half-width of the correlation interval: an existing
	// alert is a candidate if its timestamp is within [t-Window, t+Window]
	// inclusive.
	Window time.Duration

	// Triage is the scoring configuration applied on every membership
	// change.
	Triage triage.Config

	// Now supplies incident created/updated times. Defaults to time.Now.
	Now func() time.Time
}

// DefaultConfig returns a one-hour window with default triage scoring.
func DefaultConfig() Config {
	return Config{
		Window: time.Hour,
		Triage: triage.DefaultConfig(),
	}
}

// Incident is a cluster of correlated alerts. Membership is a partition:
// every alert in the corpus belongs to exactly one incident.
type Incident struct {
	// StoreID links a hydrated incident back to its persisted row;
	// zero for incidents created in this session.
	StoreID uint

	Title     string
	Members   []alerts.Alert
	Users     []string
	IPs       []string
	Devices   []string
	Locations []string
	Score     triage.Explanation
	CreatedAt time.Time
	UpdatedAt time.Time

	// seq orders incident creation within one engine; it breaks ties when
	// two incidents share a CreatedAt.
	seq int
}

// Engine holds the corpus view and incident membership.
type Engine struct {
	cfg        Config
	corpus     []alerts.Alert
	incidents  []*Incident
	membership map[string]*Incident // alert_id -> incident
	nextSeq    int
}

// NewEngine creates an empty engine.
func NewEngine(cfg Config) *Engine {
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		cfg:        cfg,
		membership: make(map[string]*Incident),
	}
}

// Hydrate registers an existing incident and its members, ordered by the
// incident's persisted creation time. Hydration must happen before any
// Assign call so tie-breaks observe the full corpus.
func (e *Engine) Hydrate(inc *Incident) error {
	inc.seq = e.nextSeq
	e.nextSeq++
	for _, a := range inc.Members {
		if existing, ok := e.membership[a.AlertID]; ok && existing != inc {
			return fmt.Errorf("%w: alert %s hydrated into two incidents", ErrInvariantViolation, a.AlertID)
		}
		e.membership[a.AlertID] = inc
		e.corpus = append(e.corpus, a)
	}
	e.incidents = append(e.incidents, inc)
	return nil
}

// AddUnassigned adds an alert to the corpus without incident membership.
// Such alerts are eligible to be swept into a new incident as unclustered
// related candidates.
func (e *Engine) AddUnassigned(a alerts.Alert) {
	e.corpus = append(e.corpus, a)
}

// Incidents returns all incidents known to the engine.
func (e *Engine) Incidents() []*Incident {
	return e.incidents
}

// IncidentOf returns the incident an alert belongs to, or nil.
func (e *Engine) IncidentOf(alertID string) *Incident {
	return e.membership[alertID]
}

// Assign places a new alert into an existing or new incident, following the
// window/overlap rule, and recomputes the affected incident's derived state.
// It returns the incident and whether it was newly created.
func (e *Engine) Assign(a alerts.Alert) (*Incident, bool, error) {
	if a.Timestamp.IsZero() {
		return nil, false, fmt.Errorf("%w: alert %s has no UTC timestamp", ErrInvariantViolation, a.AlertID)
	}
	if _, ok := e.membership[a.AlertID]; ok {
		return nil, false, fmt.Errorf("%w: alert %s is already assigned", ErrInvariantViolation, a.AlertID)
	}

	related := e.relatedAlerts(a)

	// Join the earliest-created incident among related members. Related
	// candidates spanning several incidents is the ambiguous case: the new
	// alert joins the oldest one and the others are deliberately left
	// unmerged so membership stays a partition.
	if target := e.earliestIncident(related); target != nil {
		target.Members = append(target.Members, a)
		e.membership[a.AlertID] = target
		e.corpus = append(e.corpus, a)
		e.refresh(target)
		return target, false, nil
	}

	// No related member is clustered yet: open a new incident with the new
	// alert plus all unclustered related candidates.
	now := e.cfg.Now().UTC()
	inc := &Incident{
		CreatedAt: now,
		seq:       e.nextSeq,
	}
	e.nextSeq++

	inc.Members = append(inc.Members, a)
	e.membership[a.AlertID] = inc
	e.corpus = append(e.corpus, a)

	for _, candidate := range related {
		if e.membership[candidate.AlertID] != nil {
			continue
		}
		inc.Members = append(inc.Members, candidate)
		e.membership[candidate.AlertID] = inc
	}

	e.incidents = append(e.incidents, inc)
	e.refresh(inc)
	return inc, true, nil
}

// Recorrelate rebuilds incident membership from scratch: it discards all
// assignments and replays every alert in deterministic order (timestamp
// ascending, alert_id breaking ties). The resulting partition is therefore
// independent of the order alerts were originally ingested.
func Recorrelate(all []alerts.Alert, cfg Config) ([]*Incident, error) {
	sorted := make([]alerts.Alert, len(all))
	copy(sorted, all)
	SortDeterministic(sorted)

	engine := NewEngine(cfg)
	for _, a := range sorted {
		if _, _, err := engine.Assign(a); err != nil {
			return nil, err
		}
	}
	return engine.incidents, nil
}

// SortDeterministic orders alerts by timestamp ascending with alert_id as
// the tie-break, the canonical processing order for correlation.
func SortDeterministic(batch []alerts.Alert) {
	sort.SliceStable(batch, func(i, j int) bool {
		if !batch[i].Timestamp.Equal(batch[j].Timestamp) {
			return batch[i].Timestamp.Before(batch[j].Timestamp)
		}
		return batch[i].AlertID < batch[j].AlertID
	})
}

// relatedAlerts returns corpus alerts inside the closed correlation window
// whose entity overlap with the new alert reaches the minimum score.
func (e *Engine) relatedAlerts(a alerts.Alert) []alerts.Alert {
	var related []alerts.Alert
	for _, candidate := range e.corpus {
		if candidate.AlertID == a.AlertID {
			continue
		}
		gap := a.Timestamp.Sub(candidate.Timestamp)
		if gap < 0 {
			gap = -gap
		}
		if gap > e.cfg.Window {
			continue
		}
		if OverlapScore(a, candidate) >= minOverlapScore {
			related = append(related, candidate)
		}
	}
	return related
}

// earliestIncident returns the incident with the earliest creation among
// the related alerts' incidents, or nil if none of them is clustered.
func (e *Engine) earliestIncident(related []alerts.Alert) *Incident {
	var target *Incident
	for _, candidate := range related {
		inc := e.membership[candidate.AlertID]
		if inc == nil {
			continue
		}
		if target == nil || inc.createdBefore(target) {
			target = inc
		}
	}
	return target
}

func (inc *Incident) createdBefore(other *Incident) bool {
	if !inc.CreatedAt.Equal(other.CreatedAt) {
		return inc.CreatedAt.Before(other.CreatedAt)
	}
	return inc.seq < other.seq
}

// OverlapScore is the weighted count of matching identity fields between
// two alerts. Matches are case-insensitive and require both sides non-empty.
func OverlapScore(a, b alerts.Alert) int {
	score := 0
	if entityMatch(a.EntityUser, b.EntityUser) {
		score += userOverlapWeight
	}
	if entityMatch(a.EntityIP, b.EntityIP) {
		score += ipOverlapWeight
	}
	if entityMatch(a.EntityDevice, b.EntityDevice) {
		score += deviceOverlapWeight
	}
	return score
}

func entityMatch(a, b string) bool {
	return a != "" && b != "" && strings.EqualFold(a, b)
}

// refresh recomputes everything derived from membership: related-entity
// sets, the synthesized title, and the priority score.
func (e *Engine) refresh(inc *Incident) {
	inc.Users, inc.IPs, inc.Devices, inc.Locations = RelatedEntities(inc.Members)
	inc.Title = SynthesizeTitle(inc.Members)
	inc.Score = triage.Score(inc.Members, e.cfg.Triage)
	inc.UpdatedAt = e.cfg.Now().UTC()
}

// RelatedEntities returns the deduplicated user, IP, device and location
// values over members, preserving first-seen order. Manual membership
// changes (an analyst merge) recompute through this same path.
func RelatedEntities(members []alerts.Alert) (users, ips, devices, locations []string) {
	users = collectEntities(members, func(a alerts.Alert) string { return a.EntityUser })
	ips = collectEntities(members, func(a alerts.Alert) string { return a.EntityIP })
	devices = collectEntities(members, func(a alerts.Alert) string { return a.EntityDevice })
	locations = collectEntities(members, func(a alerts.Alert) string { return a.EntityLocation })
	return users, ips, devices, locations
}

// collectEntities deduplicates entity values over members, preserving
// first-seen order. Comparison is case-insensitive; the first spelling wins.
func collectEntities(members []alerts.Alert, extract func(alerts.Alert) string) []string {
	seen := make(map[string]bool)
	var values []string
	for _, a := range members {
		v := extract(a)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		values = append(values, v)
	}
	return values
}

// SynthesizeTitle builds the derived incident title:
// "<Highest severity> <most common category> Incident (<n> alerts)".
// Category ties resolve to the first-seen category in member order.
func SynthesizeTitle(members []alerts.Alert) string {
	if len(members) == 0 {
		return "Empty Incident"
	}

	maxSev := members[0].Severity
	for _, a := range members {
		if a.Severity.Rank() > maxSev.Rank() {
			maxSev = a.Severity
		}
	}

	counts := make(map[string]int)
	var order []string
	for _, a := range members {
		if a.Category == "" {
			continue
		}
		if counts[a.Category] == 0 {
			order = append(order, a.Category)
		}
		counts[a.Category]++
	}

	category := "Security"
	best := 0
	for _, c := range order {
		if counts[c] > best {
			best = counts[c]
			category = c
		}
	}

	return fmt.Sprintf("%s %s Incident (%d alerts)", maxSev.Title(), category, len(members))
}
