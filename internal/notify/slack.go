// Package notify pushes high-priority incident notifications to Slack.
package notify

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/slack-go/slack"
	"gorm.io/gorm"

	"github.com/triagehub/triagehub/internal/database"
	"github.com/triagehub/triagehub/internal/metrics"
)

// messagePoster is the slice of the Slack client the notifier uses.
type messagePoster interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
}

// Notifier sends incident notifications when the priority score clears the
// configured threshold. Settings are read from the database on each send so
// analysts can reconfigure without a restart.
type Notifier struct {
	db *gorm.DB

	mu     sync.Mutex
	token  string
	client messagePoster
}

// NewNotifier creates a notifier backed by database settings.
func NewNotifier(db *gorm.DB) *Notifier {
	return &Notifier{db: db}
}

// NotifyIncident sends a Slack message for an incident if notifications are
// active and the score reaches the minimum. Failures are logged, counted,
// and swallowed: notification problems must never fail an import.
func (n *Notifier) NotifyIncident(incident *database.Incident) {
	settings, err := database.GetOrCreateNotificationSettings(n.db)
	if err != nil {
		log.Printf("Notifier: could not load notification settings: %v", err)
		return
	}

	if !settings.IsActive() || incident.PriorityScore < settings.MinPriorityScore {
		return
	}

	client := n.clientFor(settings.BotToken)
	_, _, err = client.PostMessage(settings.AlertsChannel,
		slack.MsgOptionText(formatIncident(incident), false),
	)
	if err != nil {
		log.Printf("Notifier: failed to post incident %s to %s: %v", incident.UUID, settings.AlertsChannel, err)
		metrics.NotificationsSent.WithLabelValues("error").Inc()
		return
	}
	metrics.NotificationsSent.WithLabelValues("ok").Inc()
}

// clientFor reuses the cached client while the token is unchanged.
func (n *Notifier) clientFor(token string) messagePoster {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.client == nil || n.token != token {
		n.client = slack.New(token)
		n.token = token
	}
	return n.client
}

// formatIncident renders the notification text.
func formatIncident(incident *database.Incident) string {
	var b strings.Builder
	fmt.Fprintf(&b, ":rotating_light: *%s*\n", incident.Title)
	fmt.Fprintf(&b, "Priority score: *%.0f* | Alerts: %d | Status: %s\n",
		incident.PriorityScore, incident.AlertCount, incident.Status)
	if len(incident.RelatedUsers) > 0 {
		fmt.Fprintf(&b, "Users: %s\n", strings.Join(incident.RelatedUsers, ", "))
	}
	if len(incident.RelatedIPs) > 0 {
		fmt.Fprintf(&b, "IPs: %s\n", strings.Join(incident.RelatedIPs, ", "))
	}
	fmt.Fprintf(&b, "Incident ID: %s", incident.UUID)
	return b.String()
}
