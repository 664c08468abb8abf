package service

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"example.com/powermon/internal/notifier"
	"example.com/powermon/internal/repository"

	"github.com/sirupsen/logrus"
)

// Transition describes one detected power-state change of a device.
type Transition struct {
	DeviceID    string
	Description string
	IsPowerOn   bool
	At          time.Time
	// PreviousDuration is how long the prior interval lasted.
	PreviousDuration time.Duration
}

// Dispatcher fans a transition out to the interested subscribers. Delivery
// is fire-and-forget: the interval is already persisted when it runs, and a
// failing subscriber never affects the others.
type Dispatcher struct {
	repo      repository.Repository
	notifier  notifier.Notifier
	publicURL string
	log       *logrus.Logger
}

// NewDispatcher creates a new Dispatcher instance
func NewDispatcher(repo repository.Repository, n notifier.Notifier, publicURL string, log *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		repo:      repo,
		notifier:  n,
		publicURL: publicURL,
		log:       log,
	}
}

// NotifyTransition delivers one message per interested subscriber. Errors
// are logged and swallowed.
func (d *Dispatcher) NotifyTransition(ctx context.Context, t Transition) {
	subs, err := d.repo.ListActiveSubscribers(ctx, t.DeviceID)
	if err != nil {
		d.log.WithError(err).WithField("device_id", t.DeviceID).Error("Failed to resolve subscribers")
		return
	}
	if len(subs) == 0 {
		return
	}

	text := d.formatMessage(t)
	for _, sub := range subs {
		if err := d.notifier.Send(ctx, sub.ChatID, text); err != nil {
			d.log.WithError(err).WithFields(logrus.Fields{
				"device_id":     t.DeviceID,
				"subscriber_id": sub.ID,
				"chat_id":       sub.ChatID,
			}).Warn("Failed to notify subscriber")
		}
	}

	d.log.WithFields(logrus.Fields{
		"device_id":   t.DeviceID,
		"is_power_on": t.IsPowerOn,
		"subscribers": len(subs),
	}).Info("Transition notifications dispatched")
}

func (d *Dispatcher) formatMessage(t Transition) string {
	name := t.Description
	if name == "" {
		name = t.DeviceID
	}

	var b strings.Builder
	if t.IsPowerOn {
		fmt.Fprintf(&b, "🟢 %s ON.\n⏱️ Outage: %s.", html.EscapeString(name), FormatDuration(t.PreviousDuration))
	} else {
		fmt.Fprintf(&b, "🔴 %s OFF.\n⏱️ Uptime: %s.", html.EscapeString(name), FormatDuration(t.PreviousDuration))
	}

	if d.publicURL != "" {
		link := strings.TrimRight(d.publicURL, "/") + "/?deviceId=" + url.QueryEscape(t.DeviceID)
		fmt.Fprintf(&b, "\n🔗 <a href=\"%s\">Outage statistics</a>", html.EscapeString(link))
	}

	return b.String()
}
