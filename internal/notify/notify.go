// Package notify turns engine events into desktop notifications.
package notify

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/example/retoucher/internal/events"
	"github.com/example/retoucher/internal/platform"
)

// Event identifies a notification trigger.
type Event string

const (
	// EventBackgroundRemoved fires when an AI background removal finishes.
	EventBackgroundRemoved Event = "background-removed"
	// EventObjectRemoved fires when an AI object removal finishes.
	EventObjectRemoved Event = "object-removed"
	// EventExport fires when an image is exported.
	EventExport Event = "exported"
)

// EventPreference describes formatting for a notification event. Failure
// is used when the operation did not succeed.
type EventPreference struct {
	Template string
	Failure  string
}

// Preferences describes notification behaviour loaded from configuration.
type Preferences struct {
	Title  string
	Events map[Event]EventPreference
}

// DefaultPreferences returns the default notification settings.
func DefaultPreferences() Preferences {
	return Preferences{
		Title: "Retoucher",
		Events: map[Event]EventPreference{
			EventBackgroundRemoved: {Template: "Background removed", Failure: "Background removal failed: %s"},
			EventObjectRemoved:     {Template: "Object removed", Failure: "Object removal failed: %s"},
			EventExport:            {Template: "Exported %s"},
		},
	}
}

// LoadPreferences reads overrides from environment variables.
func LoadPreferences() Preferences {
	prefs := DefaultPreferences()
	if v := strings.TrimSpace(os.Getenv("RETOUCHER_NOTIFY_TITLE")); v != "" {
		prefs.Title = v
	}
	apply := func(key string, event Event) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			eventPrefs := prefs.Events[event]
			eventPrefs.Template = v
			prefs.Events[event] = eventPrefs
		}
	}
	apply("RETOUCHER_NOTIFY_BACKGROUND_TEXT", EventBackgroundRemoved)
	apply("RETOUCHER_NOTIFY_OBJECT_TEXT", EventObjectRemoved)
	apply("RETOUCHER_NOTIFY_EXPORT_TEXT", EventExport)
	return prefs
}

// send is swapped out in tests.
var send = platform.Notify

// Notifier sends OS-level notifications based on the configured preferences.
type Notifier struct {
	prefs   Preferences
	enabled map[Event]bool
	logger  *log.Logger
}

// New creates a new Notifier using the provided preferences.
func New(prefs Preferences) *Notifier {
	cloned := Preferences{Title: prefs.Title, Events: make(map[Event]EventPreference, len(prefs.Events))}
	for k, v := range prefs.Events {
		cloned.Events[k] = v
	}
	return &Notifier{prefs: cloned, enabled: make(map[Event]bool), logger: log.Default()}
}

// SetLogger replaces the logger used for dispatch failures.
func (n *Notifier) SetLogger(l *log.Logger) {
	if n != nil && l != nil {
		n.logger = l
	}
}

// Enable toggles the notifier for the provided event.
func (n *Notifier) Enable(event Event, enabled bool) {
	if n == nil {
		return
	}
	if n.enabled == nil {
		n.enabled = make(map[Event]bool)
	}
	n.enabled[event] = enabled
}

// Attach subscribes n to bus and returns the unsubscribe func.
func (n *Notifier) Attach(bus *events.Bus) func() {
	return bus.Subscribe(n.Handle)
}

// Handle dispatches a notification for the events n cares about.
func (n *Notifier) Handle(ev events.Event) {
	switch e := ev.(type) {
	case events.BackgroundRemoved:
		n.result(EventBackgroundRemoved, e.Success, e.Err)
	case events.ObjectRemoved:
		n.result(EventObjectRemoved, e.Success, e.Err)
	case events.Exported:
		n.dispatch(EventExport, n.template(EventExport), fmt.Sprintf("%s (%d bytes)", e.Format, e.Size), false)
	}
}

func (n *Notifier) result(event Event, ok bool, err error) {
	if ok {
		n.dispatch(event, n.template(event), "", false)
		return
	}
	detail := "unknown error"
	if err != nil {
		detail = err.Error()
	}
	var tmpl string
	if n != nil {
		tmpl = n.prefs.Events[event].Failure
	}
	n.dispatch(event, tmpl, detail, true)
}

func (n *Notifier) enabledFor(event Event) bool {
	if n == nil {
		return false
	}
	if n.enabled == nil {
		return false
	}
	return n.enabled[event]
}

func (n *Notifier) dispatch(event Event, template, detail string, failed bool) {
	if !n.enabledFor(event) {
		return
	}
	template = strings.TrimSpace(template)
	if template == "" {
		return
	}
	body := template
	if strings.Contains(template, "%") {
		body = fmt.Sprintf(template, strings.TrimSpace(detail))
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return
	}
	msg := platform.Notification{Title: n.prefs.Title, Body: body, Urgency: platform.UrgencyNormal, Category: "transfer.complete"}
	if failed {
		msg.Urgency, msg.Category = platform.UrgencyCritical, "transfer.error"
	}
	if err := send(msg); err != nil {
		n.logger.Printf("notification %s: %v", event, err)
	}
}

func (n *Notifier) template(event Event) string {
	if n == nil {
		return ""
	}
	if pref, ok := n.prefs.Events[event]; ok {
		return pref.Template
	}
	return ""
}
