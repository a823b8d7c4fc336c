// Package platform delivers desktop notifications through the host's
// notification service.
package platform

import (
	"strings"
	"time"
)

// DefaultAppName is reported when a Notification leaves AppName empty.
const DefaultAppName = "Retoucher"

// Urgency ranks a notification. Servers may keep critical ones on screen
// until dismissed.
type Urgency byte

const (
	UrgencyLow Urgency = iota
	UrgencyNormal
	UrgencyCritical
)

// Notification is one message for the desktop.
type Notification struct {
	Title   string
	Body    string
	AppName string
	// ImagePath points at a picture the server may show beside the text,
	// such as the file just exported.
	ImagePath string
	Urgency   Urgency
	// Category is a freedesktop category hint, e.g. "transfer.complete".
	Category string
	// Expire is how long the notification stays up; zero uses the server default.
	Expire time.Duration
}

func (n Notification) appName() string {
	if n.AppName == "" {
		return DefaultAppName
	}
	return n.AppName
}

func (n Notification) image() string { return strings.TrimSpace(n.ImagePath) }

// Notify shows n. An empty title and body is not sent.
func Notify(n Notification) error {
	if strings.TrimSpace(n.Title) == "" && strings.TrimSpace(n.Body) == "" {
		return nil
	}
	return deliver(n)
}
