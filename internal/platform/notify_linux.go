//go:build linux

package platform

import (
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	notifyDest = "org.freedesktop.Notifications"
	notifyPath = dbus.ObjectPath("/org/freedesktop/Notifications")
)

// hints maps n onto the freedesktop hint dictionary.
func hints(n Notification) map[string]dbus.Variant {
	h := map[string]dbus.Variant{"urgency": dbus.MakeVariant(byte(n.Urgency))}
	if n.Category != "" {
		h["category"] = dbus.MakeVariant(n.Category)
	}
	if img := n.image(); img != "" {
		h["image-path"] = dbus.MakeVariant(img)
	}
	return h
}

func expireMillis(d time.Duration) int32 {
	if d <= 0 {
		return -1
	}
	return int32(d / time.Millisecond)
}

func deliver(n Notification) error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return err
	}
	defer conn.Close()

	call := conn.Object(notifyDest, notifyPath).Call(notifyDest+".Notify", 0,
		n.appName(), uint32(0), "", n.Title, n.Body, []string{}, hints(n), expireMillis(n.Expire))
	return call.Err
}
