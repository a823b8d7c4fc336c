package platform

import "testing"

func TestNotifySkipsEmpty(t *testing.T) {
	if err := Notify(Notification{Title: " ", Body: ""}); err != nil {
		t.Fatalf("Notify = %v, want nil", err)
	}
}

func TestAppNameDefault(t *testing.T) {
	if got := (Notification{}).appName(); got != DefaultAppName {
		t.Fatalf("appName = %q, want %q", got, DefaultAppName)
	}
	if got := (Notification{AppName: "x"}).appName(); got != "x" {
		t.Fatalf("appName = %q", got)
	}
}
