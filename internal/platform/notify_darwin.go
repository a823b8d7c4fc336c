//go:build darwin

package platform

import (
	"fmt"
	"os/exec"
)

func deliver(n Notification) error {
	script := fmt.Sprintf("display notification %q with title %q subtitle %q", n.Body, n.Title, n.appName())
	if n.Urgency == UrgencyCritical {
		script += ` sound name "Basso"`
	}
	return exec.Command("osascript", "-e", script).Run()
}
