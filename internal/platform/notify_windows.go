//go:build windows

package platform

import (
	"fmt"
	"os/exec"
	"strings"
)

func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// toastScript builds the PowerShell that raises a toast for n. With an
// image the ImageAndText template is used so the export shows as a preview.
func toastScript(n Notification) string {
	var b strings.Builder
	b.WriteString(`[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType=Windows Runtime] > $null; `)
	kind := "ToastText02"
	if n.image() != "" {
		kind = "ToastImageAndText02"
	}
	fmt.Fprintf(&b, `$t = [Windows.UI.Notifications.ToastNotificationManager]::GetTemplateContent([Windows.UI.Notifications.ToastTemplateType]::%s); `, kind)
	b.WriteString(`$texts = $t.GetElementsByTagName("text"); `)
	fmt.Fprintf(&b, `$texts.Item(0).AppendChild($t.CreateTextNode(%s)) > $null; `, psQuote(n.Title))
	fmt.Fprintf(&b, `$texts.Item(1).AppendChild($t.CreateTextNode(%s)) > $null; `, psQuote(n.Body))
	if img := n.image(); img != "" {
		fmt.Fprintf(&b, `$t.GetElementsByTagName("image").Item(0).SetAttribute("src", %s); `, psQuote(img))
	}
	if n.Urgency == UrgencyCritical {
		b.WriteString(`$t.DocumentElement.SetAttribute("scenario", "reminder"); `)
	}
	b.WriteString(`$toast = [Windows.UI.Notifications.ToastNotification]::new($t); `)
	fmt.Fprintf(&b, `[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier(%s).Show($toast);`, psQuote(n.appName()))
	return b.String()
}

func deliver(n Notification) error {
	return exec.Command("powershell.exe", "-NoProfile", "-Command", toastScript(n)).Run()
}
