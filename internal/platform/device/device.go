// Package device turns raw User-Agent strings into short human-readable
// client descriptions for audit trails.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// ParseUserAgent produces a short "<browser> on <os>" description of the
// client, e.g. "Chrome on Windows 10". Audit rows store this instead of the
// raw header so admins reviewing a trail can read it at a glance.
func ParseUserAgent(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "Unknown Device"
	}

	ua := useragent.New(raw)

	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}

	osName := ua.OSInfo().Name
	if osName == "" {
		osName = ua.Platform()
	}
	if osName == "" {
		osName = "Unknown OS"
	}

	return strings.TrimSpace(browser + " on " + osName)
}
