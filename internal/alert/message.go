package alert

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"helmetguard-client/internal/location"
	"helmetguard-client/internal/parse"
	"helmetguard-client/internal/status"
)

const (
	locationUnavailable = "Location unavailable"
	notificationTitle   = "HelmetGuard EMERGENCY"
)

// CrashGforce renders the impact magnitude sent with the alert.
func CrashGforce(s status.Snapshot) string {
	g := s.Gforce()
	if g == nil {
		return "--"
	}
	return strconv.FormatFloat(*g, 'f', -1, 64)
}

// MapLink renders a fix as a maps URL.
func MapLink(fix *location.Fix) string {
	if fix == nil {
		return locationUnavailable
	}
	return fix.MapLink()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}

// fallbackBody is the locally composed emergency text. It stays plain ASCII
// so carriers do not switch to UCS-2 segments.
func fallbackBody(rider, mapLink, gforce, blood string, at time.Time) string {
	return fmt.Sprintf("EMERGENCY - HelmetGuard\n\n"+
		"%s may have had an accident!\n\n"+
		"No response within 15 seconds.\n"+
		"Location: %s\n"+
		"Impact: %sG\n"+
		"Blood: %s\n"+
		"Time: %s\n\n"+
		"Please check immediately or call 108.",
		rider, mapLink, gforce, orUnknown(blood), at.Format("02 Jan 2006 03:04 PM"))
}

func shareBody(rider, mapLink string) string {
	return fmt.Sprintf("%s's Location:\n%s\n\nVia HelmetGuard", rider, mapLink)
}

func notificationBody(rider string) string {
	return rider + " may have had an accident! Contacts notified."
}

// SMSLink builds an sms: URI that opens the device composer.
func SMSLink(phone, body string) string {
	escaped := strings.ReplaceAll(url.QueryEscape(body), "+", "%20")
	return "sms:" + parse.Phone(phone) + "?body=" + escaped
}
