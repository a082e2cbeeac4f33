package parse

import (
	"regexp"
	"strings"
)

// Device types reported for subscribers and clicks.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceUnknown = "unknown"
)

var (
	tabletRe = regexp.MustCompile(`(?i)ipad|tablet|kindle|silk|playbook|android(?:.*?)(?:sm-t|tab)`)
	mobileRe = regexp.MustCompile(`(?i)mobi|iphone|ipod|android|windows phone|opera mini|blackberry`)
	botRe    = regexp.MustCompile(`(?i)bot|crawler|spider|curl|wget|python-requests|go-http-client`)
)

// browserRules are checked in order; several browsers embed "Chrome" or
// "Safari" in their UA strings, so the specific tokens must come first.
var browserRules = []struct {
	re   *regexp.Regexp
	name string
}{
	{regexp.MustCompile(`Edg(?:e|A|iOS)?/`), "Edge"},
	{regexp.MustCompile(`OPR/|Opera`), "Opera"},
	{regexp.MustCompile(`SamsungBrowser/`), "Samsung Internet"},
	{regexp.MustCompile(`YaBrowser/`), "Yandex"},
	{regexp.MustCompile(`UCBrowser/`), "UC Browser"},
	{regexp.MustCompile(`Firefox/|FxiOS/`), "Firefox"},
	{regexp.MustCompile(`Chrome/|CriOS/|Chromium/`), "Chrome"},
	{regexp.MustCompile(`Version/[\d.]+.*Safari/`), "Safari"},
	{regexp.MustCompile(`MSIE |Trident/`), "Internet Explorer"},
}

// ParsedAgent holds the coarse client classification derived from a User-Agent header.
type ParsedAgent struct {
	DeviceType string
	Browser    string
}

// UserAgent classifies a raw User-Agent header into a device type and browser family.
// Empty or unrecognised input yields "unknown" for both fields.
func UserAgent(raw string) ParsedAgent {
	ua := strings.TrimSpace(raw)
	if ua == "" {
		return ParsedAgent{DeviceType: DeviceUnknown, Browser: DeviceUnknown}
	}

	parsed := ParsedAgent{DeviceType: DeviceDesktop, Browser: DeviceUnknown}
	switch {
	case botRe.MatchString(ua):
		parsed.DeviceType = DeviceUnknown
	case tabletRe.MatchString(ua):
		parsed.DeviceType = DeviceTablet
	case mobileRe.MatchString(ua):
		parsed.DeviceType = DeviceMobile
	}

	for _, rule := range browserRules {
		if rule.re.MatchString(ua) {
			parsed.Browser = rule.name
			break
		}
	}
	return parsed
}
