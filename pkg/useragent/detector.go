// Package useragent derives coarse device, browser and OS labels from a raw
// User-Agent string using ordered substring rules.
//
// The rules are deliberately coarse: matching is case-sensitive, first match
// wins, and there is no version extraction or vendor disambiguation (a
// Chromium-based Edge UA matches "Chrome" before "Edge" ever gets checked).
// Dashboard labels depend on this exact priority ordering, so the rule lists
// must not be reordered or "fixed".
package useragent

import (
	"regexp"
	"strings"
)

// DeviceType labels stored on a session row.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
)

// UnknownLabel is stored when no rule matches.
const UnknownLabel = "Unknown"

// DeviceInfo holds everything derived from one User-Agent string.
type DeviceInfo struct {
	DeviceType string `json:"deviceType"`
	IsMobile   bool   `json:"isMobile"`
	IsTablet   bool   `json:"isTablet"`
	IsDesktop  bool   `json:"isDesktop"`
	Browser    string `json:"browser"`
	OS         string `json:"os"`
}

// rule is one (substring pattern, label) pair. Evaluation order is the
// slice order.
type rule struct {
	pattern string
	label   string
}

// browserRules: Chrome must stay first. Edge and most Chromium browsers
// carry "Chrome" and "Safari" tokens, so later rules rarely fire for them.
var browserRules = []rule{
	{"Chrome", "Chrome"},
	{"Firefox", "Firefox"},
	{"Safari", "Safari"},
	{"Edge", "Edge"},
}

var osRules = []rule{
	{"Windows", "Windows"},
	{"Mac OS", "Mac OS"},
	{"Linux", "Linux"},
	{"Android", "Android"},
	{"iOS", "iOS"},
}

// mobileRe covers the common phone/tablet tokens. Case-sensitive on purpose:
// real UA strings capitalise these tokens, and the stored flags have always
// been derived from the case-sensitive form.
var mobileRe = regexp.MustCompile(`Mobile|Android|iPhone|iPad|iPod|BlackBerry|IEMobile|Opera Mini|webOS|Windows Phone`)

// Detect classifies a User-Agent string. An empty string yields a desktop
// session with Unknown browser and OS.
func Detect(userAgent string) DeviceInfo {
	info := DeviceInfo{
		DeviceType: DeviceDesktop,
		IsDesktop:  true,
		Browser:    matchFirst(browserRules, userAgent),
		OS:         matchFirst(osRules, userAgent),
	}

	if userAgent == "" {
		return info
	}

	if !mobileRe.MatchString(userAgent) {
		return info
	}

	if isTablet(userAgent) {
		info.DeviceType = DeviceTablet
		info.IsTablet = true
	} else {
		info.DeviceType = DeviceMobile
		info.IsMobile = true
	}
	info.IsDesktop = false

	return info
}

// matchFirst returns the label of the first matching rule, or Unknown.
func matchFirst(rules []rule, userAgent string) string {
	for _, r := range rules {
		if strings.Contains(userAgent, r.pattern) {
			return r.label
		}
	}
	return UnknownLabel
}

// isTablet separates tablets from phones among mobile-matching UAs.
// Android tablets typically omit the "Mobile" token.
func isTablet(userAgent string) bool {
	if strings.Contains(userAgent, "iPad") || strings.Contains(userAgent, "Tablet") {
		return true
	}
	if strings.Contains(userAgent, "Android") && !strings.Contains(userAgent, "Mobile") {
		return true
	}
	return false
}
