package fetch

import (
	"net/http"
	"strings"
)

// Status codes that upstreams use for throttling or denial. 999 is
// LinkedIn's non-standard "request denied".
var blockedStatuses = map[int]bool{
	http.StatusForbidden:          true,
	http.StatusTooManyRequests:    true,
	http.StatusServiceUnavailable: true,
	999:                           true,
}

// Lower-case phrases seen on challenge and rate-limit pages.
var blockedPhrases = []string{
	"captcha",
	"are you a robot",
	"are you human",
	"verify you are human",
	"verify you are a human",
	"checking your browser",
	"unusual traffic",
	"too many requests",
	"rate limit",
	"rate-limited",
	"access denied",
	"request blocked",
	"temporarily blocked",
	"attention required",
	"please enable cookies",
	"bot detection",
	"cf-chl",
}

// LooksBlocked reports whether a response looks like a throttle or challenge
// page. It errs on the side of true: a false positive costs one retry, a
// false negative can get the account or IP banned.
func LooksBlocked(statusCode int, bodyText string) bool {
	if blockedStatuses[statusCode] {
		return true
	}
	if bodyText == "" {
		return false
	}
	lower := strings.ToLower(bodyText)
	for _, p := range blockedPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
