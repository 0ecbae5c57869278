package fetch

import "strings"

// Statuses treated as a block regardless of body content.
var blockingStatuses = map[int]bool{
	403: true,
	407: true,
	429: true,
}

// Anti-bot wall phrases, lowercase. Substring match against a lowercased
// prefix of the body.
var blockMarkers = []string{
	"captcha",
	"access denied",
	"access to this page has been denied",
	"verify you are a human",
	"are you a robot",
	"unusual traffic",
	"pardon our interruption",
	"request blocked",
	"checking your browser",
	"just a moment",
	"px-captcha",
	"datadome",
}

const blockScanBytes = 64 << 10

// Blocked reports whether a response looks like an anti-bot wall rather
// than page content.
func Blocked(status int, body string) bool {
	if blockingStatuses[status] {
		return true
	}
	if len(body) > blockScanBytes {
		body = body[:blockScanBytes]
	}
	lower := strings.ToLower(body)
	for _, marker := range blockMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
