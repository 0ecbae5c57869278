package fetch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlocked(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		blocked bool
	}{
		{"forbidden", 403, "", true},
		{"proxy auth", 407, "", true},
		{"rate limited", 429, "", true},
		{"captcha marker", 200, "<html><body>Please solve this CAPTCHA to continue</body></html>", true},
		{"access denied marker", 200, "<h1>Access Denied</h1>", true},
		{"perimeterx marker", 200, `<div id="px-captcha"></div>`, true},
		{"interruption marker", 200, "Pardon Our Interruption...", true},
		{"product page", 200, "<html><body><button>Add to Cart</button> $49.99</body></html>", false},
		{"not found", 404, "page gone", false},
		{"server error", 500, "internal error", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.blocked, Blocked(tc.status, tc.body))
		})
	}
}

func TestBlockedScansOnlyBodyPrefix(t *testing.T) {
	// marker far past the scan window is ignored
	body := strings.Repeat("a", blockScanBytes) + "captcha"
	require.False(t, Blocked(200, body))

	require.True(t, Blocked(200, "captcha"+strings.Repeat("a", blockScanBytes)))
}
