package audit

import (
	"net"
	"strings"
	"unicode/utf8"
)

// Column limits of audit_logs, in characters
const (
	maxIPAddressLength = 45
	maxUserAgentLength = 500
	maxDetailLength    = 2000
)

// CleanText makes client-supplied text storable: invalid UTF-8 becomes
// U+FFFD, NUL bytes are dropped and the result is cut to at most maxRunes
// characters on a rune boundary.
func CleanText(s string, maxRunes int) string {
	s = strings.ToValidUTF8(s, "�")
	s = strings.ReplaceAll(s, "\x00", "")
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i]
		}
		n++
	}
	return s
}

// cleanIP returns s when it parses as an IP address, otherwise ""
func cleanIP(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxIPAddressLength || net.ParseIP(s) == nil {
		return ""
	}
	return s
}

// sanitize bounds every free-text field of entry to what the store accepts
func sanitize(entry *Entry) {
	entry.Detail = CleanText(entry.Detail, maxDetailLength)
	entry.UserAgent = CleanText(entry.UserAgent, maxUserAgentLength)
	entry.ActorUsername = CleanText(entry.ActorUsername, 0)
	if entry.IPAddress != "" {
		if ip := cleanIP(entry.IPAddress); ip != "" {
			entry.IPAddress = ip
		} else {
			entry.IPAddress = CleanText(entry.IPAddress, maxIPAddressLength)
		}
	}
}
