package audit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		maxRunes int
		want     string
	}{
		{"unchanged", "curl/8.4", 500, "curl/8.4"},
		{"no limit", strings.Repeat("x", 600), 0, strings.Repeat("x", 600)},
		{"cut on rune boundary", strings.Repeat("a", 79) + "éz", 80, strings.Repeat("a", 79) + "é"},
		{"multibyte counted as one", "ééé", 2, "éé"},
		{"invalid byte replaced", "agent\xff/1", 500, "agent�/1"},
		{"nul dropped", "a\x00b", 500, "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanText(tt.in, tt.maxRunes)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestRecorder_BoundsTextFields(t *testing.T) {
	sink := &memoryLogger{}
	recorder, _, _ := newTestRecorder(sink)

	ctx := WithOrigin(context.Background(), Origin{
		IPAddress: strings.Repeat("9", 80),
		UserAgent: strings.Repeat("ü", 499) + "\xff\x00tail",
	})
	recorder.Record(ctx, Entry{
		Action:   ActionLoginFailed,
		Resource: ResourceUser,
		Detail:   "failed login attempt for user: " + strings.Repeat("é", 3000),
	})

	require.Len(t, sink.entries, 1)
	got := sink.entries[0]
	assert.True(t, utf8.ValidString(got.UserAgent))
	assert.Equal(t, maxUserAgentLength, utf8.RuneCountInString(got.UserAgent))
	assert.NotContains(t, got.UserAgent, "\x00")
	assert.Equal(t, maxDetailLength, utf8.RuneCountInString(got.Detail))
	assert.True(t, utf8.ValidString(got.Detail))
	assert.LessOrEqual(t, utf8.RuneCountInString(got.IPAddress), maxIPAddressLength)
}

func TestOriginMiddleware_RejectsForgedForwardedFor(t *testing.T) {
	var captured Origin
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = OriginFromContext(r.Context())
	})

	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"garbage", map[string]string{"X-Forwarded-For": "not-an-ip"}, "203.0.113.5"},
		{"oversized", map[string]string{"X-Forwarded-For": strings.Repeat("1", 200)}, "203.0.113.5"},
		{"invalid utf-8", map[string]string{"X-Forwarded-For": "\xff\xfe"}, "203.0.113.5"},
		{"falls through to real ip", map[string]string{"X-Forwarded-For": "junk", "X-Real-IP": "198.51.100.7"}, "198.51.100.7"},
		{"ipv6", map[string]string{"X-Forwarded-For": "2001:db8::1"}, "2001:db8::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "203.0.113.5:51234"
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			NewOriginMiddleware(true).Handler(handler).ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, captured.IPAddress)
		})
	}
}
