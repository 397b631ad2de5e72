package models

import (
	"strconv"
	"strings"
	"time"
)

// SanitizeKeySegment escapes the ':' delimiter so a user-controlled segment
// such as "user:admin" cannot address a neighbouring counter.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// WindowStart aligns now to the start of its fixed window:
// floor(now / size) * size, measured from the Unix epoch.
func WindowStart(now time.Time, size time.Duration) time.Time {
	ns := now.UnixNano()
	start := ns - ns%int64(size)
	if ns < 0 && ns%int64(size) != 0 {
		start -= int64(size)
	}
	return time.Unix(0, start).In(now.Location())
}

// CounterKey names the counter for (limiter, subject key, window). A new
// window produces a new key; counters are never reset in place.
func CounterKey(name, key string, windowStart time.Time) string {
	return "rl:" + SanitizeKeySegment(name) + ":" + SanitizeKeySegment(key) + ":" + strconv.FormatInt(windowStart.Unix(), 10)
}

// IPKey and SubjectKey namespace subject keys so an IP and an account ID with
// the same text never share a counter.
func IPKey(ip string) string           { return "ip_" + ip }
func SubjectKey(subject string) string { return "sub_" + subject }
