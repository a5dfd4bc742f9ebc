package registry

import (
	"strings"
	"time"
)

// previewLimit is the rune length past which a derived name is truncated.
const previewLimit = 50

// DefaultName is the placeholder name a session carries until it is renamed.
func DefaultName(t time.Time) string {
	return "Chat " + t.Format("15:04")
}

// Preview turns message text into a session name: whitespace runs collapse to
// a single space and text longer than 50 runes is cut and suffixed with "...".
func Preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= previewLimit {
		return text
	}
	return string(runes[:previewLimit]) + "..."
}
