package relay

import "strings"

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

// sanitize trims surrounding whitespace, truncates the input to maxLen
// runes, and escapes the HTML metacharacters & < > to their entity
// equivalents. Every client-supplied value crosses this function before
// it reaches room history or another session.
//
// Truncation happens before escaping so the length bound applies to the
// user-visible text, not the entity-expanded form.
func sanitize(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if maxLen > 0 && len(s) > maxLen {
		s = truncate(s, maxLen)
	}
	return htmlEscaper.Replace(s)
}

// truncate cuts s to at most maxLen bytes without splitting a UTF-8
// sequence.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
