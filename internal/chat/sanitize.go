package chat

import (
	"regexp"
	"strings"
	"unicode"
)

// injectionPatterns are logged when seen in a question. They never cause a
// rejection: accessibility questions legitimately quote markup and code.
var injectionPatterns = []struct {
	re   *regexp.Regexp
	kind string
}{
	{regexp.MustCompile(`(?i)(union\s+select|drop\s+table|insert\s+into|delete\s+from|update\s+set)`), "SQL injection"},
	{regexp.MustCompile(`(?i)(or\s+1\s*=\s*1|or\s+'1'\s*=\s*'1')`), "SQL injection"},
	{regexp.MustCompile(`(?i)\b(exec|system|eval|shell_exec|passthru)\s*\(`), "Command injection"},
	{regexp.MustCompile(`(?i)<script[^>]*>`), "XSS attempt"},
	{regexp.MustCompile(`(?i)javascript:`), "XSS attempt"},
	{regexp.MustCompile(`(?i)\bon\w+\s*=`), "XSS attempt (event handler)"},
	{regexp.MustCompile(`\.\./|\.\.\\`), "Path traversal"},
	{regexp.MustCompile(`(?i)ignore (all )?(previous|prior) instructions`), "Prompt injection"},
}

// Sanitize strips control characters other than newline and tab, removes
// zero-width characters and trims the result.
func Sanitize(text string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case unicode.IsControl(r):
			return -1
		case r == '\u200b' || r == '\u200c' || r == '\u200d' || r == '\ufeff':
			return -1
		default:
			return r
		}
	}, text)
	return strings.TrimSpace(cleaned)
}

// DetectInjection lists the kinds of suspicious patterns found in text,
// each at most once, in table order.
func DetectInjection(text string) []string {
	var found []string
	for _, p := range injectionPatterns {
		if !p.re.MatchString(text) {
			continue
		}
		if len(found) > 0 && found[len(found)-1] == p.kind {
			continue
		}
		found = append(found, p.kind)
	}
	return found
}
