package pipeline

import (
	"strings"
	"unicode/utf8"
)

const (
	minParagraphLength = 30
	introFallbackRunes = 300
)

// Canned texts used when an optional stage produces nothing usable.
const (
	FallbackTestPlan       = "Could not generate testing suggestions this time."
	FallbackFurtherReading = "Could not generate further-reading suggestions this time."
)

// Tips keyed by the topic of the question.
const (
	tipKeyboard     = "Check that every control can be reached with the keyboard alone, with a visible focus indicator and a logical focus order."
	tipContrast     = "Use tools such as the WebAIM Contrast Checker or axe to validate the contrast between visual elements."
	tipScreenReader = "Use NVDA or VoiceOver to check that the content is announced correctly by screen readers."
	tipGeneric      = "Accessibility is an ongoing process. Test, gather real feedback and keep improving."
)

var tipRules = []struct {
	keywords []string
	tip      string
}{
	{[]string{"teclado", "keyboard"}, tipKeyboard},
	{[]string{"contraste", "contrast"}, tipContrast},
	{[]string{"leitor de tela", "screen reader", "screen-reader"}, tipScreenReader},
}

// IsErrorText reports whether agent output looks like an error message
// rather than an answer: it starts with "Erro" (which also covers "Error")
// or mentions a failure.
func IsErrorText(text string) bool {
	if strings.HasPrefix(text, "Erro") {
		return true
	}
	lower := strings.ToLower(text)
	return strings.Contains(lower, "falha") || strings.Contains(lower, "failure")
}

// FirstParagraph returns the first blank-line separated block of at least
// 30 characters. Without one it returns the first 300 characters cut after
// the last period, or the 300 characters followed by an ellipsis.
func FirstParagraph(text string) string {
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if utf8.RuneCountInString(p) >= minParagraphLength {
			return p
		}
	}

	window := text
	if runes := []rune(text); len(runes) > introFallbackRunes {
		window = string(runes[:introFallbackRunes])
	}
	if i := strings.LastIndex(window, "."); i >= 0 {
		return window[:i+1]
	}
	return window + "..."
}

// FinalTip picks a closing tip from keywords in the question.
func FinalTip(question string) string {
	q := strings.ToLower(question)
	for _, rule := range tipRules {
		for _, kw := range rule.keywords {
			if strings.Contains(q, kw) {
				return rule.tip
			}
		}
	}
	return tipGeneric
}

// assemble builds the five sections of a regular answer.
func assemble(st state) Result {
	body := st.final.Text
	intro := FirstParagraph(body)

	concepts := body
	if strings.TrimSpace(intro) != strings.TrimSpace(body) {
		concepts = strings.Replace(body, intro, "", 1)
	}

	return Result{Sections: []Section{
		{Title: TitleIntroduction, Body: strings.TrimSpace(intro)},
		{Title: TitleConcepts, Body: strings.TrimSpace(concepts)},
		{Title: TitleHowToTest, Body: strings.TrimSpace(st.testPlan.Text)},
		{Title: TitleFurtherReading, Body: strings.TrimSpace(st.furtherReading.Text)},
		{Title: TitleFinalTip, Body: FinalTip(st.question)},
	}}
}
