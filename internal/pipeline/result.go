package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Section titles of a regular answer, in output order.
const (
	TitleIntroduction   = "📘 **Introduction**"
	TitleConcepts       = "🔍 **Essential Concepts**"
	TitleHowToTest      = "🧪 **How to Test in Practice**"
	TitleFurtherReading = "📚 **Want to Go Deeper?**"
	TitleFinalTip       = "👋 **Final Tip**"
)

// Section titles of the special commands.
const (
	TitleScenario     = "🎭 **Scenario Analysis**"
	TitleNote         = "ℹ️ **Note**"
	TitleCode         = "💻 **Refactored Code**"
	TitleExplanation  = "📝 **Explanation**"
	TitleWCAGCriteria = "✅ **WCAG Criteria**"
	TitleRaw          = "⚠️ **Result (Raw Format)**"
)

// errorKey is the JSON key of a failed result.
const errorKey = "error"

// Section is one titled block of an answer.
type Section struct {
	Title string
	Body  string
}

// Result is either an ordered list of sections or an error message. It
// encodes to JSON as one object: the section titles mapped to their bodies
// in order, or {"error": message}.
type Result struct {
	Sections []Section
	Error    string

	// Err is the typed cause of a failure, when there is one. It is not
	// serialized.
	Err error
}

// Failure returns a failed result.
func Failure(message string, cause error) Result {
	return Result{Error: message, Err: cause}
}

// Failed reports whether the result carries an error.
func (r Result) Failed() bool {
	return r.Error != ""
}

// Section returns the body of the section titled title.
func (r Result) Section(title string) (string, bool) {
	for _, s := range r.Sections {
		if s.Title == title {
			return s.Body, true
		}
	}
	return "", false
}

// Titles returns the section titles in order.
func (r Result) Titles() []string {
	titles := make([]string, len(r.Sections))
	for i, s := range r.Sections {
		titles[i] = s.Title
	}
	return titles
}

// MarshalJSON implements json.Marshaler.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Failed() {
		return json.Marshal(map[string]string{errorKey: r.Error})
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range r.Sections {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(s.Title)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(s.Body)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler, keeping section order.
func (r *Result) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("result must be a JSON object, got %v", tok)
	}

	var out Result
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected key token %v", tok)
		}
		var body string
		if err := dec.Decode(&body); err != nil {
			return fmt.Errorf("section %q: %w", key, err)
		}
		if key == errorKey {
			out.Error = body
			continue
		}
		out.Sections = append(out.Sections, Section{Title: key, Body: body})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*r = out
	return nil
}
