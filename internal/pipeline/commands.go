package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ada-assist/ada/internal/agent"
)

// Special command prefixes.
const (
	CommandSimulate = "/simular"
	CommandRefactor = "/refatorar"
)

const (
	msgInvalidSimulate = "Invalid format. Use: /simular <persona> <context>, for example /simular screen-reader How do I log in?"
	msgMissingCode     = "Please provide code to refactor. Use: /refatorar <code>"
	personaNote        = "This simulation is generated by AI from public knowledge about assistive technology. It does not replace testing with real people with disabilities."
)

// personaAliases maps command tokens to canonical persona names.
var personaAliases = map[string]string{
	"cega":              "Blind",
	"cego":              "Blind",
	"blind":             "Blind",
	"leitor-tela":       "Blind",
	"screen-reader":     "Blind",
	"baixa-visao":       "Low Vision",
	"low-vision":        "Low Vision",
	"zoom-contraste":    "Low Vision",
	"teclado":           "Motor Impairment",
	"keyboard":          "Motor Impairment",
	"motora":            "Motor Impairment",
	"motor":             "Motor Impairment",
	"linguagem-simples": "Cognitive Disability",
	"cognitiva":         "Cognitive Disability",
	"cognitive":         "Cognitive Disability",
	"surda":             "Deaf",
	"surdo":             "Deaf",
	"deaf":              "Deaf",
}

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// command reports whether question invokes cmd and returns its argument.
func command(question, cmd string) (string, bool) {
	if !strings.HasPrefix(question, cmd) {
		return "", false
	}
	rest := question[len(cmd):]
	if rest != "" {
		if r, _ := utf8.DecodeRuneInString(rest); !unicode.IsSpace(r) {
			return "", false
		}
	}
	return strings.TrimSpace(rest), true
}

// CanonicalPersona resolves a persona token through the alias table. Unknown
// tokens are returned with their first letter upper-cased.
func CanonicalPersona(token string) string {
	if name, ok := personaAliases[strings.ToLower(token)]; ok {
		return name
	}
	r, size := utf8.DecodeRuneInString(token)
	return string(unicode.ToUpper(r)) + token[size:]
}

func (o *Orchestrator) simulate(ctx context.Context, args string) Result {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return Failure(msgInvalidSimulate, nil)
	}

	persona := CanonicalPersona(fields[0])
	scenario := strings.TrimSpace(strings.TrimPrefix(args, fields[0]))
	prompt := fmt.Sprintf("Persona: %s\nScenario: %s", persona, scenario)

	text, err := o.invoke(ctx, agent.Persona, prompt)
	if err != nil {
		o.logger.Error("persona simulation failed", "persona", persona, "error", err)
		return Failure("Error simulating persona: "+describe(err), err)
	}

	return Result{Sections: []Section{
		{Title: TitleScenario, Body: fmt.Sprintf("**Persona:** %s\n\n%s", persona, strings.TrimSpace(text))},
		{Title: TitleNote, Body: personaNote},
	}}
}

// refactoring is the JSON shape the refactor agent replies with.
type refactoring struct {
	Language     string          `json:"language"`
	Code         string          `json:"code"`
	Explanation  string          `json:"explanation"`
	WCAGCriteria json.RawMessage `json:"wcag_criteria"`
}

func (o *Orchestrator) refactor(ctx context.Context, code string) Result {
	if code == "" {
		return Failure(msgMissingCode, nil)
	}

	text, err := o.invoke(ctx, agent.Refactor, code)
	if err != nil {
		o.logger.Error("refactoring failed", "error", err)
		return Failure("Error refactoring code: "+describe(err), err)
	}

	parsed, ok := parseRefactoring(text)
	if !ok {
		o.logger.Warn("refactor reply is not JSON, returning raw text")
		return Result{Sections: []Section{{Title: TitleRaw, Body: text}}}
	}

	return Result{Sections: []Section{
		{Title: TitleCode, Body: fmt.Sprintf("```%s\n%s\n```", parsed.Language, parsed.Code)},
		{Title: TitleExplanation, Body: parsed.Explanation},
		{Title: TitleWCAGCriteria, Body: formatCriteria(parsed.WCAGCriteria)},
	}}
}

// parseRefactoring decodes the agent reply, unwrapping a markdown code
// fence when present.
func parseRefactoring(text string) (refactoring, bool) {
	payload := strings.TrimSpace(text)
	if m := fencedBlock.FindStringSubmatch(payload); m != nil {
		payload = m[1]
	}

	// null, {} and objects without code decode cleanly but carry nothing.
	var r *refactoring
	if err := json.Unmarshal([]byte(payload), &r); err != nil || r == nil || strings.TrimSpace(r.Code) == "" {
		return refactoring{}, false
	}
	return *r, true
}

// formatCriteria renders wcag_criteria given either as a list or a string.
func formatCriteria(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		items := make([]string, len(list))
		for i, c := range list {
			items[i] = "- " + c
		}
		return strings.Join(items, "\n")
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	return string(raw)
}
