// Package agent names the specialized assistants the pipeline calls and
// dispatches each call to the language model with that agent's standing
// instructions.
package agent

import "context"

// ID identifies one agent.
type ID string

// The closed set of agents.
const (
	Draft          ID = "draft"
	Validate       ID = "validate"
	Simplify       ID = "simplify"
	TestPlan       ID = "test-plan"
	FurtherReading ID = "further-reading"
	Persona        ID = "persona"
	Refactor       ID = "refactor"
)

// All lists every agent in pipeline order followed by the special commands.
func All() []ID {
	return []ID{Draft, Validate, Simplify, TestPlan, FurtherReading, Persona, Refactor}
}

// Valid reports whether id names a known agent.
func (id ID) Valid() bool {
	switch id {
	case Draft, Validate, Simplify, TestPlan, FurtherReading, Persona, Refactor:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (id ID) String() string {
	return string(id)
}

// Capability turns an agent prompt into text.
type Capability interface {
	// Invoke runs prompt through agent id. sessionHint prefixes the session
	// identifier used in logs. An unknown id yields an error-prefixed string
	// and a nil error.
	Invoke(ctx context.Context, id ID, prompt, sessionHint string) (string, error)
}

// CapabilityFunc adapts a function to Capability.
type CapabilityFunc func(ctx context.Context, id ID, prompt, sessionHint string) (string, error)

// Invoke implements Capability.
func (f CapabilityFunc) Invoke(ctx context.Context, id ID, prompt, sessionHint string) (string, error) {
	return f(ctx, id, prompt, sessionHint)
}
