// Package worker exposes helpers to register workflows/activities with a Temporal worker.
package worker

import (
	"github.com/ada-assist/ada/internal/activity"
	"github.com/ada-assist/ada/internal/workflow"
)

// Registrar is the registration surface shared by sdk workers and the
// Temporal test environment.
type Registrar interface {
	RegisterWorkflow(w interface{})
	RegisterActivity(a interface{})
}

// RegisterAll registers all workflows and activities with the Temporal worker.
// This function must be called during worker initialization before starting
// the worker. The registration is not thread-safe and should only be called once
// during application startup.
func RegisterAll(w Registrar, asker activity.Asker) {
	w.RegisterWorkflow(workflow.AnswerWorkflow)
	w.RegisterActivity(activity.NewActivities(asker))
}
