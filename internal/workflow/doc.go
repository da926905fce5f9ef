// Package workflow implements Temporal workflow definitions for the Ada
// assistant.
//
// AnswerWorkflow wraps the chat service in a durable execution so a caller
// can submit a question and collect the answer later, with transient
// provider failures retried under the workflow's policy rather than
// surfaced to the user.
//
// Workflows should not contain any non-deterministic operations such as
// random number generation, system time access, or external I/O. Such
// operations are delegated to activities.
package workflow
