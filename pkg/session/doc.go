// Package session persists Penelope conversations as JSONL transcripts, one file per
// session key.
//
// Invariants:
// - Session keys are validated and path-safe.
// - Writes for the same session are serialized.
// - Append, load and delete are observable via tracing and metrics.
//
// Usage:
//
//	store, _ := session.New("/tmp/penelope/sessions")
//	_ = store.Append(ctx, "k3x9", agent.AgentMessage{Role: agent.RoleUser, Content: "hello"})
//	turns, _ := store.Load(ctx, "k3x9")
//	_ = turns
package session
