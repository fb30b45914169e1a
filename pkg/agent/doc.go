// Package agent runs the Penelope tool loop: call the model, parse an action out of its
// reply, dispatch it, feed the result back, repeat.
//
// Invariants:
// - At most MaxIterations model calls per Run, not counting retries spent on key rotation.
// - Exactly one action is dispatched per model reply that contains a registered action.
// - A reply without an action, or naming an unknown tool, ends the run verbatim.
// - Tool failures come back to the model as text; only model-call failures end a run with an error.
// - Runs on one Agent are serialized; the key pool may be shared between agents.
//
// Usage:
//
//	ag, _ := agent.New(agent.Config{Registry: reg, Keys: pool, Logger: logger})
//	reply, err := ag.Chat(ctx, "list the files in this project")
package agent
