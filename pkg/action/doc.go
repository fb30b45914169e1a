// Package action recovers a single structured tool request from free-form model output.
//
// Invariants:
// - Parse never panics and never returns an error; malformed payloads mean "no action".
// - Only the first candidate region is decoded, so at most one action is returned per text.
// - Fenced blocks are located on the CommonMark AST, not with regular expressions.
//
// Usage:
//
//	act, ok := action.Parse("Let me look.\n```json\n{\"action\":\"list_dir\",\"params\":{\"path\":\".\"}}\n```")
//	if ok {
//		fmt.Println(act.Name, act.Parameters["path"])
//	}
package action
