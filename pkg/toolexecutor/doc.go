// Package toolexecutor holds the closed registry of tools an agent may call.
//
// Invariants:
// - Tool names are unique and the registry never changes after New returns.
// - Parameters are defaulted and schema-validated before the handler runs.
// - Dispatch only errors for unknown tools; every other failure is returned as "Error: ..." text.
//
// Usage:
//
//	reg, _ := toolexecutor.New(toolexecutor.ToolDefinition{
//		Name:        "echo",
//		Description: "Echo input",
//		Parameters:  []toolexecutor.ToolParameter{{Name: "text", Type: "string", Description: "text", Required: true}},
//		Handler: func(ctx context.Context, params map[string]interface{}) (string, error) {
//			return params["text"].(string), nil
//		},
//	})
//	out, err := reg.Dispatch(ctx, "echo", map[string]interface{}{"text": "hi"})
package toolexecutor
