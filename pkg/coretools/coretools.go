package coretools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harun/penelope/pkg/toolexecutor"
)

// CommandTimeout bounds shell commands and most developer tool invocations.
const CommandTimeout = 120 * time.Second

// Options configures the built-in tool set.
type Options struct {
	// GitAuthorName and GitAuthorEmail sign commits made by control_git.
	GitAuthorName  string
	GitAuthorEmail string
	// Shell overrides the command interpreter used by run_command ("sh" or "cmd" by default).
	Shell string
}

// Definitions returns every built-in tool definition.
func Definitions(opts Options) []toolexecutor.ToolDefinition {
	return []toolexecutor.ToolDefinition{
		readFileTool(),
		writeFileTool(),
		replaceTextTool(),
		listDirTool(),
		grepSearchTool(),
		searchFilesTool(),
		runCommandTool(opts),
		openAppTool(),
		controlGitTool(opts),
		controlPythonTool(),
		controlNpmTool(),
	}
}

// NewRegistry builds the tool registry used by the agent, with any extra definitions appended.
func NewRegistry(opts Options, extra ...toolexecutor.ToolDefinition) (*toolexecutor.Registry, error) {
	defs := append(Definitions(opts), extra...)
	registry, err := toolexecutor.New(defs...)
	if err != nil {
		return nil, fmt.Errorf("failed to build tool registry: %w", err)
	}
	return registry, nil
}

func stringParam(params map[string]interface{}, name string) string {
	value, _ := params[name].(string)
	return strings.TrimSpace(value)
}

func boolParam(params map[string]interface{}, name string) bool {
	switch v := params[name].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true") || v == "1"
	}
	return false
}

// toStringSlice accepts either a JSON array or a whitespace separated string.
func toStringSlice(value interface{}) []string {
	switch v := value.(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case []string:
		return v
	case string:
		return strings.Fields(v)
	}
	return nil
}

// resolveDir resolves a directory parameter against the execution context, defaulting to ".".
func resolveDir(ctx context.Context, value string) string {
	if value == "" {
		value = "."
	}
	return toolexecutor.ResolvePath(ctx, value)
}
