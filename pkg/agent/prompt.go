package agent

import (
	"fmt"
	"strings"

	"github.com/harun/penelope/pkg/toolexecutor"
)

const promptHeader = `You are Penelope, a pair-programming agent with access to the user's machine.

WORKFLOW:
1. EXPLORE: inspect the project with list_dir, grep_search, search_files and read_file.
2. PLAN: tell the user what you intend to do.
3. EXECUTE: change files with write_file or replace_text and verify with run_command.
4. ITERATE: when a result is not what you expected, adjust and try again.
`

const promptFooter = `
RESPONSE FORMAT:
To use a tool, reply with exactly one JSON object, optionally inside a json code fence:
{
  "thought": "why you are calling the tool",
  "action": "tool_name",
  "params": { ... }
}

Only the first JSON object in a reply is executed. After a tool runs you receive its output
as "Tool Result (tool_name):". When the task is finished, answer the user in plain prose
without any JSON.
`

// BuildSystemPrompt renders the fixed instruction sent with every model call, listing the
// given tools and the action payload shape.
func BuildSystemPrompt(defs []toolexecutor.ToolDefinition) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	b.WriteString("\nTOOLS:\n")

	for _, def := range defs {
		args := make([]string, 0, len(def.Parameters))
		for _, p := range def.Parameters {
			arg := p.Name
			switch {
			case p.Default != nil:
				arg = fmt.Sprintf("%s=%v", p.Name, p.Default)
			case !p.Required:
				arg = p.Name + "?"
			}
			if len(p.Enum) > 0 {
				arg += " [" + strings.Join(p.Enum, "|") + "]"
			}
			args = append(args, arg)
		}
		fmt.Fprintf(&b, "- %s(%s) -> str: %s\n", def.Name, strings.Join(args, ", "), def.Description)
	}

	b.WriteString(promptFooter)
	return b.String()
}
