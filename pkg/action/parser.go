package action

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Action is a tool invocation request extracted from model output.
type Action struct {
	Name       string                 `json:"action"`
	Parameters map[string]interface{} `json:"params"`
	Rationale  string                 `json:"thought,omitempty"`
}

var errNoName = errors.New("payload has no action name")

// Parse extracts the first action payload from text.
//
// Candidates are tried in priority order: a fenced block tagged json, any fenced block whose
// body opens with a brace, then the first balanced brace region of the raw text. The first
// candidate found is the only one decoded.
func Parse(input string) (Action, bool) {
	candidate, ok := findCandidate(input)
	if !ok {
		return Action{}, false
	}

	act, err := decode(candidate)
	if err != nil {
		return Action{}, false
	}
	return act, true
}

// findCandidate returns the region of input that should hold the payload.
func findCandidate(input string) (string, bool) {
	blocks := fencedBlocks(input)

	for _, b := range blocks {
		if strings.EqualFold(b.language, "json") {
			return b.body, true
		}
	}

	for _, b := range blocks {
		if strings.HasPrefix(strings.TrimSpace(b.body), "{") {
			return b.body, true
		}
	}

	return balancedObject(input)
}

type fencedBlock struct {
	language string
	body     string
}

// fencedBlocks lists fenced code blocks in document order.
func fencedBlocks(input string) []fencedBlock {
	if !strings.Contains(input, "```") && !strings.Contains(input, "~~~") {
		return nil
	}

	source := []byte(input)
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	var blocks []fencedBlock
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		cb, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		var body strings.Builder
		lines := cb.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			body.Write(seg.Value(source))
		}

		blocks = append(blocks, fencedBlock{
			language: strings.TrimSpace(string(cb.Language(source))),
			body:     body.String(),
		})
		return ast.WalkSkipChildren, nil
	})

	return blocks
}

// balancedObject returns the first {...} region whose braces balance. Braces inside JSON
// string literals are ignored, as are escaped quotes within those literals.
func balancedObject(input string) (string, bool) {
	start := strings.IndexByte(input, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(input); i++ {
		c := input[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return input[start : i+1], true
			}
		}
	}

	return "", false
}

// decode turns a candidate region into an Action.
func decode(candidate string) (Action, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(candidate)), &raw); err != nil {
		return Action{}, fmt.Errorf("decode payload: %w", err)
	}

	name := firstString(raw, "action", "name")
	if name == "" {
		return Action{}, errNoName
	}

	params := map[string]interface{}{}
	for _, key := range []string{"params", "parameters"} {
		v, present := raw[key]
		if !present || v == nil {
			continue
		}
		m, ok := v.(map[string]interface{})
		if !ok {
			return Action{}, fmt.Errorf("%s must be an object, got %T", key, v)
		}
		params = m
		break
	}

	return Action{
		Name:       name,
		Parameters: params,
		Rationale:  firstString(raw, "thought", "rationale"),
	}, nil
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
