package action

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("should parse a bare payload", func(t *testing.T) {
		act, ok := Parse(`{"action":"list_dir","params":{"path":"."}}`)
		require.True(t, ok)
		assert.Equal(t, "list_dir", act.Name)
		assert.Equal(t, ".", act.Parameters["path"])
	})

	t.Run("should parse a payload surrounded by prose", func(t *testing.T) {
		input := "I will look around first.\n{\"thought\": \"explore\", \"action\": \"list_dir\", \"params\": {\"path\": \"src\"}}\nThen I'll report back."
		act, ok := Parse(input)
		require.True(t, ok)
		assert.Equal(t, "list_dir", act.Name)
		assert.Equal(t, "src", act.Parameters["path"])
		assert.Equal(t, "explore", act.Rationale)
	})

	t.Run("should prefer a json tagged fence", func(t *testing.T) {
		input := "Options: {\"action\":\"wrong\"}\n\n```json\n{\"action\":\"read_file\",\"params\":{\"path\":\"go.mod\"}}\n```\n"
		act, ok := Parse(input)
		require.True(t, ok)
		assert.Equal(t, "read_file", act.Name)
	})

	t.Run("should accept an untagged fence starting with a brace", func(t *testing.T) {
		input := "Here you go:\n```\n{\"action\":\"run_command\",\"params\":{\"command\":\"ls\"}}\n```"
		act, ok := Parse(input)
		require.True(t, ok)
		assert.Equal(t, "run_command", act.Name)
		assert.Equal(t, "ls", act.Parameters["command"])
	})

	t.Run("should skip fences that do not hold an object", func(t *testing.T) {
		input := "```go\nfmt.Println(1)\n```\nnow {\"action\":\"list_dir\"}"
		act, ok := Parse(input)
		require.True(t, ok)
		assert.Equal(t, "list_dir", act.Name)
	})

	t.Run("should not truncate on braces inside strings", func(t *testing.T) {
		act, ok := Parse(`{"action":"x","params":{"note":"a}b"}}`)
		require.True(t, ok)
		assert.Equal(t, "x", act.Name)
		assert.Equal(t, "a}b", act.Parameters["note"])
	})

	t.Run("should handle escaped quotes inside strings", func(t *testing.T) {
		act, ok := Parse(`say {"action":"write_file","params":{"content":"he said \"}\" loudly"}} done`)
		require.True(t, ok)
		assert.Equal(t, `he said "}" loudly`, act.Parameters["content"])
	})

	t.Run("should default params to an empty map", func(t *testing.T) {
		act, ok := Parse(`{"action":"list_dir"}`)
		require.True(t, ok)
		assert.NotNil(t, act.Parameters)
		assert.Empty(t, act.Parameters)
	})

	t.Run("should accept name and parameters aliases", func(t *testing.T) {
		act, ok := Parse(`{"name":"grep_search","parameters":{"pattern":"TODO"}}`)
		require.True(t, ok)
		assert.Equal(t, "grep_search", act.Name)
		assert.Equal(t, "TODO", act.Parameters["pattern"])
	})

	t.Run("should honor only the first payload", func(t *testing.T) {
		act, ok := Parse(`{"action":"first"} and {"action":"second"}`)
		require.True(t, ok)
		assert.Equal(t, "first", act.Name)
	})
}

func TestParse_NoAction(t *testing.T) {
	cases := map[string]string{
		"plain prose":          "All done, the listing shows three files.",
		"empty":                "",
		"malformed json":       `{"action": "list_dir", "params": {"path": "."}`,
		"unterminated string":  `{"action": "list_dir}`,
		"missing action field": `{"params": {"path": "."}}`,
		"blank action":         `{"action": "   "}`,
		"non-string action":    `{"action": 42}`,
		"params not object":    `{"action": "list_dir", "params": "."}`,
		"broken json fence":    "```json\n{\"action\": \n```\n{\"action\":\"later\"}",
		"only closing brace":   "} nothing here",
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				_, ok := Parse(input)
				assert.False(t, ok)
			})
		})
	}
}

func TestParse_EmbeddingIsTransparent(t *testing.T) {
	payloads := []string{
		`{"action":"list_dir","params":{"path":"."}}`,
		`{"thought":"check","action":"read_file","params":{"path":"a/b.txt"}}`,
		`{"action":"x","params":{"note":"a}b","nested":{"k":[1,2,{"z":"{"}]}}}`,
		`{"action":"write_file","params":{"path":"f","content":"line1\nline2 \"quoted\""}}`,
	}

	wrappers := []func(string) string{
		func(p string) string { return p },
		func(p string) string { return "Sure thing.\n" + p + "\nLet me know." },
		func(p string) string { return "```json\n" + p + "\n```" },
		func(p string) string { return "Plan:\n\n```\n" + p + "\n```\n\nWaiting for the result." },
		func(p string) string { return "- step one\n- step two\n\n~~~JSON\n" + p + "\n~~~" },
	}

	for i, payload := range payloads {
		want, ok := Parse(payload)
		require.True(t, ok, "payload %d should parse in isolation", i)

		for j, wrap := range wrappers {
			t.Run(fmt.Sprintf("payload %d wrapper %d", i, j), func(t *testing.T) {
				got, ok := Parse(wrap(payload))
				require.True(t, ok)
				assert.Equal(t, want, got)
			})
		}
	}
}

func TestBalancedObject(t *testing.T) {
	t.Run("should return the first balanced region", func(t *testing.T) {
		got, ok := balancedObject(`a {"x":{"y":1}} b {"z":2}`)
		require.True(t, ok)
		assert.Equal(t, `{"x":{"y":1}}`, got)
	})

	t.Run("should report unbalanced input", func(t *testing.T) {
		_, ok := balancedObject(`{"x":{"y":1}`)
		assert.False(t, ok)
	})
}
