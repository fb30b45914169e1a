package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/harun/penelope/internal/config"
	"github.com/harun/penelope/pkg/agent"
	"github.com/harun/penelope/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedModel answers model calls from a fixed list of replies or errors.
type scriptedModel struct {
	mu      sync.Mutex
	replies []interface{}
	keys    []string
}

func (s *scriptedModel) install(t *testing.T) {
	t.Helper()
	prev := newProviders
	newProviders = func(cfg *config.Config) agent.ProviderCreator {
		return agent.ProviderCreatorFunc(func(apiKey string) (agent.LLMProvider, error) {
			return &scriptedProvider{model: s, key: apiKey}, nil
		})
	}
	t.Cleanup(func() { newProviders = prev })
}

type scriptedProvider struct {
	model *scriptedModel
	key   string
}

func (p *scriptedProvider) Call(ctx context.Context, req agent.LLMRequest) (*agent.LLMResponse, error) {
	s := p.model
	s.mu.Lock()
	defer s.mu.Unlock()

	s.keys = append(s.keys, p.key)
	if len(s.replies) == 0 {
		return &agent.LLMResponse{Content: "Nothing left to say."}, nil
	}
	next := s.replies[0]
	s.replies = s.replies[1:]
	if err, ok := next.(error); ok {
		return nil, err
	}
	return &agent.LLMResponse{Content: next.(string)}, nil
}

func (p *scriptedProvider) Provider() string { return "fake" }

func TestChatCommand(t *testing.T) {
	t.Run("should fail without API keys", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.run(t, "", "chat", "hello")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY")
	})

	t.Run("should answer a single query through a tool", func(t *testing.T) {
		env := newTestEnv(t)
		env.withKeys(t, "ANTHROPIC_API_KEY=sk-ant-test")
		require.NoError(t, os.WriteFile(filepath.Join(env.dir, "notes.txt"), []byte("x"), 0644))

		model := &scriptedModel{replies: []interface{}{
			`{"thought": "look around", "action": "list_dir", "params": {"path": "."}}`,
			"There is a **notes.txt** file.",
		}}
		model.install(t)

		out, err := env.run(t, "", "chat", "what is here?")
		require.NoError(t, err)
		assert.Contains(t, out, "> list_dir (look around)")
		assert.Contains(t, out, "notes.txt")
		assert.Equal(t, []string{"sk-ant-test", "sk-ant-test"}, model.keys)
	})

	t.Run("should record and resume a session", func(t *testing.T) {
		env := newTestEnv(t)
		env.withKeys(t, "ANTHROPIC_API_KEY=sk-ant-test")

		model := &scriptedModel{replies: []interface{}{"Hi Jane.", "Your name is Jane."}}
		model.install(t)

		_, err := env.run(t, "", "chat", "--session", "work", "my name is Jane")
		require.NoError(t, err)
		_, err = env.run(t, "", "chat", "--session", "work", "what is my name?")
		require.NoError(t, err)

		out, err := env.run(t, "", "sessions", "show", "work")
		require.NoError(t, err)
		assert.Contains(t, out, "my name is Jane")
		assert.Contains(t, out, "Penelope:\nHi Jane.")
		assert.Contains(t, out, "Your name is Jane.")

		out, err = env.run(t, "", "sessions")
		require.NoError(t, err)
		assert.Contains(t, out, "work")
	})

	t.Run("should keep recording after an empty reply", func(t *testing.T) {
		env := newTestEnv(t)
		env.withKeys(t, "ANTHROPIC_API_KEY=sk-ant-test")

		model := &scriptedModel{replies: []interface{}{"", "Back again."}}
		model.install(t)

		_, err := env.run(t, "first question\nsecond question\nexit\n", "chat", "--session", "quiet")
		require.NoError(t, err)

		store, err := session.New(filepath.Join(env.dir, "data", "sessions"))
		require.NoError(t, err)
		turns, err := store.Load(context.Background(), "quiet")
		require.NoError(t, err)
		require.Len(t, turns, 4)
		assert.Equal(t, "first question", turns[0].Content)
		assert.Empty(t, turns[1].Content)
		assert.Equal(t, "second question", turns[2].Content)
		assert.Equal(t, "Back again.", turns[3].Content)
	})

	t.Run("should generate a session id on request", func(t *testing.T) {
		env := newTestEnv(t)
		env.withKeys(t, "ANTHROPIC_API_KEY=sk-ant-test")

		model := &scriptedModel{replies: []interface{}{"Hello."}}
		model.install(t)

		out, err := env.run(t, "", "chat", "--new-session", "hi")
		require.NoError(t, err)
		assert.Regexp(t, `session [0-9a-z]{12}`, out)

		files, err := filepath.Glob(filepath.Join(env.dir, "data", "sessions", "*.jsonl"))
		require.NoError(t, err)
		assert.Len(t, files, 1)
	})

	t.Run("should run an interactive loop until exit", func(t *testing.T) {
		env := newTestEnv(t)
		env.withKeys(t, "ANTHROPIC_API_KEY=sk-ant-test")

		model := &scriptedModel{replies: []interface{}{"First answer.", "Second answer."}}
		model.install(t)

		out, err := env.run(t, "hello\n\nagain\nexit\nnever sent\n", "chat", "-i")
		require.NoError(t, err)
		assert.Contains(t, out, "Penelope AI Assistant")
		assert.Contains(t, out, "You")
		assert.Contains(t, out, "First answer.")
		assert.Contains(t, out, "Second answer.")
		assert.Len(t, model.keys, 2)
	})

	t.Run("should write a crash log and keep going", func(t *testing.T) {
		env := newTestEnv(t)
		env.withKeys(t, "ANTHROPIC_API_KEY=sk-ant-test")

		model := &scriptedModel{replies: []interface{}{errors.New("upstream exploded"), "Recovered."}}
		model.install(t)

		out, err := env.run(t, "break\nfix\nquit\n", "chat")
		require.NoError(t, err)
		assert.Contains(t, out, "Crash detected! Log saved to:")
		assert.Contains(t, out, "upstream exploded")
		assert.Contains(t, out, "Recovered.")

		logs, err := filepath.Glob(filepath.Join(env.dir, "data", "crash_logs", "crash_*.log"))
		require.NoError(t, err)
		require.Len(t, logs, 1)

		data, err := os.ReadFile(logs[0])
		require.NoError(t, err)
		assert.Contains(t, string(data), "Context: Chat Input: break")
	})

	t.Run("should not report an interrupted turn as a crash", func(t *testing.T) {
		env := newTestEnv(t)
		env.withKeys(t, "ANTHROPIC_API_KEY=sk-ant-test")

		model := &scriptedModel{replies: []interface{}{
			fmt.Errorf("post messages: %w", context.Canceled),
			"Still here.",
		}}
		model.install(t)

		out, err := env.run(t, "long task\nagain\nquit\n", "chat")
		require.NoError(t, err)
		assert.NotContains(t, out, "Crash detected")
		assert.Contains(t, out, "Still here.")

		logs, err := filepath.Glob(filepath.Join(env.dir, "data", "crash_logs", "crash_*.log"))
		require.NoError(t, err)
		assert.Empty(t, logs)
	})

	t.Run("should apply flag overrides", func(t *testing.T) {
		env := newTestEnv(t)
		env.withKeys(t, "OPENAI_API_KEY=sk-openai")

		model := &scriptedModel{replies: []interface{}{"ok"}}
		model.install(t)

		_, err := env.run(t, "", "chat", "--provider", "openai", "--model", "gpt-4o", "--max-iterations", "3", "hi")
		require.NoError(t, err)
		assert.Equal(t, []string{"sk-openai"}, model.keys)
	})
}
