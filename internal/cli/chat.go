package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/harun/penelope/internal/config"
	"github.com/harun/penelope/internal/crashlog"
	"github.com/harun/penelope/internal/observability"
	"github.com/harun/penelope/internal/tracing"
	"github.com/harun/penelope/pkg/action"
	"github.com/harun/penelope/pkg/agent"
	"github.com/harun/penelope/pkg/keypool"
	"github.com/harun/penelope/pkg/session"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var chatOpts struct {
	interactive   bool
	session       string
	newSession    bool
	provider      string
	model         string
	maxIterations int
	metricsAddr   string
}

var chatCmd = &cobra.Command{
	Use:   "chat [query]",
	Short: "Chat with Penelope",
	Long: `Chat with Penelope. With a query, Penelope answers it and exits.
Without one (or with -i) an interactive session starts; type 'exit' or 'quit' to leave.
Use --session to keep the conversation on disk and pick it up later.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVarP(&chatOpts.interactive, "interactive", "i", false, "start interactive chat mode")
	chatCmd.Flags().StringVar(&chatOpts.session, "session", "", "session id to resume and record into")
	chatCmd.Flags().BoolVar(&chatOpts.newSession, "new-session", false, "record into a freshly generated session id")
	chatCmd.Flags().StringVar(&chatOpts.provider, "provider", "", "model provider (anthropic, openai)")
	chatCmd.Flags().StringVar(&chatOpts.model, "model", "", "model name")
	chatCmd.Flags().IntVar(&chatOpts.maxIterations, "max-iterations", 0, "tool iterations per query")
	chatCmd.Flags().StringVar(&chatOpts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	applyChatOverrides(rt.cfg)
	if err := rt.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if rt.cfg.Tracing.Enabled {
		if err := tracing.InitOpenTelemetry("penelope", version); err != nil {
			log.Warn().Err(err).Msg("Tracing unavailable")
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tracing.ShutdownOpenTelemetry(shutdownCtx)
		}()
	}

	if addr := rt.cfg.Metrics.Addr; addr != "" {
		stop := serveMetrics(addr)
		defer stop()
	}

	out := newRenderer(cmd.OutOrStdout())
	chat, err := newChatSession(ctx, rt, out)
	if err != nil {
		return err
	}

	if len(args) == 1 && !chatOpts.interactive {
		reply, err := chat.Ask(ctx, args[0])
		if err != nil {
			return err
		}
		out.Markdown(reply)
		return nil
	}

	if len(args) == 1 {
		if err := chat.Turn(ctx, args[0]); err != nil {
			return err
		}
	}
	return chat.Loop(ctx, cmd.InOrStdin())
}

func applyChatOverrides(cfg *config.Config) {
	if chatOpts.provider != "" {
		cfg.Provider = chatOpts.provider
	}
	if chatOpts.model != "" {
		cfg.Model = chatOpts.model
	}
	if chatOpts.maxIterations > 0 {
		cfg.MaxIterations = chatOpts.maxIterations
	}
	if chatOpts.metricsAddr != "" {
		cfg.Metrics.Addr = chatOpts.metricsAddr
	}
}

func serveMetrics(addr string) func() {
	observability.EnsureRegistered()
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info().Str("addr", addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("Metrics server stopped")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// newProviders builds model clients for the configured provider. Tests replace it.
var newProviders = func(cfg *config.Config) agent.ProviderCreator {
	return agent.ProviderFactory{Provider: cfg.Provider, BaseURL: cfg.BaseURL}
}

// chatSession couples an agent with the optional transcript it records into.
type chatSession struct {
	agent     *agent.Agent
	store     *session.Store
	key       string
	persisted int
	crashDir  string
	out       *renderer
}

func newChatSession(ctx context.Context, rt *app, out *renderer) (*chatSession, error) {
	cfg := rt.cfg

	keys, err := keypool.FromEnv(cfg.LookupEnv, cfg.Provider)
	if err != nil {
		return nil, err
	}

	c := &chatSession{
		key:      chatOpts.session,
		crashDir: cfg.CrashDir(),
		out:      out,
	}

	if c.key == "" && chatOpts.newSession {
		if c.key, err = session.NewID(); err != nil {
			return nil, err
		}
		out.Faint("session %s", c.key)
	}

	var history []agent.AgentMessage
	if c.key != "" {
		c.store, err = session.New(cfg.SessionsDir())
		if err != nil {
			return nil, err
		}
		history, err = c.store.Load(ctx, c.key)
		if err != nil {
			return nil, err
		}
		c.persisted = len(history)
		log.Info().Str("session", c.key).Int("turns", len(history)).Msg("Session resumed")
	}

	c.agent, err = agent.New(agent.Config{
		Registry:       rt.registry,
		Keys:           keys,
		Providers:      newProviders(cfg),
		Model:          cfg.Model,
		MaxTokens:      cfg.MaxTokens,
		Temperature:    cfg.Temperature,
		MaxIterations:  cfg.MaxIterations,
		SessionTimeout: cfg.SessionTimeout(),
		ToolTimeout:    cfg.ToolTimeout(),
		WorkingDir:     cfg.WorkingDir,
		SessionKey:     c.key,
		History:        history,
		OnAction:       c.onAction,
		Logger:         rt.logger.Zerolog(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}
	return c, nil
}

func (c *chatSession) onAction(act action.Action) {
	if act.Rationale != "" {
		c.out.Faint("> %s (%s)", act.Name, oneLine(act.Rationale))
		return
	}
	c.out.Faint("> %s", act.Name)
}

// Ask runs one query and records the new turns when a session is attached.
func (c *chatSession) Ask(ctx context.Context, text string) (string, error) {
	reply, err := c.agent.Chat(ctx, text)
	if perr := c.persist(ctx); perr != nil {
		log.Error().Err(perr).Str("session", c.key).Msg("Failed to save session")
	}
	return reply, err
}

func (c *chatSession) persist(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	turns := c.agent.HistorySince(c.persisted)
	if len(turns) == 0 {
		return nil
	}
	if err := c.store.Append(ctx, c.key, turns...); err != nil {
		return err
	}
	c.persisted += len(turns)
	return nil
}

// Turn answers one interactive input. Failures are written to a crash log and reported;
// only a failure to write that log is returned. An interrupted turn is not a failure.
func (c *chatSession) Turn(ctx context.Context, text string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = c.reportPanic(rec, text)
		}
	}()

	reply, chatErr := c.Ask(ctx, text)
	if errors.Is(chatErr, context.Canceled) {
		log.Debug().Str("session", c.key).Msg("Chat turn interrupted")
		return nil
	}
	if chatErr != nil {
		return c.reportCrash(chatErr, text)
	}

	c.out.Speaker("Penelope")
	c.out.Markdown(reply)
	fmt.Fprintln(c.out.out, strings.Repeat("-", 20))
	return nil
}

func (c *chatSession) reportCrash(chatErr error, input string) error {
	path, err := crashlog.Write(c.crashDir, chatErr, "Chat Input: "+input)
	if err != nil {
		return fmt.Errorf("%v (crash log failed: %w)", chatErr, err)
	}
	c.out.Error("Crash detected! Log saved to: %s", path)
	c.out.Error("%v", chatErr)
	return nil
}

func (c *chatSession) reportPanic(rec interface{}, input string) error {
	path, err := crashlog.WritePanic(c.crashDir, rec, "Chat Input: "+input)
	if err != nil {
		return fmt.Errorf("panic: %v (crash log failed: %w)", rec, err)
	}
	c.out.Error("Crash detected! Log saved to: %s", path)
	c.out.Error("panic: %v", rec)
	return nil
}

// Loop reads inputs until exit, quit or end of input.
func (c *chatSession) Loop(ctx context.Context, in io.Reader) error {
	c.out.Banner("Penelope AI Assistant (type 'exit' to quit)")

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if ctx.Err() != nil {
			return nil
		}

		c.out.PromptBox()
		fmt.Fprint(c.out.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(c.out.out)
			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(input) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		if err := c.Turn(ctx, input); err != nil {
			return err
		}
	}
}
