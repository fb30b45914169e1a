package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/harun/penelope/pkg/agent"
	"github.com/harun/penelope/pkg/session"
	"github.com/spf13/cobra"
)

var sessionsPrune time.Duration

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List stored chat sessions",
	Long: `List the chat sessions recorded with 'penelope chat --session'.
Use --prune to delete sessions untouched for longer than the given duration.`,
	Args: cobra.NoArgs,
	RunE: runSessions,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session>",
	Short: "Print a session transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session>",
	Short: "Delete a session transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	sessionsCmd.Flags().DurationVar(&sessionsPrune, "prune", 0, "delete sessions idle for longer than this (e.g. 720h)")
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func openStore(cmd *cobra.Command) (*app, *session.Store, context.Context, error) {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := session.New(rt.cfg.SessionsDir())
	if err != nil {
		rt.Close()
		return nil, nil, nil, err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return rt, store, ctx, nil
}

func runSessions(cmd *cobra.Command, args []string) error {
	rt, store, ctx, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	out := cmd.OutOrStdout()

	if sessionsPrune > 0 {
		removed, err := store.Prune(ctx, sessionsPrune)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Pruned %d session(s)\n", len(removed))
		for _, key := range removed {
			fmt.Fprintf(out, "  %s\n", key)
		}
		return nil
	}

	infos, err := store.List()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Fprintln(out, "No sessions stored.")
		return nil
	}

	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, []string{
			info.Key,
			fmt.Sprintf("%d", info.Turns),
			fmt.Sprintf("%d", info.Size),
			formatDuration(time.Since(info.LastModified)) + " ago",
		})
	}
	newRenderer(out).Table("Sessions", []string{"Session", "Turns", "Bytes", "Last Used"}, rows)
	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	rt, store, ctx, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	turns, err := store.Load(ctx, args[0])
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		return fmt.Errorf("session %s not found", args[0])
	}

	out := cmd.OutOrStdout()
	for _, turn := range turns {
		label := "You"
		switch {
		case turn.IsToolResult():
			label = "Tool " + turn.Tool
		case turn.Role == agent.RoleAssistant:
			label = "Penelope"
		}
		fmt.Fprintf(out, "[%s] %s:\n%s\n\n", turn.Timestamp.Format(time.RFC3339), label, turn.Content)
	}
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	rt, store, ctx, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := store.Delete(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[0])
	return nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
