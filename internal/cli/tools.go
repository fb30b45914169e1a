package cli

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/harun/penelope/internal/observability"
	"github.com/harun/penelope/pkg/keypool"
	"github.com/harun/penelope/pkg/toolexecutor"
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List all available tools",
	RunE:  runTools,
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show Penelope information",
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(infoCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	rows := make([][]string, 0, rt.registry.Len())
	for _, def := range rt.registry.Definitions() {
		rows = append(rows, []string{def.Name, string(def.Category), oneLine(def.Description)})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i][1] != rows[j][1] {
			return rows[i][1] < rows[j][1]
		}
		return rows[i][0] < rows[j][0]
	})

	newRenderer(cmd.OutOrStdout()).Table("Available Penelope Tools", []string{"Tool Name", "Category", "Description"}, rows)
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg := rt.cfg
	keys := "none"
	if pool, err := keypool.FromEnv(cfg.LookupEnv, cfg.Provider); err == nil {
		keys = fmt.Sprintf("%d (active %s)", pool.Len(), pool.Masked())
	}

	categories := rt.registry.ByCategory()
	var groups []string
	for _, cat := range toolexecutor.AllCategories() {
		if names := categories[cat]; len(names) > 0 {
			groups = append(groups, fmt.Sprintf("%s %d", cat, len(names)))
		}
	}

	rows := [][]string{
		{"Version", version},
		{"Platform", runtime.GOOS + "/" + runtime.GOARCH},
		{"Provider", cfg.Provider},
		{"Model", cfg.Model},
		{"API Keys", keys},
		{"Max Iterations", fmt.Sprintf("%d", cfg.MaxIterations)},
		{"Tools", fmt.Sprintf("%d (%s)", rt.registry.Len(), strings.Join(groups, ", "))},
		{"Working Directory", cfg.WorkingDir},
		{"Data Directory", cfg.DataDir},
		{"Interactive Mode", "Available"},
	}

	newRenderer(cmd.OutOrStdout()).Table("Penelope AI Assistant", []string{"Property", "Value"}, rows)
	return nil
}

// runTool dispatches one tool straight from the command line and prints its output. An
// "Error: ..." result becomes the command's error.
func runTool(cmd *cobra.Command, name string, params map[string]interface{}) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = toolexecutor.ContextWithExecContext(ctx, &toolexecutor.ExecutionContext{
		WorkingDir: rt.cfg.WorkingDir,
		Timeout:    rt.cfg.ToolTimeout(),
	})

	start := time.Now()
	output, err := rt.registry.Dispatch(ctx, name, params)
	if err != nil {
		return err
	}

	failed := toolexecutor.IsErrorResult(output)
	status := "success"
	if failed {
		status = "failure"
	}
	observability.RecordToolExecution(name, time.Since(start), !failed)
	observability.RecordToolAudit(ctx, name, "cli", status, map[string]interface{}{"params": params})

	if failed {
		return errors.New(strings.TrimPrefix(output, "Error: "))
	}
	fmt.Fprintln(cmd.OutOrStdout(), output)
	return nil
}
