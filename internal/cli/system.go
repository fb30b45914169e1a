package cli

import (
	"github.com/spf13/cobra"
)

var systemCmd = &cobra.Command{
	Use:   "system",
	Short: "System control commands",
}

var systemRunCwd string

var systemRunCmd = &cobra.Command{
	Use:   "run <command>",
	Short: "Run a system command",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params := map[string]interface{}{"command": args[0]}
		if systemRunCwd != "" {
			params["cwd"] = systemRunCwd
		}
		return runTool(cmd, "run_command", params)
	},
}

var systemOpenCmd = &cobra.Command{
	Use:   "open <app_name>",
	Short: "Open an application",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTool(cmd, "open_app", map[string]interface{}{"app_name": args[0]})
	},
}

func init() {
	systemRunCmd.Flags().StringVarP(&systemRunCwd, "cwd", "d", "", "working directory")
	systemCmd.AddCommand(systemRunCmd)
	systemCmd.AddCommand(systemOpenCmd)
	rootCmd.AddCommand(systemCmd)
}
