package cli

import (
	"github.com/spf13/cobra"
)

var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "Development tools commands",
}

var gitOpts struct {
	path    string
	message string
	files   string
	branch  string
}

var devGitCmd = &cobra.Command{
	Use:   "git <action>",
	Short: "Control Git operations",
	Long:  "Control Git operations: init, status, add, commit, push, pull, branch, log.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params := map[string]interface{}{"action": args[0], "path": gitOpts.path}
		setIf(params, "message", gitOpts.message)
		setIf(params, "files", gitOpts.files)
		setIf(params, "branch_name", gitOpts.branch)
		return runTool(cmd, "control_git", params)
	},
}

var pythonOpts struct {
	path string
	pkg  string
}

var devPythonCmd = &cobra.Command{
	Use:   "python <action>",
	Short: "Control Python development tools",
	Long: `Control Python development tools: run_script, install_package, run_tests,
create_venv, check_syntax, install_requirements.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params := map[string]interface{}{"action": args[0]}
		setIf(params, "path", pythonOpts.path)
		setIf(params, "package", pythonOpts.pkg)
		return runTool(cmd, "control_python", params)
	},
}

var npmOpts struct {
	path   string
	pkg    string
	script string
	dev    bool
}

var devNpmCmd = &cobra.Command{
	Use:   "npm <action>",
	Short: "Control npm/Node.js operations",
	Long:  "Control npm/Node.js operations: init, install, run_script, build, test, audit.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params := map[string]interface{}{"action": args[0], "path": npmOpts.path, "dev": npmOpts.dev}
		setIf(params, "package", npmOpts.pkg)
		setIf(params, "script_name", npmOpts.script)
		return runTool(cmd, "control_npm", params)
	},
}

func init() {
	devGitCmd.Flags().StringVarP(&gitOpts.path, "path", "p", ".", "repository path")
	devGitCmd.Flags().StringVarP(&gitOpts.message, "message", "m", "", "commit message")
	devGitCmd.Flags().StringVarP(&gitOpts.files, "files", "f", "", "files to add")
	devGitCmd.Flags().StringVarP(&gitOpts.branch, "branch", "b", "", "branch name")

	devPythonCmd.Flags().StringVarP(&pythonOpts.path, "path", "p", "", "script, test or venv path")
	devPythonCmd.Flags().StringVar(&pythonOpts.pkg, "package", "", "package name")

	devNpmCmd.Flags().StringVarP(&npmOpts.path, "path", "p", ".", "project path")
	devNpmCmd.Flags().StringVar(&npmOpts.pkg, "package", "", "package name")
	devNpmCmd.Flags().StringVar(&npmOpts.script, "script", "", "script name")
	devNpmCmd.Flags().BoolVar(&npmOpts.dev, "dev", false, "install as a dev dependency")

	devCmd.AddCommand(devGitCmd)
	devCmd.AddCommand(devPythonCmd)
	devCmd.AddCommand(devNpmCmd)
	rootCmd.AddCommand(devCmd)
}

func setIf(params map[string]interface{}, key, value string) {
	if value != "" {
		params[key] = value
	}
}
