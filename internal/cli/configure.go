package cli

import (
	"fmt"

	"github.com/harun/penelope/internal/config"
	"github.com/spf13/cobra"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Run interactive configuration wizard",
	Long: `Run an interactive configuration wizard to set up Penelope.
The wizard asks for the provider, API keys, model and git identity. Settings go to the
config file; API keys go to the env file and never into the config file.`,
	RunE: runConfigure,
}

func init() {
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	loader := config.NewLoader(cfgFile)
	current, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	wizard := config.NewWizard(cmd.InOrStdin(), out)
	result, err := wizard.Run()
	if err != nil {
		return fmt.Errorf("configuration failed: %w", err)
	}

	cfg := result.Config
	cfg.DataDir = current.DataDir
	cfg.WorkingDir = current.WorkingDir
	cfg.EnvFile = current.EnvFile
	cfg.Logging.File = current.Logging.File

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	if err := config.WriteEnvFile(cfg.EnvFile, result.Env); err != nil {
		return fmt.Errorf("failed to save API keys: %w", err)
	}

	fmt.Fprintf(out, "\nConfiguration saved to: %s\n", loader.GetConfigPath())
	fmt.Fprintf(out, "API keys saved to: %s\n", cfg.EnvFile)
	fmt.Fprintln(out, "\nYou can now chat with Penelope: penelope chat -i")

	return nil
}
