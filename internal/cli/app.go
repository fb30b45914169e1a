package cli

import (
	"fmt"
	"os"

	"github.com/harun/penelope/internal/config"
	"github.com/harun/penelope/internal/logger"
	"github.com/harun/penelope/internal/observability"
	"github.com/harun/penelope/pkg/coretools"
	"github.com/harun/penelope/pkg/toolexecutor"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// app is what every command needs: the loaded config, the process logger and the tool
// registry.
type app struct {
	cfg      *config.Config
	logger   *logger.Logger
	registry *toolexecutor.Registry
}

// loadRuntime reads the config, installs the logger and builds the tool registry.
func loadRuntime(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if cfg.WorkingDir == "" {
		if wd, err := os.Getwd(); err == nil {
			cfg.WorkingDir = wd
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.File = cfg.Logging.File
	logCfg.MaxSize = cfg.Logging.MaxSize
	logCfg.MaxAge = cfg.Logging.MaxAge
	logCfg.MaxBackups = cfg.Logging.MaxBackups
	logCfg.Compress = cfg.Logging.Compress
	logCfg.Redaction = cfg.Logging.Redaction
	logCfg.Output = cmd.ErrOrStderr()

	lg, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := observability.InitAuditLogger(cfg.AuditLogPath()); err != nil {
		log.Warn().Err(err).Str("path", cfg.AuditLogPath()).Msg("Audit log unavailable")
	}

	registry, err := coretools.NewRegistry(coretools.Options{
		GitAuthorName:  cfg.Git.AuthorName,
		GitAuthorEmail: cfg.Git.AuthorEmail,
	})
	if err != nil {
		_ = lg.Close()
		return nil, err
	}

	log.Debug().
		Str("config", config.NewLoader(cfgFile).GetConfigPath()).
		Str("provider", cfg.Provider).
		Str("model", cfg.Model).
		Int("tools", registry.Len()).
		Msg("Runtime loaded")

	return &app{cfg: cfg, logger: lg, registry: registry}, nil
}

func (a *app) Close() {
	_ = observability.GetAuditLogger().Close()
	_ = a.logger.Close()
}
