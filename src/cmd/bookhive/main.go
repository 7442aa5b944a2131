package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bookhive/bookhive/src/internal/config"
	"github.com/bookhive/bookhive/src/internal/database"
	"github.com/bookhive/bookhive/src/pkg/utils"
)

// Version is injected at build time with
// -ldflags "-X main.Version=v1.2.3".
var Version = "dev"

var configFile string

func main() {
	root := &cobra.Command{
		Use:           "bookhive",
		Short:         "BookHive library management backend",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to config file")

	root.AddCommand(
		serveCmd(),
		migrateCmd(),
		seedCmd(),
		adminCmd(),
		notifyOverdueCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app bundles the pieces every subcommand needs.
type app struct {
	cfg    *viper.Viper
	db     *gorm.DB
	logger *zap.Logger
}

func bootstrap() (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	logger, err := utils.NewLogger(cfg.GetBool("log.debug"))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	db, err := database.Initialize(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &app{cfg: cfg, db: db, logger: logger}, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
	_ = a.logger.Sync()
}
