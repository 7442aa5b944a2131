package main

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/bookhive/bookhive/src/internal/database"
)

func migrateCmd() *cobra.Command {
	var down int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "Applies all pending migrations for the configured dialect. With --down N the last N migrations are rolled back instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			mgr, err := database.NewMigrationManager(a.db, a.db.Dialector.Name())
			if err != nil {
				return err
			}
			defer mgr.Close()

			if down > 0 {
				if err := mgr.Down(down); err != nil {
					return err
				}
				fmt.Printf("Rolled back %d migration(s)\n", down)
				return nil
			}

			if err := mgr.Up(); err != nil {
				return err
			}
			if err := database.SeedRoles(a.db); err != nil {
				return err
			}

			version, dirty, err := mgr.Version()
			switch {
			case errors.Is(err, migrate.ErrNilVersion):
				fmt.Println("No migrations applied")
			case err != nil:
				return err
			case dirty:
				fmt.Printf("Schema at version %d (dirty)\n", version)
			default:
				fmt.Printf("Schema at version %d\n", version)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&down, "down", 0, "roll back N migrations instead of migrating up")
	return cmd
}
