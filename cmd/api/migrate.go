package main

import (
	"github.com/ariefcatur/go-order-settlement/internal/config"
	"github.com/ariefcatur/go-order-settlement/internal/postgres"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var migrateDown bool

// api migrate [--down]
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		cfg := config.Load()
		if migrateDown {
			cmd.Println("Reverting migrations…")
			return postgres.MigrateDown(cfg.PostgresDSN)
		}
		cmd.Println("Running migrations…")
		return postgres.Migrate(cfg.PostgresDSN)
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "revert every migration")
}
