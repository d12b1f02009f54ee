package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/farosearch/faro/internal/db"
)

func newMigrationsCmd() *cobra.Command {
	var flagDir string

	cmd := &cobra.Command{
		Use:   "migrations",
		Short: "Manage schema migrations",
	}

	cmd.PersistentFlags().StringVar(&flagDir, "dir", db.DefaultMigrationsDir, "Migrations directory")

	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply every pending migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings()
			if err != nil {
				return err
			}

			if err := db.Migrate(cmd.Context(), cfg.DBSettings.DBPath, flagDir); err != nil {
				return failDatabase(err)
			}

			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings()
			if err != nil {
				return err
			}

			if err := db.Status(cmd.Context(), cfg.DBSettings.DBPath, flagDir); err != nil {
				return failDatabase(err)
			}

			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "fresh",
		Short: "Roll every migration back and reapply them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings()
			if err != nil {
				return err
			}

			if err := db.Fresh(cmd.Context(), cfg.DBSettings.DBPath, flagDir); err != nil {
				return failDatabase(err)
			}

			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty timestamped migration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings()
			if err != nil {
				return err
			}

			if err := db.Create(cfg.DBSettings.DBPath, flagDir, args[0]); err != nil {
				return failDatabase(err)
			}

			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "generate",
		Short: "Emit content-hashed DDL migrations for every registered document",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings()
			if err != nil {
				return err
			}

			docs, err := loadDocuments(cfg.AppSettings.MetaFilePath)
			if err != nil {
				return err
			}

			written, err := db.Generate(flagDir, docs)
			if err != nil {
				return failMeta(err)
			}

			if len(written) == 0 {
				fmt.Println("All document migrations are up to date.")

				return nil
			}

			for _, name := range written {
				fmt.Printf("wrote %s\n", name)
			}

			return nil
		},
	})

	return cmd
}
