package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/farosearch/faro/internal/auth"
	"github.com/farosearch/faro/internal/db"
	"github.com/farosearch/faro/internal/schema"
)

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage service accounts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create <username> <password>",
		Short: "Create or replace a user with an argon2id password hash",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, password := args[0], args[1]

			cfg, err := loadSettings()
			if err != nil {
				return err
			}

			handle, err := db.Open(cfg.DBSettings.DBPath)
			if err != nil {
				return failDatabase(err)
			}
			defer handle.Close()

			if err := schema.EnsureGlobal(cmd.Context(), handle); err != nil {
				return failDatabase(err)
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return failMeta(err)
			}

			if _, err := handle.ExecContext(cmd.Context(),
				"INSERT OR REPLACE INTO users(username, password_hash) VALUES (?, ?)",
				username, hash); err != nil {
				return failDatabase(err)
			}

			fmt.Printf("User %q created.\n", username)

			return nil
		},
	})

	return cmd
}
