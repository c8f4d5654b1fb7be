package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/auth"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/config"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/database"
)

func openRepository(cfg *config.Config) (*database.Repository, func(), error) {
	db, err := database.Open(cfg.DBDriver, cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}
	return database.NewRepository(db), func() { db.Close() }, nil
}

func newPsychologistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "psychologist",
		Short: "Manage clinician accounts",
	}

	var name, email string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a clinician account",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, email = strings.TrimSpace(name), strings.TrimSpace(email)
			if name == "" || !strings.Contains(email, "@") {
				return fmt.Errorf("--name and a valid --email are required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			repo, closeDB, err := openRepository(cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			psy, err := repo.CreatePsychologist(cmd.Context(), name, email)
			if err != nil {
				return err
			}
			return printJSON(cmd, psy)
		},
	}
	create.Flags().StringVar(&name, "name", "", "display name")
	create.Flags().StringVar(&email, "email", "", "login email, unique")
	_ = create.MarkFlagRequired("name")
	_ = create.MarkFlagRequired("email")

	cmd.AddCommand(create)
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		psychologistID int64
		ttl            time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for a clinician",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			repo, closeDB, err := openRepository(cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			if _, err := repo.GetPsychologist(cmd.Context(), psychologistID); err != nil {
				return fmt.Errorf("psychologist %d: %w", psychologistID, err)
			}

			token, err := auth.NewTokenService(cfg.JWTSecret).Issue(psychologistID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().Int64Var(&psychologistID, "psychologist", 0, "clinician id")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTTL, "token lifetime")
	_ = cmd.MarkFlagRequired("psychologist")
	return cmd
}
