package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/loic-ops/medical-transcription/internal/auth"
	"github.com/loic-ops/medical-transcription/internal/config"
)

var (
	userID string
	ttl    time.Duration
	secret string
)

var rootCmd = &cobra.Command{
	Use:          "issue-token",
	Short:        "Mint a bearer token for the medical transcription API",
	SilenceUsage: true,
	Long: `issue-token signs a user token with the server's JWT secret. The secret
is read from --secret, or from JWT_SECRET (environment or .env) when the
flag is omitted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if secret == "" {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			secret = cfg.JWTSecret
		}
		if secret == "" {
			return fmt.Errorf("no secret: set JWT_SECRET or pass --secret")
		}

		token, err := auth.NewTokens(secret).GenerateUserToken(userID, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVar(&userID, "user", "", "user the token is issued to")
	rootCmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultUserTokenTTL, "token lifetime")
	rootCmd.Flags().StringVar(&secret, "secret", "", "signing secret (defaults to JWT_SECRET)")
	_ = rootCmd.MarkFlagRequired("user")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
