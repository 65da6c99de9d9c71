package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"taskthread/internal/auth"
)

func newTokenCmd(a *app) *cobra.Command {
	var (
		userID int64
		email  string
		expiry time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development bearer token",
		Long: `Signs a token with the server's JWT secret, read from --secret or
$THREADCTL_JWT_SECRET. Export the result as THREADCTL_TOKEN.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := auth.GenerateToken(userID, email, a.v.GetString("jwt-secret"), expiry)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user-id", 1, "User the token identifies")
	cmd.Flags().StringVar(&email, "email", "dev@example.com", "Email claim")
	cmd.Flags().DurationVar(&expiry, "expiry", 24*time.Hour, "Token lifetime")
	cmd.Flags().String("secret", "", "JWT signing secret")
	a.v.BindPFlag("jwt-secret", cmd.Flags().Lookup("secret"))
	return cmd
}
