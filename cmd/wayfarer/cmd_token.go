/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/wayfarer/internal/auth"
)

var (
	tokenUser   string
	tokenRoles  []string
	tokenTTL    time.Duration
	tokenSecret string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a signed API token for local use",
	Long: `Issue an HS256 token for the given user id, signed with
WAYFARER_JWT_SIGNING_KEY (or --secret), and print it to stdout.

Examples:
  wayfarer token --user alice
  wayfarer token --user alice --ttl 1h
`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVarP(&tokenUser, "user", "u", "", "User id placed in the uid claim")
	tokenCmd.Flags().StringSliceVar(&tokenRoles, "role", nil, "Role claims (repeatable)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	tokenCmd.Flags().StringVar(&tokenSecret, "secret", "", "Signing key (defaults to WAYFARER_JWT_SIGNING_KEY)")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	secret := tokenSecret
	if secret == "" {
		secret = os.Getenv("WAYFARER_JWT_SIGNING_KEY")
	}
	if secret == "" {
		return errors.New("no signing key: set WAYFARER_JWT_SIGNING_KEY or pass --secret")
	}
	if tokenTTL <= 0 {
		return fmt.Errorf("--ttl must be positive, got %s", tokenTTL)
	}

	token, err := auth.Issue([]byte(secret), auth.Claims{UserID: tokenUser, Roles: tokenRoles}, tokenTTL)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
