package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/surfacehq/surface/config"
	"github.com/surfacehq/surface/server"
)

// newTokenCmd issues an API token signed with the configured secret.
// Meant for local development and service accounts.
func newTokenCmd() *cobra.Command {
	var (
		configPath string
		userID     string
		tenantID   string
		role       string
		ttl        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				var err error
				cfg, err = config.Load(configPath)
				if err != nil {
					return err
				}
			}
			secret, err := cfg.Auth.JWTSecret()
			if err != nil {
				return err
			}
			if ttl == 0 || ttl > cfg.Auth.GetTokenTTL() {
				ttl = cfg.Auth.GetTokenTTL()
			}

			tok, err := server.IssueToken(secret, userID, tenantID, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to surface.yaml")
	cmd.Flags().StringVar(&userID, "user", "", "user ID (sub claim)")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant ID")
	cmd.Flags().StringVar(&role, "role", server.RoleAnalyst, "role: admin, analyst or viewer")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime, capped by the configured maximum")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
