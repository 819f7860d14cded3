// Command token mints a signed JWT for local testing against the API.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"load-request-api-server/config"
	"load-request-api-server/internal/auth"
	"load-request-api-server/internal/models"
)

type tokenOptions struct {
	ConfigPath string
	UserID     string
	Email      string
	Role       string
	TTL        time.Duration
}

func newTokenCommand(loadSecret func(path string) (string, error)) *cobra.Command {
	opts := &tokenOptions{}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a JWT for a requester, approver or admin",
		Example: `  token --user lsr-1 --role requester
  token --user apr-1 --role approver --ttl 1h`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch opts.Role {
			case models.RoleRequester, models.RoleApprover, models.RoleAdmin:
			default:
				return fmt.Errorf("unknown role %q", opts.Role)
			}
			secret, err := loadSecret(opts.ConfigPath)
			if err != nil {
				return err
			}
			if secret == "" {
				return errors.New("jwt.secret is empty; set JWT_SECRET or config.yaml")
			}
			tok, err := auth.GenerateJWT([]byte(secret), opts.UserID, opts.Email, opts.Role, opts.TTL)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "./config", "directory holding config.yaml")
	cmd.Flags().StringVar(&opts.UserID, "user", "", "user id to embed")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email to embed")
	cmd.Flags().StringVar(&opts.Role, "role", models.RoleRequester, "requester, approver or admin")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 24*time.Hour, "token lifetime")
	cmd.MarkFlagRequired("user")

	return cmd
}

func secretFromConfig(path string) (string, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return "", fmt.Errorf("could not load config: %w", err)
	}
	return cfg.JWT.Secret, nil
}

func main() {
	if err := newTokenCommand(secretFromConfig).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
