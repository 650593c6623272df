package main

import (
	"fmt"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/moodtune/moodtune-sync/internal/auth"
	"github.com/moodtune/moodtune-sync/internal/di"
	"github.com/moodtune/moodtune-sync/internal/logger"
)

func init() {
	var port string
	remoteCmd := &cobra.Command{
		Use:   "remote",
		Short: "Serve the development remote document API until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port != "" {
				flags.Port = port
			}
			return withContainer(func(injector *do.RootScope, log *logger.Logger) error {
				if err := di.BootstrapRemote(injector); err != nil {
					return fmt.Errorf("bootstrap: %w", err)
				}
				waitForSignal(cmd.Context())
				log.Info("Shutting down dev remote gracefully...")
				return nil
			})
		},
	}
	remoteCmd.Flags().StringVarP(&port, "port", "p", "", "Listen port (default 8787)")
	rootCmd.AddCommand(remoteCmd)

	tokenCmd := &cobra.Command{Use: "token", Short: "Session token operations"}

	var userID, email string
	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a session token signed with the local session key",
		RunE: func(_ *cobra.Command, _ []string) error {
			return withContainer(func(injector *do.RootScope, _ *logger.Logger) error {
				tokens, err := do.Invoke[*auth.TokenService](injector)
				if err != nil {
					return err
				}
				token, err := tokens.Issue(userID, email)
				if err != nil {
					return err
				}
				fmt.Println(token)
				return nil
			})
		},
	}
	issueCmd.Flags().StringVar(&userID, "user-id", "", "User id (required)")
	issueCmd.Flags().StringVarP(&email, "email", "e", "", "User email")
	_ = issueCmd.MarkFlagRequired("user-id")
	tokenCmd.AddCommand(issueCmd)

	rootCmd.AddCommand(tokenCmd)
}
