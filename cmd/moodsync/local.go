package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/moodtune/moodtune-sync/internal/domain"
	"github.com/moodtune/moodtune-sync/internal/logger"
	"github.com/moodtune/moodtune-sync/internal/service"
)

func init() {
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show what is waiting to be synced",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContainer(func(injector *do.RootScope, _ *logger.Logger) error {
				ctx := cmd.Context()
				outbox := do.MustInvoke[*service.OutboxService](injector)

				stats, err := outbox.Stats(ctx)
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintf(tw, "outbox pending\t%d\n", stats.Pending)
				types := make([]string, 0, len(stats.ByType))
				for t := range stats.ByType {
					types = append(types, string(t))
				}
				sort.Strings(types)
				for _, t := range types {
					fmt.Fprintf(tw, "  %s\t%d\n", t, stats.ByType[domain.OperationType(t)])
				}

				if userID, err := currentUser(ctx, injector); err == nil {
					emotions := do.MustInvoke[*service.EmotionService](injector)
					n, err := emotions.PendingCount(ctx, userID)
					if err != nil {
						return err
					}
					fmt.Fprintf(tw, "emotion logs pending\t%d\n", n)
					fmt.Fprintf(tw, "user\t%s\n", userID)
				} else {
					fmt.Fprintf(tw, "user\t(signed out)\n")
				}
				return tw.Flush()
			})
		},
	}
	rootCmd.AddCommand(statusCmd)

	retryCmd := &cobra.Command{
		Use:   "retry-poisoned",
		Short: "Give outbox operations that exhausted their attempts another chance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContainer(func(injector *do.RootScope, _ *logger.Logger) error {
				n, err := do.MustInvoke[*service.OutboxService](injector).RetryPoisoned(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("%d operations reset\n", n)
				return nil
			})
		},
	}
	rootCmd.AddCommand(retryCmd)

	var req service.SignUpRequest
	signupCmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an offline account; it is reconciled once the network is back",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContainer(func(injector *do.RootScope, _ *logger.Logger) error {
				user, err := do.MustInvoke[*service.AccountService](injector).SignUpLocal(cmd.Context(), req)
				if err != nil {
					return err
				}
				fmt.Println(user.ID)
				return nil
			})
		},
	}
	signupCmd.Flags().StringVarP(&req.Email, "email", "e", "", "Email (required)")
	signupCmd.Flags().StringVarP(&req.DisplayName, "name", "n", "", "Display name")
	_ = signupCmd.MarkFlagRequired("email")
	rootCmd.AddCommand(signupCmd)

	var intensity int
	moodCmd := &cobra.Command{
		Use:   "mood MOOD",
		Short: "Record a mood update",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(injector *do.RootScope, _ *logger.Logger) error {
				userID, err := currentUser(cmd.Context(), injector)
				if err != nil {
					return err
				}
				op, err := do.MustInvoke[*service.OutboxService](injector).RecordMood(cmd.Context(), userID, args[0], intensity)
				if err != nil {
					return err
				}
				fmt.Println(op.IdempotencyKey)
				return nil
			})
		},
	}
	moodCmd.Flags().IntVarP(&intensity, "intensity", "i", 5, "Intensity")
	rootCmd.AddCommand(moodCmd)

	interestsCmd := &cobra.Command{
		Use:   "interests INTEREST...",
		Short: "Replace the user's interests",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(injector *do.RootScope, _ *logger.Logger) error {
				userID, err := currentUser(cmd.Context(), injector)
				if err != nil {
					return err
				}
				ui, err := do.MustInvoke[*service.InterestsService](injector).UpdateInterests(cmd.Context(), userID, args)
				if err != nil {
					return err
				}
				fmt.Println(strings.Join(ui.Interests, ", "))
				return nil
			})
		},
	}
	rootCmd.AddCommand(interestsCmd)

	var camera bool
	emotionCmd := &cobra.Command{
		Use:   "emotion ID:NAME...",
		Short: "Log an emotion submission and try to sync it right away",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := domain.CaptureManual
			if camera {
				source = domain.CaptureCamera
			}
			entries := make([]domain.EmotionEntry, 0, len(args))
			for _, arg := range args {
				id, name, ok := strings.Cut(arg, ":")
				if !ok {
					return fmt.Errorf("expected ID:NAME, got %q", arg)
				}
				entries = append(entries, domain.EmotionEntry{EmotionID: id, Name: name, Source: source})
			}

			return withContainer(func(injector *do.RootScope, _ *logger.Logger) error {
				userID, err := currentUser(cmd.Context(), injector)
				if err != nil {
					return err
				}
				entry, err := do.MustInvoke[*service.EmotionService](injector).Submit(cmd.Context(), userID, entries)
				if err != nil {
					return err
				}
				fmt.Printf("logged %d as %s\n", entry.ID, entry.ClientID)
				return nil
			})
		},
	}
	emotionCmd.Flags().BoolVar(&camera, "camera", false, "Entries came from the camera classifier")
	rootCmd.AddCommand(emotionCmd)

	var since time.Duration
	var email string
	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Rebuild activity sessions and daily summaries from local history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContainer(func(injector *do.RootScope, _ *logger.Logger) error {
				userID, err := currentUser(cmd.Context(), injector)
				if err != nil {
					return err
				}
				sessions, err := do.MustInvoke[*service.ActivityService](injector).
					ComputeSessions(cmd.Context(), userID, email, time.Now().Add(-since))
				if err != nil {
					return err
				}
				fmt.Printf("%d sessions\n", len(sessions))
				return nil
			})
		},
	}
	sessionsCmd.Flags().DurationVar(&since, "since", 24*time.Hour, "How far back to look")
	sessionsCmd.Flags().StringVarP(&email, "email", "e", "", "Email the login history is recorded under")
	rootCmd.AddCommand(sessionsCmd)

	var (
		record  bool
		reindex bool
		limit   int
	)
	searchCmd := &cobra.Command{
		Use:   "search [PREFIX]",
		Short: "Suggest past searches, or record one with --record",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(injector *do.RootScope, _ *logger.Logger) error {
				ctx := cmd.Context()
				userID, err := currentUser(ctx, injector)
				if err != nil {
					return err
				}
				searches := do.MustInvoke[*service.SearchHistoryService](injector)

				text := strings.Join(args, " ")
				if record {
					return searches.Record(ctx, userID, text)
				}
				if reindex {
					if err := searches.Reindex(ctx, userID); err != nil {
						return err
					}
				}

				suggestions, err := searches.Suggest(ctx, userID, text, limit)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				for _, sg := range suggestions {
					fmt.Fprintf(tw, "%s\t%s\n", sg.Query, sg.LastUsed.Local().Format(time.DateTime))
				}
				return tw.Flush()
			})
		},
	}
	searchCmd.Flags().BoolVar(&record, "record", false, "Record PREFIX as a search instead of suggesting")
	searchCmd.Flags().BoolVar(&reindex, "reindex", false, "Rebuild the suggestion index from history first")
	searchCmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum suggestions")
	rootCmd.AddCommand(searchCmd)
}
