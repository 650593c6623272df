// Package main provides the moodsync command: the sync engine, its
// maintenance commands and the development remote.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/moodtune/moodtune-sync/internal/auth"
	"github.com/moodtune/moodtune-sync/internal/config"
	"github.com/moodtune/moodtune-sync/internal/di"
	"github.com/moodtune/moodtune-sync/internal/logger"
)

var (
	flags   config.Flags
	rootCmd = &cobra.Command{
		Use:          "moodsync",
		Short:        "Offline-first sync engine for MoodTune",
		SilenceUsage: true,
	}
)

func main() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.Env, "env", "", "Environment: development, staging or production")
	pf.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.StringVar(&flags.LogFile, "log-file", "", "Also write JSON logs to this rotating file")
	pf.StringVarP(&flags.DataPath, "data", "d", "", "Data directory (default ~/.moodtune)")
	pf.StringVar(&flags.DBPath, "db", "", "SQLite database path (default {data}/moodtune.db)")
	pf.StringVarP(&flags.RemoteURL, "remote", "r", "", "Remote base URL")
	pf.StringVarP(&flags.UserID, "user", "u", "", "Act as this user id instead of the session token's")
	pf.StringVar(&flags.EnvFile, "env-file", "", "Path of the .env file (default .env)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withContainer builds the container, runs fn and shuts every invoked
// service down afterwards. Configuration errors surface before fn runs.
func withContainer(fn func(injector *do.RootScope, log *logger.Logger) error) error {
	injector := di.NewContainer(flags)
	log, err := do.Invoke[*logger.Logger](injector)
	if err != nil {
		return err
	}

	runErr := fn(injector, log)

	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
	}
	if err := log.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// waitForSignal blocks until SIGINT, SIGTERM or ctx is done.
func waitForSignal(ctx context.Context) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
}

var errNoUser = errors.New("no signed-in user: pass --user or set SESSION_TOKEN")

// currentUser returns the user commands act for.
func currentUser(ctx context.Context, injector do.Injector) (string, error) {
	users, err := do.Invoke[auth.UserProvider](injector)
	if err != nil {
		return "", err
	}
	userID, ok := users.CurrentUserID(ctx)
	if !ok {
		return "", errNoUser
	}
	return userID, nil
}
