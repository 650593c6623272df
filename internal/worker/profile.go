package worker

import (
	"context"
	stderrors "errors"
	"log/slog"

	"github.com/moodtune/moodtune-sync/internal/auth"
	"github.com/moodtune/moodtune-sync/internal/domain"
	"github.com/moodtune/moodtune-sync/internal/remote"
	"github.com/moodtune/moodtune-sync/internal/store"
)

// ProfileReconciliationWorker moves an account created offline onto the
// remote id the user signed in with. Accounts are matched by email. Only
// the signed-in user is reconciled per run.
type ProfileReconciliationWorker struct {
	deps Deps
}

// NewProfileReconciliationWorker creates the worker.
func NewProfileReconciliationWorker(deps Deps) *ProfileReconciliationWorker {
	return &ProfileReconciliationWorker{deps: deps.withDefaults()}
}

// Name implements Worker.
func (w *ProfileReconciliationWorker) Name() string { return NameProfile }

// identity returns the signed-in user and their email. When the provider
// does not know the email the remote profile is consulted.
func (w *ProfileReconciliationWorker) identity(ctx context.Context) (auth.Identity, bool) {
	if ip, ok := w.deps.Users.(auth.IdentityProvider); ok {
		return ip.CurrentIdentity(ctx)
	}
	userID, ok := w.deps.Users.CurrentUserID(ctx)
	return auth.Identity{UserID: userID}, ok
}

// Run implements Worker. A signed-in user is required.
func (w *ProfileReconciliationWorker) Run(ctx context.Context) Result {
	r := startRun(w.deps, NameProfile)

	ident, ok := w.identity(ctx)
	if !ok {
		r.logger.Warn("no signed-in user")
		return r.finish(ctx, Failure)
	}
	if isLocalID(ident.UserID) {
		// Still offline-only; there is no remote id to move to yet.
		r.skipped++
		return r.finish(ctx, Success)
	}

	if ident.Email == "" {
		doc, err := w.deps.Remote.Get(ctx, CollectionUsers, ident.UserID)
		switch {
		case remote.IsNotFound(err):
		case err != nil:
			return r.remoteFailed(ctx, "get profile", err)
		default:
			ident.Email = doc.String("email")
		}
	}
	if ident.Email == "" {
		r.logger.Warn("signed-in user has no known email", slog.String("user_id", ident.UserID))
		return r.finish(ctx, Failure)
	}

	local, err := w.deps.Store.GetUserByEmail(ctx, ident.Email)
	if stderrors.Is(err, store.ErrNotFound) {
		return r.finish(ctx, Success)
	}
	if err != nil {
		return r.storeFailed(ctx, "get user by email", err)
	}
	if local.ID == ident.UserID && local.SyncStatus == domain.SyncStatusSynced {
		return r.finish(ctx, Success)
	}
	if local.ID != ident.UserID && !local.IsLocalOnly() {
		r.logger.Warn("email belongs to another remote account, not reconciling",
			slog.String("user_id", ident.UserID),
			slog.String("other_id", local.ID),
		)
		r.skipped++
		return r.finish(ctx, Success)
	}

	oldID := local.ID
	reconciled := *local
	reconciled.Reconcile(ident.UserID, w.deps.Now())

	// The remote merge goes first: if the local update then fails, the
	// next run repeats an idempotent merge.
	fields := map[string]any{
		"email":       reconciled.Email,
		"displayName": reconciled.DisplayName,
		"updatedAt":   remote.ServerTimestamp,
	}
	if reconciled.LocalID != "" {
		fields["localId"] = reconciled.LocalID
	}
	if err := w.deps.Remote.Set(ctx, CollectionUsers, ident.UserID, fields, remote.SetOptions{Merge: true}); err != nil {
		r.failed++
		return r.remoteFailed(ctx, "merge profile", err)
	}

	if oldID != ident.UserID {
		err = w.deps.Store.ReplaceUserID(ctx, oldID, &reconciled)
	} else {
		err = w.deps.Store.UpsertUser(ctx, &reconciled)
	}
	if err != nil {
		return r.storeFailed(ctx, "reconcile user", err)
	}

	r.synced++
	r.logger.Info("profile reconciled",
		slog.String("local_id", oldID),
		slog.String("user_id", ident.UserID),
	)
	return r.finish(ctx, Success)
}
