package worker

import (
	"context"
	stderrors "errors"
	"log/slog"

	"github.com/moodtune/moodtune-sync/internal/domain"
	"github.com/moodtune/moodtune-sync/internal/remote"
	"github.com/moodtune/moodtune-sync/internal/store"
)

// Resolution labels stored in user_interests.last_resolution.
const (
	ResolutionRemote   = "remote"
	ResolutionLocal    = "local"
	ResolutionTieLocal = "tie_local"
)

// InterestsWorker reconciles the signed-in user's interests with the
// remote copy using last-write-wins.
type InterestsWorker struct {
	deps Deps
}

// NewInterestsWorker creates the worker.
func NewInterestsWorker(deps Deps) *InterestsWorker {
	return &InterestsWorker{deps: deps.withDefaults()}
}

// Name implements Worker.
func (w *InterestsWorker) Name() string { return NameInterests }

// remoteInterests reads the remote view. The edit time is lastModified;
// documents written by other clients may only carry serverTimestamp.
func remoteInterests(doc *remote.Document) *domain.RemoteInterests {
	ts, ok := doc.Time("lastModified")
	if !ok {
		ts, ok = doc.Time("serverTimestamp")
	}
	if !ok {
		return nil
	}
	return &domain.RemoteInterests{Interests: doc.Strings("interests"), LastModified: ts}
}

// Run implements Worker. A signed-in user is required. A row that does
// not need sync is a no-op success.
func (w *InterestsWorker) Run(ctx context.Context) Result {
	r := startRun(w.deps, NameInterests)

	userID, ok := w.deps.Users.CurrentUserID(ctx)
	if !ok {
		r.logger.Warn("no signed-in user")
		return r.finish(ctx, Failure)
	}

	local, err := w.deps.Store.GetInterests(ctx, userID)
	if stderrors.Is(err, store.ErrNotFound) {
		return r.finish(ctx, Success)
	}
	if err != nil {
		return r.storeFailed(ctx, "get interests", err)
	}
	if !local.NeedsSync {
		r.skipped++
		return r.finish(ctx, Success)
	}

	var theirs *domain.RemoteInterests
	doc, err := w.deps.Remote.Get(ctx, CollectionInterests, userID)
	switch {
	case remote.IsNotFound(err):
	case err != nil:
		return r.remoteFailed(ctx, "get interests", err)
	default:
		theirs = remoteInterests(doc)
	}

	res := domain.ResolveInterests(*local, theirs, w.deps.Now())
	label := ResolutionRemote
	if res.Winner == domain.LocalWins {
		label = ResolutionLocal
		if res.Tie {
			label = ResolutionTieLocal
			r.logger.Warn("interests edited at the same instant on two devices, keeping local",
				slog.String("user_id", userID),
				slog.Time("local_modified", local.LastModified),
				slog.Time("remote_modified", theirs.LastModified),
				slog.String("resolution", label),
			)
		}
		err := w.deps.Remote.Set(ctx, CollectionInterests, userID, map[string]any{
			"interests":       local.Interests,
			"version":         local.Version,
			"lastModified":    millis(local.LastModified),
			"serverTimestamp": remote.ServerTimestamp,
		}, remote.SetOptions{Merge: true})
		if err != nil {
			r.failed++
			return r.remoteFailed(ctx, "set interests", err)
		}
	}

	applied, err := w.deps.Store.ApplyResolution(ctx, local.Version, &res.Result, label)
	if err != nil {
		return r.storeFailed(ctx, "apply resolution", err)
	}
	if !applied {
		// Edited again while we were talking to the remote.
		r.skipped++
		return r.finish(ctx, Retry)
	}

	r.synced++
	r.logger.Debug("interests resolved", slog.String("winner", string(res.Winner)))
	return r.finish(ctx, Success)
}
