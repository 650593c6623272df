package providers

import (
	"github.com/samber/do/v2"

	"github.com/moodtune/moodtune-sync/internal/auth"
	"github.com/moodtune/moodtune-sync/internal/config"
	"github.com/moodtune/moodtune-sync/internal/logger"
	"github.com/moodtune/moodtune-sync/internal/remote"
	"github.com/moodtune/moodtune-sync/internal/remote/httpremote"
)

// RemoteHandle is the throttled remote backend the workers push to.
// Client is the unthrottled HTTP client, used for health probes.
type RemoteHandle struct {
	*remote.Limited
	Client *httpremote.Client
}

// Shutdown implements do.Shutdownable.
func (h *RemoteHandle) Shutdown() error {
	return h.Close()
}

// ProvideRemote provides the remote backend client.
func ProvideRemote(i do.Injector) (*RemoteHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	session := do.MustInvoke[*auth.SessionProvider](i)

	client := httpremote.New(cfg.Remote.BaseURL, cfg.Remote.Timeout, httpremote.WithToken(session.Token))
	limited := remote.NewLimited(client, cfg.Remote.RateLimit, cfg.Remote.Burst)

	log.Info("Remote backend configured",
		"url", cfg.Remote.BaseURL,
		"rate_limit", cfg.Remote.RateLimit,
		"burst", cfg.Remote.Burst,
	)

	return &RemoteHandle{Limited: limited, Client: client}, nil
}
