package providers

import (
	"time"

	"github.com/samber/do/v2"

	"github.com/moodtune/moodtune-sync/internal/auth"
	"github.com/moodtune/moodtune-sync/internal/config"
	"github.com/moodtune/moodtune-sync/internal/logger"
)

// sessionTokenTTL applies to tokens the dev tooling issues itself.
const sessionTokenTTL = 30 * 24 * time.Hour

// ProvideTokenService provides the PASETO token service. Without a
// configured key one is loaded from, or generated into, the data path.
func ProvideTokenService(i do.Injector) (*auth.TokenService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	key := cfg.Auth.TokenKey
	if key == "" {
		var err error
		key, err = auth.LoadOrGenerateKey(cfg.Storage.DataPath)
		if err != nil {
			return nil, err
		}
		cfg.Auth.TokenKey = key
	}

	log.Info("Session key loaded", "token_ttl", sessionTokenTTL)

	return auth.NewTokenService(key, sessionTokenTTL)
}

// ProvideSessionProvider provides the session holder, seeded with the
// configured token when there is one.
func ProvideSessionProvider(i do.Injector) (*auth.SessionProvider, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	tokens := do.MustInvoke[*auth.TokenService](i)

	session := auth.NewSessionProvider(tokens, log.Logger)
	if cfg.Auth.Token != "" {
		claims, err := session.SetToken(cfg.Auth.Token)
		if err != nil {
			// Stay signed out; workers that need a user will report failure.
			log.Warn("Configured session token rejected", "error", err)
		} else {
			log.Info("Session restored", "user_id", claims.UserID)
		}
	}
	return session, nil
}

// ProvideUserProvider resolves the signed-in user. A configured static
// user id wins over the session token.
func ProvideUserProvider(i do.Injector) (auth.UserProvider, error) {
	cfg := do.MustInvoke[*config.Config](i)
	if cfg.Auth.UserID != "" {
		return auth.NewStaticProvider(cfg.Auth.UserID), nil
	}
	return do.MustInvoke[*auth.SessionProvider](i), nil
}
