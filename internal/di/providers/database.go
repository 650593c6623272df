package providers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/moodtune/moodtune-sync/internal/config"
	"github.com/moodtune/moodtune-sync/internal/events"
	"github.com/moodtune/moodtune-sync/internal/logger"
	"github.com/moodtune/moodtune-sync/internal/remote/docstore"
	"github.com/moodtune/moodtune-sync/internal/search"
	"github.com/moodtune/moodtune-sync/internal/store/sqlite"
)

// EventBusHandle wraps the event bus with shutdown capability.
type EventBusHandle struct {
	*events.Bus
}

// Shutdown implements do.Shutdownable.
func (h *EventBusHandle) Shutdown() error {
	return h.Close()
}

// ProvideEventBus provides the in-process event bus.
func ProvideEventBus(i do.Injector) (*EventBusHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return &EventBusHandle{Bus: events.NewBus(log.Logger, eventBufferSize)}, nil
}

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the local SQLite store with migrations applied.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	bus := do.MustInvoke[*EventBusHandle](i)

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0o750); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sqlite.Open(cfg.Storage.DBPath, bus.Bus, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "path", cfg.Storage.DBPath)

	return &StoreHandle{Store: db}, nil
}

// DocstoreHandle wraps the dev remote's document store.
type DocstoreHandle struct {
	*docstore.Store
}

// Shutdown implements do.Shutdownable.
func (h *DocstoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideDocstore provides the badger document store backing the dev remote.
func ProvideDocstore(i do.Injector) (*DocstoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	docs, err := docstore.Open(cfg.Storage.DocstorePath, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Docstore opened", "path", cfg.Storage.DocstorePath)

	return &DocstoreHandle{Store: docs}, nil
}

// SearchIndexHandle wraps the suggestion index with shutdown capability.
type SearchIndexHandle struct {
	*search.Index
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the search suggestion index under the data path.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	idx, err := search.NewIndex(search.Options{
		DataPath: cfg.Storage.DataPath,
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open search index: %w", err)
	}
	return &SearchIndexHandle{Index: idx}, nil
}
