// Package id mints identifiers for locally created rows.
package id

import (
	"fmt"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/moodtune/moodtune-sync/internal/domain"
)

// Generate creates a prefixed NanoID: prefix-nanoid (e.g. "local-V1StGXR8_Z5jdHi6B-myT").
// Returns an error if the system has insufficient entropy.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// LocalUserID mints a temporary user id used until the remote id is known.
func LocalUserID() (string, error) {
	return Generate(domain.LocalUserIDPrefix)
}

// IdempotencyKey returns a random key used as the remote document id of an
// outbox row, so a replayed write lands on the same document.
func IdempotencyKey() string {
	return uuid.NewString()
}

// ClientID returns the remote document id for an emotion log.
func ClientID() string {
	return uuid.NewString()
}
