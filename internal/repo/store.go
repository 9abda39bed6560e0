// Package repo implements the persistence layer for the bot's two JSON
// documents: the claims index and the per-user collections.
//
// A Store moves whole documents in and out of durable storage. It has no
// knowledge of what the documents contain; the typed helpers in documents.go
// decode and validate them.
//
// Error semantics:
//   - Load returns ErrDocumentNotFound when nothing was saved under the key yet.
//   - Typed loaders wrap parse and validation failures in ErrCorruptDocument.
//   - Everything else (I/O, database) is propagated as-is.
package repo

import (
	"context"
	"errors"
)

// Fixed document keys.
const (
	KeyClaims      = "claims"
	KeyCollections = "collections"
)

var (
	// ErrDocumentNotFound is returned by Load on first run for a key.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrCorruptDocument marks a stored document that cannot be decoded or
	// fails validation. Callers must not treat it as an empty document.
	ErrCorruptDocument = errors.New("corrupt document")

	// ErrUnknownKey is returned by stores that only accept configured keys.
	ErrUnknownKey = errors.New("unknown document key")
)

// Store loads and saves whole documents by key. Save always replaces the
// previous document; there are no partial writes.
//
// Implementations must be safe for concurrent use.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}
