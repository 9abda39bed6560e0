// Package services implements the claim/collection state machine: the claim
// registry, the per-user collection manager, the claim interaction handler,
// the paginated collection browser and the event dispatcher that fronts them.
//
// This file centralizes the service-level error values. Translation into
// user-facing text or HTTP statuses happens in the adapters (Discord, HTTP)
// or in the Dispatcher.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyClaimed is returned when a message already has an owner.
	ErrAlreadyClaimed = errors.New("post already claimed")

	// ErrEmptyCollection is returned when a user has nothing to browse.
	ErrEmptyCollection = errors.New("collection is empty")

	// ErrPersistence marks a failed document save. In-memory state has
	// already changed when this is returned.
	ErrPersistence = errors.New("persistence write failed")

	// ErrUnauthorized is returned when a user acts on another user's session.
	ErrUnauthorized = errors.New("not the owner of this session")

	// ErrSessionExpired is returned for unknown or timed-out browser sessions.
	ErrSessionExpired = errors.New("browser session expired")

	// ErrUpstreamFetch wraps failures of the image-board fetch.
	ErrUpstreamFetch = errors.New("upstream fetch failed")

	// ErrInvalidClaim is returned when a claim lacks a message, user or image.
	ErrInvalidClaim = errors.New("claim requires message id, user id and image")

	// ErrInvalidDirection is returned for an unknown navigation direction.
	ErrInvalidDirection = errors.New("invalid navigation direction")
)

// PersistenceError reports which document failed to save.
// errors.Is(err, ErrPersistence) holds for every PersistenceError.
type PersistenceError struct {
	Document string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("save %s: %v", e.Document, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is makes PersistenceError match ErrPersistence.
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }
