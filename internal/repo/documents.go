package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tbourn/claimbot/internal/domain"
)

// LoadClaims loads and validates the claims document. A missing document is
// an empty mapping; a malformed one is ErrCorruptDocument.
func LoadClaims(ctx context.Context, s Store) (domain.Claims, error) {
	raw, err := s.Load(ctx, KeyClaims)
	if errors.Is(err, ErrDocumentNotFound) {
		return domain.Claims{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", KeyClaims, err)
	}

	var claims domain.Claims
	if err := decodeStrict(raw, &claims); err != nil {
		return nil, corrupt(KeyClaims, err)
	}
	if claims == nil {
		return nil, corrupt(KeyClaims, errors.New("document is null"))
	}
	for msgID, userID := range claims {
		if strings.TrimSpace(msgID) == "" {
			return nil, corrupt(KeyClaims, errors.New("empty message id"))
		}
		if strings.TrimSpace(userID) == "" {
			return nil, corrupt(KeyClaims, fmt.Errorf("message %s: empty user id", msgID))
		}
	}
	return claims, nil
}

// SaveClaims writes the whole claims document.
func SaveClaims(ctx context.Context, s Store, claims domain.Claims) error {
	if claims == nil {
		claims = domain.Claims{}
	}
	b, err := json.MarshalIndent(claims, "", "  ")
	if err != nil {
		return err
	}
	return s.Save(ctx, KeyClaims, b)
}

// LoadCollections loads and validates the collections document.
func LoadCollections(ctx context.Context, s Store) (domain.Collections, error) {
	raw, err := s.Load(ctx, KeyCollections)
	if errors.Is(err, ErrDocumentNotFound) {
		return domain.Collections{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", KeyCollections, err)
	}

	// Decode through pointers so that null entries are detectable.
	var loose map[string][]*domain.Post
	if err := decodeStrict(raw, &loose); err != nil {
		return nil, corrupt(KeyCollections, err)
	}
	if loose == nil {
		return nil, corrupt(KeyCollections, errors.New("document is null"))
	}

	out := make(domain.Collections, len(loose))
	for userID, posts := range loose {
		if strings.TrimSpace(userID) == "" {
			return nil, corrupt(KeyCollections, errors.New("empty user id"))
		}
		seq := make([]domain.Post, 0, len(posts))
		for i, p := range posts {
			if p == nil {
				return nil, corrupt(KeyCollections, fmt.Errorf("user %s: record %d is null", userID, i))
			}
			if strings.TrimSpace(p.Image) == "" {
				return nil, corrupt(KeyCollections, fmt.Errorf("user %s: record %d has no image", userID, i))
			}
			seq = append(seq, *p)
		}
		out[userID] = seq
	}
	return out, nil
}

// SaveCollections writes the whole collections document.
func SaveCollections(ctx context.Context, s Store, cols domain.Collections) error {
	if cols == nil {
		cols = domain.Collections{}
	}
	// Users whose sequence became empty keep an empty array, never null.
	norm := make(map[string][]domain.Post, len(cols))
	for k, v := range cols {
		if v == nil {
			v = []domain.Post{}
		}
		norm[k] = v
	}
	b, err := json.MarshalIndent(norm, "", "  ")
	if err != nil {
		return err
	}
	return s.Save(ctx, KeyCollections, b)
}

// decodeStrict decodes a single JSON value and rejects trailing data.
func decodeStrict(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after document")
	}
	return nil
}

func corrupt(key string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrCorruptDocument, key, err)
}
