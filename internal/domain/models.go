// Package domain defines the records the bot persists: the Post snapshot taken
// from an image-board fetch, the claims index, the per-user collections, and the
// generic Document row used by the SQLite store.
package domain

import (
	"strings"
	"time"
)

// Post is a denormalized snapshot of an image-board post, captured once when
// the post is fetched and never edited afterwards.
//
// Fields:
//   - Image: direct file URL; the natural key when MessageID is unknown.
//   - Characters / Source / Artist: raw space-separated tag strings.
//   - Date: creation date (YYYY-MM-DD); empty when unknown.
//   - MessageID: chat message the post was offered on. Records written before
//     the id was tracked do not carry it.
type Post struct {
	Image      string `json:"image"      yaml:"image"`
	Characters string `json:"characters" yaml:"characters"`
	Source     string `json:"source"     yaml:"source"`
	Artist     string `json:"artist"     yaml:"artist"`
	Date       string `json:"date"       yaml:"date"`
	MessageID  string `json:"message_id,omitempty" yaml:"message_id,omitempty"`
}

// SameAs reports whether p and other identify the same claimed post. The
// message id wins when both records carry one; otherwise the image URL is used.
func (p Post) SameAs(other Post) bool {
	if p.MessageID != "" && other.MessageID != "" {
		return p.MessageID == other.MessageID
	}
	return p.Image == other.Image
}

// WithMessageID returns a copy of p bound to messageID.
func (p Post) WithMessageID(messageID string) Post {
	p.MessageID = strings.TrimSpace(messageID)
	return p
}

// Claims maps a message id to the user id that claimed it.
type Claims map[string]string

// Clone returns a shallow copy safe to hand to a serializer.
func (c Claims) Clone() Claims {
	out := make(Claims, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Collections maps a user id to the posts they claimed, in claim order.
type Collections map[string][]Post

// Clone returns a copy whose slices are independent of c.
func (c Collections) Clone() Collections {
	out := make(Collections, len(c))
	for k, v := range c {
		out[k] = append([]Post(nil), v...)
	}
	return out
}

// Document is a whole JSON document stored under a fixed key. Used by the
// SQLite backend; the file backend stores one file per key instead.
type Document struct {
	Key       string    `gorm:"type:varchar(64);primaryKey"`
	Body      string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the database table name for Document.
func (Document) TableName() string { return "documents" }
