// Package danbooru fetches random posts from a Danbooru-compatible image board
// and maps them onto domain.Post.
package danbooru

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tbourn/claimbot/internal/config"
	"github.com/tbourn/claimbot/internal/domain"
	"github.com/tbourn/claimbot/internal/observability"
	"github.com/tbourn/claimbot/internal/sysutil"
)

// maxBody caps how much of a response is read.
const maxBody = 4 << 20

// StatusError is returned when the board answers with a non-200 status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("danbooru: unexpected status %d", e.Code)
}

// apiPost is the subset of the posts.json payload the bot uses.
type apiPost struct {
	FileURL            string `json:"file_url"`
	LargeFileURL       string `json:"large_file_url"`
	TagStringCharacter string `json:"tag_string_character"`
	TagStringCopyright string `json:"tag_string_copyright"`
	TagStringArtist    string `json:"tag_string_artist"`
	CreatedAt          string `json:"created_at"`
}

// Client talks to the posts endpoint.
type Client struct {
	baseURL string
	login   string
	apiKey  string
	http    *http.Client
	log     zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New builds a Client from cfg. Requests go through an otelhttp transport.
func New(cfg config.DanbooruConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		login:   cfg.Login,
		apiKey:  cfg.APIKey,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: log.With().Str("component", "danbooru").Logger(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NormalizeTag trims, collapses inner whitespace and lowercases a search tag.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.Join(strings.Fields(tag), " "))
}

// FetchRandomPost returns one random post matching tag, or nil when the board
// has nothing for it. An empty tag means any post.
func (c *Client) FetchRandomPost(ctx context.Context, tag string) (*domain.Post, error) {
	tag = NormalizeTag(tag)

	q := url.Values{}
	q.Set("tags", tag)
	q.Set("limit", "1")
	q.Set("random", "true")
	if c.login != "" {
		q.Set("login", c.login)
	}
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/posts.json?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("danbooru: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		observability.FetchTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("danbooru: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		observability.FetchTotal.WithLabelValues("error").Inc()
		c.log.Warn().Int("status", resp.StatusCode).Str("tag", tag).Msg("fetch rejected")
		return nil, &StatusError{Code: resp.StatusCode}
	}

	var posts []apiPost
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&posts); err != nil {
		observability.FetchTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("danbooru: decode: %w", err)
	}

	for _, p := range posts {
		image := strings.TrimSpace(sysutil.FirstNonEmpty(p.FileURL, p.LargeFileURL))
		if image == "" {
			// restricted posts come back without file urls
			continue
		}
		observability.FetchTotal.WithLabelValues("ok").Inc()
		return &domain.Post{
			Image:      image,
			Characters: p.TagStringCharacter,
			Source:     p.TagStringCopyright,
			Artist:     p.TagStringArtist,
			Date:       datePart(p.CreatedAt),
		}, nil
	}

	observability.FetchTotal.WithLabelValues("empty").Inc()
	c.log.Debug().Str("tag", tag).Msg("no results")
	return nil, nil
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// datePart keeps the calendar date of an ISO-8601 timestamp.
func datePart(ts string) string {
	ts = strings.TrimSpace(ts)
	if i := strings.IndexByte(ts, 'T'); i >= 0 {
		return ts[:i]
	}
	return ts
}
