package danbooru

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tbourn/claimbot/internal/config"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(config.DanbooruConfig{
		BaseURL: srv.URL + "/",
		Login:   "me",
		APIKey:  "secret",
		Timeout: 2 * time.Second,
	})
}

func TestFetchRandomPost_MapsFields(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/posts.json" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("tags") != "hatsune_miku rating:g" {
			t.Errorf("tags = %q", q.Get("tags"))
		}
		if q.Get("limit") != "1" || q.Get("random") != "true" {
			t.Errorf("limit/random = %q/%q", q.Get("limit"), q.Get("random"))
		}
		if q.Get("login") != "me" || q.Get("api_key") != "secret" {
			t.Errorf("credentials not forwarded: %v", q)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{
			"file_url": "",
			"large_file_url": "https://cdn.example/large.jpg",
			"tag_string_character": "hatsune_miku",
			"tag_string_copyright": "vocaloid",
			"tag_string_artist": "someone",
			"created_at": "2023-05-06T07:08:09.000-04:00"
		}]`))
	})

	p, err := c.FetchRandomPost(context.Background(), "  Hatsune_Miku   rating:g ")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if p == nil {
		t.Fatal("expected a post")
	}
	if p.Image != "https://cdn.example/large.jpg" {
		t.Errorf("image = %q", p.Image)
	}
	if p.Characters != "hatsune_miku" || p.Source != "vocaloid" || p.Artist != "someone" {
		t.Errorf("tags not mapped: %+v", p)
	}
	if p.Date != "2023-05-06" {
		t.Errorf("date = %q", p.Date)
	}
	if p.MessageID != "" {
		t.Errorf("message id must be empty before posting")
	}
}

func TestFetchRandomPost_Empty(t *testing.T) {
	for name, body := range map[string]string{
		"no posts":     `[]`,
		"no file urls": `[{"file_url":"","large_file_url":""}]`,
	} {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			p, err := c.FetchRandomPost(context.Background(), "")
			if err != nil || p != nil {
				t.Fatalf("got %v, %v; want nil, nil", p, err)
			}
		})
	}
}

func TestFetchRandomPost_StatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})
	p, err := c.FetchRandomPost(context.Background(), "x")
	if p != nil {
		t.Fatalf("expected nil post")
	}
	if !IsStatus(err, http.StatusForbidden) {
		t.Fatalf("expected 403 StatusError, got %v", err)
	}
}

func TestFetchRandomPost_BadJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"an array"}`))
	})
	if _, err := c.FetchRandomPost(context.Background(), ""); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestNormalizeTag(t *testing.T) {
	cases := map[string]string{
		"":                "",
		"  ":              "",
		"Touhou":          "touhou",
		" a \t  B\nc ":    "a b c",
		"rating:General ": "rating:general",
	}
	for in, want := range cases {
		if got := NormalizeTag(in); got != want {
			t.Errorf("NormalizeTag(%q) = %q, want %q", in, got, want)
		}
	}
}
