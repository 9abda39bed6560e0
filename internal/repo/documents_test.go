package repo

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/claimbot/internal/domain"
)

func TestLoadClaims_FirstRunIsEmpty(t *testing.T) {
	s := newFileStore(t)
	claims, err := LoadClaims(context.Background(), s)
	require.NoError(t, err)
	assert.NotNil(t, claims)
	assert.Empty(t, claims)
}

func TestClaims_RoundTrip(t *testing.T) {
	for name, s := range map[string]Store{"file": newFileStore(t), "sqlite": newSQLiteStore(t)} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			in := domain.Claims{"1001": "u1", "1002": "u2"}
			require.NoError(t, SaveClaims(ctx, s, in))
			out, err := LoadClaims(ctx, s)
			require.NoError(t, err)
			assert.Equal(t, in, out)
		})
	}
}

func TestCollections_RoundTrip(t *testing.T) {
	for name, s := range map[string]Store{"file": newFileStore(t), "sqlite": newSQLiteStore(t)} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			in := domain.Collections{
				"u1": {
					{Image: "https://x/1.png", Characters: "a_b", Source: "c", Artist: "d", Date: "2024-01-02", MessageID: "1001"},
					{Image: "https://x/2.png"},
				},
				"u2": {},
			}
			require.NoError(t, SaveCollections(ctx, s, in))
			out, err := LoadCollections(ctx, s)
			require.NoError(t, err)
			assert.Equal(t, in, out)
		})
	}
}

func TestSaveCollections_EmptySequenceIsArray(t *testing.T) {
	s := newFileStore(t)
	require.NoError(t, SaveCollections(context.Background(), s, domain.Collections{"u1": nil}))
	raw, err := os.ReadFile(s.Path(KeyCollections))
	require.NoError(t, err)
	assert.JSONEq(t, `{"u1": []}`, string(raw))
}

func TestLoadCollections_LegacyDocumentWithoutMessageIDs(t *testing.T) {
	s := newFileStore(t)
	legacy := `{
  "42": [
    {"image": "https://x/a.png", "characters": "rin", "source": "vocaloid", "date": "2023-05-01"}
  ]
}`
	require.NoError(t, os.WriteFile(s.Path(KeyCollections), []byte(legacy), 0o644))

	cols, err := LoadCollections(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, cols["42"], 1)
	assert.Equal(t, "", cols["42"][0].Artist)
	assert.Equal(t, "", cols["42"][0].MessageID)
}

func TestLoad_CorruptDocumentsAreFatal(t *testing.T) {
	cases := []struct {
		name string
		key  string
		body string
	}{
		{"claims not json", KeyClaims, `{"m1": `},
		{"claims wrong type", KeyClaims, `{"m1": 5}`},
		{"claims empty user", KeyClaims, `{"m1": ""}`},
		{"claims null", KeyClaims, `null`},
		{"claims empty file", KeyClaims, ``},
		{"claims trailing data", KeyClaims, `{} {}`},
		{"collections array root", KeyCollections, `[]`},
		{"collections null record", KeyCollections, `{"u1": [null]}`},
		{"collections missing image", KeyCollections, `{"u1": [{"characters": "x"}]}`},
		{"collections numeric field", KeyCollections, `{"u1": [{"image": "i", "date": 3}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newFileStore(t)
			require.NoError(t, os.WriteFile(s.Path(tc.key), []byte(tc.body), 0o644))

			var err error
			if tc.key == KeyClaims {
				_, err = LoadClaims(context.Background(), s)
			} else {
				_, err = LoadCollections(context.Background(), s)
			}
			require.ErrorIs(t, err, ErrCorruptDocument)
		})
	}
}
