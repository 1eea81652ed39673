package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cuongbtq/cron-agent/internal/domain"
	"github.com/cuongbtq/cron-agent/internal/grounding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcher_Fetch(t *testing.T) {
	tests := []struct {
		name        string
		kind        grounding.AcceptKind
		contentType string
		body        string
		wantAccept  string
		expected    string
	}{
		{
			name:        "json pretty printed",
			kind:        grounding.AcceptJSON,
			contentType: "application/json",
			body:        `{"a":1,"b":[true,null]}`,
			wantAccept:  "application/json",
			expected:    "{\n  \"a\": 1,\n  \"b\": [\n    true,\n    null\n  ]\n}",
		},
		{
			name:        "markdown passthrough",
			kind:        grounding.AcceptMarkdown,
			contentType: "text/markdown; charset=utf-8",
			body:        "# Title\n\n- item",
			wantAccept:  "text/markdown,text/plain",
			expected:    "# Title\n\n- item",
		},
		{
			name:        "html reduced to text",
			kind:        grounding.AcceptMarkdown,
			contentType: "text/html; charset=utf-8",
			body:        "<html><head><style>p{}</style></head><body><h1>Hello</h1>\n<p>World   of\tnews</p><script>var x;</script></body></html>",
			wantAccept:  "text/markdown,text/plain",
			expected:    "Hello\nWorld of news",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotAccept string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAccept = r.Header.Get("Accept")
				w.Header().Set("Content-Type", tt.contentType)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			text, err := New(nil, 0).Fetch(context.Background(), srv.URL, tt.kind)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, text)
			assert.Equal(t, tt.wantAccept, gotAccept)
		})
	}
}

func TestFetcher_Fetch_Errors(t *testing.T) {
	t.Run("non 2xx", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("gone"))
		}))
		defer srv.Close()

		_, err := New(nil, 0).Fetch(context.Background(), srv.URL, grounding.AcceptMarkdown)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrContextFetch)
		assert.Contains(t, err.Error(), "404")
		assert.Contains(t, err.Error(), "gone")
	})

	t.Run("invalid json", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("{broken"))
		}))
		defer srv.Close()

		_, err := New(nil, 0).Fetch(context.Background(), srv.URL, grounding.AcceptJSON)
		assert.ErrorIs(t, err, domain.ErrContextFetch)
	})

	t.Run("body over the limit", func(t *testing.T) {
		large := `["` + strings.Repeat("a", maxBodyBytes) + `"]`
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(large))
		}))
		defer srv.Close()

		_, err := New(nil, 0).Fetch(context.Background(), srv.URL, grounding.AcceptJSON)
		assert.ErrorIs(t, err, domain.ErrContextFetch)
		assert.ErrorContains(t, err, "response too large")
		assert.NotContains(t, err.Error(), "not valid JSON")
	})

	t.Run("body at the limit", func(t *testing.T) {
		exact := `"` + strings.Repeat("a", maxBodyBytes-2) + `"`
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(exact))
		}))
		defer srv.Close()

		text, err := New(nil, 0).Fetch(context.Background(), srv.URL, grounding.AcceptJSON)
		require.NoError(t, err)
		assert.Len(t, text, maxBodyBytes)
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := srv.URL
		srv.Close()

		_, err := New(nil, 0).Fetch(context.Background(), url, grounding.AcceptJSON)
		assert.ErrorIs(t, err, domain.ErrContextFetch)
	})
}
