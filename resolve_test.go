package video_batch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"
	require_ "github.com/stretchr/testify/require"
)

func formatsResponse(formats ...map[string]any) map[string]any {
	list := make([]any, 0, len(formats))
	for _, f := range formats {
		list = append(list, f)
	}
	return map[string]any{"data": map[string]any{"formats": list}}
}

func TestExtractPlayURL(t *testing.T) {
	tests := []struct {
		name   string
		data   any
		url    string
		rule   SelectionRule
		format string
	}{
		{
			name: "normal_720 preferred",
			data: formatsResponse(
				map[string]any{"format": "low"},
				map[string]any{"format": "normal_720", "url": "A"},
			),
			url: "A", rule: RuleNormal720, format: "normal_720",
		},
		{
			name: "normal_720 beats an earlier 720",
			data: formatsResponse(
				map[string]any{"format": "hd_720p", "url": "B"},
				map[string]any{"format": "normal_720_0", "url": "A"},
			),
			url: "A", rule: RuleNormal720, format: "normal_720_0",
		},
		{
			name: "any 720",
			data: formatsResponse(map[string]any{"format": "hd_720p", "url": "B"}),
			url:  "B", rule: Rule720, format: "hd_720p",
		},
		{
			name: "normal_720 without url falls through to 720",
			data: formatsResponse(
				map[string]any{"format": "normal_720", "url": ""},
				map[string]any{"format": "720p", "url": "D"},
			),
			url: "D", rule: Rule720, format: "720p",
		},
		{
			name: "first entry",
			data: formatsResponse(map[string]any{"format": "low", "url": "C"}),
			url:  "C", rule: RuleFirst, format: "low",
		},
		{
			name: "first entry without format tag",
			data: formatsResponse(map[string]any{"url": "E"}, map[string]any{"format": "high", "url": "F"}),
			url:  "E", rule: RuleFirst,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert_.New(t)
			media, err := ExtractPlayURL(tt.data)
			require_.NoError(t, err)
			assert.Equal(tt.url, media.URL)
			assert.Equal(tt.rule, media.Rule)
			assert.Equal(tt.format, media.Format)
		})
	}
}

func TestExtractPlayURLNoPlayable(t *testing.T) {
	for name, data := range map[string]any{
		"empty formats":       formatsResponse(),
		"missing data":        map[string]any{},
		"missing formats":     map[string]any{"data": map[string]any{}},
		"formats not a list":  map[string]any{"data": map[string]any{"formats": "nope"}},
		"first has no url":    formatsResponse(map[string]any{"format": "low"}, map[string]any{"format": "high", "url": "X"}),
		"not an object":       []any{"a"},
		"entry not an object": map[string]any{"data": map[string]any{"formats": []any{"x"}}},
	} {
		t.Run(name, func(t *testing.T) {
			media, err := ExtractPlayURL(data)
			assert_.Nil(t, media)
			assert_.ErrorIs(t, err, ErrNoPlayableURL)
		})
	}
}

func testConfig(t *testing.T, endpoint string) Config {
	cfg := DefaultConfig
	cfg.ResolverEndpoint = endpoint
	cfg.TargetDir = t.TempDir()
	cfg.RetryDelay = 0
	cfg.MinValidSize = 100
	return cfg
}

func TestResolve(t *testing.T) {
	assert := assert_.New(t)

	var requestURI, requestedWith, userAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestURI = r.RequestURI
		requestedWith = r.Header.Get("X-Requested-With")
		userAgent = r.Header.Get("User-Agent")
		_ = json.NewEncoder(w).Encode(formatsResponse(
			map[string]any{"format": "low", "url": "https://cdn/low.mp4"},
			map[string]any{"format": "normal_720_0", "url": "https://cdn/720.mp4"},
		))
	}))
	defer server.Close()

	resolver := NewResolver(testConfig(t, server.URL+"/api/parse?url="), server.Client())
	media, err := resolver.Resolve(context.Background(), "https://x/video/12345?a=1&b=two words")
	require_.NoError(t, err)
	assert.Equal("https://cdn/720.mp4", media.URL)
	assert.Equal(RuleNormal720, media.Rule)

	assert.Equal("/api/parse?url=https%3A%2F%2Fx%2Fvideo%2F12345%3Fa%3D1%26b%3Dtwo%20words", requestURI)
	assert.Equal("XMLHttpRequest", requestedWith)
	assert.Equal("parsevideo api/v1", userAgent)
}

func TestResolveErrors(t *testing.T) {
	long := strings.Repeat("x", 500)
	tests := []struct {
		name    string
		status  int
		body    string
		target  error
		contain string
	}{
		{"server error", http.StatusInternalServerError, "oops", ErrResolveTransport, "500"},
		{"not json", http.StatusOK, "<html>" + long, ErrInvalidResponse, "<html>xxx"},
		{"json array", http.StatusOK, `["a"]`, ErrInvalidResponse, `["a"]`},
		{"no formats", http.StatusOK, `{"data":{"formats":[]}}`, ErrNoPlayableURL, "data.formats is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert_.New(t)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			resolver := NewResolver(testConfig(t, server.URL+"/?url="), server.Client())
			media, err := resolver.Resolve(context.Background(), "https://x/video/1")
			assert.Nil(media)
			assert.ErrorIs(err, tt.target)
			assert.Contains(err.Error(), tt.contain)
			assert.Less(len(err.Error()), 300, "snippet should be bounded")
		})
	}
}

func TestResolveTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := server.URL + "/?url="
	server.Close()

	_, err := NewResolver(testConfig(t, endpoint), nil).Resolve(context.Background(), "https://x/video/1")
	assert_.ErrorIs(t, err, ErrResolveTransport)
}

func TestResolveTimeout(t *testing.T) {
	done := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-done:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(done)

	cfg := testConfig(t, server.URL+"/?url=")
	cfg.ResolverTimeout = 50 * time.Millisecond
	_, err := NewResolver(cfg, server.Client()).Resolve(context.Background(), "https://x/video/1")
	assert_.ErrorIs(t, err, ErrResolveTransport)
	assert_.ErrorIs(t, err, context.DeadlineExceeded)
}

// clientFunc adapts a function to HTTPClient.
type clientFunc func(req *http.Request) (*http.Response, error)

func (f clientFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestResolveWithoutTimeout(t *testing.T) {
	assert := assert_.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(formatsResponse(
			map[string]any{"format": "normal_720", "url": "https://cdn/720.mp4"},
		))
	}))
	defer server.Close()

	var hasDeadline bool
	client := clientFunc(func(req *http.Request) (*http.Response, error) {
		_, hasDeadline = req.Context().Deadline()
		return server.Client().Do(req)
	})

	cfg := testConfig(t, server.URL+"/?url=")
	cfg.ResolverTimeout = 0
	require_.NoError(t, cfg.Validate())
	media, err := NewResolver(cfg, client).Resolve(context.Background(), "https://x/video/1")
	require_.NoError(t, err)
	assert.Equal("https://cdn/720.mp4", media.URL)
	assert.False(hasDeadline)
}

func TestSnippet(t *testing.T) {
	assert := assert_.New(t)
	assert.Equal("short", snippet("short"))
	assert.Len(snippet(strings.Repeat("a", 300)), snippetLength)
	// Multi-byte characters are never split.
	s := snippet(strings.Repeat("链", 100))
	assert.Equal(strings.Repeat("链", 66), s)
}
