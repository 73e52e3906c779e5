package video_batch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"
)

// HTTPClient is the subset of *http.Client used by the Resolver and Fetcher.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Which rule of the selection policy picked a ResolvedMedia.
type SelectionRule string

const (
	RuleNormal720 SelectionRule = "normal_720"
	Rule720       SelectionRule = "720"
	RuleFirst     SelectionRule = "first"
)

// ResolvedMedia is a playable URL for a share link.
type ResolvedMedia struct {
	URL    string
	Format string
	Rule   SelectionRule
}

const (
	snippetLength   = 200
	maxResponseSize = 10 << 20
)

// Resolver turns share links into playable media URLs using the resolution service.
type Resolver struct {
	config Config
	client HTTPClient
}

func NewResolver(config Config, client HTTPClient) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	return &Resolver{
		config: config,
		client: client,
	}
}

// Resolve makes a single request to the resolution service for link and picks the best playable URL from the
// response. It never retries; any error is a *ResolveError.
func (r *Resolver) Resolve(ctx context.Context, link string) (*ResolvedMedia, error) {
	if r.config.ResolverTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.ResolverTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.requestURL(link), nil)
	if err != nil {
		return nil, &ResolveError{Kind: ResolveTransport, Detail: "failed to create request", Err: err}
	}
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("User-Agent", r.config.ResolverUserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &ResolveError{Kind: ResolveTransport, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ResolveError{Kind: ResolveTransport, Detail: fmt.Sprintf("unexpected status: %s", resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &ResolveError{Kind: ResolveTransport, Detail: "failed to read response", Err: err}
	}
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, &ResolveError{Kind: ResolveInvalidResponse, Detail: snippet(string(body))}
	}
	if _, ok := data.(map[string]any); !ok {
		return nil, &ResolveError{Kind: ResolveInvalidResponse, Detail: snippet(string(body))}
	}

	media, err := ExtractPlayURL(data)
	if err != nil {
		if rerr, ok := err.(*ResolveError); ok {
			rerr.Detail += "; response: " + snippet(string(body))
		}
		return nil, err
	}
	Logger(ctx).Sugar().Named("resolve").Debugw("resolved link", "link", link, "format", media.Format, "rule", media.Rule)
	return media, nil
}

// requestURL appends link to the endpoint with every reserved character percent-encoded, including "/", "?" and
// spaces (as %20 rather than "+").
func (r *Resolver) requestURL(link string) string {
	return r.config.ResolverEndpoint + strings.ReplaceAll(url.QueryEscape(link), "+", "%20")
}

// ExtractPlayURL picks a playable URL from a decoded resolver response, looking at data.formats in order:
//  1. the first entry whose format contains "normal_720" and has a url;
//  2. the first entry whose format contains "720" and has a url;
//  3. the first entry, if it has a url.
func ExtractPlayURL(data any) (*ResolvedMedia, error) {
	root, ok := data.(map[string]any)
	if !ok {
		return nil, &ResolveError{Kind: ResolveNoPlayableURL, Detail: fmt.Sprintf("response is %T, not an object", data)}
	}
	inner, _ := root["data"].(map[string]any)
	list, _ := inner["formats"].([]any)
	if len(list) == 0 {
		return nil, &ResolveError{Kind: ResolveNoPlayableURL, Detail: "data.formats is empty"}
	}

	formats := make([]mediaFormat, 0, len(list))
	for _, item := range list {
		formats = append(formats, newMediaFormat(item))
	}
	for _, rule := range []struct {
		rule   SelectionRule
		substr string
	}{
		{RuleNormal720, "normal_720"},
		{Rule720, "720"},
	} {
		for _, f := range formats {
			if strings.Contains(f.format, rule.substr) && f.url != "" {
				return &ResolvedMedia{URL: f.url, Format: f.format, Rule: rule.rule}, nil
			}
		}
	}
	if first := formats[0]; first.url != "" {
		return &ResolvedMedia{URL: first.url, Format: first.format, Rule: RuleFirst}, nil
	}
	return nil, &ResolveError{Kind: ResolveNoPlayableURL, Detail: "no url found in data.formats"}
}

type mediaFormat struct {
	format string
	url    string
}

// Entries that aren't objects, or have non-string fields, behave as if the fields were empty.
func newMediaFormat(item any) mediaFormat {
	m, _ := item.(map[string]any)
	format, _ := m["format"].(string)
	u, _ := m["url"].(string)
	return mediaFormat{format: format, url: u}
}

// snippet truncates s to at most snippetLength bytes without splitting a UTF-8 sequence.
func snippet(s string) string {
	if len(s) <= snippetLength {
		return s
	}
	cut := snippetLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
