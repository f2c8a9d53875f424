package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	reerrors "reagent/internal/errors"
	jsonx "reagent/internal/shared/json"
)

// WebSearch queries a search backend over HTTP. With no endpoint
// configured it falls back to a deterministic offline summary so plans
// that include a search step still complete.
type WebSearch struct {
	endpoint   string
	httpClient *http.Client
	maxResults int
}

// WebSearchOption configures a WebSearch.
type WebSearchOption func(*WebSearch)

// WithSearchEndpoint points the tool at a search API returning
// {"results":[{"title":..,"snippet":..,"url":..}]}.
func WithSearchEndpoint(endpoint string) WebSearchOption {
	return func(w *WebSearch) { w.endpoint = endpoint }
}

// WithHTTPClient replaces the HTTP client, mainly for tests.
func WithHTTPClient(client *http.Client) WebSearchOption {
	return func(w *WebSearch) { w.httpClient = client }
}

func NewWebSearch(opts ...WebSearchOption) *WebSearch {
	w := &WebSearch{
		httpClient: &http.Client{},
		maxResults: 5,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *WebSearch) Name() string { return "search_web" }

func (w *WebSearch) Description() string {
	return "Search the web and return result snippets"
}

type searchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

func (w *WebSearch) Execute(ctx context.Context, input string) (*Result, error) {
	query := strings.TrimSpace(input)
	if query == "" {
		return nil, reerrors.NewInput("search needs a query")
	}
	if w.endpoint == "" {
		return w.offline(query), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		w.endpoint+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, reerrors.NewInternal(err, "build search request")
	}
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, reerrors.NewTool(err, "search request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("search backend returned status %d", resp.StatusCode)
		if reerrors.IsTransientStatus(resp.StatusCode) {
			return nil, reerrors.NewTool(err, "search backend unavailable")
		}
		return nil, &reerrors.PermanentError{Kind: reerrors.KindTool, Err: err}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, reerrors.NewTool(err, "read search response")
	}
	var parsed struct {
		Results []searchResult `json:"results"`
	}
	if err := jsonx.Unmarshal(body, &parsed); err != nil {
		return nil, reerrors.NewTool(err, "decode search response")
	}
	if len(parsed.Results) > w.maxResults {
		parsed.Results = parsed.Results[:w.maxResults]
	}
	return renderResults(query, parsed.Results), nil
}

func (w *WebSearch) offline(query string) *Result {
	results := []searchResult{
		{
			Title:   fmt.Sprintf("Overview: %s", query),
			Snippet: fmt.Sprintf("Summary of available knowledge about %q (offline index).", query),
			URL:     "offline://summary",
		},
	}
	return renderResults(query, results)
}

func renderResults(query string, results []searchResult) *Result {
	var b strings.Builder
	items := make([]any, 0, len(results))
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s — %s\n", i+1, r.Title, r.Snippet)
		items = append(items, map[string]any{
			"title":   r.Title,
			"snippet": r.Snippet,
			"url":     r.URL,
		})
	}
	return &Result{
		Content: strings.TrimSpace(b.String()),
		Data: map[string]any{
			"query":   query,
			"results": items,
		},
	}
}

var _ Tool = (*WebSearch)(nil)
