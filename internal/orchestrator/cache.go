package orchestrator

import (
	"context"
	"strings"
	"time"

	"reagent/internal/cache"
)

// cacheSkipKeywords marks queries whose answers depend on when or in
// which conversation they are asked; those never hit or fill the cache.
var cacheSkipKeywords = []string{
	"time", "now", "today", "date", "tonight",
	"history", "question", "ask", "asked", "previous", "earlier", "conversation",
}

func cacheable(query string) bool {
	lower := strings.ToLower(query)
	for _, kw := range cacheSkipKeywords {
		if containsWord(lower, kw) {
			return false
		}
	}
	return true
}

// containsWord matches kw on word boundaries so "nowhere" does not
// trip the "now" keyword.
func containsWord(text, kw string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], kw)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(kw)
		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func (o *Orchestrator) tryCache(ctx context.Context, query string, start time.Time) (*Response, bool) {
	if o.respCache == nil || !cacheable(query) {
		return nil, false
	}
	entry, ok := o.respCache.Get(cache.NormalizeKey(query))
	o.collector.RecordCacheLookup(ctx, ok)
	if !ok {
		return nil, false
	}
	resp := entry
	resp.Cached = true
	resp.Trace = nil
	resp.RequestID = ""
	resp.DurationMS = float64(time.Since(start).Microseconds()) / 1000
	return &resp, true
}

func (o *Orchestrator) storeInCache(ctx context.Context, query string, resp *Response) {
	if o.respCache == nil || resp.Degraded || !cacheable(query) {
		return
	}
	o.respCache.Set(cache.NormalizeKey(query), *resp)
}
