package tools

import (
	"context"
	"strings"
	"time"
)

// Clock reports the current time. The input selects the zone: anything
// mentioning "utc" or "gmt" gets UTC, otherwise local time.
type Clock struct {
	// now is swapped in tests.
	now func() time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Now}
}

func (c *Clock) Name() string { return "get_time" }

func (c *Clock) Description() string {
	return "Report the current date and time, local or UTC"
}

func (c *Clock) Execute(ctx context.Context, input string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := c.now()
	zone := "local"
	if wantsUTC(input) {
		t = t.UTC()
		zone = "utc"
	}
	return &Result{
		Content: t.Format("Monday, January 2, 2006 at 15:04:05 MST"),
		Data: map[string]any{
			"iso":  t.Format(time.RFC3339),
			"zone": zone,
			"unix": t.Unix(),
		},
	}, nil
}

func wantsUTC(input string) bool {
	lower := strings.ToLower(input)
	return strings.Contains(lower, "utc") || strings.Contains(lower, "gmt")
}

var _ Tool = (*Clock)(nil)
