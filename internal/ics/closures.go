package ics

import (
	"context"
	"sync"
	"time"

	appLog "caseload/internal/log"
)

// ClosureCalendars merges the closure days of several subscribed calendars.
// Parsed events are reused until maxAge has passed.
type ClosureCalendars struct {
	fetcher *Fetcher
	sources []Source
	loc     *time.Location
	maxAge  time.Duration
	now     func() time.Time

	mu       sync.Mutex
	loadedAt time.Time
	closures []Closure
}

func NewClosureCalendars(f *Fetcher, sources []Source, loc *time.Location, maxAge time.Duration) *ClosureCalendars {
	if loc == nil {
		loc = time.Local
	}
	return &ClosureCalendars{fetcher: f, sources: sources, loc: loc, maxAge: maxAge, now: time.Now}
}

// ClosureDates maps every closed DateKey in [from, to] to the closure name.
// When several closures share a day the first calendar wins.
func (c *ClosureCalendars) ClosureDates(ctx context.Context, from, to time.Time) (map[string]string, error) {
	closures, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for _, cl := range closures {
		for _, key := range cl.Days(from.In(c.loc), to.In(c.loc)) {
			if _, ok := out[key]; !ok {
				out[key] = cl.Summary
			}
		}
	}
	return out, nil
}

// Refresh drops the parsed events so the next read refetches.
func (c *ClosureCalendars) Refresh() {
	c.mu.Lock()
	c.loadedAt = time.Time{}
	c.mu.Unlock()
}

func (c *ClosureCalendars) load(ctx context.Context) ([]Closure, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loadedAt.IsZero() && c.now().Sub(c.loadedAt) < c.maxAge {
		return c.closures, nil
	}

	results, errs := c.fetcher.FetchAll(ctx, c.sources)
	if len(results) == 0 && len(errs) > 0 {
		return nil, errs[0]
	}
	all := make([]Closure, 0)
	for _, res := range results {
		parsed, err := ParseClosures(res.Body, c.loc)
		if err != nil {
			appLog.Error("closure calendar parse failed", err, "id", res.Source.ID)
			continue
		}
		all = append(all, parsed...)
	}
	appLog.Info("closure calendars loaded", "sources", len(results), "failed", len(errs), "events", len(all))
	c.closures = all
	c.loadedAt = c.now()
	return all, nil
}
