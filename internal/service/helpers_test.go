package service_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/iliyamo/site-listing-marketplace/internal/queue"
	"github.com/iliyamo/site-listing-marketplace/internal/service"
)

var (
	nopLogger = zerolog.Nop()
	epoch     = time.Date(2026, time.April, 1, 10, 0, 0, 0, time.UTC)
)

// stepClock advances one second on every call so creation order is stable.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("id-%d", s.n)
}

func testOptions() []service.Option {
	clock := &stepClock{t: epoch}
	ids := &seqIDs{}
	return []service.Option{service.WithClock(clock.Now), service.WithIDGenerator(ids.Next)}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.ListingEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.ListingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Types() []queue.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	return lo.Map(p.events, func(ev queue.ListingEvent, _ int) queue.EventType { return ev.Type })
}

func (p *recordingPublisher) Events() []queue.ListingEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.ListingEvent(nil), p.events...)
}

type busyLocker struct{ err error }

func (l busyLocker) Acquire(context.Context, string) (func(), error) {
	return nil, l.err
}

func price(v int64) *int64 { return &v }

func submitInput(url string, p int64) service.SubmitInput {
	return service.SubmitInput{
		Title:       "Tech blog",
		URL:         url,
		Description: "Guest posts on a tech blog",
		Price:       price(p),
		Categories:  []string{"tech"},
		Countries:   []string{"US"},
	}
}
