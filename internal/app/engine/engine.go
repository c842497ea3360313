/*
Package engine is the client side of mentorlink: it keeps one signed-in user's view of
their mentorships consistent with the API server.

A Session owns the per-user state. Its RelationshipStore caches the caller's active
relationships, a Selector drives a mentor's one-time choice of mentees, and a Thread polls
the open conversation on a fixed interval while reconciling optimistic sends, reactions and
deletions against the server's authoritative list. The Notifier gates background polling and
unread badges. Router maps the session to the view a role is allowed to see.

The server is the single source of truth. Nothing here is persisted.
*/
package engine

import (
	"time"

	"github.com/rs/zerolog"

	"mentorlink/internal/pkg/logx"
)

// DefaultPollInterval is the period between background thread fetches.
const DefaultPollInterval = 30 * time.Second

type options struct {
	clock    Clock
	interval time.Duration
	logger   zerolog.Logger
}

// Option customises a Session or Thread.
type Option func(*options)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithPollInterval sets the background poll period. Non-positive values keep the default.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithLogger sets the logger the engine reports poll failures to.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{
		clock:    RealClock(),
		interval: DefaultPollInterval,
		logger:   logx.Component("engine"),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
