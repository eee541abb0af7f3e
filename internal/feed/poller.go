package feed

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog"

	"example.com/sitetracker/internal/tracker"
)

type refresher interface {
	RefreshFeed(ctx context.Context, src tracker.Source) (tracker.ImportResult, error)
}

// Option configures optional behaviour for the Poller.
type Option func(*Poller)

// WithLogger overrides the logger used to report notices.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Poller) {
		p.logger = logger
	}
}

// Poller loads the feed once at start and then on every interval tick.
type Poller struct {
	service  refresher
	source   tracker.Source
	interval time.Duration
	logger   zerolog.Logger
}

// NewPoller constructs a Poller. A non-positive interval loads only once.
func NewPoller(service refresher, source tracker.Source, interval time.Duration, opts ...Option) *Poller {
	p := &Poller{
		service:  service,
		source:   source,
		interval: interval,
		logger:   zerolog.New(os.Stderr).With().Timestamp().Str("component", "feed").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run blocks until ctx is cancelled or, without an interval, after the first
// load. Failed loads are notices; the working set keeps its previous contents.
func (p *Poller) Run(ctx context.Context) error {
	p.refresh(ctx)
	if p.interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.refresh(ctx)
		}
	}
}

func (p *Poller) refresh(ctx context.Context) {
	result, err := p.service.RefreshFeed(ctx, p.source)
	switch {
	case err == nil:
		p.logger.Info().Str("feed", p.source.Name()).Int("activities", result.Total).Msg("feed loaded")
	case errors.Is(err, context.Canceled):
	default:
		p.logger.Warn().Err(err).Str("feed", p.source.Name()).Msg("feed not applied, using previous activities")
	}
}
