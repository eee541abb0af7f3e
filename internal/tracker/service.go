// Package tracker orchestrates ingestion and edits of the activity working set.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"example.com/sitetracker/internal/domain"
	"example.com/sitetracker/internal/events"
	"example.com/sitetracker/internal/ingest"
	"example.com/sitetracker/internal/observability"
)

var (
	// ErrActivityNotFound is returned when an activity cannot be located.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrNothingImported signals that a payload held no valid rows.
	ErrNothingImported = errors.New("no valid activities found")
	// ErrFeedUnavailable wraps transport failures of the remote feed.
	ErrFeedUnavailable = errors.New("activity feed unavailable")
)

// Source supplies the raw text of a remote activity sheet.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (string, error)
}

// EventPublisher emits working-set change events.
type EventPublisher interface {
	Publish(ctx context.Context, eventType, key string, payload any) error
}

// ImportAuditor keeps a record of ingestions.
type ImportAuditor interface {
	Record(ctx context.Context, result ImportResult) error
	Recent(ctx context.Context, limit int) ([]ImportResult, error)
}

// Ingestion modes.
const (
	ModeReplace = "replace"
	ModeMerge   = "merge"
)

// ImportResult describes one ingestion.
type ImportResult struct {
	Source   string    `json:"source"`
	Name     string    `json:"name,omitempty"`
	Mode     string    `json:"mode"`
	Lines    int       `json:"lines"`
	Accepted int       `json:"accepted"`
	Rejected int       `json:"rejected"`
	Total    int       `json:"total"`
	Version  uint64    `json:"version"`
	At       time.Time `json:"at"`
}

// Option configures optional collaborators of the Service.
type Option func(*Service)

// WithPublisher sets the event publisher.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithAuditor sets the import auditor.
func WithAuditor(a ImportAuditor) Option {
	return func(s *Service) {
		if a != nil {
			s.auditor = a
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the clock used for timestamps and date defaults.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithIDGenerator overrides how ids are synthesized for uploaded rows.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		s.newID = newID
	}
}

// Service coordinates the working set with its publisher and auditor.
type Service struct {
	set       *domain.WorkingSet
	publisher EventPublisher
	auditor   ImportAuditor
	logger    zerolog.Logger
	now       func() time.Time
	newID     func() string
}

// NewService constructs a Service around set.
func NewService(set *domain.WorkingSet, opts ...Option) *Service {
	s := &Service{
		set:       set,
		publisher: NoopPublisher{},
		auditor:   NoopAuditor{},
		logger:    zerolog.New(os.Stderr).With().Timestamp().Str("component", "tracker").Logger(),
		now:       time.Now,
		newID:     ingest.ShortID,
	}
	for _, opt := range opts {
		opt(s)
	}
	set.Observe(observability.WorkingSetMetrics{})
	return s
}

// Activities returns a snapshot of the working set.
func (s *Service) Activities() []domain.Activity {
	return s.set.Snapshot()
}

// Activity fetches one activity by id.
func (s *Service) Activity(id string) (domain.Activity, error) {
	a, ok := s.set.Get(id)
	if !ok {
		return domain.Activity{}, ErrActivityNotFound
	}
	return a, nil
}

// View returns the grouped view for q.
func (s *Service) View(q domain.Query) []domain.Group {
	return s.set.View(q)
}

// Stats summarises the working set.
func (s *Service) Stats() domain.Stats {
	return s.set.Stats()
}

// Categories lists the distinct categories in use.
func (s *Service) Categories() []string {
	return domain.Categories(s.set.Snapshot())
}

// SaveActivity inserts a or replaces the activity with the same id. It
// reports whether the id was new.
func (s *Service) SaveActivity(ctx context.Context, a domain.Activity) (bool, error) {
	if a.ID == "" {
		return false, errors.New("activity id is required")
	}
	created := s.set.Upsert(a)

	s.publish(ctx, events.TypeActivityUpserted, a.ID, events.ActivityUpserted{
		ActivityID:  a.ID,
		Category:    a.Category,
		Name:        a.Name,
		Provider:    a.Provider,
		Responsible: a.Responsible,
		Status:      string(a.Status),
		Progress:    a.Progress,
		Cost:        a.Cost,
		StartDate:   a.StartDate,
		EndDate:     a.EndDate,
		Created:     created,
		OccurredAt:  s.now().UTC(),
	})
	return created, nil
}

// DeleteActivity removes the activity with id. Unknown ids are not an error;
// the boolean reports whether anything was removed.
func (s *Service) DeleteActivity(ctx context.Context, id string) bool {
	if !s.set.Delete(id) {
		return false
	}
	s.publish(ctx, events.TypeActivityDeleted, id, events.ActivityDeleted{
		ActivityID: id,
		OccurredAt: s.now().UTC(),
	})
	return true
}

// ImportFile merges the rows of an uploaded sheet into the working set.
func (s *Service) ImportFile(ctx context.Context, name, text string) (ImportResult, error) {
	return s.ingest(ctx, ingest.FileProfile, name, text, ModeMerge)
}

// IngestStream merges rows delivered by the row stream.
func (s *Service) IngestStream(ctx context.Context, source, text string) (ImportResult, error) {
	profile := ingest.FeedProfile
	if source != "" {
		profile.Source = source
	}
	return s.ingest(ctx, profile, "", text, ModeMerge)
}

// RefreshFeed replaces the working set with the contents of src. On a
// transport failure or an empty sheet the working set is left untouched.
func (s *Service) RefreshFeed(ctx context.Context, src Source) (ImportResult, error) {
	text, err := src.Fetch(ctx)
	if err != nil {
		observability.RecordFeedFailure()
		s.logger.Warn().Err(err).Str("feed", src.Name()).Msg("feed fetch failed, keeping current activities")
		return ImportResult{}, fmt.Errorf("%w: %w", ErrFeedUnavailable, err)
	}

	result, err := s.ingest(ctx, ingest.FeedProfile, src.Name(), text, ModeReplace)
	if errors.Is(err, ErrNothingImported) {
		observability.RecordFeedFailure()
		s.logger.Warn().Str("feed", src.Name()).Int("lines", result.Lines).Msg("feed returned no valid rows, keeping current activities")
	}
	return result, err
}

// RecentImports lists the latest ingestions known to the auditor.
func (s *Service) RecentImports(ctx context.Context, limit int) ([]ImportResult, error) {
	return s.auditor.Recent(ctx, limit)
}

func (s *Service) ingest(ctx context.Context, profile ingest.Profile, name, text, mode string) (ImportResult, error) {
	coercer := ingest.Coercer{Profile: profile, Now: s.now, NewID: s.newID}
	batch := ingest.Decode(text, coercer)
	observability.RecordRows(profile.Source, len(batch.Activities), batch.Rejected)

	result := ImportResult{
		Source:   profile.Source,
		Name:     name,
		Mode:     mode,
		Lines:    batch.Lines,
		Accepted: len(batch.Activities),
		Rejected: batch.Rejected,
		At:       s.now().UTC(),
	}
	if len(batch.Activities) == 0 {
		result.Total = s.set.Len()
		result.Version = s.set.Version()
		s.audit(ctx, result)
		return result, ErrNothingImported
	}

	if mode == ModeReplace {
		s.set.Replace(batch.Activities)
	} else {
		s.set.Merge(batch.Activities)
	}
	result.Total = s.set.Len()
	result.Version = s.set.Version()
	observability.RecordIngested(profile.Source, result.At)

	s.logger.Info().
		Str("source", result.Source).
		Str("mode", mode).
		Int("accepted", result.Accepted).
		Int("rejected", result.Rejected).
		Int("total", result.Total).
		Msg("activities ingested")

	if mode == ModeReplace {
		s.publish(ctx, events.TypeWorkingSetReplaced, result.Source, events.WorkingSetReplaced{
			Source:     result.Source,
			Count:      result.Total,
			Version:    result.Version,
			OccurredAt: result.At,
		})
	} else {
		s.publish(ctx, events.TypeActivitiesImported, result.Source, events.ActivitiesImported{
			Source:     result.Source,
			Name:       name,
			Accepted:   result.Accepted,
			Rejected:   result.Rejected,
			Total:      result.Total,
			Version:    result.Version,
			OccurredAt: result.At,
		})
	}
	s.audit(ctx, result)
	return result, nil
}

func (s *Service) publish(ctx context.Context, eventType, key string, payload any) {
	if err := s.publisher.Publish(ctx, eventType, key, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("key", key).Msg("event publish failed")
	}
}

func (s *Service) audit(ctx context.Context, result ImportResult) {
	if err := s.auditor.Record(ctx, result); err != nil {
		s.logger.Error().Err(err).Str("source", result.Source).Msg("import audit failed")
	}
}

// NoopPublisher discards events.
type NoopPublisher struct{}

// Publish performs no action.
func (NoopPublisher) Publish(context.Context, string, string, any) error { return nil }

// NoopAuditor keeps no history.
type NoopAuditor struct{}

// Record performs no action.
func (NoopAuditor) Record(context.Context, ImportResult) error { return nil }

// Recent returns no entries.
func (NoopAuditor) Recent(context.Context, int) ([]ImportResult, error) { return nil, nil }
