// Package consumer ingests activity rows streamed through Kafka.
package consumer

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Reader is the subset of *kafka.Reader the processor drives.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler merges one batch of rows.
type Handler interface {
	Handle(context.Context, Message) error
}

// Message is one batch of delimited rows published by an upstream exporter.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Source    string
	Rows      string
}

const (
	// defaultSource labels rows whose producer did not set a source header.
	defaultSource       = "stream"
	defaultFetchBackoff = time.Second
)

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger used for fetch, decode and handler failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithFetchBackoff sets the pause after a failed fetch. Zero retries immediately.
func WithFetchBackoff(d time.Duration) Option {
	return func(p *Processor) {
		p.backoff = d
	}
}

// Processor fetches row messages, hands them to a Handler and commits the
// offset once the rows are merged. Messages that cannot be decoded are
// committed and skipped; handler failures leave the offset uncommitted.
type Processor struct {
	reader  Reader
	handler Handler
	logger  zerolog.Logger
	backoff time.Duration
	now     func() time.Time
}

// NewProcessor returns a Processor reading from reader.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:  reader,
		handler: handler,
		logger:  zerolog.New(os.Stderr).With().Timestamp().Str("component", "consumer").Logger(),
		backoff: defaultFetchBackoff,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run blocks until ctx is cancelled or the reader reports cancellation.
func (p *Processor) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		msg, err := p.reader.FetchMessage(ctx)
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		case err != nil:
			fetchFailures.Inc()
			p.logger.Warn().Err(err).Dur("backoff", p.backoff).Msg("fetch failed")
			if err := p.sleep(ctx); err != nil {
				return err
			}
			continue
		}
		p.process(ctx, msg)
	}
	return ctx.Err()
}

func (p *Processor) process(ctx context.Context, msg kafka.Message) {
	log := p.logger.With().Str("topic", msg.Topic).Int("partition", msg.Partition).Int64("offset", msg.Offset).Logger()

	decoded, err := decodeMessage(msg)
	if err != nil {
		observeOutcome(msg.Topic, outcomeUndecodable)
		log.Error().Err(err).Msg("skipping undecodable message")
		// A message that never decodes would otherwise block the partition.
		p.commit(ctx, log, msg)
		return
	}

	if err := p.handler.Handle(ctx, decoded); err != nil {
		observeOutcome(msg.Topic, outcomeHandlerError)
		log.Error().Err(err).Str("source", decoded.Source).Msg("rows not merged; offset left uncommitted")
		return
	}

	if p.commit(ctx, log, msg) {
		observeOutcome(msg.Topic, outcomeIngested)
		observeLag(decoded, p.now())
	}
}

func (p *Processor) commit(ctx context.Context, log zerolog.Logger, msg kafka.Message) bool {
	if err := p.reader.CommitMessages(ctx, msg); err != nil {
		log.Error().Err(err).Msg("commit failed")
		return false
	}
	return true
}

func (p *Processor) sleep(ctx context.Context) error {
	if p.backoff <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(p.backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func decodeMessage(msg kafka.Message) (Message, error) {
	if len(msg.Value) == 0 {
		return Message{}, errors.New("empty payload")
	}
	if !utf8.Valid(msg.Value) {
		return Message{}, errors.New("payload is not valid UTF-8")
	}

	source := defaultSource
	if value, ok := headerValue(msg, "source"); ok && strings.TrimSpace(string(value)) != "" {
		source = strings.TrimSpace(string(value))
	}

	return Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
		Source:    source,
		Rows:      string(msg.Value),
	}, nil
}

func headerValue(msg kafka.Message, key string) ([]byte, bool) {
	for _, header := range msg.Headers {
		if header.Key == key {
			return header.Value, true
		}
	}
	return nil, false
}
