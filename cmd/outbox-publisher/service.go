package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/amerta-coffee/amerta-coffee-api/pkg/config"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/db/models"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/logger"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/metrics"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/outbox/registry"
)

const (
	publishTimeout = 15 * time.Second
	maxIdleBackoff = 10 * time.Second
	jitterWindow   = 250 * time.Millisecond
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// orderingResumer is implemented by publishers that pause an ordering key
// after a failed publish.
type orderingResumer interface {
	ResumePublish(orderingKey string)
}

type ServiceParams struct {
	Outbox           config.OutboxConfig
	Logger           *logger.Logger
	DB               txRunner
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	PublisherFactory publisherFactory
	Metrics          *metrics.Outbox
}

// Service relays committed outbox rows to Pub/Sub. Each batch is claimed in
// one transaction: every message is handed to its publisher first, then the
// results are settled and the rows marked.
type Service struct {
	logg         *logger.Logger
	db           txRunner
	pubsub       pubSubClient
	repo         outboxRepository
	registry     registryResolver
	publishers   publisherFactory
	metrics      *metrics.Outbox
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	publishers := params.PublisherFactory
	if publishers == nil {
		publishers = orderedPublishers(params.PubSub)
	}

	return &Service{
		logg:         params.Logger,
		db:           params.DB,
		pubsub:       params.PubSub,
		repo:         params.Repository,
		registry:     params.Registry,
		publishers:   publishers,
		metrics:      params.Metrics,
		batchSize:    positiveOr(params.Outbox.BatchSize, 50),
		maxAttempts:  positiveOr(params.Outbox.MaxAttempts, 10),
		pollInterval: time.Duration(positiveOr(params.Outbox.PollIntervalMS, 500)) * time.Millisecond,
	}, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// Run drains the outbox until ctx is cancelled. Full batches are followed
// immediately by the next one; idle or failed polls back off.
func (s *Service) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{
		"database": s.db.Ping,
		"pubsub":   s.pubsub.Ping,
	} {
		if err := ping(ctx); err != nil {
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}

	wait := s.pollInterval
	for {
		handled, err := s.processBatch(ctx)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			s.logg.Error(ctx, "outbox batch failed", err)
			wait = nextBackoff(wait, s.pollInterval, maxIdleBackoff)
		case handled == s.batchSize:
			wait = s.pollInterval
			continue
		default:
			wait = s.pollInterval
		}

		if err := sleepCtx(ctx, withJitter(wait)); err != nil {
			return err
		}
	}
}

// inflight is a row whose message has been handed to the publisher but not
// yet acknowledged.
type inflight struct {
	row      models.OutboxEvent
	resolved *registry.ResolvedEvent
	pub      publisher
	result   publishResult
}

// processBatch returns how many rows it claimed.
func (s *Service) processBatch(ctx context.Context) (int, error) {
	handled := 0
	var failures error

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim outbox rows: %w", err)
		}
		handled = len(rows)

		publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()

		pending := make([]inflight, 0, len(rows))
		for _, row := range rows {
			resolved, err := s.registry.Resolve(row)
			if err == nil {
				var (
					pub    publisher
					result publishResult
				)
				pub, result, err = s.send(publishCtx, row, resolved)
				if err == nil {
					pending = append(pending, inflight{row: row, resolved: resolved, pub: pub, result: result})
					continue
				}
			}
			failures = multierr.Append(failures, fmt.Errorf("%s: %w", row.ID, err))
			if markErr := s.settleFailure(ctx, tx, row, resolved, err); markErr != nil {
				return markErr
			}
		}

		for _, p := range pending {
			if _, err := p.result.Get(publishCtx); err != nil {
				if r, ok := p.pub.(orderingResumer); ok {
					r.ResumePublish(p.row.AggregateID.String())
				}
				failures = multierr.Append(failures, fmt.Errorf("%s: %w", p.row.ID, err))
				if markErr := s.settleFailure(ctx, tx, p.row, p.resolved, err); markErr != nil {
					return markErr
				}
				continue
			}
			if err := s.repo.MarkPublishedTx(tx, p.row.ID); err != nil {
				return fmt.Errorf("mark published %s: %w", p.row.ID, err)
			}
			s.metrics.Observe(string(p.row.EventType), metrics.OutboxResultPublished)
			s.logg.Debug(s.logg.WithFields(ctx, rowFields(p.row, p.resolved)), "outbox event published")
		}
		return nil
	})

	if err == nil && failures != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"failed_count": len(multierr.Errors(failures)),
			"claimed":      handled,
			"errors":       failures.Error(),
		}), "outbox batch finished with failures")
	}
	return handled, err
}

// send builds the message for row and hands it to the topic publisher.
// Messages for one order share an ordering key.
func (s *Service) send(ctx context.Context, row models.OutboxEvent, resolved *registry.ResolvedEvent) (publisher, publishResult, error) {
	topic := resolved.Descriptor.Topic
	pub := s.publishers(topic)
	if pub == nil {
		return nil, nil, registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
	}

	attrs := map[string]string{
		"event_id":       resolved.Envelope.EventID,
		"event_type":     string(row.EventType),
		"aggregate_type": string(row.AggregateType),
		"aggregate_id":   row.AggregateID.String(),
		"schema_version": fmt.Sprint(resolved.Envelope.Version),
	}
	if userID := resolved.Envelope.UserID(); userID != "" {
		attrs["user_id"] = userID
	}

	result := pub.Publish(ctx, &gcppubsub.Message{
		Data:        row.Payload,
		Attributes:  attrs,
		OrderingKey: row.AggregateID.String(),
	})
	if result == nil {
		return nil, nil, registry.NewNonRetryableError(fmt.Errorf("publisher for %s returned no result", topic))
	}
	return pub, result, nil
}

// settleFailure parks the row when the error cannot be retried or the row has
// used its last attempt, and otherwise records the attempt for a later batch.
func (s *Service) settleFailure(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, resolved *registry.ResolvedEvent, cause error) error {
	fields := rowFields(row, resolved)
	fields["error"] = cause.Error()

	var nonRetryable registry.NonRetryableError
	terminal := errors.As(cause, &nonRetryable)
	if !terminal && row.AttemptCount+1 >= s.maxAttempts {
		terminal = true
		cause = fmt.Errorf("gave up after %d attempts: %w", row.AttemptCount+1, cause)
		fields["terminal_reason"] = "max_attempts"
	}

	if terminal {
		s.metrics.Observe(string(row.EventType), metrics.OutboxResultTerminal)
		s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox event parked")
		if err := s.repo.MarkTerminalTx(tx, row.ID, cause, s.maxAttempts); err != nil {
			return fmt.Errorf("park %s: %w", row.ID, err)
		}
		return nil
	}

	fields["attempt_count"] = row.AttemptCount + 1
	s.metrics.Observe(string(row.EventType), metrics.OutboxResultRetry)
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox publish failed, will retry")
	if err := s.repo.MarkFailedTx(tx, row.ID, cause); err != nil {
		return fmt.Errorf("record failure %s: %w", row.ID, err)
	}
	return nil
}

func rowFields(row models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":     row.ID.String(),
		"event_type":    row.EventType,
		"aggregate_id":  row.AggregateID.String(),
		"attempt_count": row.AttemptCount,
	}
	if resolved != nil {
		fields["event_id"] = resolved.Envelope.EventID
		fields["topic"] = resolved.Descriptor.Topic
	}
	return fields
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, ceiling time.Duration) time.Duration {
	if current < base {
		current = base
	}
	return min(current*2, ceiling)
}

func withJitter(d time.Duration) time.Duration {
	return d + rand.N(jitterWindow)
}

// orderedPublishers caches one Pub/Sub publisher per topic with message
// ordering enabled.
func orderedPublishers(client pubSubClient) publisherFactory {
	cache := map[string]publisher{}
	return func(topic string) publisher {
		if pub, ok := cache[topic]; ok {
			return pub
		}
		p := client.Publisher(topic)
		if p == nil {
			return nil
		}
		p.EnableMessageOrdering = true
		pub := gcpPublisher{p}
		cache[topic] = pub
		return pub
	}
}

type gcpPublisher struct {
	p *gcppubsub.Publisher
}

func (g gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return g.p.Publish(ctx, msg)
}

func (g gcpPublisher) ResumePublish(orderingKey string) {
	g.p.ResumePublish(orderingKey)
}
