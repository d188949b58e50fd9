package finance

import (
	"context"
	"time"

	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/shared"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Option configures the ledger services
type Option func(*serviceOptions)

type serviceOptions struct {
	logger         *zap.Logger
	publisher      shared.EventPublisher
	metrics        *telemetry.LedgerMetrics
	idempotency    shared.IdempotencyStore
	idempotencyTTL time.Duration
	now            func() time.Time
}

func defaultOptions() serviceOptions {
	return serviceOptions{
		logger:         zap.NewNop(),
		idempotencyTTL: 24 * time.Hour,
		now:            time.Now,
	}
}

func applyOptions(opts []Option) serviceOptions {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the service logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEventPublisher sets where committed ledger events go. The audit log
// handler subscribes to this publisher.
func WithEventPublisher(publisher shared.EventPublisher) Option {
	return func(o *serviceOptions) {
		o.publisher = publisher
	}
}

// WithMetrics sets the ledger metrics recorder
func WithMetrics(metrics *telemetry.LedgerMetrics) Option {
	return func(o *serviceOptions) {
		o.metrics = metrics
	}
}

// WithIdempotencyStore enables the fast path for repeated gateway confirmations
func WithIdempotencyStore(store shared.IdempotencyStore, ttl time.Duration) Option {
	return func(o *serviceOptions) {
		o.idempotency = store
		if ttl > 0 {
			o.idempotencyTTL = ttl
		}
	}
}

// WithClock overrides the time source used for status derivation
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// publishEvents hands the aggregates' recorded events to the publisher after
// commit. Failures are logged and never returned: the ledger write already
// happened and audit delivery must not undo it.
func (o *serviceOptions) publishEvents(ctx context.Context, aggregates ...shared.AggregateRoot) {
	var events []shared.DomainEvent
	for _, agg := range aggregates {
		if agg == nil {
			continue
		}
		events = append(events, agg.GetDomainEvents()...)
		agg.ClearDomainEvents()
	}
	o.publish(ctx, events...)
}

func (o *serviceOptions) publish(ctx context.Context, events ...shared.DomainEvent) {
	if o.publisher == nil || len(events) == 0 {
		return
	}
	if err := o.publisher.Publish(ctx, events...); err != nil {
		o.logger.Warn("Failed to publish ledger events",
			zap.Int("event_count", len(events)),
			zap.Error(err),
		)
	}
}
