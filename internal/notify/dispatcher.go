package notify

import (
	"context"
	"sync"
	"time"

	"storefront/internal/metrics"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// DispatcherConfig holds the dispatcher's queue and retry settings.
type DispatcherConfig struct {
	Workers         int
	QueueSize       int
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	DeliveryTimeout time.Duration
}

// DefaultDispatcherConfig returns the default dispatcher configuration.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Workers:         4,
		QueueSize:       256,
		MaxRetries:      5,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
		DeliveryTimeout: 10 * time.Second,
	}
}

// Dispatcher fans events out to sinks from a bounded queue drained by a
// fixed worker pool. Each sink is retried independently.
type Dispatcher struct {
	cfg     DispatcherConfig
	sinks   []Sink
	metrics *metrics.Metrics
	logger  zerolog.Logger

	queue  chan Event
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool

	// stop aborts in-flight retries when Close gives up waiting.
	stop   context.Context
	cancel context.CancelFunc
}

// NewDispatcher creates a dispatcher and starts its workers.
func NewDispatcher(cfg DispatcherConfig, sinks []Sink, m *metrics.Metrics, logger zerolog.Logger) *Dispatcher {
	defaults := DefaultDispatcherConfig()
	if cfg.Workers < 1 {
		cfg.Workers = defaults.Workers
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = defaults.InitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = defaults.MaxInterval
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = defaults.DeliveryTimeout
	}

	stop, cancel := context.WithCancel(context.Background())

	d := &Dispatcher{
		cfg:     cfg,
		sinks:   sinks,
		metrics: m,
		logger:  logger.With().Str("component", "notify-dispatcher").Logger(),
		queue:   make(chan Event, cfg.QueueSize),
		stop:    stop,
		cancel:  cancel,
	}

	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}

	names := make([]string, len(sinks))
	for i, s := range sinks {
		names[i] = s.Name()
	}

	d.logger.Info().
		Int("workers", cfg.Workers).
		Int("queue_size", cfg.QueueSize).
		Strs("sinks", names).
		Msg("notification dispatcher started")

	return d
}

// Publish enqueues e without blocking. Events are dropped when the queue is
// full or the dispatcher is closed.
func (d *Dispatcher) Publish(e Event) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(e, "dispatcher closed")
		return false
	}

	select {
	case d.queue <- e:
		return true
	default:
		d.drop(e, "queue full")
		return false
	}
}

// Close stops accepting events and waits for queued ones to drain. If ctx
// expires first, in-flight retries are abandoned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		d.logger.Info().Msg("notification dispatcher drained")
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		d.logger.Warn().Msg("notification dispatcher closed before queue drained")
		return ctx.Err()
	}
}

func (d *Dispatcher) drop(e Event, reason string) {
	d.metrics.NotificationDropped()
	d.logger.Warn().
		Str("event_id", e.ID.String()).
		Str("event_type", string(e.Type)).
		Str("order_number", e.Order.OrderNumber).
		Str("reason", reason).
		Msg("notification dropped")
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	for e := range d.queue {
		for _, sink := range d.sinks {
			d.deliver(id, sink, e)
		}
	}
}

func (d *Dispatcher) deliver(workerID int, sink Sink, e Event) {
	attempts := 0
	op := func() error {
		attempts++
		ctx, cancel := context.WithTimeout(d.stop, d.cfg.DeliveryTimeout)
		defer cancel()
		return sink.Deliver(ctx, e)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = d.cfg.InitialInterval
	policy.MaxInterval = d.cfg.MaxInterval
	policy.MaxElapsedTime = 0

	err := backoff.RetryNotify(op,
		backoff.WithContext(backoff.WithMaxRetries(policy, d.cfg.MaxRetries), d.stop),
		func(err error, wait time.Duration) {
			d.logger.Debug().
				Err(err).
				Str("sink", sink.Name()).
				Str("event_id", e.ID.String()).
				Dur("retry_in", wait).
				Msg("notification delivery failed, retrying")
		},
	)

	d.metrics.NotificationDelivered(sink.Name(), err == nil)

	if err != nil {
		d.logger.Error().
			Err(err).
			Int("worker", workerID).
			Str("sink", sink.Name()).
			Str("event_id", e.ID.String()).
			Str("event_type", string(e.Type)).
			Str("order_number", e.Order.OrderNumber).
			Int("attempts", attempts).
			Msg("notification delivery failed")
		return
	}

	d.logger.Debug().
		Str("sink", sink.Name()).
		Str("event_id", e.ID.String()).
		Int("attempts", attempts).
		Msg("notification delivered")
}
