package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/twmb/franz-go/pkg/kgo"

	dErrors "dadcircles/pkg/domain-errors"
	"dadcircles/pkg/platform/circuit"
)

var (
	dispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dadcircles_notify_dispatch_total",
		Help: "Introduction dispatch attempts by outcome",
	}, []string{"outcome"})
	dispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dadcircles_notify_dispatch_duration_seconds",
		Help:    "Latency of introduction dispatches",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})
	breakerOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dadcircles_notify_breaker_open",
		Help: "1 while the introduction broker circuit is open",
	})
)

const defaultProbeInterval = 10 * time.Second

// KafkaDispatcher publishes one record per introduction. The record key is
// the group:user dedupe key, so consumer-side dedupe and per-member ordering
// both hold. A circuit breaker guards the broker: while open, sends fail fast
// with CodeUnavailable except for a periodic probe that lets the breaker
// observe recovery.
type KafkaDispatcher struct {
	client  *kgo.Client
	breaker *circuit.Breaker
	logger  *slog.Logger

	probeInterval time.Duration
	mu            sync.Mutex
	lastProbe     time.Time
}

type KafkaOption func(*KafkaDispatcher)

func WithKafkaLogger(logger *slog.Logger) KafkaOption {
	return func(d *KafkaDispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithBreaker(b *circuit.Breaker) KafkaOption {
	return func(d *KafkaDispatcher) {
		if b != nil {
			d.breaker = b
		}
	}
}

// WithProbeInterval sets how often an open circuit lets a probe through.
func WithProbeInterval(interval time.Duration) KafkaOption {
	return func(d *KafkaDispatcher) {
		if interval > 0 {
			d.probeInterval = interval
		}
	}
}

func NewKafkaDispatcher(brokers []string, topic string, opts ...KafkaOption) (*KafkaDispatcher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
		kgo.RecordDeliveryTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	d := &KafkaDispatcher{
		client:        client,
		breaker:       circuit.New("introduction-broker"),
		logger:        slog.Default(),
		probeInterval: defaultProbeInterval,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d, nil
}

func (d *KafkaDispatcher) SendIntroduction(ctx context.Context, intro Introduction) error {
	if d.breaker.IsOpen() && !d.probeDue() {
		dispatchTotal.WithLabelValues("rejected").Inc()
		return dErrors.New(dErrors.CodeUnavailable, "introduction broker unavailable")
	}

	value, err := json.Marshal(intro)
	if err != nil {
		return fmt.Errorf("marshal introduction: %w", err)
	}

	start := time.Now()
	record := &kgo.Record{
		Key:   []byte(intro.DedupeKey()),
		Value: value,
	}
	if err := d.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		dispatchTotal.WithLabelValues("error").Inc()
		if _, change := d.breaker.RecordFailure(); change.Opened {
			breakerOpen.Set(1)
			d.startProbeClock()
			d.logger.WarnContext(ctx, "introduction broker circuit opened", "breaker", d.breaker.Name())
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "produce introduction")
	}
	dispatchDuration.Observe(time.Since(start).Seconds())
	dispatchTotal.WithLabelValues("ok").Inc()

	if _, change := d.breaker.RecordSuccess(); change.Closed {
		breakerOpen.Set(0)
		d.logger.InfoContext(ctx, "introduction broker circuit closed", "breaker", d.breaker.Name())
	}
	return nil
}

// Health pings the brokers, for readiness reporting.
func (d *KafkaDispatcher) Health(ctx context.Context) error {
	return d.client.Ping(ctx)
}

func (d *KafkaDispatcher) Close() {
	d.client.Close()
}

// probeDue grants at most one attempt per probe interval while the circuit
// is open. The clock starts when the circuit opens.
func (d *KafkaDispatcher) probeDue() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if time.Since(d.lastProbe) < d.probeInterval {
		return false
	}
	d.lastProbe = time.Now()
	return true
}

func (d *KafkaDispatcher) startProbeClock() {
	d.mu.Lock()
	d.lastProbe = time.Now()
	d.mu.Unlock()
}
