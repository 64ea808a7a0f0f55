package alert

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"swapScope/internal/metrics"
)

// Dispatcher queues alert texts and fans them out to every sink from a single
// worker. Enqueue never blocks; failed deliveries are logged and dropped.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	logger  *zap.Logger
	queue   chan string

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func NewDispatcher(queueSize int, timeout time.Duration, logger *zap.Logger, sinks ...Sink) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 128
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		sinks:   sinks,
		timeout: timeout,
		logger:  logger,
		queue:   make(chan string, queueSize),
		done:    make(chan struct{}),
	}
}

// Start launches the delivery worker. It stops after Close drains the queue.
func (d *Dispatcher) Start(ctx context.Context) {
	go func() {
		defer close(d.done)
		for text := range d.queue {
			d.deliver(ctx, text)
		}
	}()
}

// Enqueue schedules text for delivery. It reports false when the alert was dropped.
func (d *Dispatcher) Enqueue(text string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		metrics.AlertsDropped.WithLabelValues("dispatcher", "closed").Inc()
		return false
	}
	select {
	case d.queue <- text:
		return true
	default:
		metrics.AlertsDropped.WithLabelValues("dispatcher", "queue_full").Inc()
		d.logger.Warn("alert queue full, dropping alert", zap.Int("capacity", cap(d.queue)))
		return false
	}
}

// Close stops accepting alerts and waits for queued ones to be attempted.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) deliver(ctx context.Context, text string) {
	for _, sink := range d.sinks {
		name := sinkName(sink)
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		err := sink.Send(sendCtx, text)
		cancel()
		if err != nil {
			metrics.AlertsDropped.WithLabelValues(name, "send_failed").Inc()
			d.logger.Warn("alert send failed", zap.String("sink", name), zap.Error(err))
			continue
		}
		metrics.AlertsSent.WithLabelValues(name).Inc()
	}
}
