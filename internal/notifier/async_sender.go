package notifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/parchment-io/k8s-events-to-slack-streamer/internal/formatter"
)

const (
	defaultAsyncBufferSize = 100
	drainTimeout           = 10 * time.Second
)

// asyncWork is an internal message sent to the worker.
type asyncWork struct {
	ctx     context.Context
	payload formatter.Payload
}

// AsyncSender queues payloads for a wrapped Sender. A single worker drains
// the queue, so payloads are delivered in Send order.
type AsyncSender struct {
	next   Sender
	logger *zap.Logger
	sendCh chan asyncWork
	wg     sync.WaitGroup
}

// NewAsyncSender wraps next. A bufferSize of zero or less uses the default.
func NewAsyncSender(next Sender, logger *zap.Logger, bufferSize int) *AsyncSender {
	if bufferSize <= 0 {
		bufferSize = defaultAsyncBufferSize
	}
	return &AsyncSender{
		next:   next,
		logger: logger.Named("async-sender"),
		sendCh: make(chan asyncWork, bufferSize),
	}
}

// Name implements Sender.
func (as *AsyncSender) Name() string { return "async-" + as.next.Name() }

// Start launches the delivery worker. Non-blocking.
func (as *AsyncSender) Start(ctx context.Context) {
	as.wg.Add(1)
	go as.worker(ctx)
	as.logger.Info("Async delivery started",
		zap.String("sender", as.next.Name()),
		zap.Int("buffer", cap(as.sendCh)),
	)
}

// Close waits for the worker to finish draining queued notifications.
// Call after the context passed to Start is cancelled.
func (as *AsyncSender) Close() {
	as.wg.Wait()
}

// Send implements Sender. Enqueues the payload; returns an error only if the
// buffer is full or ctx is done.
func (as *AsyncSender) Send(ctx context.Context, p formatter.Payload) error {
	select {
	case as.sendCh <- asyncWork{ctx: ctx, payload: p}:
		asyncQueueDepth.Set(float64(len(as.sendCh)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		webhookSendTotal.WithLabelValues("dropped").Inc()
		as.logger.Warn("Delivery buffer full, dropping notification")
		return fmt.Errorf("delivery buffer full")
	}
}

// worker drains the send channel and delivers notifications.
// On context cancellation, it drains remaining buffered items before exiting.
func (as *AsyncSender) worker(ctx context.Context) {
	defer as.wg.Done()
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case work := <-as.sendCh:
					drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
					as.deliver(drainCtx, work.payload)
					cancel()
				default:
					asyncQueueDepth.Set(0)
					return
				}
			}
		case work := <-as.sendCh:
			asyncQueueDepth.Set(float64(len(as.sendCh)))
			// A payload accepted before shutdown is still delivered.
			as.deliver(context.WithoutCancel(work.ctx), work.payload)
		}
	}
}

func (as *AsyncSender) deliver(ctx context.Context, p formatter.Payload) {
	if err := as.next.Send(ctx, p); err != nil {
		as.logger.Error("Notification delivery failed", zap.Error(err))
	}
}
