package streamer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/utils/clock"

	"github.com/parchment-io/k8s-events-to-slack-streamer/internal/filter"
	"github.com/parchment-io/k8s-events-to-slack-streamer/internal/formatter"
	"github.com/parchment-io/k8s-events-to-slack-streamer/internal/notifier"
	"github.com/parchment-io/k8s-events-to-slack-streamer/internal/types"
)

// DefaultBackoff is the wait between the end of one watch and the next.
const DefaultBackoff = 30 * time.Second

// State is the watch loop's current phase.
type State int32

const (
	StateIdleWait State = iota
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateStreaming:
		return "Streaming"
	case StateIdleWait:
		return "IdleWait"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// errStreamClosed marks a subscription the server ended without error.
var errStreamClosed = errors.New("watch closed")

// Options configures the Streamer behavior.
type Options struct {
	// Namespace whose events are watched. Default "default".
	Namespace string
	// Backoff is the fixed IdleWait duration. Default DefaultBackoff.
	Backoff time.Duration
	// Clock drives the IdleWait timer. Default real time.
	Clock clock.Clock
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Namespace: "default",
		Backoff:   DefaultBackoff,
		Clock:     clock.RealClock{},
	}
}

// Streamer is the watch loop.
type Streamer struct {
	logger   *zap.Logger
	source   EventSource
	chain    *filter.Chain
	delivery formatter.DeliveryConfig
	sender   notifier.Sender
	opts     Options

	state    atomic.Int32
	sessions atomic.Int64
}

// New creates a Streamer. Zero-valued options fall back to DefaultOptions.
func New(source EventSource, chain *filter.Chain, delivery formatter.DeliveryConfig, sender notifier.Sender, logger *zap.Logger, opts Options) *Streamer {
	defaults := DefaultOptions()
	if opts.Namespace == "" {
		opts.Namespace = defaults.Namespace
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaults.Backoff
	}
	if opts.Clock == nil {
		opts.Clock = defaults.Clock
	}
	s := &Streamer{
		logger:   logger.Named("streamer"),
		source:   source,
		chain:    chain,
		delivery: delivery,
		sender:   sender,
		opts:     opts,
	}
	s.state.Store(int32(StateIdleWait))
	return s
}

// State returns the current loop state.
func (s *Streamer) State() State {
	return State(s.state.Load())
}

// Sessions returns how many watch subscriptions have been opened.
func (s *Streamer) Sessions() int64 {
	return s.sessions.Load()
}

// Ready returns nil once a watch subscription has been opened.
func (s *Streamer) Ready() error {
	if s.sessions.Load() == 0 {
		return errors.New("no watch subscription opened yet")
	}
	return nil
}

// Run streams events until ctx is cancelled. Blocks. It only returns nil;
// every failure inside the loop leads to IdleWait and a new subscription.
func (s *Streamer) Run(ctx context.Context) error {
	s.logger.Info("Starting event streamer",
		zap.String("namespace", s.opts.Namespace),
		zap.Duration("backoff", s.opts.Backoff),
		zap.String("sender", s.sender.Name()),
	)

	for {
		s.setState(StateStreaming)
		s.logger.Info("Processing events...")
		err := s.stream(ctx)
		if ctx.Err() != nil {
			s.logger.Info("Event streamer stopped")
			return nil
		}

		s.setState(StateIdleWait)
		if errors.Is(err, errStreamClosed) {
			watchSessionsTotal.WithLabelValues("closed").Inc()
			s.logger.Info("No more events, waiting before checking again",
				zap.Duration("backoff", s.opts.Backoff))
		} else {
			watchSessionsTotal.WithLabelValues("error").Inc()
			s.logger.Warn("Event stream ended with error, waiting before reconnecting",
				zap.Duration("backoff", s.opts.Backoff),
				zap.Error(err))
		}

		if !s.wait(ctx) {
			s.logger.Info("Event streamer stopped")
			return nil
		}
	}
}

// stream holds one subscription open until it ends. The subscription is
// stopped before this returns.
func (s *Streamer) stream(ctx context.Context) error {
	w, err := s.source.Watch(ctx, s.opts.Namespace)
	if err != nil {
		return fmt.Errorf("open watch on namespace %q: %w", s.opts.Namespace, err)
	}
	defer w.Stop()
	s.sessions.Add(1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.ResultChan():
			if !ok {
				return errStreamClosed
			}
			switch ev.Type {
			case watch.Error:
				return fmt.Errorf("watch error: %w", apierrors.FromObject(ev.Object))
			case watch.Bookmark:
				continue
			}
			s.handle(ctx, ev)
		}
	}
}

// handle runs one event through filter, formatter and sender.
func (s *Streamer) handle(ctx context.Context, we watch.Event) {
	ev, err := types.FromWatchEvent(we)
	if err != nil {
		eventsTotal.WithLabelValues(outcomeMalformed).Inc()
		s.logger.Warn("Skipping malformed event", zap.Error(err))
		return
	}

	log := s.logger.With(
		zap.String("event_type", string(ev.Type)),
		zap.String("name", ev.Object.Name),
		zap.String("reason", ev.Object.Reason),
	)
	log.Debug("Event received", zap.String("severity", ev.Object.Type))

	if d := s.chain.Evaluate(ev); !d.Accepted {
		eventsTotal.WithLabelValues("skipped_" + string(d.Rule)).Inc()
		log.Debug("Event filtered, skipping",
			zap.String("rule", string(d.Rule)),
			zap.String("pattern", d.Pattern),
		)
		return
	}

	payload := formatter.Format(ev, s.delivery)
	if err := s.sender.Send(ctx, payload); err != nil {
		eventsTotal.WithLabelValues(outcomeSendFailed).Inc()
		log.Error("Failed to deliver notification", zap.Error(err))
		return
	}
	eventsTotal.WithLabelValues(outcomeAccepted).Inc()
}

// wait sleeps the backoff. Returns false if ctx ended first.
func (s *Streamer) wait(ctx context.Context) bool {
	t := s.opts.Clock.NewTimer(s.opts.Backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C():
		return true
	}
}

func (s *Streamer) setState(st State) {
	s.state.Store(int32(st))
	stateGauge.Set(float64(st))
}
