package streamer

import (
	"context"
	"sync"

	"go.uber.org/zap"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"
)

// EventSource opens watch subscriptions on the Events of one namespace.
// How a new subscription resumes after the previous one ended is up to the
// implementation.
type EventSource interface {
	Watch(ctx context.Context, namespace string) (watch.Interface, error)
}

// KubeEventSource watches core/v1 Events through client-go. It remembers the
// last resourceVersion it delivered and resumes from there, so a reconnect
// does not replay the namespace's existing events. When the server reports
// the version as expired the next subscription starts fresh.
type KubeEventSource struct {
	client kubernetes.Interface
	logger *zap.Logger

	mu              sync.Mutex
	resourceVersion string
}

// NewKubeEventSource creates a KubeEventSource.
func NewKubeEventSource(client kubernetes.Interface, logger *zap.Logger) *KubeEventSource {
	return &KubeEventSource{
		client: client,
		logger: logger.Named("event-source"),
	}
}

// Watch implements EventSource.
func (s *KubeEventSource) Watch(ctx context.Context, namespace string) (watch.Interface, error) {
	rv := s.ResourceVersion()
	w, err := s.client.CoreV1().Events(namespace).Watch(ctx, metav1.ListOptions{
		ResourceVersion:     rv,
		AllowWatchBookmarks: true,
	})
	if err != nil {
		if apierrors.IsResourceExpired(err) || apierrors.IsGone(err) {
			s.setResourceVersion("")
		}
		return nil, err
	}
	s.logger.Debug("Watch opened",
		zap.String("namespace", namespace),
		zap.String("resource_version", rv),
	)
	return newTrackedWatch(w, s.track), nil
}

// ResourceVersion returns the version the next subscription resumes from.
func (s *KubeEventSource) ResourceVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resourceVersion
}

func (s *KubeEventSource) setResourceVersion(rv string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resourceVersion = rv
}

// track records the resourceVersion of every event handed to the consumer
// and forgets it when the server says it has expired.
func (s *KubeEventSource) track(in watch.Event) {
	if in.Type == watch.Error {
		err := apierrors.FromObject(in.Object)
		if apierrors.IsResourceExpired(err) || apierrors.IsGone(err) {
			s.logger.Info("Resource version expired, next watch starts fresh", zap.Error(err))
			s.setResourceVersion("")
		}
		return
	}
	if acc, err := meta.Accessor(in.Object); err == nil && acc.GetResourceVersion() != "" {
		s.setResourceVersion(acc.GetResourceVersion())
	}
}

// trackedWatch forwards events from an underlying watch and reports each one
// after the consumer has received it. Stop unblocks the forwarder even if the
// consumer has stopped reading.
type trackedWatch struct {
	incoming watch.Interface
	result   chan watch.Event
	done     chan struct{}
	stopOnce sync.Once
	track    func(watch.Event)
}

func newTrackedWatch(incoming watch.Interface, track func(watch.Event)) *trackedWatch {
	tw := &trackedWatch{
		incoming: incoming,
		result:   make(chan watch.Event),
		done:     make(chan struct{}),
		track:    track,
	}
	go tw.loop()
	return tw
}

func (tw *trackedWatch) ResultChan() <-chan watch.Event { return tw.result }

func (tw *trackedWatch) Stop() {
	tw.stopOnce.Do(func() {
		close(tw.done)
		tw.incoming.Stop()
	})
}

func (tw *trackedWatch) loop() {
	defer close(tw.result)
	for ev := range tw.incoming.ResultChan() {
		select {
		case tw.result <- ev:
			tw.track(ev)
		case <-tw.done:
			return
		}
	}
}
