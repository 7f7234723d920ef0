//go:build e2e
// +build e2e

package e2e

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/rand"
	"k8s.io/client-go/kubernetes"

	"github.com/parchment-io/k8s-events-to-slack-streamer/internal/config"
	"github.com/parchment-io/k8s-events-to-slack-streamer/internal/filter"
	"github.com/parchment-io/k8s-events-to-slack-streamer/internal/notifier"
	"github.com/parchment-io/k8s-events-to-slack-streamer/internal/streamer"
)

const (
	// testNamespacePrefix is the prefix for test namespace names.
	testNamespacePrefix = "events-streamer-e2e-"

	// e2eLabel marks resources created by E2E tests for cleanup.
	e2eLabel = "events-streamer-e2e"

	defaultPollInterval = 500 * time.Millisecond
	defaultTimeout      = 60 * time.Second
)

// waitForCondition polls until conditionFn returns true or the timeout expires.
func waitForCondition(t *testing.T, timeout, interval time.Duration, conditionFn func() (bool, error)) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		ok, err := conditionFn()
		if err != nil {
			t.Logf("waitForCondition: %v", err)
		}
		if ok {
			return
		}
		time.Sleep(interval)
	}
	t.Fatalf("waitForCondition: timed out after %v", timeout)
}

// createTestNamespace creates a labeled namespace with a random suffix and
// deletes it when the test ends.
func createTestNamespace(t *testing.T, clientset kubernetes.Interface) string {
	t.Helper()
	name := testNamespacePrefix + rand.String(6)

	ns := &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name:   name,
			Labels: map[string]string{e2eLabel: "true"},
		},
	}
	_, err := clientset.CoreV1().Namespaces().Create(context.Background(), ns, metav1.CreateOptions{})
	require.NoError(t, err, "failed to create test namespace %s", name)
	t.Logf("Created test namespace: %s", name)

	t.Cleanup(func() {
		if err := clientset.CoreV1().Namespaces().Delete(context.Background(), name, metav1.DeleteOptions{}); err != nil {
			t.Logf("Warning: failed to delete namespace %s: %v", name, err)
		}
	})
	return name
}

// createEvent creates a core/v1 Event about a Pod named involvedName.
func createEvent(t *testing.T, clientset kubernetes.Interface, namespace, involvedName, eventType, reason string) *corev1.Event {
	t.Helper()
	event := &corev1.Event{
		ObjectMeta: metav1.ObjectMeta{
			GenerateName: involvedName + ".",
			Namespace:    namespace,
			Labels:       map[string]string{e2eLabel: "true"},
		},
		InvolvedObject: corev1.ObjectReference{
			Kind:      "Pod",
			Namespace: namespace,
			Name:      involvedName,
		},
		Reason:         reason,
		Message:        "Synthetic " + reason + " event for " + involvedName,
		Type:           eventType,
		Source:         corev1.EventSource{Component: "e2e-test"},
		FirstTimestamp: metav1.Now(),
		LastTimestamp:  metav1.Now(),
		Count:          1,
	}
	created, err := clientset.CoreV1().Events(namespace).Create(context.Background(), event, metav1.CreateOptions{})
	require.NoError(t, err, "failed to create event for %s/%s", namespace, involvedName)
	t.Logf("Created event: %s (%s)", created.Name, reason)
	return created
}

// webhookRecorder is a local Slack webhook stand-in.
type webhookRecorder struct {
	mu     sync.Mutex
	bodies []string
	server *httptest.Server
}

func newWebhookRecorder(t *testing.T) *webhookRecorder {
	t.Helper()
	r := &webhookRecorder{}
	r.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.bodies = append(r.bodies, string(b))
		r.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(r.server.Close)
	return r
}

func (r *webhookRecorder) Bodies() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.bodies...)
}

// startStreamer runs a streamer for cfg until the test ends and waits for its
// first subscription.
func startStreamer(t *testing.T, cfg config.Config) *streamer.Streamer {
	t.Helper()
	logger := zaptest.NewLogger(t)

	filterCfg, err := cfg.FilterConfig()
	require.NoError(t, err)
	sender, err := notifier.NewWebhookSender(logger, cfg.WebhookSenderConfig())
	require.NoError(t, err)

	s := streamer.New(
		streamer.NewKubeEventSource(sharedClientset, logger),
		filter.NewChain(filterCfg),
		cfg.DeliveryConfig(),
		sender,
		logger,
		streamer.Options{Namespace: cfg.Namespace, Backoff: cfg.Backoff},
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	waitForCondition(t, defaultTimeout, defaultPollInterval, func() (bool, error) {
		return s.Ready() == nil, nil
	})
	return s
}
