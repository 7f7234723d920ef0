// Package testutil provides shared test helpers for the streamer packages.
// Import this in test files to avoid duplicating event fixtures and builders.
package testutil

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"
)

// Fixed timestamps used by MakeEvent so formatted output is predictable.
var (
	T0 = time.Date(2024, time.March, 5, 8, 0, 0, 0, time.UTC)
	T1 = time.Date(2024, time.March, 5, 9, 15, 30, 0, time.UTC)
	T2 = time.Date(2024, time.March, 6, 17, 45, 1, 0, time.UTC)
)

// LoadEventFixture reads a YAML manifest of a core/v1 Event.
// Fails the test immediately if the file can't be read or parsed.
func LoadEventFixture(t *testing.T, path string) *corev1.Event {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err, "failed to read fixture %s", path)
	ev := &corev1.Event{}
	require.NoError(t, yaml.Unmarshal(data, ev), "failed to parse fixture %s", path)
	return ev
}

// MakeEvent creates a Normal event about a Pod in the default namespace with
// creation T0, first seen T1, last seen T2 and count 3.
func MakeEvent(name, reason, message string) *corev1.Event {
	return &corev1.Event{
		ObjectMeta: metav1.ObjectMeta{
			Name:              name,
			Namespace:         "default",
			ResourceVersion:   "1",
			CreationTimestamp: metav1.NewTime(T0),
		},
		InvolvedObject: corev1.ObjectReference{
			Kind:      "Pod",
			Namespace: "default",
			Name:      name,
		},
		Reason:         reason,
		Message:        message,
		Type:           corev1.EventTypeNormal,
		FirstTimestamp: metav1.NewTime(T1),
		LastTimestamp:  metav1.NewTime(T2),
		Count:          3,
	}
}

// MakeWarningEvent is MakeEvent with the Warning severity.
func MakeWarningEvent(name, reason, message string) *corev1.Event {
	ev := MakeEvent(name, reason, message)
	ev.Type = corev1.EventTypeWarning
	return ev
}
