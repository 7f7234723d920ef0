package types_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"

	"github.com/parchment-io/k8s-events-to-slack-streamer/internal/testutil"
	"github.com/parchment-io/k8s-events-to-slack-streamer/internal/types"
)

func TestFromWatchEvent(t *testing.T) {
	ev := testutil.MakeEvent("web-1", "Scheduled", "Pod scheduled")

	raw, err := types.FromWatchEvent(watch.Event{Type: watch.Modified, Object: ev})
	require.NoError(t, err)

	assert.Equal(t, types.EventTypeModified, raw.Type)
	assert.Equal(t, "web-1", raw.Object.Name)
	assert.Equal(t, "1", raw.Object.ResourceVersion)
	assert.Equal(t, "Scheduled", raw.Object.Reason)
	assert.Equal(t, "Pod scheduled", raw.Object.Message)
	assert.Equal(t, "default", raw.Object.InvolvedNamespace)
	assert.Equal(t, "Pod", raw.Object.InvolvedKind)
	assert.Equal(t, int32(3), raw.Object.Count)
	assert.True(t, raw.Object.CreationTimestamp.Equal(testutil.T0))
	assert.True(t, raw.Object.FirstTimestamp.Equal(testutil.T1))
	assert.True(t, raw.Object.LastTimestamp.Equal(testutil.T2))
	assert.False(t, raw.IsWarning())
}

func TestFromWatchEvent_Warning(t *testing.T) {
	ev := testutil.LoadEventFixture(t, "../testutil/testdata/backoff-warning.yaml")

	raw, err := types.FromWatchEvent(watch.Event{Type: watch.Added, Object: ev})
	require.NoError(t, err)
	assert.True(t, raw.IsWarning())
	assert.Equal(t, types.EventTypeAdded, raw.Type)
	assert.Equal(t, int32(42), raw.Object.Count)
}

func TestFromWatchEvent_EventTimeFallback(t *testing.T) {
	ev := testutil.LoadEventFixture(t, "../testutil/testdata/scheduled-eventtime.yaml")

	raw, err := types.FromWatchEvent(watch.Event{Type: watch.Added, Object: ev})
	require.NoError(t, err)
	assert.True(t, raw.Object.FirstTimestamp.Equal(testutil.T1))
	assert.True(t, raw.Object.LastTimestamp.Equal(testutil.T1))
}

func TestFromWatchEvent_SeriesFallback(t *testing.T) {
	ev := testutil.MakeEvent("web-1", "Pulled", "Image pulled")
	ev.FirstTimestamp = metav1.Time{}
	ev.LastTimestamp = metav1.Time{}
	ev.Count = 0
	ev.EventTime = metav1.NewMicroTime(testutil.T1)
	ev.Series = &corev1.EventSeries{Count: 7, LastObservedTime: metav1.NewMicroTime(testutil.T2)}

	raw, err := types.FromWatchEvent(watch.Event{Type: watch.Modified, Object: ev})
	require.NoError(t, err)
	assert.True(t, raw.Object.LastTimestamp.Equal(testutil.T2))
	assert.Equal(t, int32(7), raw.Object.Count)
}

func TestFromWatchEvent_Malformed(t *testing.T) {
	tests := []struct {
		name      string
		event     watch.Event
		wantField string
	}{
		{
			name:      "bookmark type",
			event:     watch.Event{Type: watch.Bookmark, Object: testutil.MakeEvent("a", "r", "m")},
			wantField: "type",
		},
		{
			name:      "status object",
			event:     watch.Event{Type: watch.Added, Object: &metav1.Status{}},
			wantField: "object",
		},
		{
			name: "missing name",
			event: watch.Event{Type: watch.Added, Object: func() *corev1.Event {
				ev := testutil.MakeEvent("", "r", "m")
				return ev
			}()},
			wantField: "metadata.name",
		},
		{
			name: "missing creation timestamp",
			event: watch.Event{Type: watch.Added, Object: func() *corev1.Event {
				ev := testutil.MakeEvent("a", "r", "m")
				ev.CreationTimestamp = metav1.Time{}
				return ev
			}()},
			wantField: "metadata.creationTimestamp",
		},
		{
			name: "missing first timestamp",
			event: watch.Event{Type: watch.Added, Object: func() *corev1.Event {
				ev := testutil.MakeEvent("a", "r", "m")
				ev.FirstTimestamp = metav1.Time{}
				return ev
			}()},
			wantField: "firstTimestamp",
		},
		{
			name: "missing last timestamp",
			event: watch.Event{Type: watch.Added, Object: func() *corev1.Event {
				ev := testutil.MakeEvent("a", "r", "m")
				ev.LastTimestamp = metav1.Time{}
				return ev
			}()},
			wantField: "lastTimestamp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := types.FromWatchEvent(tt.event)
			require.Error(t, err)
			var de *types.DecodeError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tt.wantField, de.Field)
		})
	}
}

func TestDecodeError_Message(t *testing.T) {
	assert.Equal(t, "malformed event: missing object", (&types.DecodeError{Field: "object"}).Error())
	assert.Equal(t, `malformed event "web-1": missing lastTimestamp`,
		(&types.DecodeError{Field: "lastTimestamp", Name: "web-1"}).Error())
}
