package types

import (
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/watch"
)

// EventType is the kind of change a watch delivered.
type EventType string

const (
	EventTypeAdded    EventType = "ADDED"
	EventTypeModified EventType = "MODIFIED"
	EventTypeDeleted  EventType = "DELETED"
)

// Severity values carried in the Event's own type field.
const (
	SeverityNormal  = corev1.EventTypeNormal
	SeverityWarning = corev1.EventTypeWarning
)

// RawEvent is one change notification from the Events API, reduced to the
// fields the pipeline reads.
type RawEvent struct {
	Type   EventType
	Object EventObject
}

// EventObject is the decoded corev1.Event carried by a RawEvent.
type EventObject struct {
	Name              string
	ResourceVersion   string
	CreationTimestamp time.Time

	Reason  string
	Message string
	// Type is the event severity, "Normal" or "Warning".
	Type string

	InvolvedNamespace string
	InvolvedKind      string

	FirstTimestamp time.Time
	LastTimestamp  time.Time
	Count          int32
}

// IsWarning reports whether the event carries the Warning severity.
func (e RawEvent) IsWarning() bool {
	return e.Object.Type == SeverityWarning
}

// DecodeError reports a watch event that lacks a field the pipeline needs.
type DecodeError struct {
	// Field is the JSON path of the missing or unexpected field.
	Field string
	// Name is the event name, when it could be read.
	Name string
}

func (e *DecodeError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("malformed event: missing %s", e.Field)
	}
	return fmt.Sprintf("malformed event %q: missing %s", e.Name, e.Field)
}

// FromWatchEvent decodes a client-go watch event into a RawEvent.
// Only ADDED, MODIFIED and DELETED events carrying a *corev1.Event are
// decodable; anything else yields a *DecodeError.
//
// Events written through the events.k8s.io API leave firstTimestamp and
// lastTimestamp empty and record eventTime / series.lastObservedTime instead;
// those are used as fallbacks.
func FromWatchEvent(we watch.Event) (RawEvent, error) {
	var et EventType
	switch we.Type {
	case watch.Added, watch.Modified, watch.Deleted:
		et = EventType(we.Type)
	default:
		return RawEvent{}, &DecodeError{Field: "type"}
	}

	ev, ok := we.Object.(*corev1.Event)
	if !ok || ev == nil {
		return RawEvent{}, &DecodeError{Field: "object"}
	}

	name := ev.Name
	if name == "" {
		return RawEvent{}, &DecodeError{Field: "metadata.name"}
	}
	if ev.CreationTimestamp.IsZero() {
		return RawEvent{}, &DecodeError{Field: "metadata.creationTimestamp", Name: name}
	}

	first := ev.FirstTimestamp.Time
	if first.IsZero() {
		first = ev.EventTime.Time
	}
	if first.IsZero() {
		return RawEvent{}, &DecodeError{Field: "firstTimestamp", Name: name}
	}

	last := ev.LastTimestamp.Time
	if last.IsZero() && ev.Series != nil {
		last = ev.Series.LastObservedTime.Time
	}
	if last.IsZero() {
		last = ev.EventTime.Time
	}
	if last.IsZero() {
		return RawEvent{}, &DecodeError{Field: "lastTimestamp", Name: name}
	}

	count := ev.Count
	if count == 0 && ev.Series != nil {
		count = ev.Series.Count
	}

	return RawEvent{
		Type: et,
		Object: EventObject{
			Name:              name,
			ResourceVersion:   ev.ResourceVersion,
			CreationTimestamp: ev.CreationTimestamp.Time,
			Reason:            ev.Reason,
			Message:           ev.Message,
			Type:              ev.Type,
			InvolvedNamespace: ev.InvolvedObject.Namespace,
			InvolvedKind:      ev.InvolvedObject.Kind,
			FirstTimestamp:    first,
			LastTimestamp:     last,
			Count:             count,
		},
	}, nil
}
