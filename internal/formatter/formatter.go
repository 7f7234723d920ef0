// Package formatter renders accepted events as Slack attachment messages.
package formatter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/parchment-io/k8s-events-to-slack-streamer/internal/types"
)

const (
	ColorNormal  = "#36a64f"
	ColorWarning = "#cc4d26"

	// TimeLayout renders timestamps as DD/MM/YYYY HH:MM:SS <zone>.
	TimeLayout = "02/01/2006 15:04:05 MST"

	shortTrue = "true"
)

// DeliveryConfig describes where and how notifications are addressed.
type DeliveryConfig struct {
	WebhookURL  string
	ClusterName string
	// NotifyTarget replaces the text of warning messages when non-empty,
	// e.g. "<@U024BE7LH> <@U0G9QF9C6>".
	NotifyTarget string
}

// Payload is the JSON body POSTed to the incoming webhook.
type Payload struct {
	Attachments []Attachment `json:"attachments"`
}

// Attachment is a single Slack message attachment.
type Attachment struct {
	Color  string  `json:"color"`
	Title  string  `json:"title"`
	Text   string  `json:"text"`
	Footer string  `json:"footer"`
	Fields []Field `json:"fields"`
}

// Field is a key/value row rendered inside an attachment. Short is sent as
// the string "true", which Slack accepts and existing receivers expect.
type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short string `json:"short"`
}

// Format builds the notification for ev. It performs no I/O and depends only
// on its inputs.
func Format(ev types.RawEvent, cfg DeliveryConfig) Payload {
	obj := ev.Object
	att := Attachment{
		Color: ColorNormal,
		Title: obj.Message,
		Text:  fmt.Sprintf("%s - event type: %s, event reason: %s", cfg.ClusterName, ev.Type, obj.Reason),
		Footer: fmt.Sprintf("First time seen: %s, Last time seen: %s, Count: %d",
			FormatTime(obj.FirstTimestamp), FormatTime(obj.LastTimestamp), obj.Count),
		Fields: []Field{
			field("Namespace", obj.InvolvedNamespace),
			field("Name", obj.Name),
			field("Creation", FormatTime(obj.CreationTimestamp)),
			field("Kind", obj.InvolvedKind),
		},
	}

	if ev.IsWarning() {
		att.Color = ColorWarning
		// The mention replaces the cluster line entirely.
		if cfg.NotifyTarget != "" {
			att.Text = fmt.Sprintf("%s there is a warning for you to check", cfg.NotifyTarget)
		}
	}

	return Payload{Attachments: []Attachment{att}}
}

// Marshal encodes p in the webhook wire format. HTML characters are left
// unescaped so Slack mention syntax such as <@U024BE7LH> is sent verbatim.
func Marshal(p Payload) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// FormatTime renders t in UTC using TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func field(title, value string) Field {
	return Field{Title: title, Value: value, Short: shortTrue}
}
