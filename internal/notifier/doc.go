// Package notifier delivers formatted event notifications to a chat webhook.
//
// # Contract
//
// Delivery is best-effort:
//   - WebhookSender POSTs one payload per call. A non-2xx response is logged
//     and counted but is not an error; only transport failures (connection
//     refused, DNS, timeout) are returned, as *DeliveryError.
//   - Nothing is retried. Callers log the error and move on.
//   - AsyncSender moves delivery off the caller's goroutine through a bounded
//     buffer drained by a single worker, so payloads leave in the order they
//     were accepted. A full buffer drops the payload.
//
// Webhook URLs carry credentials in their path; log them through RedactURL.
//
// # Types
//
//	type Sender interface {
//	    Name() string
//	    Send(ctx context.Context, p formatter.Payload) error
//	}
//	func NewWebhookSender(logger *zap.Logger, cfg WebhookSenderConfig) (*WebhookSender, error)
//	func NewAsyncSender(next Sender, logger *zap.Logger, bufferSize int) *AsyncSender
package notifier
