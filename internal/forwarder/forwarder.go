// Package forwarder hands verified webhook deliveries off to AWS messaging
// services. It supports both SQS queues for point-to-point consumers and SNS
// topics for fan-out, carrying the delivery metadata as message attributes.
//
// Forwarding happens after a delivery has been verified and recorded, so a
// publish failure never affects the response returned to the caller.
package forwarder

import (
	"context"
	"time"
)

// Event is a verified webhook delivery handed off for downstream processing.
type Event struct {
	MessageID  string    // Sender-assigned message id from the webhook-id header
	AppID      string    // App the delivery was addressed to
	Body       []byte    // Raw JSON payload exactly as received
	SourceIP   string    // Caller address the delivery arrived from
	ReceivedAt time.Time // When the delivery was accepted
}

// Forwarder publishes verified events to a downstream destination.
type Forwarder interface {
	// Publish sends the event downstream. The raw payload travels as the
	// message body and the delivery metadata as message attributes.
	Publish(ctx context.Context, event *Event) error

	// Health checks that the destination is reachable.
	Health() error

	// Close releases any resources held by the forwarder.
	Close() error
}
