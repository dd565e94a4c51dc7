package notify

import (
	"context"
)

// Email message to deliver
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Outbound email sender
// Delivery is best effort: no retries, error returned to caller as is
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
