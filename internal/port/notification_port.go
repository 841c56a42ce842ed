package port

import (
	"context"
)

type Notification struct {
	Method  string `json:"method"`
	Payload any    `json:"payload"`
}

// Notifier delivers to a connected recipient. An absent recipient is reported as delivered=false, not an error.
type Notifier interface {
	SendToRecipient(ctx context.Context, recipient string, n Notification) (delivered bool, err error)
}
