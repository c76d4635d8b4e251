// Package notify delivers approved dispatch actions to an external
// notification service.
package notify

import (
	"context"
	"encoding/json"
	"time"
)

// Action is the payload of an approved notification. ID doubles as the
// idempotency key; a gateway receiving the same ID twice must not
// deliver twice.
type Action struct {
	ID      string          `json:"id"`
	Kind    string          `json:"kind"`
	OrgID   string          `json:"org_id"`
	Payload json.RawMessage `json:"payload"`
}

// Delivery is the gateway's acknowledgment.
type Delivery struct {
	ActionID    string    `json:"action_id"`
	Recipients  int       `json:"recipients"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// Gateway sends approved actions. Implementations must treat Action.ID
// as an idempotency key.
type Gateway interface {
	Send(ctx context.Context, action Action) (Delivery, error)
}
