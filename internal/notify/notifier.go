// Package notify pushes state-change events to connected clients.
// Publishing is fire-and-forget: a broker failure is logged and never
// fails the operation that already committed.
package notify

import "context"

// Event names, matching the real-time channel the frontend subscribes to.
const (
	EventLineUpdated    = "daily_line_updated"
	EventVolumeUpdated  = "bet_volume_updated"
	EventBalanceUpdated = "balance_updated"
)

// BalancePayload carries a user's new balance after a ledger operation.
type BalancePayload struct {
	Username string `json:"username"`
	Balance  string `json:"balance"`
}

// Notifier publishes an event with a JSON-serializable payload after a
// state-changing operation commits.
type Notifier interface {
	Publish(ctx context.Context, event string, payload any)
}

// Nop is a Notifier that discards all events. Used when no broker is
// configured and in tests.
type Nop struct{}

// Publish discards the event.
func (Nop) Publish(context.Context, string, any) {}
