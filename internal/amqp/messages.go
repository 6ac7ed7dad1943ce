package amqp

import (
	"encoding/json"
	"time"
)

// Plan lifecycle event names carried on the wire.
const (
	EventPlanCommitted = "plan.committed"
	EventPlanArchived  = "plan.archived"
)

// PlanEventMessage announces a plan lifecycle transition. It carries only
// identifiers; consumers fetch the full plan from storage.
type PlanEventMessage struct {
	PlanID     string    `json:"plan_id"`
	TenantID   string    `json:"tenant_id"`
	Event      string    `json:"event"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewPlanEventMessage creates a new plan event message
func NewPlanEventMessage(planID, tenantID, event string) *PlanEventMessage {
	return &PlanEventMessage{
		PlanID:     planID,
		TenantID:   tenantID,
		Event:      event,
		OccurredAt: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *PlanEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// PlanEventMessageFromJSON creates a message from JSON bytes
func PlanEventMessageFromJSON(data []byte) (*PlanEventMessage, error) {
	var msg PlanEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
