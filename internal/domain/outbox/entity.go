// internal/domain/outbox/entity.go
package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusProcessing TaskStatus = "processing"
	StatusDone       TaskStatus = "done"
	StatusDead       TaskStatus = "dead"
)

const (
	KindSimulatedCallback = "payment.simulated_callback"
	KindPublishEvent      = "event.publish"
	KindSendEmail         = "notification.email"
)

const DefaultMaxAttempts = 8

// Task is a durable unit of deferred work, written in the same database
// transaction as the state change that produced it.
type Task struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	Kind          string          `json:"kind" db:"kind"`
	Payload       json.RawMessage `json:"payload" db:"payload"`
	Status        TaskStatus      `json:"status" db:"status"`
	Attempts      int             `json:"attempts" db:"attempts"`
	MaxAttempts   int             `json:"max_attempts" db:"max_attempts"`
	NextAttemptAt time.Time       `json:"next_attempt_at" db:"next_attempt_at"`
	LastError     *string         `json:"last_error,omitempty" db:"last_error"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// NewTask marshals payload into a pending task due at runAt.
func NewTask(kind string, payload interface{}, runAt time.Time) (*Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Task{
		ID:            uuid.New(),
		Kind:          kind,
		Payload:       body,
		Status:        StatusPending,
		MaxAttempts:   DefaultMaxAttempts,
		NextAttemptAt: runAt,
	}, nil
}

// EventPayload is the body of a KindPublishEvent task.
type EventPayload struct {
	Exchange   string      `json:"exchange"`
	RoutingKey string      `json:"routing_key"`
	Body       interface{} `json:"body"`
}

// EmailPayload is the body of a KindSendEmail task.
type EmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

const (
	RoutingTransactionCompleted = "loyalty.transaction.completed"
	RoutingRewardIssued         = "loyalty.reward.issued"
	RoutingRewardRedeemed       = "loyalty.reward.redeemed"
	RoutingPaymentFailed        = "payment.failed"
)
