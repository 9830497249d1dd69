// Package realtime carries row-change events from the write path to live
// subscribers. Delivery is best-effort: at-most-once, no cross-topic ordering,
// and slow subscribers drop events rather than block publishers.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Topic string

const (
	TopicTransactions  Topic = "transactions"
	TopicCustomers     Topic = "customers"
	TopicRewards       Topic = "rewards"
	TopicNotifications Topic = "notifications"
)

// AllTopics lists every topic the write path publishes to.
var AllTopics = []Topic{TopicTransactions, TopicCustomers, TopicRewards, TopicNotifications}

type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// ChangeEvent describes one row change. BusinessID and CustomerID scope who
// may see it.
type ChangeEvent struct {
	Topic      Topic           `json:"topic"`
	Op         Op              `json:"op"`
	BusinessID *uuid.UUID      `json:"business_id,omitempty"`
	CustomerID *uuid.UUID      `json:"customer_id,omitempty"`
	Record     json.RawMessage `json:"record"`
	At         time.Time       `json:"at"`
}

// NewEvent marshals record into a ChangeEvent stamped with the current time.
func NewEvent(topic Topic, op Op, businessID, customerID *uuid.UUID, record interface{}) (ChangeEvent, error) {
	body, err := json.Marshal(record)
	if err != nil {
		return ChangeEvent{}, err
	}
	return ChangeEvent{
		Topic:      topic,
		Op:         op,
		BusinessID: businessID,
		CustomerID: customerID,
		Record:     body,
		At:         time.Now().UTC(),
	}, nil
}

// Broker is the publish/subscribe feed keyed by topic.
type Broker interface {
	Publish(ctx context.Context, event ChangeEvent) error
	Subscribe(topics ...Topic) *Subscription
	Close() error
}

// Subscription is a stream of events. Close stops delivery; C is closed once
// the underlying feed has shut down, which may be after Close returns, and
// events already buffered are still readable until then.
type Subscription struct {
	C <-chan ChangeEvent

	once  sync.Once
	close func()
}

func newSubscription(c <-chan ChangeEvent, closeFn func()) *Subscription {
	return &Subscription{C: c, close: closeFn}
}

// Close stops delivery. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(s.close)
}

const subscriberBuffer = 64
