package model

import (
	"fmt"
	"time"
)

type EntityKind string

const (
	KindTask     EntityKind = "task"
	KindDeadline EntityKind = "deadline"
)

type ReminderTrigger string

const (
	TriggerThreshold ReminderTrigger = "threshold"
	TriggerOverdue   ReminderTrigger = "overdue"
	TriggerUrgent    ReminderTrigger = "urgent"
	TriggerManual    ReminderTrigger = "manual"
	TriggerBulk      ReminderTrigger = "bulk"
)

// Threshold keys for triggers that are not a reminder-day offset.
const (
	ThresholdOverdue = 0
	ThresholdUrgent  = -1
	ThresholdManual  = -2
)

// ReminderRecord marks that a reminder fired for (kind, entity, threshold).
// Live records (ResetAt == nil) block a second dispatch for the same key.
type ReminderRecord struct {
	ID        int64           `json:"id" db:"id"`
	Kind      EntityKind      `json:"kind" db:"kind"`
	EntityID  int64           `json:"entity_id" db:"entity_id"`
	Threshold int             `json:"threshold" db:"threshold"`
	Trigger   ReminderTrigger `json:"trigger" db:"trigger_kind"`
	Recipient string          `json:"recipient" db:"recipient"`
	SentAt    time.Time       `json:"sent_at" db:"sent_at"`
	ResetAt   *time.Time      `json:"reset_at,omitempty" db:"reset_at"`
}

func (r ReminderRecord) Key() string {
	return ReminderKey(r.Kind, r.EntityID, r.Threshold)
}

func ReminderKey(kind EntityKind, id int64, threshold int) string {
	return fmt.Sprintf("%s:%d:%d", kind, id, threshold)
}
