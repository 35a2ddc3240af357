package model

import (
	"time"

	"github.com/google/uuid"
)

type QueueStatus string

const (
	QueueStatusWaiting    QueueStatus = "waiting"
	QueueStatusInProgress QueueStatus = "in_progress"
	QueueStatusServed     QueueStatus = "served"
	QueueStatusRemoved    QueueStatus = "removed"
	QueueStatusNoShow     QueueStatus = "no_show"
)

// Terminal reports whether no further transitions are possible.
func (s QueueStatus) Terminal() bool {
	return s == QueueStatusServed || s == QueueStatusRemoved || s == QueueStatusNoShow
}

type PriorityClass string

const (
	PriorityNormal    PriorityClass = "normal"
	PriorityPWD       PriorityClass = "pwd"
	PrioritySenior    PriorityClass = "senior"
	PriorityPregnant  PriorityClass = "pregnant"
	PriorityEmergency PriorityClass = "emergency"
)

func ValidPriorityClass(p PriorityClass) bool {
	switch p {
	case PriorityNormal, PriorityPWD, PrioritySenior, PriorityPregnant, PriorityEmergency:
		return true
	}
	return false
}

type QueueEntry struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	PatientID     uuid.UUID     `json:"patient_id" db:"patient_id"`
	DepartmentID  uuid.UUID     `json:"department_id" db:"department_id"`
	SessionID     int64         `json:"session_id" db:"session_id"`
	QueueNumber   int           `json:"queue_number" db:"queue_number"`
	PriorityClass PriorityClass `json:"priority_class" db:"priority_class"`
	Status        QueueStatus   `json:"status" db:"status"`
	EnqueuedAt    time.Time     `json:"enqueued_at" db:"enqueued_at"`
	StartedAt     *time.Time    `json:"started_at,omitempty" db:"started_at"`
	FinishedAt    *time.Time    `json:"finished_at,omitempty" db:"finished_at"`
	RemovalReason *string       `json:"removal_reason,omitempty" db:"removal_reason"`
}

type JoinQueueRequest struct {
	Department    string        `json:"department" binding:"required"`
	PriorityLevel PriorityClass `json:"priority_level" binding:"priorityclass"`
}

type JoinQueueResponse struct {
	QueueNumber   int           `json:"queue_number"`
	Position      int           `json:"position"`
	PredictedWait time.Duration `json:"predicted_wait_seconds"`
}

type StartProcessingRequest struct {
	Department string `json:"department" binding:"required"`
}

// QueueSnapshot is the ordered view of a department queue.
type QueueSnapshot struct {
	Department     string        `json:"department"`
	CurrentServing *QueueEntry   `json:"current_serving,omitempty"`
	TotalWaiting   int           `json:"total_waiting"`
	Entries        []*QueueEntry `json:"entries"`
}

type RemoveEntryRequest struct {
	Reason string `json:"reason" binding:"required,max=512"`
}
