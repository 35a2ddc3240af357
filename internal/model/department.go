package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Department is a service line (e.g. OPD) with its own queue.
type Department struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	Code            string          `json:"code" db:"code"`
	Name            string          `json:"name" db:"name"`
	IsOpen          bool            `json:"is_open" db:"is_open"`
	SessionID       int64           `json:"session_id" db:"session_id"`
	LastQueueNumber int             `json:"last_queue_number" db:"last_queue_number"`
	OpeningHours    json.RawMessage `json:"opening_hours,omitempty" db:"opening_hours"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

type CreateDepartmentRequest struct {
	Code string `json:"code" binding:"required,alphanum,max=16"`
	Name string `json:"name" binding:"required,max=128"`
}

type QueueStatusRequest struct {
	Department string `json:"department" binding:"required"`
	Open       *bool  `json:"open" binding:"required"`
}
