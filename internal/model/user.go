package model

import (
	"time"

	"github.com/google/uuid"
)

// User mirrors the identity provider's view of a principal. The core
// never manages credentials; it only reads verification state and
// doctor specializations.
type User struct {
	ID             uuid.UUID `json:"id" db:"id"`
	Role           string    `json:"role" db:"role"`
	FullName       string    `json:"full_name" db:"full_name"`
	Email          string    `json:"email" db:"email"`
	Specialization string    `json:"specialization" db:"specialization"`
	IsVerified     bool      `json:"is_verified" db:"is_verified"`
	IsApproved     bool      `json:"is_approved" db:"is_approved"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
