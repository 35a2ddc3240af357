package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled   AppointmentStatus = "scheduled"
	AppointmentStatusRescheduled AppointmentStatus = "rescheduled"
	AppointmentStatusCancelled   AppointmentStatus = "cancelled"
	AppointmentStatusCompleted   AppointmentStatus = "completed"
	AppointmentStatusNoShow      AppointmentStatus = "no_show"
)

// Active reports whether the appointment still occupies its slot.
func (s AppointmentStatus) Active() bool {
	return s == AppointmentStatusScheduled || s == AppointmentStatusRescheduled
}

type AppointmentType string

const (
	AppointmentTypeConsultation AppointmentType = "consultation"
	AppointmentTypeLabTest      AppointmentType = "lab_test"
	AppointmentTypeFollowUp     AppointmentType = "follow_up"
	AppointmentTypeOther        AppointmentType = "other"
)

func ValidAppointmentType(t AppointmentType) bool {
	switch t {
	case AppointmentTypeConsultation, AppointmentTypeLabTest, AppointmentTypeFollowUp, AppointmentTypeOther:
		return true
	}
	return false
}

type Appointment struct {
	ID                 uuid.UUID         `json:"id" db:"id"`
	PatientID          uuid.UUID         `json:"patient_id" db:"patient_id"`
	DoctorID           uuid.UUID         `json:"doctor_id" db:"doctor_id"`
	DepartmentID       uuid.UUID         `json:"department_id" db:"department_id"`
	Type               AppointmentType   `json:"type" db:"type"`
	ScheduledAt        time.Time         `json:"scheduled_at" db:"scheduled_at"`
	Status             AppointmentStatus `json:"status" db:"status"`
	QueueNumber        string            `json:"queue_number" db:"queue_number"`
	Reason             string            `json:"reason,omitempty" db:"reason"`
	RescheduleReason   *string           `json:"reschedule_reason,omitempty" db:"reschedule_reason"`
	CancellationReason *string           `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	Arrived            bool              `json:"arrived" db:"arrived"`
	CreatedAt          time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at" db:"updated_at"`
	FinishedAt         *time.Time        `json:"finished_at,omitempty" db:"finished_at"`
}

type ScheduleAppointmentRequest struct {
	Type       AppointmentType `json:"type" binding:"required"`
	Date       string          `json:"date" binding:"required,dateonly"`
	Time       string          `json:"time" binding:"required,clocktime"`
	Reason     string          `json:"reason" binding:"max=1000"`
	DoctorID   uuid.UUID       `json:"doctor_id" binding:"required"`
	Department string          `json:"department" binding:"required"`
}

// When combines the request's date and time parts.
func (r ScheduleAppointmentRequest) When() (time.Time, error) {
	return time.Parse("2006-01-02 15:04", r.Date+" "+r.Time)
}

type RescheduleAppointmentRequest struct {
	NewWhen time.Time `json:"new_when" binding:"required"`
	Reason  string    `json:"reason" binding:"required,max=1000"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" binding:"required,max=1000"`
}
