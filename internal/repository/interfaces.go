package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/itsmeEn/New-MediSync-sub001/internal/model"
)

// Sentinel errors surfaced by repositories. Services translate them
// into the application error taxonomy.
var (
	ErrNotFound           = errors.New("not found")
	ErrDepartmentClosed   = errors.New("department closed")
	ErrAlreadyEnqueued    = errors.New("patient already enqueued")
	ErrNoWaiting          = errors.New("no waiting entries")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrConflict           = errors.New("conflicting booking")
	ErrAlreadyTerminal    = errors.New("entry already terminal")
	ErrDeliveryTransition = errors.New("invalid delivery transition")
)

type DepartmentRepository interface {
	Create(ctx context.Context, dept *model.Department) error
	Get(ctx context.Context, id uuid.UUID) (*model.Department, error)
	GetByCode(ctx context.Context, code string) (*model.Department, error)
	List(ctx context.Context) ([]*model.Department, error)
	// SetOpen flips is_open under the department row lock. Opening a
	// department starts a new session and resets the queue counter.
	SetOpen(ctx context.Context, code string, open bool) (*model.Department, error)
}

type QueueRepository interface {
	// Join allocates the next queue number for the department under its
	// row lock and inserts a waiting entry. Returns ErrDepartmentClosed
	// or ErrAlreadyEnqueued.
	Join(ctx context.Context, patientID uuid.UUID, departmentCode string, priority model.PriorityClass) (*model.QueueEntry, error)
	Get(ctx context.Context, id uuid.UUID) (*model.QueueEntry, error)
	// ListActive returns waiting and in_progress entries for the
	// department's current session, unordered.
	ListActive(ctx context.Context, departmentID uuid.UUID) ([]*model.QueueEntry, error)
	// StartNext selects the head of the ordered waiting view under the
	// department row lock and transitions it to in_progress. Returns
	// ErrNoWaiting.
	StartNext(ctx context.Context, departmentCode string, weights map[model.PriorityClass]int, at time.Time) (*model.QueueEntry, error)
	// Finish moves an in_progress entry to served.
	Finish(ctx context.Context, entryID uuid.UUID, at time.Time) (*model.QueueEntry, error)
	// Remove moves a non-terminal entry to removed. Terminal entries are
	// returned unchanged with ErrAlreadyTerminal.
	Remove(ctx context.Context, entryID uuid.UUID, reason string, at time.Time) (*model.QueueEntry, error)
	// ActiveForPatient returns the patient's non-terminal entry in the
	// department, if any.
	ActiveForPatient(ctx context.Context, patientID, departmentID uuid.UUID) (*model.QueueEntry, error)
	// AnyActiveForPatient looks across all departments.
	AnyActiveForPatient(ctx context.Context, patientID uuid.UUID) (*model.QueueEntry, error)
	// EvictStale marks waiting entries older than the cutoff as no_show
	// and returns them.
	EvictStale(ctx context.Context, cutoff time.Time) ([]*model.QueueEntry, error)
	// RecentServiceDurations returns finished-start durations of the
	// most recent served entries for wait prediction.
	RecentServiceDurations(ctx context.Context, departmentID uuid.UUID, limit int) ([]time.Duration, error)
}

type AppointmentRepository interface {
	// Create inserts the appointment after running both conflict checks
	// inside the same transaction. Returns ErrConflict.
	Create(ctx context.Context, appt *model.Appointment) error
	Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	// UpdateTimes moves an active appointment, re-running conflict
	// checks transactionally.
	Reschedule(ctx context.Context, id uuid.UUID, newWhen time.Time, reason string, at time.Time) (*model.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string, at time.Time) (*model.Appointment, error)
	Finish(ctx context.Context, id uuid.UUID, at time.Time) (*model.Appointment, error)
	SetArrived(ctx context.Context, id uuid.UUID, arrived bool) error
	ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error)
	// ActiveArrivedForPatient returns an active appointment the patient
	// has checked in for, if any.
	ActiveArrivedForPatient(ctx context.Context, patientID uuid.UUID) (*model.Appointment, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	Get(ctx context.Context, id uuid.UUID) (*model.Notification, error)
	// UpdateStatus applies the monotonic delivery lattice and returns
	// ErrDeliveryTransition when violated.
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.DeliveryStatus, at time.Time, lastError *string) (*model.Notification, error)
	ListPending(ctx context.Context, limit int) ([]*model.Notification, error)
	ListForRecipient(ctx context.Context, recipientID uuid.UUID, limit int) ([]*model.Notification, error)
}

type ArchiveRepository interface {
	// Create inserts the record and then runs sideEffects inside the
	// same transaction; any error rolls the insert back.
	Create(ctx context.Context, rec *model.ArchiveRecord, sideEffects func(*model.ArchiveRecord) error) error
	// Update rewrites the record the same way.
	Update(ctx context.Context, rec *model.ArchiveRecord, sideEffects func(*model.ArchiveRecord) error) error
	Get(ctx context.Context, id uuid.UUID) (*model.ArchiveRecord, error)
	List(ctx context.Context, filter *model.ArchiveFilter) ([]*model.ArchiveRecord, error)
	All(ctx context.Context) ([]*model.ArchiveRecord, error)
}

type ArchiveAccessLogRepository interface {
	Create(ctx context.Context, log *model.ArchiveAccessLog) error
	List(ctx context.Context, filter *model.ArchiveLogFilter) ([]*model.ArchiveAccessLog, error)
}

type UserRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*model.User, error)
}
