package flow

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/itsmeEn/New-MediSync-sub001/internal/model"
	"github.com/itsmeEn/New-MediSync-sub001/internal/repository"
	"github.com/itsmeEn/New-MediSync-sub001/internal/service/appointment"
	"github.com/itsmeEn/New-MediSync-sub001/internal/service/queue"
	apperrors "github.com/itsmeEn/New-MediSync-sub001/pkg/errors"
)

// Service is the coordination façade. It composes the queue and
// appointment engines and enforces the invariants that span them; the
// engines themselves stay unaware of each other.
type Service struct {
	queueSvc  *queue.Service
	apptSvc   *appointment.Service
	queueRepo repository.QueueRepository
	apptRepo  repository.AppointmentRepository
	deptRepo  repository.DepartmentRepository
	logger    *zerolog.Logger
}

func NewService(queueSvc *queue.Service, apptSvc *appointment.Service, queueRepo repository.QueueRepository, apptRepo repository.AppointmentRepository, deptRepo repository.DepartmentRepository, logger *zerolog.Logger) *Service {
	return &Service{
		queueSvc:  queueSvc,
		apptSvc:   apptSvc,
		queueRepo: queueRepo,
		apptRepo:  apptRepo,
		deptRepo:  deptRepo,
		logger:    logger,
	}
}

// Join guards queue admission: a patient who has checked in for an
// appointment in another department cannot also wait in a queue.
func (s *Service) Join(ctx context.Context, patientID uuid.UUID, departmentCode string, priority model.PriorityClass) (*model.JoinQueueResponse, *model.QueueEntry, error) {
	arrived, err := s.apptRepo.ActiveArrivedForPatient(ctx, patientID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, nil, err
	}
	if arrived != nil {
		dept, derr := s.deptRepo.GetByCode(ctx, departmentCode)
		if derr != nil {
			if errors.Is(derr, repository.ErrNotFound) {
				return nil, nil, apperrors.NotFound("department", derr)
			}
			return nil, nil, derr
		}
		if arrived.DepartmentID != dept.ID {
			return nil, nil, apperrors.Conflict("patient has arrived for an appointment in another department", nil)
		}
	}

	return s.queueSvc.Join(ctx, patientID, departmentCode, priority)
}

// Schedule guards appointment booking: a patient currently being
// served from a queue cannot start an appointment at the same moment.
func (s *Service) Schedule(ctx context.Context, patientID uuid.UUID, req *model.ScheduleAppointmentRequest) (*model.Appointment, error) {
	active, err := s.queueRepo.AnyActiveForPatient(ctx, patientID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if active != nil && active.Status == model.QueueStatusInProgress {
		return nil, apperrors.Conflict("patient is currently being served from a queue", nil)
	}

	return s.apptSvc.Schedule(ctx, patientID, req)
}

// Finish completes an appointment; if the patient is in_progress in
// the same department's queue, the entry is auto-served so the two
// engines agree on the visit's outcome.
func (s *Service) Finish(ctx context.Context, id uuid.UUID, doctorID uuid.UUID) (*model.Appointment, error) {
	appt, err := s.apptSvc.Finish(ctx, id, doctorID)
	if err != nil {
		return nil, err
	}

	entry, qerr := s.queueRepo.ActiveForPatient(ctx, appt.PatientID, appt.DepartmentID)
	if qerr == nil && entry.Status == model.QueueStatusInProgress {
		// Notification for the served transition comes from the queue
		// engine, keeping one notification per state change. The
		// appointment is already completed, so a failed auto-serve is
		// surfaced in the logs rather than unwinding the finish.
		if _, serr := s.queueSvc.MarkServed(ctx, entry.ID); serr != nil && s.logger != nil {
			s.logger.Error().Err(serr).
				Str("appointment_id", appt.ID.String()).
				Str("queue_entry_id", entry.ID.String()).
				Msg("failed to auto-serve queue entry after appointment finish")
		}
	}
	return appt, nil
}
