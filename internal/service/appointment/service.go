package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/itsmeEn/New-MediSync-sub001/internal/model"
	"github.com/itsmeEn/New-MediSync-sub001/internal/repository"
	"github.com/itsmeEn/New-MediSync-sub001/internal/service/notification"
	apperrors "github.com/itsmeEn/New-MediSync-sub001/pkg/errors"
	"github.com/itsmeEn/New-MediSync-sub001/pkg/ident"
)

type Service struct {
	repo       repository.AppointmentRepository
	deptRepo   repository.DepartmentRepository
	userRepo   repository.UserRepository
	notifSvc   notification.Service
	clock      ident.Clock
	refs       *ident.ReferenceAllocator
	leadWindow time.Duration
}

func NewService(repo repository.AppointmentRepository, deptRepo repository.DepartmentRepository, userRepo repository.UserRepository, notifSvc notification.Service, clock ident.Clock, refs *ident.ReferenceAllocator, leadWindow time.Duration) *Service {
	return &Service{
		repo:       repo,
		deptRepo:   deptRepo,
		userRepo:   userRepo,
		notifSvc:   notifSvc,
		clock:      clock,
		refs:       refs,
		leadWindow: leadWindow,
	}
}

// Schedule books a validated appointment and notifies the doctor.
func (s *Service) Schedule(ctx context.Context, patientID uuid.UUID, req *model.ScheduleAppointmentRequest) (*model.Appointment, error) {
	when, err := req.When()
	if err != nil {
		return nil, apperrors.Validation("invalid date or time", err)
	}
	if !when.After(s.clock.Now()) {
		return nil, apperrors.Validation("appointment must be in the future", nil)
	}
	if !model.ValidAppointmentType(req.Type) {
		return nil, apperrors.Validation(fmt.Sprintf("unknown appointment type %q", req.Type), nil)
	}

	dept, err := s.deptRepo.GetByCode(ctx, req.Department)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("department", err)
		}
		return nil, err
	}

	if err := s.checkParticipant(ctx, patientID, ""); err != nil {
		return nil, err
	}
	if err := s.checkParticipant(ctx, req.DoctorID, "doctor"); err != nil {
		return nil, err
	}

	appt := &model.Appointment{
		PatientID:    patientID,
		DoctorID:     req.DoctorID,
		DepartmentID: dept.ID,
		Type:         req.Type,
		ScheduledAt:  when,
		QueueNumber:  s.refs.Next(),
		Reason:       req.Reason,
	}

	// Conflict checks run in the insert transaction; a clash leaves no
	// partial row and the unissued reference is simply discarded.
	if err := s.repo.Create(ctx, appt); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.Conflict("time slot already booked", err)
		}
		return nil, err
	}

	s.notifSvc.Emit(ctx, &model.Notification{
		RecipientID:   appt.DoctorID,
		Message:       fmt.Sprintf("New %s appointment scheduled for %s", appt.Type, appt.ScheduledAt.Format(time.RFC3339)),
		Channel:       model.ChannelWebsocket,
		EventType:     "appointment_scheduled",
		CorrelationID: &appt.ID,
	})
	return appt, nil
}

// Reschedule moves an active appointment, preserving its queue number.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, newWhen time.Time, reason string) (*model.Appointment, error) {
	if !newWhen.After(s.clock.Now()) {
		return nil, apperrors.Validation("new time must be in the future", nil)
	}

	appt, err := s.repo.Reschedule(ctx, id, newWhen, reason, s.clock.Now())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NotFound("appointment", err)
		case errors.Is(err, repository.ErrInvalidTransition):
			return nil, apperrors.Validation("only scheduled appointments can be rescheduled", err)
		case errors.Is(err, repository.ErrConflict):
			return nil, apperrors.Conflict("time slot already booked", err)
		}
		return nil, err
	}

	s.notifSvc.Emit(ctx, &model.Notification{
		RecipientID:   appt.PatientID,
		Message:       fmt.Sprintf("Your appointment was rescheduled to %s: %s", appt.ScheduledAt.Format(time.RFC3339), reason),
		Channel:       model.ChannelWebsocket,
		EventType:     "appointment_rescheduled",
		CorrelationID: &appt.ID,
	})
	return appt, nil
}

// Cancel voids an active appointment and notifies the counterparty.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actorID uuid.UUID, reason string) (*model.Appointment, error) {
	appt, err := s.repo.Cancel(ctx, id, reason, s.clock.Now())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NotFound("appointment", err)
		case errors.Is(err, repository.ErrInvalidTransition):
			return nil, apperrors.Validation("appointment cannot be cancelled", err)
		}
		return nil, err
	}

	counterparty := appt.PatientID
	if actorID == appt.PatientID {
		counterparty = appt.DoctorID
	}
	s.notifSvc.Emit(ctx, &model.Notification{
		RecipientID:   counterparty,
		Message:       fmt.Sprintf("Appointment %s was cancelled: %s", appt.QueueNumber, reason),
		Channel:       model.ChannelWebsocket,
		EventType:     "appointment_cancelled",
		CorrelationID: &appt.ID,
	})
	return appt, nil
}

// Finish completes an active appointment. Only the appointment's
// doctor may call this; the façade enforces the role.
func (s *Service) Finish(ctx context.Context, id uuid.UUID, doctorID uuid.UUID) (*model.Appointment, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("appointment", err)
		}
		return nil, err
	}
	if current.DoctorID != doctorID {
		return nil, apperrors.New(apperrors.CodeSpecializationMismatch, "appointment belongs to another doctor", nil)
	}

	appt, err := s.repo.Finish(ctx, id, s.clock.Now())
	if err != nil {
		if errors.Is(err, repository.ErrInvalidTransition) {
			return nil, apperrors.Validation("appointment is not active", err)
		}
		return nil, err
	}

	s.notifSvc.Emit(ctx, &model.Notification{
		RecipientID:   appt.PatientID,
		Message:       fmt.Sprintf("Appointment %s has been completed", appt.QueueNumber),
		Channel:       model.ChannelWebsocket,
		EventType:     "appointment_completed",
		CorrelationID: &appt.ID,
	})
	return appt, nil
}

// NotifyPatient sends the come-to-clinic reminder within the lead
// window around the scheduled time.
func (s *Service) NotifyPatient(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	appt, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("appointment", err)
		}
		return nil, err
	}
	if !appt.Status.Active() {
		return nil, apperrors.Validation("appointment is not active", nil)
	}

	gap := appt.ScheduledAt.Sub(s.clock.Now())
	if gap < 0 {
		gap = -gap
	}
	if gap > s.leadWindow {
		return nil, apperrors.Validation(fmt.Sprintf("appointment is outside the %s notification window", s.leadWindow), nil)
	}

	notif, err := s.notifSvc.Emit(ctx, &model.Notification{
		RecipientID:   appt.PatientID,
		Message:       fmt.Sprintf("Please come to the clinic for your %s appointment at %s", appt.Type, appt.ScheduledAt.Format("15:04")),
		Channel:       model.ChannelWebsocket,
		EventType:     "appointment_reminder",
		CorrelationID: &appt.ID,
	})
	if err != nil {
		return nil, err
	}
	return notif, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	appt, err := s.repo.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("appointment", err)
	}
	return appt, err
}

func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	return s.repo.ListForPatient(ctx, patientID)
}

// MarkArrived records patient check-in; the façade uses it to fence
// queue joins in other departments.
func (s *Service) MarkArrived(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SetArrived(ctx, id, true); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("appointment", err)
		}
		return err
	}
	return nil
}

func (s *Service) checkParticipant(ctx context.Context, id uuid.UUID, wantRole string) error {
	user, err := s.userRepo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("user", err)
		}
		return err
	}
	if !user.IsVerified {
		return apperrors.Validation(fmt.Sprintf("user %s is not verified", id), nil)
	}
	if wantRole != "" && user.Role != wantRole {
		return apperrors.Validation(fmt.Sprintf("user %s is not a %s", id, wantRole), nil)
	}
	return nil
}
