package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/itsmeEn/New-MediSync-sub001/internal/model"
	"github.com/itsmeEn/New-MediSync-sub001/internal/repository"
	apperrors "github.com/itsmeEn/New-MediSync-sub001/pkg/errors"
	"github.com/itsmeEn/New-MediSync-sub001/pkg/ident"
	"github.com/itsmeEn/New-MediSync-sub001/pkg/metrics"
)

type Service struct {
	repo        repository.ArchiveRepository
	logRepo     repository.ArchiveAccessLogRepository
	userRepo    repository.UserRepository
	mirrors     *MirrorStore
	signer      *Signer
	clock       ident.Clock
	logger      *zerolog.Logger
	metrics     *metrics.Metrics
	listMaxPage int
}

func NewService(repo repository.ArchiveRepository, logRepo repository.ArchiveAccessLogRepository, userRepo repository.UserRepository, mirrors *MirrorStore, signer *Signer, clock ident.Clock, logger *zerolog.Logger, m *metrics.Metrics, listMaxPage int) *Service {
	if listMaxPage <= 0 {
		listMaxPage = 200
	}
	return &Service{
		repo:        repo,
		logRepo:     logRepo,
		userRepo:    userRepo,
		mirrors:     mirrors,
		signer:      signer,
		clock:       clock,
		logger:      logger,
		metrics:     m,
		listMaxPage: listMaxPage,
	}
}

// Create archives an assessment across all three stores atomically.
func (s *Service) Create(ctx context.Context, principalID uuid.UUID, req *model.CreateArchiveRequest) (rec *model.ArchiveRecord, err error) {
	started := s.clock.Now()
	defer func() { s.logAccess(ctx, principalID, model.ArchiveActionCreate, recID(rec), nil, started, err) }()

	if req.DoctorID != nil {
		if err = s.checkSpecialization(ctx, *req.DoctorID, req.Specialization); err != nil {
			return nil, err
		}
	}

	if err = s.signer.Verify(req.AssessmentData, req.Signature); err != nil {
		return nil, err
	}

	assessmentData, err := setArchivedFlag(req.AssessmentData, true)
	if err != nil {
		return nil, apperrors.Validation("assessment_data is not a JSON object", err)
	}

	lastAssessed := req.LastAssessedAt
	if lastAssessed.IsZero() {
		lastAssessed = s.clock.Now()
	}

	candidate := &model.ArchiveRecord{
		ID:               uuid.New(),
		PatientID:        req.PatientID,
		PatientName:      req.PatientName,
		AssessmentType:   req.AssessmentType,
		MedicalCondition: req.MedicalCondition,
		HistorySummary:   req.HistorySummary,
		Diagnostics:      req.Diagnostics,
		AssessmentData:   assessmentData,
		LastAssessedAt:   lastAssessed,
		HospitalLabel:    req.HospitalLabel,
	}

	err = s.repo.Create(ctx, candidate, func(inserted *model.ArchiveRecord) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return apperrors.Timeout(ctxErr)
		}
		payload, perr := CanonicalizeRecord(inserted)
		if perr != nil {
			return perr
		}
		return s.mirrors.WriteBoth(ctx, inserted.ID, payload)
	})
	if err != nil {
		return nil, err
	}
	return candidate, nil
}

// Update rewrites the record and both mirrors with the full refreshed
// payload.
func (s *Service) Update(ctx context.Context, principalID uuid.UUID, id uuid.UUID, req *model.UpdateArchiveRequest) (rec *model.ArchiveRecord, err error) {
	started := s.clock.Now()
	defer func() { s.logAccess(ctx, principalID, model.ArchiveActionUpdate, &id, nil, started, err) }()

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("archive record", err)
		}
		return nil, err
	}

	if req.AssessmentType != nil {
		current.AssessmentType = *req.AssessmentType
	}
	if req.MedicalCondition != nil {
		current.MedicalCondition = *req.MedicalCondition
	}
	if req.HistorySummary != nil {
		current.HistorySummary = *req.HistorySummary
	}
	if req.Diagnostics != nil {
		current.Diagnostics = req.Diagnostics
	}
	if req.AssessmentData != nil {
		archived, aerr := isArchived(current.AssessmentData)
		if aerr != nil {
			return nil, aerr
		}
		current.AssessmentData, aerr = setArchivedFlag(req.AssessmentData, archived)
		if aerr != nil {
			return nil, apperrors.Validation("assessment_data is not a JSON object", aerr)
		}
	}
	if req.LastAssessedAt != nil {
		current.LastAssessedAt = *req.LastAssessedAt
	}

	err = s.repo.Update(ctx, current, func(updated *model.ArchiveRecord) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return apperrors.Timeout(ctxErr)
		}
		payload, perr := CanonicalizeRecord(updated)
		if perr != nil {
			return perr
		}
		return s.mirrors.WriteBoth(ctx, updated.ID, payload)
	})
	if err != nil {
		return nil, err
	}
	return current, nil
}

// Unarchive clears the archived flag and rewrites both mirrors.
func (s *Service) Unarchive(ctx context.Context, principalID uuid.UUID, id uuid.UUID) (rec *model.ArchiveRecord, err error) {
	started := s.clock.Now()
	defer func() { s.logAccess(ctx, principalID, model.ArchiveActionUnarchive, &id, nil, started, err) }()

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("archive record", err)
		}
		return nil, err
	}

	current.AssessmentData, err = setArchivedFlag(current.AssessmentData, false)
	if err != nil {
		return nil, err
	}

	err = s.repo.Update(ctx, current, func(updated *model.ArchiveRecord) error {
		payload, perr := CanonicalizeRecord(updated)
		if perr != nil {
			return perr
		}
		return s.mirrors.WriteBoth(ctx, updated.ID, payload)
	})
	if err != nil {
		return nil, err
	}
	return current, nil
}

// Get serves a record from the relational store and logs the access.
func (s *Service) Get(ctx context.Context, principalID uuid.UUID, id uuid.UUID) (rec *model.ArchiveRecord, err error) {
	started := s.clock.Now()
	defer func() { s.logAccess(ctx, principalID, model.ArchiveActionView, &id, nil, started, err) }()

	rec, err = s.repo.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("archive record", err)
	}
	return rec, err
}

// List searches records with the caller's filters, capped at the
// configured page size.
func (s *Service) List(ctx context.Context, principalID uuid.UUID, filter *model.ArchiveFilter) (records []*model.ArchiveRecord, err error) {
	started := s.clock.Now()
	params, _ := json.Marshal(filter)
	defer func() { s.logAccess(ctx, principalID, model.ArchiveActionSearch, nil, params, started, err) }()

	if filter.Limit <= 0 || filter.Limit > s.listMaxPage {
		filter.Limit = s.listMaxPage
	}
	return s.repo.List(ctx, filter)
}

// Export returns the canonical payload bytes for out-of-band use.
func (s *Service) Export(ctx context.Context, principalID uuid.UUID, id uuid.UUID) (payload []byte, err error) {
	started := s.clock.Now()
	defer func() { s.logAccess(ctx, principalID, model.ArchiveActionExport, &id, nil, started, err) }()

	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("archive record", err)
		}
		return nil, err
	}
	return CanonicalizeRecord(rec)
}

// Logs lists access log entries.
func (s *Service) Logs(ctx context.Context, filter *model.ArchiveLogFilter) ([]*model.ArchiveAccessLog, error) {
	return s.logRepo.List(ctx, filter)
}

func (s *Service) checkSpecialization(ctx context.Context, doctorID uuid.UUID, specialization string) error {
	doctor, err := s.userRepo.Get(ctx, doctorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("doctor", err)
		}
		return err
	}
	if !doctor.IsApproved {
		return apperrors.New(apperrors.CodeSpecializationMismatch, "doctor is not approved", nil)
	}
	if specialization != "" && !strings.Contains(strings.ToLower(doctor.Specialization), strings.ToLower(specialization)) {
		return apperrors.New(apperrors.CodeSpecializationMismatch, fmt.Sprintf("doctor specialization does not cover %q", specialization), nil)
	}
	return nil
}

// logAccess appends to the append-only access log. Logging failures
// never fail the operation.
func (s *Service) logAccess(ctx context.Context, principalID uuid.UUID, action model.ArchiveAction, recordID *uuid.UUID, queryParams []byte, started time.Time, opErr error) {
	outcome := model.ArchiveOutcomeSuccess
	var errorCode *string
	if opErr != nil {
		outcome = model.ArchiveOutcomeFailure
		code := string(apperrors.AsAppError(opErr).Code)
		errorCode = &code
	}

	entry := &model.ArchiveAccessLog{
		PrincipalID: principalID,
		Action:      action,
		RecordID:    recordID,
		QueryParams: queryParams,
		DurationMS:  s.clock.Now().Sub(started).Milliseconds(),
		AccessedAt:  started,
		Outcome:     outcome,
		ErrorCode:   errorCode,
	}
	if err := s.logRepo.Create(context.WithoutCancel(ctx), entry); err != nil && s.logger != nil {
		s.logger.Error().Err(err).Str("action", string(action)).Msg("failed to append archive access log")
	}
	if s.metrics != nil {
		s.metrics.ArchiveAccessTotal.WithLabelValues(string(action), string(outcome)).Inc()
	}
}

func recID(rec *model.ArchiveRecord) *uuid.UUID {
	if rec == nil {
		return nil
	}
	return &rec.ID
}

// setArchivedFlag rewrites assessment_data with the archived marker.
func setArchivedFlag(data json.RawMessage, archived bool) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc map[string]interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	doc["archived"] = archived
	return json.Marshal(doc)
}

func isArchived(data json.RawMessage) (bool, error) {
	var doc struct {
		Archived bool `json:"archived"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return false, fmt.Errorf("failed to read archived flag: %w", err)
	}
	return doc.Archived, nil
}
