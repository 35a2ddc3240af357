package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ArchiveRecord is an archived patient assessment. The canonical
// serialization of the record must match the bytes in both mirror
// directories whenever assessment_data.archived is true.
type ArchiveRecord struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	PatientID        uuid.UUID       `json:"patient_id" db:"patient_id"`
	PatientName      string          `json:"patient_name" db:"patient_name"`
	AssessmentType   string          `json:"assessment_type" db:"assessment_type"`
	MedicalCondition string          `json:"medical_condition" db:"medical_condition"`
	HistorySummary   string          `json:"history_summary" db:"history_summary"`
	Diagnostics      json.RawMessage `json:"diagnostics" db:"diagnostics"`
	AssessmentData   json.RawMessage `json:"assessment_data" db:"assessment_data"`
	LastAssessedAt   time.Time       `json:"last_assessed_at" db:"last_assessed_at"`
	HospitalLabel    string          `json:"hospital_label" db:"hospital_label"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

type ArchiveAction string

const (
	ArchiveActionSearch    ArchiveAction = "search"
	ArchiveActionView      ArchiveAction = "view"
	ArchiveActionExport    ArchiveAction = "export"
	ArchiveActionCreate    ArchiveAction = "create"
	ArchiveActionUpdate    ArchiveAction = "update"
	ArchiveActionUnarchive ArchiveAction = "unarchive"
)

type ArchiveOutcome string

const (
	ArchiveOutcomeSuccess ArchiveOutcome = "success"
	ArchiveOutcomeFailure ArchiveOutcome = "failure"
)

// ArchiveAccessLog is append-only.
type ArchiveAccessLog struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	PrincipalID uuid.UUID       `json:"principal_id" db:"principal_id"`
	Action      ArchiveAction   `json:"action" db:"action"`
	RecordID    *uuid.UUID      `json:"record_id,omitempty" db:"record_id"`
	QueryParams json.RawMessage `json:"query_params,omitempty" db:"query_params"`
	DurationMS  int64           `json:"duration_ms" db:"duration_ms"`
	AccessedAt  time.Time       `json:"accessed_at" db:"accessed_at"`
	Outcome     ArchiveOutcome  `json:"outcome" db:"outcome"`
	ErrorCode   *string         `json:"error_code,omitempty" db:"error_code"`
}

type CreateArchiveRequest struct {
	PatientID        uuid.UUID       `json:"patient_id" binding:"required"`
	PatientName      string          `json:"patient_name" binding:"required,max=256"`
	AssessmentType   string          `json:"assessment_type" binding:"required,max=128"`
	MedicalCondition string          `json:"medical_condition" binding:"max=512"`
	HistorySummary   string          `json:"history_summary"`
	Diagnostics      json.RawMessage `json:"diagnostics"`
	AssessmentData   json.RawMessage `json:"assessment_data" binding:"required"`
	LastAssessedAt   time.Time       `json:"last_assessed_at"`
	HospitalLabel    string          `json:"hospital_label" binding:"max=128"`
	DoctorID         *uuid.UUID      `json:"doctor_id"`
	Specialization   string          `json:"specialization"`
	Signature        string          `json:"signature"`
}

type UpdateArchiveRequest struct {
	AssessmentType   *string         `json:"assessment_type"`
	MedicalCondition *string         `json:"medical_condition"`
	HistorySummary   *string         `json:"history_summary"`
	Diagnostics      json.RawMessage `json:"diagnostics"`
	AssessmentData   json.RawMessage `json:"assessment_data"`
	LastAssessedAt   *time.Time      `json:"last_assessed_at"`
}

type ArchiveFilter struct {
	PatientID      *uuid.UUID
	PatientName    string
	Start          *time.Time
	End            *time.Time
	AssessmentType string
	Condition      string
	Limit          int
	Offset         int
}

type ArchiveLogFilter struct {
	PrincipalID *uuid.UUID
	PatientID   *uuid.UUID
	RecordID    *uuid.UUID
	Limit       int
}
