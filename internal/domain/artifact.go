// Package domain defines the core value types of the exam-script evaluation
// pipeline: uploaded artifacts, page recognition results, scripts, exam
// definitions with rubrics, and the evaluation records produced by the agent
// chain. Types carry validator tags and expose Validate methods so activity
// boundaries can fail fast on malformed data.
package domain

import (
	"fmt"
	"time"
)

// ArtifactStatus tracks an uploaded artifact through the pipeline.
// Transitions are monotonic except FAILED, which is reachable from any
// non-terminal state.
type ArtifactStatus string

const (
	ArtifactUploaded    ArtifactStatus = "UPLOADED"
	ArtifactProcessing  ArtifactStatus = "PROCESSING"
	ArtifactOCRComplete ArtifactStatus = "OCR_COMPLETE"
	ArtifactSegmented   ArtifactStatus = "SEGMENTED"
	ArtifactEvaluating  ArtifactStatus = "EVALUATING"
	ArtifactEvaluated   ArtifactStatus = "EVALUATED"
	ArtifactFlagged     ArtifactStatus = "FLAGGED"
	ArtifactFailed      ArtifactStatus = "FAILED"
)

// StudentMeta carries the student identity captured at upload time.
// The pipeline treats it as opaque; it is copied verbatim onto the Script.
type StudentMeta struct {
	StudentID   string `json:"studentId" validate:"required"`
	StudentName string `json:"studentName,omitempty"`
	RollNumber  string `json:"rollNumber,omitempty"`
}

// UploadedArtifact is the raw upload a submitter handed to the system.
// It is the root document of one pipeline execution; every downstream
// document references it by ID.
type UploadedArtifact struct {
	ID            string         `json:"id" validate:"required"`
	InstitutionID string         `json:"institutionId" validate:"required"`
	ExamID        string         `json:"examId" validate:"required"`
	BlobKey       string         `json:"blobKey" validate:"required"`
	Filename      string         `json:"filename"`
	MimeType      string         `json:"mimeType"`
	SizeBytes     int64          `json:"sizeBytes" validate:"gte=0"`
	PageCount     int            `json:"pageCount" validate:"gte=0"`
	StudentMeta   StudentMeta    `json:"studentMeta"`
	Status        ArtifactStatus `json:"status" validate:"required"`
	FailureReason string         `json:"failureReason,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// Validate checks structural integrity of the artifact document.
func (a *UploadedArtifact) Validate() error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("invalid uploaded artifact: %w", err)
	}
	return nil
}

// IsPDF reports whether the artifact needs page splitting before recognition.
func (a *UploadedArtifact) IsPDF() bool {
	return a.MimeType == "application/pdf"
}
