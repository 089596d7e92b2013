// Package store defines the document-store contracts the pipeline persists
// through, plus an in-memory implementation used by workers under test and
// local development. Persistence mechanics (indexes, real query languages)
// are deliberately behind these interfaces.
package store

import (
	"context"

	"github.com/oakgrove/gradepipe/internal/domain"
)

// ListOptions carries pagination and ordering for multi-document reads.
// SortField is a document field name; SortAsc false means descending.
type ListOptions struct {
	SortField string
	SortAsc   bool
	Skip      int
	Limit     int
}

// ArtifactStore persists uploaded artifacts. Updates stamp updatedAt.
type ArtifactStore interface {
	FindByID(ctx context.Context, id string) (*domain.UploadedArtifact, error)
	Insert(ctx context.Context, a *domain.UploadedArtifact) error
	// SetStatus updates the lifecycle status; reason is recorded only for
	// FAILED and cleared otherwise.
	SetStatus(ctx context.Context, id string, status domain.ArtifactStatus, reason string) error
	SetPageCount(ctx context.Context, id string, pages int) error
}

// PageStore persists immutable page recognition results.
type PageStore interface {
	// Insert stores a page result. A result already present for the same
	// (artifact id, page number) is kept and no error is returned;
	// duplicate recognition deliveries are absorbed here.
	Insert(ctx context.Context, p *domain.PageRecognitionResult) error
	// FindByArtifact returns all page results for the artifact ordered by
	// page number.
	FindByArtifact(ctx context.Context, artifactID string) ([]domain.PageRecognitionResult, error)
	// Exists reports whether a result is already stored for the page.
	Exists(ctx context.Context, artifactID string, pageNumber int) (bool, error)
}

// ScriptStore persists scripts and enforces the one-script-per-artifact
// uniqueness constraint.
type ScriptStore interface {
	FindByID(ctx context.Context, id string) (*domain.Script, error)
	// FindByArtifact returns the script materialized from the artifact, or
	// domain.ErrScriptNotFound.
	FindByArtifact(ctx context.Context, artifactID string) (*domain.Script, error)
	// Insert stores a new script. Returns domain.ErrDuplicateScript when a
	// script already exists for the same artifact id.
	Insert(ctx context.Context, s *domain.Script) error
	SetStatus(ctx context.Context, id string, status domain.ScriptStatus) error
}

// ExamStore reads exam definitions. Exams are authored elsewhere; the
// pipeline never writes them.
type ExamStore interface {
	FindByID(ctx context.Context, id string) (*domain.Exam, error)
}

// RecordStore persists evaluation records.
type RecordStore interface {
	// FindByKey returns the record with the given idempotency key, or
	// domain.ErrRecordNotFound.
	FindByKey(ctx context.Context, idempotencyKey string) (*domain.EvaluationRecord, error)
	// FindByScript returns records for a script, newest first unless opts
	// orders otherwise.
	FindByScript(ctx context.Context, scriptID string, opts ListOptions) ([]domain.EvaluationRecord, error)
	Insert(ctx context.Context, r *domain.EvaluationRecord) error
	// Update replaces the stored record matched by ID, stamping updatedAt.
	// Used for reviewer overrides.
	Update(ctx context.Context, r *domain.EvaluationRecord) error
}

// Stores bundles every store the pipeline activities need, so worker setup
// can hand a single value to constructors.
type Stores struct {
	Artifacts ArtifactStore
	Pages     PageStore
	Scripts   ScriptStore
	Exams     ExamStore
	Records   RecordStore
}
