package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oakgrove/gradepipe/internal/domain"
)

// NewMemoryStores builds a full in-memory store set. Each store is
// independently mutex-guarded and copies documents on the way in and out so
// callers never share memory with the store.
func NewMemoryStores() Stores {
	return Stores{
		Artifacts: NewMemoryArtifacts(),
		Pages:     NewMemoryPages(),
		Scripts:   NewMemoryScripts(),
		Exams:     NewMemoryExams(),
		Records:   NewMemoryRecords(),
	}
}

// MemoryArtifacts is an in-memory ArtifactStore.
type MemoryArtifacts struct {
	mu   sync.RWMutex
	docs map[string]domain.UploadedArtifact
}

// NewMemoryArtifacts creates an empty artifact store.
func NewMemoryArtifacts() *MemoryArtifacts {
	return &MemoryArtifacts{docs: make(map[string]domain.UploadedArtifact)}
}

var _ ArtifactStore = (*MemoryArtifacts)(nil)

func (m *MemoryArtifacts) FindByID(_ context.Context, id string) (*domain.UploadedArtifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrArtifactNotFound
	}
	return &a, nil
}

func (m *MemoryArtifacts) Insert(_ context.Context, a *domain.UploadedArtifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	now := time.Now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	m.docs[cp.ID] = cp
	return nil
}

func (m *MemoryArtifacts) SetStatus(_ context.Context, id string, status domain.ArtifactStatus, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.docs[id]
	if !ok {
		return domain.ErrArtifactNotFound
	}
	a.Status = status
	if status == domain.ArtifactFailed {
		a.FailureReason = reason
	} else {
		a.FailureReason = ""
	}
	a.UpdatedAt = time.Now().UTC()
	m.docs[id] = a
	return nil
}

func (m *MemoryArtifacts) SetPageCount(_ context.Context, id string, pages int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.docs[id]
	if !ok {
		return domain.ErrArtifactNotFound
	}
	a.PageCount = pages
	a.UpdatedAt = time.Now().UTC()
	m.docs[id] = a
	return nil
}

// MemoryPages is an in-memory PageStore.
type MemoryPages struct {
	mu   sync.RWMutex
	docs map[string]map[int]domain.PageRecognitionResult
}

// NewMemoryPages creates an empty page store.
func NewMemoryPages() *MemoryPages {
	return &MemoryPages{docs: make(map[string]map[int]domain.PageRecognitionResult)}
}

var _ PageStore = (*MemoryPages)(nil)

// Insert keeps the first result written for a page; page results are
// immutable and duplicate recognition deliveries are absorbed here.
func (m *MemoryPages) Insert(_ context.Context, p *domain.PageRecognitionResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byPage, ok := m.docs[p.ArtifactID]
	if !ok {
		byPage = make(map[int]domain.PageRecognitionResult)
		m.docs[p.ArtifactID] = byPage
	}
	if _, exists := byPage[p.PageNumber]; exists {
		return nil
	}
	cp := *p
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	byPage[cp.PageNumber] = cp
	return nil
}

func (m *MemoryPages) FindByArtifact(_ context.Context, artifactID string) ([]domain.PageRecognitionResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byPage := m.docs[artifactID]
	out := make([]domain.PageRecognitionResult, 0, len(byPage))
	for _, p := range byPage {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PageNumber < out[j].PageNumber })
	return out, nil
}

func (m *MemoryPages) Exists(_ context.Context, artifactID string, pageNumber int) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.docs[artifactID][pageNumber]
	return ok, nil
}

// MemoryScripts is an in-memory ScriptStore enforcing the per-artifact
// uniqueness constraint the way a real store would with a unique index.
type MemoryScripts struct {
	mu         sync.RWMutex
	docs       map[string]domain.Script
	byArtifact map[string]string
}

// NewMemoryScripts creates an empty script store.
func NewMemoryScripts() *MemoryScripts {
	return &MemoryScripts{
		docs:       make(map[string]domain.Script),
		byArtifact: make(map[string]string),
	}
}

var _ ScriptStore = (*MemoryScripts)(nil)

func (m *MemoryScripts) FindByID(_ context.Context, id string) (*domain.Script, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrScriptNotFound
	}
	return &s, nil
}

func (m *MemoryScripts) FindByArtifact(_ context.Context, artifactID string) (*domain.Script, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byArtifact[artifactID]
	if !ok {
		return nil, domain.ErrScriptNotFound
	}
	s := m.docs[id]
	return &s, nil
}

func (m *MemoryScripts) Insert(_ context.Context, s *domain.Script) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byArtifact[s.ArtifactID]; exists {
		return domain.ErrDuplicateScript
	}
	cp := *s
	now := time.Now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	m.docs[cp.ID] = cp
	m.byArtifact[cp.ArtifactID] = cp.ID
	return nil
}

func (m *MemoryScripts) SetStatus(_ context.Context, id string, status domain.ScriptStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.docs[id]
	if !ok {
		return domain.ErrScriptNotFound
	}
	s.Status = status
	s.UpdatedAt = time.Now().UTC()
	m.docs[id] = s
	return nil
}

// MemoryExams is an in-memory ExamStore seeded by tests and local workers.
type MemoryExams struct {
	mu   sync.RWMutex
	docs map[string]domain.Exam
}

// NewMemoryExams creates an empty exam store.
func NewMemoryExams() *MemoryExams {
	return &MemoryExams{docs: make(map[string]domain.Exam)}
}

var _ ExamStore = (*MemoryExams)(nil)

func (m *MemoryExams) FindByID(_ context.Context, id string) (*domain.Exam, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrExamNotFound
	}
	return &e, nil
}

// Seed stores an exam definition.
func (m *MemoryExams) Seed(e domain.Exam) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[e.ID] = e
}

// MemoryRecords is an in-memory RecordStore keyed by idempotency key.
type MemoryRecords struct {
	mu   sync.RWMutex
	docs map[string]domain.EvaluationRecord
}

// NewMemoryRecords creates an empty record store.
func NewMemoryRecords() *MemoryRecords {
	return &MemoryRecords{docs: make(map[string]domain.EvaluationRecord)}
}

var _ RecordStore = (*MemoryRecords)(nil)

func (m *MemoryRecords) FindByKey(_ context.Context, idempotencyKey string) (*domain.EvaluationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.docs[idempotencyKey]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return &r, nil
}

func (m *MemoryRecords) FindByScript(_ context.Context, scriptID string, opts ListOptions) ([]domain.EvaluationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.EvaluationRecord
	for _, r := range m.docs {
		if r.ScriptID == scriptID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if opts.SortField == "questionId" {
			if opts.SortAsc {
				return out[i].QuestionID < out[j].QuestionID
			}
			return out[i].QuestionID > out[j].QuestionID
		}
		// Default: newest first.
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if opts.Skip > 0 {
		if opts.Skip >= len(out) {
			return nil, nil
		}
		out = out[opts.Skip:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *MemoryRecords) Insert(_ context.Context, r *domain.EvaluationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	now := time.Now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	m.docs[cp.IdempotencyKey] = cp
	return nil
}

func (m *MemoryRecords) Update(_ context.Context, r *domain.EvaluationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.docs[r.IdempotencyKey]
	if !ok {
		return domain.ErrRecordNotFound
	}
	cp := *r
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = time.Now().UTC()
	m.docs[cp.IdempotencyKey] = cp
	return nil
}
