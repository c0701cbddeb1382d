// Package mock provides an in-memory implementation of the storage
// interfaces for testing. It mirrors the semantics of the PostgreSQL
// backend, including the one-record-per-day uniqueness guarantee.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jsvoboda/rollcall/internal/database"
)

type attendanceKey struct {
	tenant  uuid.UUID
	student uuid.UUID
	day     string
}

type templateKey struct {
	tenant uuid.UUID
	roll   string
}

// Store is an in-memory database.Store. The zero value is not usable;
// create instances with NewStore.
type Store struct {
	mu         sync.Mutex
	loc        *time.Location
	now        func() time.Time
	teachers   map[string]*database.Teacher
	templates  map[templateKey]*database.Student
	attendance map[attendanceKey]*database.AttendanceRecord
	nextID     int64

	// Error injection
	ResolveTenantError  error
	CreateTeacherError  error
	GetTeacherError     error
	TouchLoginError     error
	UpsertTemplateError error
	ListTemplatesError  error
	GetStudentError     error
	RecordError         error
	DeleteError         error
	ClearError          error
	QueryError          error
}

// NewStore creates an empty mock store using the local timezone.
func NewStore() *Store {
	return &Store{
		loc:        time.Local,
		now:        time.Now,
		teachers:   make(map[string]*database.Teacher),
		templates:  make(map[templateKey]*database.Student),
		attendance: make(map[attendanceKey]*database.AttendanceRecord),
	}
}

// SetClock overrides the store's notion of "now" for DeleteToday/ClearToday.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SetTimezone overrides the day-bucket reference timezone.
func (s *Store) SetTimezone(loc *time.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loc = loc
}

func (s *Store) ResolveTenant(ctx context.Context, email string) (uuid.UUID, error) {
	if s.ResolveTenantError != nil {
		return uuid.Nil, s.ResolveTenantError
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.teachers[email]; ok {
		return t.ID, nil
	}
	t := &database.Teacher{ID: uuid.New(), Email: email, CreatedAt: s.now()}
	s.teachers[email] = t
	return t.ID, nil
}

func (s *Store) CreateTeacher(ctx context.Context, name, email, passwordHash string) (*database.Teacher, error) {
	if s.CreateTeacherError != nil {
		return nil, s.CreateTeacherError
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.teachers[email]; ok {
		return nil, database.ErrDuplicateEmail
	}
	t := &database.Teacher{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    s.now(),
	}
	s.teachers[email] = t
	return t, nil
}

func (s *Store) GetTeacherByEmail(ctx context.Context, email string) (*database.Teacher, error) {
	if s.GetTeacherError != nil {
		return nil, s.GetTeacherError
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.teachers[email]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (s *Store) TouchLogin(ctx context.Context, id uuid.UUID) error {
	if s.TouchLoginError != nil {
		return s.TouchLoginError
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.teachers {
		if t.ID == id {
			now := s.now()
			t.LastLogin = &now
			t.SessionsCount++
			return nil
		}
	}
	return database.ErrNotFound
}

func (s *Store) UpsertTemplate(ctx context.Context, tenantID uuid.UUID, roll, name string, embedding []float32) (*database.Student, error) {
	if s.UpsertTemplateError != nil {
		return nil, s.UpsertTemplateError
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := templateKey{tenant: tenantID, roll: roll}
	vec := make([]float32, len(embedding))
	copy(vec, embedding)

	if existing, ok := s.templates[key]; ok {
		existing.Name = name
		existing.Embedding = vec
		existing.RegisteredAt = s.now()
		copied := *existing
		return &copied, nil
	}

	st := &database.Student{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Roll:         roll,
		Name:         name,
		Embedding:    vec,
		RegisteredAt: s.now(),
	}
	s.templates[key] = st
	copied := *st
	return &copied, nil
}

func (s *Store) ListTemplates(ctx context.Context, tenantID uuid.UUID) ([]database.Student, error) {
	if s.ListTemplatesError != nil {
		return nil, s.ListTemplatesError
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var students []database.Student
	for key, st := range s.templates {
		if key.tenant == tenantID {
			students = append(students, *st)
		}
	}
	sort.Slice(students, func(i, j int) bool { return students[i].Roll < students[j].Roll })
	return students, nil
}

func (s *Store) GetStudentByRoll(ctx context.Context, tenantID uuid.UUID, roll string) (*database.Student, error) {
	if s.GetStudentError != nil {
		return nil, s.GetStudentError
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.templates[templateKey{tenant: tenantID, roll: roll}]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *st
	return &copied, nil
}

func (s *Store) RecordIfAbsent(ctx context.Context, tenantID, studentID uuid.UUID, name, roll string, at time.Time) (database.Outcome, error) {
	if s.RecordError != nil {
		return 0, s.RecordError
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := attendanceKey{tenant: tenantID, student: studentID, day: database.DayKey(at, s.loc)}
	if _, ok := s.attendance[key]; ok {
		return database.AlreadyExists, nil
	}

	s.nextID++
	s.attendance[key] = &database.AttendanceRecord{
		ID:         s.nextID,
		TenantID:   tenantID,
		StudentID:  studentID,
		Name:       name,
		Roll:       roll,
		RecordedAt: at,
	}
	return database.Created, nil
}

func (s *Store) DeleteToday(ctx context.Context, tenantID, studentID uuid.UUID) (int, error) {
	if s.DeleteError != nil {
		return 0, s.DeleteError
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := attendanceKey{tenant: tenantID, student: studentID, day: database.DayKey(s.now(), s.loc)}
	if _, ok := s.attendance[key]; !ok {
		return 0, nil
	}
	delete(s.attendance, key)
	return 1, nil
}

func (s *Store) ClearToday(ctx context.Context, tenantID uuid.UUID) (int, error) {
	if s.ClearError != nil {
		return 0, s.ClearError
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	today := database.DayKey(s.now(), s.loc)
	count := 0
	for key := range s.attendance {
		if key.tenant == tenantID && key.day >= today {
			delete(s.attendance, key)
			count++
		}
	}
	return count, nil
}

func (s *Store) QueryRange(ctx context.Context, tenantID uuid.UUID, start, end time.Time) ([]database.AttendanceRecord, error) {
	if s.QueryError != nil {
		return nil, s.QueryError
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []database.AttendanceRecord
	for key, rec := range s.attendance {
		if key.tenant != tenantID {
			continue
		}
		if rec.RecordedAt.Before(start) || rec.RecordedAt.After(end) {
			continue
		}
		records = append(records, *rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].RecordedAt.Before(records[j].RecordedAt) })
	return records, nil
}
