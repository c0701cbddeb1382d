// Package recognition glues the embedding provider, the matcher and the
// attendance ledger into the register and recognize flows.
package recognition

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jsvoboda/rollcall/internal/constants"
	"github.com/jsvoboda/rollcall/internal/database"
	"github.com/jsvoboda/rollcall/internal/embedding"
	"github.com/jsvoboda/rollcall/internal/matcher"
)

var (
	// ErrNoRoster means the tenant has no registered templates. Reported
	// before the matcher is ever invoked.
	ErrNoRoster = errors.New("no students registered")

	// ErrNoFace means the image decoded fine but contained no detectable face.
	ErrNoFace = errors.New("no face detected in image")
)

// NoMatchError is returned when no candidate clears the confidence gate.
// The best confidence seen is kept for diagnostics.
type NoMatchError struct {
	BestConfidence float64
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no matching student (best confidence %.3f)", e.BestConfidence)
}

// Embedder detects faces and computes their embeddings.
type Embedder interface {
	DetectAndEmbed(ctx context.Context, imageData []byte) ([]embedding.Face, error)
}

// Result is the outcome of a successful recognition.
type Result struct {
	StudentID  uuid.UUID
	Name       string
	Roll       string
	Confidence float64
	Status     string // "marked" or "already_marked"
}

// Service orchestrates recognition and registration for one deployment.
// Stateless apart from its injected collaborators, safe for concurrent use.
type Service struct {
	store     database.Store
	embedder  Embedder
	threshold float64
	log       *zap.Logger
	now       func() time.Time
}

// NewService creates a recognition service. threshold is the matcher
// acceptance gate (config.Matching.Threshold).
func NewService(store database.Store, embedder Embedder, threshold float64, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:     store,
		embedder:  embedder,
		threshold: threshold,
		log:       log,
		now:       time.Now,
	}
}

// SetClock overrides the service clock, for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// embedProbe downscales the image and runs face detection on it.
func (s *Service) embedProbe(ctx context.Context, imageData []byte) ([]embedding.Face, error) {
	resized, err := embedding.ResizeImage(imageData, constants.MaxImageSize)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, embedding.ErrImageDecode)
	}

	faces, err := s.embedder.DetectAndEmbed(ctx, resized)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}
	return faces, nil
}

// Register extracts the face from the image and stores it as the template
// for (tenantID, roll), replacing any previous registration for that roll.
// When the image contains several faces, the first detected one is used.
func (s *Service) Register(ctx context.Context, tenantID uuid.UUID, name, roll string, imageData []byte) (*database.Student, error) {
	faces, err := s.embedProbe(ctx, imageData)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		return nil, ErrNoFace
	}

	student, err := s.store.UpsertTemplate(ctx, tenantID, roll, name, faces[0].Embedding)
	if err != nil {
		return nil, fmt.Errorf("store template: %w", err)
	}

	s.log.Info("student registered",
		zap.String("tenant_id", tenantID.String()),
		zap.String("roll", roll),
		zap.Int("faces_detected", len(faces)))

	return student, nil
}

// Recognize matches the probe image against the tenant's roster and, on a
// match, records attendance for today idempotently. Candidates are loaded
// for the caller's tenant only; the returned student can therefore never
// belong to another tenant.
func (s *Service) Recognize(ctx context.Context, tenantID uuid.UUID, imageData []byte) (*Result, error) {
	roster, err := s.store.ListTemplates(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	if len(roster) == 0 {
		return nil, ErrNoRoster
	}

	faces, err := s.embedProbe(ctx, imageData)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		return nil, ErrNoFace
	}

	candidates := make([]matcher.Candidate, len(roster))
	for i, st := range roster {
		candidates[i] = matcher.Candidate{
			ID:        st.ID.String(),
			Name:      st.Name,
			Roll:      st.Roll,
			Embedding: st.Embedding,
		}
	}

	// Commonly exactly one face; with several, the first accepted match wins.
	best := &NoMatchError{BestConfidence: math.Inf(-1)}
	for _, face := range faces {
		match, err := matcher.Match(face.Embedding, candidates, s.threshold)
		if err != nil {
			return nil, fmt.Errorf("match probe: %w", err)
		}

		if !match.Matched {
			if match.Confidence > best.BestConfidence {
				best.BestConfidence = match.Confidence
			}
			continue
		}

		return s.mark(ctx, tenantID, roster[match.Index], match.Confidence)
	}

	s.log.Info("no matching student",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("roster_size", len(roster)),
		zap.Float64("best_confidence", best.BestConfidence))

	return nil, best
}

// mark records attendance for the matched student. The ledger decides
// whether today's record already exists.
func (s *Service) mark(ctx context.Context, tenantID uuid.UUID, st database.Student, confidence float64) (*Result, error) {
	outcome, err := s.store.RecordIfAbsent(ctx, tenantID, st.ID, st.Name, st.Roll, s.now())
	if err != nil {
		return nil, fmt.Errorf("record attendance: %w", err)
	}

	status := "marked"
	if outcome == database.AlreadyExists {
		status = "already_marked"
	}

	s.log.Info("student recognized",
		zap.String("tenant_id", tenantID.String()),
		zap.String("roll", st.Roll),
		zap.Float64("confidence", confidence),
		zap.String("status", status))

	return &Result{
		StudentID:  st.ID,
		Name:       st.Name,
		Roll:       st.Roll,
		Confidence: confidence,
		Status:     status,
	}, nil
}
