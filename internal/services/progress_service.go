package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/ad/go-onboarding-journey/internal/db"
	"github.com/ad/go-onboarding-journey/internal/models"
	"github.com/go-playground/validator/v10"
)

var ErrInvalidProgram = errors.New("invalid onboarding program")

// JourneyReport is what the backend serves for one student.
type JourneyReport struct {
	Steps    []models.StepPayload   `json:"steps"`
	Progress models.ProgressSummary `json:"progress"`
}

type CompletionResult struct {
	StepID    int
	XPAwarded int
	Message   string
	NextStep  *models.StepPayload
}

type ProgressService struct {
	stepRepo     *db.StepRepository
	progressRepo *db.ProgressRepository
	validate     *validator.Validate
}

func NewProgressService(stepRepo *db.StepRepository, progressRepo *db.ProgressRepository) *ProgressService {
	return &ProgressService{
		stepRepo:     stepRepo,
		progressRepo: progressRepo,
		validate:     validator.New(),
	}
}

func (s *ProgressService) Program(ctx context.Context) ([]*models.StepDefinition, error) {
	return s.stepRepo.GetAll(ctx)
}

// LoadProgram validates a program and makes it the catalog. Ids must run
// 1..n; catalog steps above n are dropped.
func (s *ProgressService) LoadProgram(ctx context.Context, program []models.StepDefinition) error {
	if len(program) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidProgram)
	}
	sorted := make([]models.StepDefinition, len(program))
	copy(sorted, program)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for i := range sorted {
		if err := s.validate.Struct(sorted[i]); err != nil {
			return fmt.Errorf("%w: step %d: %v", ErrInvalidProgram, sorted[i].ID, err)
		}
		if sorted[i].ID != i+1 {
			return fmt.Errorf("%w: expected step id %d, got %d", ErrInvalidProgram, i+1, sorted[i].ID)
		}
	}

	if err := s.stepRepo.ReplaceProgram(ctx, sorted); err != nil {
		return fmt.Errorf("replace program: %w", err)
	}
	log.Printf("[PROGRESS] loaded program with %d steps", len(sorted))
	return nil
}

// GetProgress initializes the student on first sight and reports their steps
// together with the derived summary.
func (s *ProgressService) GetProgress(ctx context.Context, studentID string) (*JourneyReport, error) {
	if err := s.progressRepo.EnsureStudent(ctx, studentID); err != nil {
		return nil, fmt.Errorf("ensure student %s: %w", studentID, err)
	}

	steps, err := s.progressRepo.GetStudentSteps(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("load steps for %s: %w", studentID, err)
	}

	snapshot, err := models.FromServerPayload(steps)
	if err != nil {
		return nil, fmt.Errorf("stored progress for %s: %w", studentID, err)
	}

	return &JourneyReport{
		Steps:    snapshot.Payload(),
		Progress: snapshot.Summary(),
	}, nil
}

// ResetProgress starts the student's journey over and returns the fresh report.
func (s *ProgressService) ResetProgress(ctx context.Context, studentID string) (*JourneyReport, error) {
	if err := s.progressRepo.Reset(ctx, studentID); err != nil {
		return nil, fmt.Errorf("reset %s: %w", studentID, err)
	}
	log.Printf("[PROGRESS] student=%s progress reset", studentID)
	return s.GetProgress(ctx, studentID)
}

func (s *ProgressService) CompleteStep(ctx context.Context, studentID string, stepID int) (*CompletionResult, error) {
	if err := s.progressRepo.EnsureStudent(ctx, studentID); err != nil {
		return nil, fmt.Errorf("ensure student %s: %w", studentID, err)
	}

	step, err := s.stepRepo.GetByID(ctx, stepID)
	if err != nil {
		return nil, err
	}

	xp, err := s.progressRepo.CompleteStep(ctx, studentID, stepID)
	if err != nil {
		return nil, err
	}
	log.Printf("[PROGRESS] student=%s completed step=%d xp=%d", studentID, stepID, xp)

	report, err := s.GetProgress(ctx, studentID)
	if err != nil {
		return nil, err
	}

	return &CompletionResult{
		StepID:    stepID,
		XPAwarded: xp,
		Message:   fmt.Sprintf("Step %d (%s) completed!", stepID, step.Title),
		NextStep:  report.Progress.CurrentStep,
	}, nil
}
