package models

import "fmt"

// ProgressSnapshot is an immutable view of a student's onboarding progress at
// one point in time. It is never mutated after construction; a newer snapshot
// replaces it wholesale.
type ProgressSnapshot struct {
	steps     []StepRecord
	completed int
	totalXP   int
}

// FromServerPayload validates raw steps and builds a snapshot. Steps must be
// ordered with contiguous ids starting at 1 and form a single frontier:
// completed steps, then at most one unlocked step, then locked steps.
func FromServerPayload(payload []StepPayload) (*ProgressSnapshot, error) {
	steps := make([]StepRecord, 0, len(payload))
	for i, p := range payload {
		rec, err := NewStepRecord(p)
		if err != nil {
			return nil, err
		}
		if rec.ID != i+1 {
			return nil, fmt.Errorf("%w: expected step id %d at position %d, got %d", ErrMalformedSnapshot, i+1, i, rec.ID)
		}
		steps = append(steps, rec)
	}

	if err := checkFrontier(steps); err != nil {
		return nil, err
	}

	s := &ProgressSnapshot{steps: steps}
	for _, step := range steps {
		if step.IsCompleted() {
			s.completed++
			s.totalXP += step.XP
		}
	}
	return s, nil
}

func checkFrontier(steps []StepRecord) error {
	unlockedID := 0
	lockedID := 0
	for _, step := range steps {
		switch step.Status {
		case StatusCompleted:
			if unlockedID != 0 {
				return fmt.Errorf("%w: step %d is completed after unlocked step %d", ErrMalformedSnapshot, step.ID, unlockedID)
			}
			if lockedID != 0 {
				return fmt.Errorf("%w: step %d is completed after locked step %d", ErrMalformedSnapshot, step.ID, lockedID)
			}
		case StatusUnlocked:
			if unlockedID != 0 {
				return fmt.Errorf("%w: steps %d and %d are both unlocked", ErrMalformedSnapshot, unlockedID, step.ID)
			}
			if lockedID != 0 {
				return fmt.Errorf("%w: step %d is unlocked after locked step %d", ErrMalformedSnapshot, step.ID, lockedID)
			}
			unlockedID = step.ID
		case StatusLocked:
			if lockedID == 0 {
				lockedID = step.ID
			}
		}
	}
	return nil
}

// Steps returns a copy of the ordered steps.
func (s *ProgressSnapshot) Steps() []StepRecord {
	out := make([]StepRecord, len(s.steps))
	copy(out, s.steps)
	return out
}

func (s *ProgressSnapshot) Step(id int) (StepRecord, bool) {
	if id < 1 || id > len(s.steps) {
		return StepRecord{}, false
	}
	return s.steps[id-1], true
}

// CurrentStep returns the first unlocked step, falling back to the last step
// when nothing is unlocked. It reports false only for an empty snapshot.
func (s *ProgressSnapshot) CurrentStep() (StepRecord, bool) {
	if step, ok := s.UnlockedStep(); ok {
		return step, true
	}
	if len(s.steps) == 0 {
		return StepRecord{}, false
	}
	return s.steps[len(s.steps)-1], true
}

// UnlockedStep returns the step currently available for completion, if any.
func (s *ProgressSnapshot) UnlockedStep() (StepRecord, bool) {
	for _, step := range s.steps {
		if step.Status == StatusUnlocked {
			return step, true
		}
	}
	return StepRecord{}, false
}

func (s *ProgressSnapshot) Total() int {
	return len(s.steps)
}

func (s *ProgressSnapshot) CompletedCount() int {
	return s.completed
}

func (s *ProgressSnapshot) TotalXP() int {
	return s.totalXP
}

// Percentage is completed/total*100 rounded half up; 0 for an empty snapshot.
func (s *ProgressSnapshot) Percentage() int {
	total := len(s.steps)
	if total == 0 {
		return 0
	}
	return (s.completed*200 + total) / (2 * total)
}

func (s *ProgressSnapshot) IsFinished() bool {
	return len(s.steps) > 0 && s.completed == len(s.steps)
}

// Summary builds the aggregate block served alongside the steps. Its current
// step is the unlocked one only, nil once the journey is finished.
func (s *ProgressSnapshot) Summary() ProgressSummary {
	summary := ProgressSummary{
		Percentage: s.Percentage(),
		Completed:  s.completed,
		Total:      len(s.steps),
		TotalXP:    s.totalXP,
	}
	if step, ok := s.UnlockedStep(); ok {
		p := step.Payload()
		summary.CurrentStep = &p
	}
	return summary
}

// Payload returns the wire form of all steps.
func (s *ProgressSnapshot) Payload() []StepPayload {
	out := make([]StepPayload, len(s.steps))
	for i, step := range s.steps {
		out[i] = step.Payload()
	}
	return out
}
