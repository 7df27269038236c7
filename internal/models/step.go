package models

import "fmt"

// StepPayload is a step as it travels over the wire.
type StepPayload struct {
	ID          int        `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Route       string     `json:"route,omitempty"`
	Status      StepStatus `json:"status"`
	XP          int        `json:"xp"`
	Minutes     int        `json:"minutes"`
	CompletedAt string     `json:"completed_at,omitempty"`
}

// StepRecord is a validated onboarding step. Values are comparable with ==.
type StepRecord struct {
	ID          int
	Title       string
	Description string
	Route       string
	Status      StepStatus
	XP          int
	Minutes     int
	CompletedAt string
}

func NewStepRecord(p StepPayload) (StepRecord, error) {
	if p.ID <= 0 {
		return StepRecord{}, fmt.Errorf("%w: non-positive id %d", ErrMalformedStep, p.ID)
	}
	if !p.Status.Valid() {
		return StepRecord{}, fmt.Errorf("%w: step %d has unknown status %q", ErrMalformedStep, p.ID, p.Status)
	}
	if p.XP < 0 {
		return StepRecord{}, fmt.Errorf("%w: step %d has negative xp %d", ErrMalformedStep, p.ID, p.XP)
	}
	if p.Minutes < 0 {
		return StepRecord{}, fmt.Errorf("%w: step %d has negative minutes %d", ErrMalformedStep, p.ID, p.Minutes)
	}

	return StepRecord{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Route:       p.Route,
		Status:      p.Status,
		XP:          p.XP,
		Minutes:     p.Minutes,
		CompletedAt: p.CompletedAt,
	}, nil
}

func (s StepRecord) Payload() StepPayload {
	return StepPayload{
		ID:          s.ID,
		Title:       s.Title,
		Description: s.Description,
		Route:       s.Route,
		Status:      s.Status,
		XP:          s.XP,
		Minutes:     s.Minutes,
		CompletedAt: s.CompletedAt,
	}
}

func (s StepRecord) IsCompleted() bool {
	return s.Status == StatusCompleted
}
