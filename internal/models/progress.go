package models

// StepDefinition is a catalog entry of the onboarding program.
type StepDefinition struct {
	ID          int    `json:"id" validate:"gt=0"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Route       string `json:"route"`
	XPReward    int    `json:"xp_reward" validate:"gte=0"`
	Minutes     int    `json:"estimated_minutes" validate:"gte=0"`
	IsOptional  bool   `json:"is_optional"`
}

type ProgressSummary struct {
	Percentage  int          `json:"percentage"`
	Completed   int          `json:"completed"`
	Total       int          `json:"total"`
	TotalXP     int          `json:"total_xp"`
	CurrentStep *StepPayload `json:"current_step"`
}
