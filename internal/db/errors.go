package db

import "errors"

var (
	ErrUnknownStep     = errors.New("unknown onboarding step")
	ErrStepNotUnlocked = errors.New("step is not unlocked")
)
