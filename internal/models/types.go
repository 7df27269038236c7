package models

type StepStatus string

const (
	StatusLocked    StepStatus = "locked"
	StatusUnlocked  StepStatus = "unlocked"
	StatusCompleted StepStatus = "completed"
)

func (s StepStatus) Valid() bool {
	switch s {
	case StatusLocked, StatusUnlocked, StatusCompleted:
		return true
	default:
		return false
	}
}
