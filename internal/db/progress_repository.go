package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ad/go-onboarding-journey/internal/models"
)

type ProgressRepository struct {
	queue *Queue
	now   func() time.Time
}

func NewProgressRepository(queue *Queue) *ProgressRepository {
	return &ProgressRepository{queue: queue, now: time.Now}
}

// EnsureStudent makes sure the student has a progress row for every catalog
// step. Missing rows start locked; when nothing is unlocked, the first step
// that is not completed gets unlocked. Steps added to the program later are
// picked up the same way.
func (r *ProgressRepository) EnsureStudent(ctx context.Context, studentID string) error {
	_, err := r.queue.Execute(ctx, func(db *sql.DB) (any, error) {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO students (id) VALUES (?)`, studentID); err != nil {
			return nil, err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO onboarding_progress (student_id, step_id, status)
			SELECT ?, id, 'locked' FROM onboarding_steps
		`, studentID)
		if err != nil {
			return nil, err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE onboarding_progress
			SET status = 'unlocked'
			WHERE student_id = ? AND status = 'locked'
			  AND step_id = (
				SELECT MIN(step_id) FROM onboarding_progress
				WHERE student_id = ? AND status != 'completed'
			  )
			  AND NOT EXISTS (
				SELECT 1 FROM onboarding_progress
				WHERE student_id = ? AND status = 'unlocked'
			  )
		`, studentID, studentID, studentID)
		if err != nil {
			return nil, err
		}
		return nil, tx.Commit()
	})
	return err
}

// GetStudentSteps returns the student's steps joined with the catalog, ordered
// by id. Steps without a progress row report locked. Completed steps report
// the xp awarded at completion, not the catalog's current reward.
func (r *ProgressRepository) GetStudentSteps(ctx context.Context, studentID string) ([]models.StepPayload, error) {
	return Run(ctx, r.queue, func(db *sql.DB) ([]models.StepPayload, error) {
		rows, err := db.QueryContext(ctx, `
			SELECT s.id, s.title, s.description, s.route,
			       CASE WHEN p.status = 'completed' THEN p.xp_awarded ELSE s.xp_reward END,
			       s.estimated_minutes,
			       COALESCE(p.status, 'locked'), p.completed_at
			FROM onboarding_steps s
			LEFT JOIN onboarding_progress p ON s.id = p.step_id AND p.student_id = ?
			ORDER BY s.id
		`, studentID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		steps := []models.StepPayload{}
		for rows.Next() {
			var step models.StepPayload
			var completedAt sql.NullTime
			if err := rows.Scan(
				&step.ID, &step.Title, &step.Description, &step.Route, &step.XP, &step.Minutes,
				&step.Status, &completedAt,
			); err != nil {
				return nil, err
			}
			if completedAt.Valid {
				step.CompletedAt = completedAt.Time.UTC().Format(time.RFC3339)
			}
			steps = append(steps, step)
		}
		return steps, rows.Err()
	})
}

// CompleteStep marks an unlocked step completed, awards its xp and unlocks the
// following step, all in one transaction. It returns the awarded xp.
func (r *ProgressRepository) CompleteStep(ctx context.Context, studentID string, stepID int) (int, error) {
	return Run(ctx, r.queue, func(db *sql.DB) (int, error) {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return 0, err
		}
		defer tx.Rollback()

		var status models.StepStatus
		var xpReward int
		err = tx.QueryRowContext(ctx, `
			SELECT p.status, s.xp_reward
			FROM onboarding_progress p
			JOIN onboarding_steps s ON s.id = p.step_id
			WHERE p.student_id = ? AND p.step_id = ?
		`, studentID, stepID).Scan(&status, &xpReward)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, Permanent(fmt.Errorf("%w: %d", ErrUnknownStep, stepID))
		}
		if err != nil {
			return 0, err
		}
		if status != models.StatusUnlocked {
			return 0, Permanent(fmt.Errorf("%w: step %d is %s", ErrStepNotUnlocked, stepID, status))
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE onboarding_progress
			SET status = 'completed', completed_at = ?, xp_awarded = ?
			WHERE student_id = ? AND step_id = ?
		`, r.now().UTC(), xpReward, studentID, stepID)
		if err != nil {
			return 0, err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE onboarding_progress
			SET status = 'unlocked'
			WHERE student_id = ? AND status = 'locked'
			  AND step_id = (SELECT MIN(id) FROM onboarding_steps WHERE id > ?)
		`, studentID, stepID)
		if err != nil {
			return 0, err
		}

		if err := tx.Commit(); err != nil {
			return 0, err
		}
		return xpReward, nil
	})
}

// Reset drops the student's progress so the next EnsureStudent starts over.
func (r *ProgressRepository) Reset(ctx context.Context, studentID string) error {
	_, err := r.queue.Execute(ctx, func(db *sql.DB) (any, error) {
		_, err := db.ExecContext(ctx, `DELETE FROM onboarding_progress WHERE student_id = ?`, studentID)
		return nil, err
	})
	return err
}
