package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ad/go-onboarding-journey/internal/models"
)

type StepRepository struct {
	queue *Queue
}

func NewStepRepository(queue *Queue) *StepRepository {
	return &StepRepository{queue: queue}
}

const stepColumns = `id, title, description, route, xp_reward, estimated_minutes, is_optional`

func (r *StepRepository) GetAll(ctx context.Context) ([]*models.StepDefinition, error) {
	return Run(ctx, r.queue, func(db *sql.DB) ([]*models.StepDefinition, error) {
		rows, err := db.QueryContext(ctx, `SELECT `+stepColumns+` FROM onboarding_steps ORDER BY id`)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var steps []*models.StepDefinition
		for rows.Next() {
			step, err := scanStep(rows)
			if err != nil {
				return nil, err
			}
			steps = append(steps, step)
		}
		return steps, rows.Err()
	})
}

func (r *StepRepository) GetByID(ctx context.Context, id int) (*models.StepDefinition, error) {
	return Run(ctx, r.queue, func(db *sql.DB) (*models.StepDefinition, error) {
		row := db.QueryRowContext(ctx, `SELECT `+stepColumns+` FROM onboarding_steps WHERE id = ?`, id)
		step, err := scanStep(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, Permanent(fmt.Errorf("%w: %d", ErrUnknownStep, id))
		}
		return step, err
	})
}

// ReplaceProgram upserts steps 1..n and drops every catalog step above n
// together with its progress rows, in one transaction.
func (r *StepRepository) ReplaceProgram(ctx context.Context, steps []models.StepDefinition) error {
	_, err := r.queue.Execute(ctx, func(db *sql.DB) (any, error) {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		defer tx.Rollback()

		for _, step := range steps {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO onboarding_steps (id, title, description, route, xp_reward, estimated_minutes, is_optional)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					title = excluded.title,
					description = excluded.description,
					route = excluded.route,
					xp_reward = excluded.xp_reward,
					estimated_minutes = excluded.estimated_minutes,
					is_optional = excluded.is_optional
			`, step.ID, step.Title, step.Description, step.Route, step.XPReward, step.Minutes, step.IsOptional)
			if err != nil {
				return nil, fmt.Errorf("upsert step %d: %w", step.ID, err)
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM onboarding_progress WHERE step_id > ?`, len(steps)); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM onboarding_steps WHERE id > ?`, len(steps)); err != nil {
			return nil, err
		}
		return nil, tx.Commit()
	})
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStep(row rowScanner) (*models.StepDefinition, error) {
	var step models.StepDefinition
	err := row.Scan(
		&step.ID, &step.Title, &step.Description, &step.Route,
		&step.XPReward, &step.Minutes, &step.IsOptional,
	)
	if err != nil {
		return nil, err
	}
	return &step, nil
}
