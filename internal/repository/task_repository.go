package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/coinrush-app/coinrush-backend/internal/domain"
)

// TaskRepository persists in-game tasks.
type TaskRepository interface {
	List(ctx context.Context) ([]domain.Task, error)
	GetByID(ctx context.Context, id int64) (*domain.Task, error)
	Create(ctx context.Context, t *domain.Task) error
	Update(ctx context.Context, t *domain.Task) (*domain.Task, error)
	Delete(ctx context.Context, id int64) error
	SetImage(ctx context.Context, id int64, imageURL string) (*domain.Task, error)
}

type taskRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewTaskRepository creates a SQL-backed task store.
func NewTaskRepository(db *sql.DB, log *slog.Logger) TaskRepository {
	return &taskRepository{
		db:  db,
		log: log,
	}
}

const taskColumns = `id, title, description, reward, link, image_url, active, created_at`

func (r *taskRepository) List(ctx context.Context) ([]domain.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks ORDER BY created_at DESC`, taskColumns)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logError("list", 0, err)
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}

	return tasks, rows.Err()
}

func (r *taskRepository) GetByID(ctx context.Context, id int64) (*domain.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE id = $1`, taskColumns)

	t, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		r.logError("get_by_id", id, err)
		return nil, fmt.Errorf("select task: %w", err)
	}

	return t, nil
}

func (r *taskRepository) Create(ctx context.Context, t *domain.Task) error {
	const query = `
		INSERT INTO tasks (title, description, reward, link, image_url, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	if err := r.db.QueryRowContext(
		ctx,
		query,
		t.Title,
		t.Description,
		t.Reward,
		t.Link,
		t.ImageURL,
		t.Active,
		t.CreatedAt,
	).Scan(&t.ID); err != nil {
		r.logError("create", 0, err)
		return fmt.Errorf("insert task: %w", err)
	}

	return nil
}

func (r *taskRepository) Update(ctx context.Context, t *domain.Task) (*domain.Task, error) {
	query := fmt.Sprintf(`
		UPDATE tasks
		SET title = $2, description = $3, reward = $4, link = $5, active = $6
		WHERE id = $1
		RETURNING %s`, taskColumns)

	updated, err := scanTask(r.db.QueryRowContext(ctx, query, t.ID, t.Title, t.Description, t.Reward, t.Link, t.Active))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		r.logError("update", t.ID, err)
		return nil, fmt.Errorf("update task: %w", err)
	}

	return updated, nil
}

func (r *taskRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		r.logError("delete", id, err)
		return fmt.Errorf("delete task: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *taskRepository) SetImage(ctx context.Context, id int64, imageURL string) (*domain.Task, error) {
	query := fmt.Sprintf(`
		UPDATE tasks SET image_url = $2 WHERE id = $1
		RETURNING %s`, taskColumns)

	t, err := scanTask(r.db.QueryRowContext(ctx, query, id, imageURL))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		r.logError("set_image", id, err)
		return nil, fmt.Errorf("set task image: %w", err)
	}

	return t, nil
}

func (r *taskRepository) logError(operation string, id int64, err error) {
	if r.log == nil {
		return
	}

	r.log.Error("task repository operation failed",
		slog.String("operation", operation),
		slog.Int64("task_id", id),
		slog.Any("error", err),
	)
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var t domain.Task

	if err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&t.Reward,
		&t.Link,
		&t.ImageURL,
		&t.Active,
		&t.CreatedAt,
	); err != nil {
		return nil, err
	}

	return &t, nil
}
