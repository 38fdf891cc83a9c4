package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/collab-task-board/domain/task"
	"github.com/example/collab-task-board/domain/user"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// smartAssignSQL picks the least loaded user and assigns the task in one
// statement, so the load it reads cannot go stale before the write lands.
// The target task is left out of every user's load.
const smartAssignSQL = `
UPDATE tasks
SET assigned_to = (
		SELECT u.id
		FROM users u
		LEFT JOIN tasks t
			ON t.assigned_to = u.id
			AND t.status IN (?, ?)
			AND t.id <> ?
		GROUP BY u.id
		ORDER BY COUNT(t.id) ASC, u.id ASC
		LIMIT 1
	),
	version = version + 1,
	updated_at = ?
WHERE id = ?
	AND EXISTS (SELECT 1 FROM users)`

// assigneeColumns keeps credential material out of preloaded assignees.
func assigneeColumns(db *gorm.DB) *gorm.DB {
	return db.Select("id", "name", "email")
}

// Repository persists tasks and users using GORM.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new Repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateTask inserts a task. A title collision fails with task.ErrDuplicateTitle.
func (r *Repository) CreateTask(ctx context.Context, t *task.Task) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(t).Error; err != nil {
		if isUniqueViolation(err) {
			return task.ErrDuplicateTitle
		}
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// FindTask loads a task with its assignee.
func (r *Repository) FindTask(ctx context.Context, id string) (*task.Task, error) {
	var t task.Task
	if err := r.db.WithContext(ctx).Preload("Assignee", assigneeColumns).First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, task.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return &t, nil
}

// ListTasks returns every task, oldest first, with assignees loaded.
func (r *Repository) ListTasks(ctx context.Context) ([]task.Task, error) {
	var tasks []task.Task
	if err := r.db.WithContext(ctx).Preload("Assignee", assigneeColumns).Order("created_at ASC, id ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// UpdateTaskIfVersion applies cols to the task only if its version still
// equals version. It reports whether the row was updated.
func (r *Repository) UpdateTaskIfVersion(ctx context.Context, id string, version int64, cols map[string]any, now time.Time) (bool, error) {
	updates := make(map[string]any, len(cols)+2)
	for k, v := range cols {
		updates[k] = v
	}
	updates["version"] = gorm.Expr("version + 1")
	updates["updated_at"] = now

	result := r.db.WithContext(ctx).
		Model(&task.Task{}).
		Where("id = ? AND version = ?", id, version).
		Updates(updates)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return false, task.ErrDuplicateTitle
		}
		return false, fmt.Errorf("failed to update task: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// DeleteTaskByCreator removes the task only if createdBy matches.
// It returns task.ErrTaskNotFound or task.ErrNotCreator when nothing was removed.
func (r *Repository) DeleteTaskByCreator(ctx context.Context, id, createdBy string) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND created_by = ?", id, createdBy).
		Delete(&task.Task{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete task: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	exists, err := r.taskExists(r.db.WithContext(ctx), id)
	if err != nil {
		return err
	}
	if !exists {
		return task.ErrTaskNotFound
	}
	return task.ErrNotCreator
}

// AssignLeastLoaded assigns the task to the user with the fewest active
// tasks, ties going to the lowest user id, and returns the updated task.
func (r *Repository) AssignLeastLoaded(ctx context.Context, id string, now time.Time) (*task.Task, error) {
	var assigned task.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Exec(smartAssignSQL,
			string(task.StatusTodo), string(task.StatusInProgress), id,
			now, id,
		)
		if result.Error != nil {
			return fmt.Errorf("failed to assign task: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			exists, err := r.taskExists(tx, id)
			if err != nil {
				return err
			}
			if !exists {
				return task.ErrTaskNotFound
			}
			return task.ErrNoEligibleAssignee
		}
		if err := tx.Preload("Assignee", assigneeColumns).First(&assigned, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to reload task: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &assigned, nil
}

// TasksByIDs returns the tasks among ids that still exist.
func (r *Repository) TasksByIDs(ctx context.Context, ids []string) ([]task.Task, error) {
	var tasks []task.Task
	if len(ids) == 0 {
		return tasks, nil
	}
	if err := r.db.WithContext(ctx).Select("id", "title").Where("id IN ?", ids).Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to find tasks: %w", err)
	}
	return tasks, nil
}

func (r *Repository) taskExists(db *gorm.DB, id string) (bool, error) {
	var count int64
	if err := db.Model(&task.Task{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check task: %w", err)
	}
	return count > 0, nil
}

// CreateUser inserts a user. An email collision fails with user.ErrUserExists.
func (r *Repository) CreateUser(ctx context.Context, u *user.User) error {
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		if isUniqueViolation(err) {
			return user.ErrUserExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindUserByID finds a user by ID.
func (r *Repository) FindUserByID(ctx context.Context, id string) (*user.User, error) {
	return r.findUser(ctx, "id = ?", id)
}

// FindUserByEmail finds a user by email.
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.findUser(ctx, "email = ?", email)
}

func (r *Repository) findUser(ctx context.Context, query string, arg string) (*user.User, error) {
	var u user.User
	if err := r.db.WithContext(ctx).First(&u, query, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, user.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &u, nil
}

// UsersByIDs returns the users among ids that still exist.
func (r *Repository) UsersByIDs(ctx context.Context, ids []string) ([]user.User, error) {
	var users []user.User
	if len(ids) == 0 {
		return users, nil
	}
	if err := r.db.WithContext(ctx).Select("id", "name").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to find users: %w", err)
	}
	return users, nil
}

type workloadRow struct {
	user.User
	ActiveTasks int64
}

// Workloads returns every user with their count of Todo and In Progress tasks.
func (r *Repository) Workloads(ctx context.Context) ([]user.Workload, error) {
	var rows []workloadRow
	err := r.db.WithContext(ctx).
		Model(&user.User{}).
		Select("users.*, COUNT(tasks.id) AS active_tasks").
		Joins("LEFT JOIN tasks ON tasks.assigned_to = users.id AND tasks.status IN ?",
			[]string{string(task.StatusTodo), string(task.StatusInProgress)}).
		Group("users.id").
		Order("users.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute workloads: %w", err)
	}

	workloads := make([]user.Workload, 0, len(rows))
	for _, row := range rows {
		workloads = append(workloads, user.Workload{User: row.User, ActiveTasks: row.ActiveTasks})
	}
	return workloads, nil
}

// isUniqueViolation reports whether err is a unique index violation.
func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}
