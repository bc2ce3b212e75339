package repository

import (
	"context"

	"gorm.io/gorm"

	"task-calendar/internal/model"
)

// TaskRepository handles tasks and their history rows.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func preloadHistory(db *gorm.DB) *gorm.DB {
	return db.Preload("History", func(db *gorm.DB) *gorm.DB {
		return db.Order("seq ASC")
	})
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Omit("History").Create(task).Error; err != nil {
		return &StoreError{Op: "create task", Err: err}
	}
	return nil
}

func (r *TaskRepository) FindOwned(ctx context.Context, taskID, userID string) (*model.Task, error) {
	var task model.Task
	if err := preloadHistory(r.db.WithContext(ctx)).
		Where("user_id = ? AND id = ?", userID, taskID).
		First(&task).Error; err != nil {
		return nil, notFoundOr("find task", err)
	}
	return &task, nil
}

func (r *TaskRepository) ExistsInProject(ctx context.Context, taskID, projectID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("project_id = ? AND id = ?", projectID, taskID).
		Count(&count).Error; err != nil {
		return false, &StoreError{Op: "check task project", Err: err}
	}
	return count > 0, nil
}

// ApplyUpdate writes the task fields and appends the entries in one transaction.
// Entries get consecutive sequence numbers after the current tail.
func (r *TaskRepository) ApplyUpdate(ctx context.Context, task *model.Task, entries []model.HistoryEntry) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Task{}).
			Where("user_id = ? AND id = ?", task.UserID, task.ID).
			Updates(map[string]any{
				"project_id":  task.ProjectID,
				"title":       task.Title,
				"description": task.Description,
				"priority":    task.Priority,
				"completed":   task.Completed,
				"category":    task.Category,
				"due_date":    task.DueDate,
				"updated_at":  task.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if len(entries) == 0 {
			return nil
		}

		var tail int64
		if err := tx.Model(&model.HistoryEntry{}).
			Where("task_id = ?", task.ID).
			Select("COALESCE(MAX(seq), -1)").
			Scan(&tail).Error; err != nil {
			return err
		}

		rows := make([]model.HistoryEntry, len(entries))
		for i, entry := range entries {
			entry.TaskID = task.ID
			entry.Seq = int(tail) + 1 + i
			rows[i] = entry
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return notFoundOr("update task", err)
	}
	return nil
}

func (r *TaskRepository) DeleteOwned(ctx context.Context, taskID, userID string) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := preloadHistory(tx).Where("user_id = ? AND id = ?", userID, taskID).First(&task).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", task.ID).Delete(&model.HistoryEntry{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", task.ID).Delete(&model.Task{}).Error
	})
	if err != nil {
		return nil, notFoundOr("delete task", err)
	}
	return &task, nil
}

func (r *TaskRepository) List(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	tasks := []model.Task{}
	q := applyFilter(preloadHistory(r.db.WithContext(ctx)).Model(&model.Task{}), filter).
		Order("created_at DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if err := q.Find(&tasks).Error; err != nil {
		return nil, &StoreError{Op: "list tasks", Err: err}
	}
	return tasks, nil
}

func (r *TaskRepository) ListWithHistory(ctx context.Context, userID string) ([]model.Task, error) {
	tasks := []model.Task{}
	q := preloadHistory(r.db.WithContext(ctx)).
		Where("EXISTS (SELECT 1 FROM task_history h WHERE h.task_id = tasks.id)")
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	if err := q.Find(&tasks).Error; err != nil {
		return nil, &StoreError{Op: "list tasks with history", Err: err}
	}
	return tasks, nil
}

func (r *TaskRepository) Count(ctx context.Context, filter TaskFilter) (int64, int64, error) {
	var total, completed int64
	if err := applyFilter(r.db.WithContext(ctx).Model(&model.Task{}), filter).Count(&total).Error; err != nil {
		return 0, 0, &StoreError{Op: "count tasks", Err: err}
	}
	if err := applyFilter(r.db.WithContext(ctx).Model(&model.Task{}), filter).
		Where("completed = ?", true).
		Count(&completed).Error; err != nil {
		return 0, 0, &StoreError{Op: "count completed tasks", Err: err}
	}
	return total, completed, nil
}

func applyFilter(q *gorm.DB, filter TaskFilter) *gorm.DB {
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.ProjectID != "" {
		q = q.Where("project_id = ?", filter.ProjectID)
	}
	if filter.Completed != nil {
		q = q.Where("completed = ?", *filter.Completed)
	}
	if filter.DueFrom != nil {
		q = q.Where("due_date >= ?", *filter.DueFrom)
	}
	if filter.DueBefore != nil {
		q = q.Where("due_date < ?", *filter.DueBefore)
	}
	return q
}
