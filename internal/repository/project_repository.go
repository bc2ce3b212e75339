package repository

import (
	"context"

	"gorm.io/gorm"

	"task-calendar/internal/model"
)

// ProjectRepository handles CRUD for projects.
type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Create(ctx context.Context, project *model.Project) error {
	if err := r.db.WithContext(ctx).Create(project).Error; err != nil {
		return &StoreError{Op: "create project", Err: err}
	}
	return nil
}

func (r *ProjectRepository) FindOwned(ctx context.Context, projectID, userID string) (*model.Project, error) {
	var project model.Project
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, projectID).First(&project).Error; err != nil {
		return nil, notFoundOr("find project", err)
	}
	return &project, nil
}

func (r *ProjectRepository) ListByUser(ctx context.Context, userID string) ([]model.Project, error) {
	projects := []model.Project{}
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&projects).Error; err != nil {
		return nil, &StoreError{Op: "list projects", Err: err}
	}
	return projects, nil
}

func (r *ProjectRepository) Update(ctx context.Context, project *model.Project) error {
	res := r.db.WithContext(ctx).Model(&model.Project{}).
		Where("user_id = ? AND id = ?", project.UserID, project.ID).
		Updates(map[string]any{
			"name":        project.Name,
			"description": project.Description,
			"updated_at":  project.UpdatedAt,
		})
	if res.Error != nil {
		return &StoreError{Op: "update project", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCascade removes history, tasks and the project inside one transaction.
func (r *ProjectRepository) DeleteCascade(ctx context.Context, projectID, userID string) (*model.Project, error) {
	var project model.Project
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND id = ?", userID, projectID).First(&project).Error; err != nil {
			return err
		}
		taskIDs := tx.Model(&model.Task{}).Select("id").Where("project_id = ?", projectID)
		if err := tx.Where("task_id IN (?)", taskIDs).Delete(&model.HistoryEntry{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", projectID).Delete(&model.Task{}).Error; err != nil {
			return err
		}
		return tx.Delete(&project).Error
	})
	if err != nil {
		return nil, notFoundOr("delete project", err)
	}
	return &project, nil
}
