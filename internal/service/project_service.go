package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"task-calendar/internal/logging"
	"task-calendar/internal/model"
	"task-calendar/internal/repository"
)

// ProjectInput carries the editable project fields.
type ProjectInput struct {
	Name        string `json:"name" validate:"required,min=2,max=200"`
	Description string `json:"description" validate:"max=1000"`
}

func (in *ProjectInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
}

// ProjectService manages projects; all operations are scoped to the owner.
type ProjectService struct {
	projects repository.ProjectStore
	tasks    repository.TaskStore
	now      func() time.Time
}

func NewProjectService(projects repository.ProjectStore, tasks repository.TaskStore) *ProjectService {
	return &ProjectService{projects: projects, tasks: tasks, now: time.Now}
}

func (s *ProjectService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *ProjectService) Create(ctx context.Context, userID string, input ProjectInput) (*model.Project, error) {
	input.normalize()
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	project := model.Project{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        input.Name,
		Description: input.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.projects.Create(ctx, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// List returns the caller's projects, newest first.
func (s *ProjectService) List(ctx context.Context, userID string) ([]model.Project, error) {
	return s.projects.ListByUser(ctx, userID)
}

func (s *ProjectService) FetchOwned(ctx context.Context, projectID, userID string) (*model.Project, error) {
	return s.projects.FindOwned(ctx, projectID, userID)
}

func (s *ProjectService) Update(ctx context.Context, projectID, userID string, input ProjectInput) (*model.Project, error) {
	input.normalize()
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	project, err := s.projects.FindOwned(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	project.Name = input.Name
	project.Description = input.Description
	project.UpdatedAt = s.now().UTC()
	if err := s.projects.Update(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// DeleteOwned removes the project with all of its tasks and their history.
func (s *ProjectService) DeleteOwned(ctx context.Context, projectID, userID string) (*model.Project, error) {
	project, err := s.projects.DeleteCascade(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	logging.Logger.Infof("Event ID: PROJECT_DELETED, Description: project %s and its tasks deleted by user %s", project.ID, userID)
	return project, nil
}

// Stats reports task completion inside one of the caller's projects.
func (s *ProjectService) Stats(ctx context.Context, projectID, userID string) (model.CompletionStats, error) {
	if _, err := s.projects.FindOwned(ctx, projectID, userID); err != nil {
		return model.CompletionStats{}, err
	}
	total, completed, err := s.tasks.Count(ctx, repository.TaskFilter{ProjectID: projectID})
	if err != nil {
		return model.CompletionStats{}, err
	}
	return model.NewCompletionStats(total, completed), nil
}
