package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"task-calendar/internal/logging"
	"task-calendar/internal/model"
	"task-calendar/internal/repository"
)

// TaskInput represents data required to create a task.
type TaskInput struct {
	ProjectID   string     `json:"projectId" validate:"required"`
	Title       string     `json:"title" validate:"required,min=3,max=200"`
	Description string     `json:"description" validate:"max=1000"`
	Priority    string     `json:"priority" validate:"omitempty,priority"`
	Category    string     `json:"category" validate:"max=100"`
	DueDate     *time.Time `json:"dueDate"`
}

// TaskPatch lists the fields to change; nil means "leave as is".
type TaskPatch struct {
	ProjectID    *string    `json:"projectId" validate:"omitnil,min=1"`
	Title        *string    `json:"title" validate:"omitnil,min=3,max=200"`
	Description  *string    `json:"description" validate:"omitnil,max=1000"`
	Priority     *string    `json:"priority" validate:"omitnil,priority"`
	Completed    *bool      `json:"completed"`
	Category     *string    `json:"category" validate:"omitnil,max=100"`
	DueDate      *time.Time `json:"dueDate"`
	ClearDueDate bool       `json:"clearDueDate"`
}

func (p *TaskPatch) normalize() {
	trimPtr(p.ProjectID)
	trimPtr(p.Title)
	trimPtr(p.Description)
	trimPtr(p.Priority)
	trimPtr(p.Category)
}

func (p TaskPatch) apply(task *model.Task) {
	if p.ProjectID != nil {
		task.ProjectID = *p.ProjectID
	}
	if p.Title != nil {
		task.Title = *p.Title
	}
	if p.Description != nil {
		task.Description = *p.Description
	}
	if p.Priority != nil {
		task.Priority, _ = model.ParsePriority(*p.Priority)
	}
	if p.Completed != nil {
		task.Completed = *p.Completed
	}
	if p.Category != nil {
		task.Category = *p.Category
	}
	switch {
	case p.ClearDueDate:
		task.DueDate = nil
	case p.DueDate != nil:
		due := p.DueDate.UTC()
		task.DueDate = &due
	}
}

// TaskQuery narrows ListTasks. Date selects tasks due on that calendar day.
type TaskQuery struct {
	ProjectID string
	Completed *bool
	Date      *time.Time
}

// UserStats is the dashboard view of one user.
type UserStats struct {
	model.CompletionStats
	RecentTasks []model.Task `json:"recentTasks"`
}

// TaskService wraps task-related business logic: the ownership guard, the
// update pipeline that records history, and history queries.
type TaskService struct {
	tasks    repository.TaskStore
	projects repository.ProjectStore
	now      func() time.Time
	loc      *time.Location
}

func NewTaskService(tasks repository.TaskStore, projects repository.ProjectStore) *TaskService {
	return &TaskService{tasks: tasks, projects: projects, now: time.Now, loc: time.Local}
}

func (s *TaskService) SetClock(now func() time.Time) {
	s.now = now
}

// SetLocation sets the zone used to resolve calendar days.
func (s *TaskService) SetLocation(loc *time.Location) {
	s.loc = loc
}

func (s *TaskService) CreateTask(ctx context.Context, userID string, input TaskInput) (*model.Task, error) {
	input.ProjectID = strings.TrimSpace(input.ProjectID)
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.Priority = strings.TrimSpace(input.Priority)
	input.Category = strings.TrimSpace(input.Category)
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	if _, err := s.projects.FindOwned(ctx, input.ProjectID, userID); err != nil {
		return nil, err
	}

	priority := model.PriorityMedium
	if input.Priority != "" {
		priority, _ = model.ParsePriority(input.Priority)
	}

	now := s.now().UTC()
	task := model.Task{
		ID:          uuid.NewString(),
		UserID:      userID,
		ProjectID:   input.ProjectID,
		Title:       input.Title,
		Description: input.Description,
		Priority:    priority,
		Category:    input.Category,
		CreatedAt:   now,
		UpdatedAt:   now,
		History:     []model.HistoryEntry{},
	}
	if input.DueDate != nil {
		due := input.DueDate.UTC()
		task.DueDate = &due
	}

	if err := s.tasks.Create(ctx, &task); err != nil {
		return nil, err
	}
	logging.Logger.Infof("Event ID: TASK_CREATED, Description: task %s created by user %s", task.ID, userID)
	return &task, nil
}

// FetchOwned returns the task if userID owns it, ErrNotFound otherwise.
func (s *TaskService) FetchOwned(ctx context.Context, taskID, userID string) (*model.Task, error) {
	return s.tasks.FindOwned(ctx, taskID, userID)
}

func (s *TaskService) BelongsToUser(ctx context.Context, taskID, userID string) (bool, error) {
	_, err := s.tasks.FindOwned(ctx, taskID, userID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (s *TaskService) BelongsToProject(ctx context.Context, taskID, projectID string) (bool, error) {
	return s.tasks.ExistsInProject(ctx, taskID, projectID)
}

// UpdateOwned validates the patch, applies it to the caller's task and stores
// the new field values together with one history entry per changed monitored
// field. Nothing is written when validation or the ownership check fails.
func (s *TaskService) UpdateOwned(ctx context.Context, taskID, userID string, patch TaskPatch) (*model.Task, error) {
	patch.normalize()
	if err := validateStruct(patch); err != nil {
		return nil, err
	}
	return s.updateOwned(ctx, taskID, userID, func(*model.Task) TaskPatch { return patch })
}

// updateOwned loads the task once and builds the patch from that snapshot, so
// the recorded old values are the ones the patch was derived from.
func (s *TaskService) updateOwned(ctx context.Context, taskID, userID string, build func(*model.Task) TaskPatch) (*model.Task, error) {
	task, err := s.FetchOwned(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}
	patch := build(task)
	if patch.ProjectID != nil && *patch.ProjectID != task.ProjectID {
		if _, err := s.projects.FindOwned(ctx, *patch.ProjectID, userID); err != nil {
			return nil, err
		}
	}

	prev := task.Tracked()
	patch.apply(task)
	now := s.now().UTC()
	task.UpdatedAt = now

	entries := model.DetectChanges(prev, task.Tracked(), task.Actor(), now)
	if err := s.tasks.ApplyUpdate(ctx, task, entries); err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].TaskID = task.ID
		entries[i].Seq = len(task.History) + i
	}
	task.History = append(task.History, entries...)

	if len(entries) > 0 {
		logging.Logger.Debugf("Event ID: TASK_HISTORY_APPENDED, Description: task %s recorded %d change(s)", task.ID, len(entries))
	}
	return task, nil
}

// SetCompleted is UpdateOwned restricted to the completed flag.
func (s *TaskService) SetCompleted(ctx context.Context, taskID, userID string, completed bool) (*model.Task, error) {
	return s.UpdateOwned(ctx, taskID, userID, TaskPatch{Completed: &completed})
}

// Toggle flips the completed flag of the caller's task.
func (s *TaskService) Toggle(ctx context.Context, taskID, userID string) (*model.Task, error) {
	return s.updateOwned(ctx, taskID, userID, func(task *model.Task) TaskPatch {
		completed := !task.Completed
		return TaskPatch{Completed: &completed}
	})
}

// DeleteOwned removes the task and its history. A second call returns ErrNotFound.
func (s *TaskService) DeleteOwned(ctx context.Context, taskID, userID string) (*model.Task, error) {
	task, err := s.tasks.DeleteOwned(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}
	logging.Logger.Infof("Event ID: TASK_DELETED, Description: task %s deleted by user %s", task.ID, userID)
	return task, nil
}

// ListTasks returns the caller's tasks, newest first.
func (s *TaskService) ListTasks(ctx context.Context, userID string, query TaskQuery) ([]model.Task, error) {
	filter := repository.TaskFilter{
		UserID:    userID,
		ProjectID: strings.TrimSpace(query.ProjectID),
		Completed: query.Completed,
	}
	if query.Date != nil {
		from, to := s.dayBounds(*query.Date)
		filter.DueFrom = &from
		filter.DueBefore = &to
	}
	return s.tasks.List(ctx, filter)
}

// TasksDueOn returns the caller's tasks due on the calendar day of day.
func (s *TaskService) TasksDueOn(ctx context.Context, userID string, day time.Time) ([]model.Task, error) {
	return s.ListTasks(ctx, userID, TaskQuery{Date: &day})
}

// ProjectTasks lists the tasks of a project the caller owns.
func (s *TaskService) ProjectTasks(ctx context.Context, projectID, userID string) ([]model.Task, error) {
	if _, err := s.projects.FindOwned(ctx, projectID, userID); err != nil {
		return nil, err
	}
	return s.tasks.List(ctx, repository.TaskFilter{UserID: userID, ProjectID: projectID})
}

// TasksWithHistory returns tasks that have at least one history entry, most
// recently changed first. An empty userID searches all users.
func (s *TaskService) TasksWithHistory(ctx context.Context, userID string) ([]model.Task, error) {
	tasks, err := s.tasks.ListWithHistory(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := tasks[:0]
	for _, task := range tasks {
		if len(task.History) > 0 {
			out = append(out, task)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastChangedAt().After(out[j].LastChangedAt())
	})
	if out == nil {
		out = []model.Task{}
	}
	return out, nil
}

// Stats returns completion numbers and the five most recently created tasks.
func (s *TaskService) Stats(ctx context.Context, userID string) (*UserStats, error) {
	total, completed, err := s.tasks.Count(ctx, repository.TaskFilter{UserID: userID})
	if err != nil {
		return nil, err
	}
	recent, err := s.tasks.List(ctx, repository.TaskFilter{UserID: userID, Limit: 5})
	if err != nil {
		return nil, err
	}
	return &UserStats{
		CompletionStats: model.NewCompletionStats(total, completed),
		RecentTasks:     recent,
	}, nil
}

// dayBounds returns [start of day, start of next day) in UTC for day's date in s.loc.
func (s *TaskService) dayBounds(day time.Time) (time.Time, time.Time) {
	local := day.In(s.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	return start.UTC(), start.AddDate(0, 0, 1).UTC()
}
