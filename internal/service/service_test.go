package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"task-calendar/internal/model"
	"task-calendar/internal/repository"
)

type testEnv struct {
	users    *repository.UserRepository
	projects *repository.ProjectRepository
	tasks    *repository.TaskRepository

	taskSvc    *TaskService
	projectSvc *ProjectService
	clock      *stepClock
}

// stepClock advances one minute per call so every update gets a distinct time.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "service.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	env := &testEnv{
		users:    repository.NewUserRepository(db),
		projects: repository.NewProjectRepository(db),
		tasks:    repository.NewTaskRepository(db),
		clock:    &stepClock{now: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)},
	}
	env.taskSvc = NewTaskService(env.tasks, env.projects)
	env.taskSvc.SetClock(env.clock.Now)
	env.taskSvc.SetLocation(time.UTC)
	env.projectSvc = NewProjectService(env.projects, env.tasks)
	env.projectSvc.SetClock(env.clock.Now)
	return env
}

func (env *testEnv) project(t *testing.T, userID string) *model.Project {
	t.Helper()
	p, err := env.projectSvc.Create(context.Background(), userID, ProjectInput{Name: "Work"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}

func (env *testEnv) task(t *testing.T, userID, projectID, title string) *model.Task {
	t.Helper()
	task, err := env.taskSvc.CreateTask(context.Background(), userID, TaskInput{ProjectID: projectID, Title: title})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func strPtr(s string) *string { return &s }
