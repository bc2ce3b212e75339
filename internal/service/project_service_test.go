package service

import (
	"context"
	"errors"
	"testing"
)

func TestProjectDeleteCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	project := env.project(t, "u1")
	other := env.project(t, "u1")

	for _, title := range []string{"One", "Two", "Three"} {
		task := env.task(t, "u1", project.ID, title)
		if _, err := env.taskSvc.SetCompleted(ctx, task.ID, "u1", true); err != nil {
			t.Fatalf("complete: %v", err)
		}
	}
	kept := env.task(t, "u1", other.ID, "Kept")

	if _, err := env.projectSvc.DeleteOwned(ctx, project.ID, "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign delete: expected ErrNotFound, got %v", err)
	}
	if _, err := env.projectSvc.DeleteOwned(ctx, project.ID, "u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	left, err := env.taskSvc.ListTasks(ctx, "u1", TaskQuery{ProjectID: project.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("expected no tasks in deleted project, got %d", len(left))
	}
	if _, err := env.taskSvc.FetchOwned(ctx, kept.ID, "u1"); err != nil {
		t.Fatalf("task of other project lost: %v", err)
	}
	if _, err := env.projectSvc.FetchOwned(ctx, project.ID, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("project still there: %v", err)
	}

	empty := env.project(t, "u1")
	if _, err := env.projectSvc.DeleteOwned(ctx, empty.ID, "u1"); err != nil {
		t.Fatalf("delete empty project: %v", err)
	}
}

func TestProjectStatsAndUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	project := env.project(t, "u1")

	for i, title := range []string{"Done", "Open", "Also open"} {
		task := env.task(t, "u1", project.ID, title)
		if i == 0 {
			if _, err := env.taskSvc.SetCompleted(ctx, task.ID, "u1", true); err != nil {
				t.Fatalf("complete: %v", err)
			}
		}
	}

	stats, err := env.projectSvc.Stats(ctx, project.ID, "u1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalTasks != 3 || stats.CompletedTasks != 1 || stats.PendingTasks != 2 || stats.CompletionPercentage != 33.33 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if _, err := env.projectSvc.Stats(ctx, project.ID, "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign stats: expected ErrNotFound, got %v", err)
	}

	updated, err := env.projectSvc.Update(ctx, project.ID, "u1", ProjectInput{Name: "  Renamed  ", Description: "new"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Renamed" {
		t.Fatalf("name not trimmed: %q", updated.Name)
	}
	if _, err := env.projectSvc.Update(ctx, project.ID, "u1", ProjectInput{Name: "x"}); err == nil {
		t.Fatalf("expected validation error for short name")
	}

	list, err := env.projectSvc.List(ctx, "u1")
	if err != nil || len(list) != 1 || list[0].Name != "Renamed" {
		t.Fatalf("list: %+v %v", list, err)
	}
}
