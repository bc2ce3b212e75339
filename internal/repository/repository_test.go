package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"task-calendar/internal/model"
)

type testStores struct {
	users    *UserRepository
	projects *ProjectRepository
	tasks    *TaskRepository
}

func newTestStores(t *testing.T) testStores {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return testStores{
		users:    NewUserRepository(db),
		projects: NewProjectRepository(db),
		tasks:    NewTaskRepository(db),
	}
}

var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func seedTask(t *testing.T, s testStores, userID, projectID, title string) *model.Task {
	t.Helper()
	task := &model.Task{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProjectID: projectID,
		Title:     title,
		Priority:  model.PriorityMedium,
		CreatedAt: base,
		UpdatedAt: base,
	}
	if err := s.tasks.Create(context.Background(), task); err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func seedProject(t *testing.T, s testStores, userID string) *model.Project {
	t.Helper()
	project := &model.Project{ID: uuid.NewString(), UserID: userID, Name: "Home", CreatedAt: base, UpdatedAt: base}
	if err := s.projects.Create(context.Background(), project); err != nil {
		t.Fatalf("create project: %v", err)
	}
	return project
}

func TestApplyUpdateAppendsHistory(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()
	task := seedTask(t, s, "u1", "p1", "Draft report")

	prev := task.Tracked()
	task.Title = "Draft report v2"
	entries := model.DetectChanges(prev, task.Tracked(), task.Actor(), base.Add(time.Minute))
	if err := s.tasks.ApplyUpdate(ctx, task, entries); err != nil {
		t.Fatalf("apply update: %v", err)
	}

	prev = task.Tracked()
	task.Priority = model.PriorityHigh
	entries = model.DetectChanges(prev, task.Tracked(), task.Actor(), base.Add(2*time.Minute))
	if err := s.tasks.ApplyUpdate(ctx, task, entries); err != nil {
		t.Fatalf("apply update: %v", err)
	}

	got, err := s.tasks.FindOwned(ctx, task.ID, "u1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Title != "Draft report v2" || got.Priority != model.PriorityHigh {
		t.Fatalf("fields not persisted: %+v", got)
	}
	if len(got.History) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(got.History))
	}
	first := got.History[0]
	if first.Field != model.FieldTitle || first.OldValue.Str != "Draft report" || first.NewValue.Str != "Draft report v2" {
		t.Fatalf("unexpected first entry: %+v", first)
	}
	if got.History[1].Field != model.FieldPriority || got.History[1].NewValue.Kind != model.KindEnum {
		t.Fatalf("unexpected second entry: %+v", got.History[1])
	}
	if got.History[1].Seq != 1 {
		t.Fatalf("expected seq 1, got %d", got.History[1].Seq)
	}
}

func TestApplyUpdatePersistsUntrackedFields(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()
	from := seedProject(t, s, "u1")
	to := seedProject(t, s, "u1")
	task := seedTask(t, s, "u1", from.ID, "Move me")

	due := base.AddDate(0, 0, 3)
	task.ProjectID = to.ID
	task.Description = "now lives elsewhere"
	task.DueDate = &due
	task.UpdatedAt = base.Add(time.Minute)
	if err := s.tasks.ApplyUpdate(ctx, task, nil); err != nil {
		t.Fatalf("apply update: %v", err)
	}

	got, err := s.tasks.FindOwned(ctx, task.ID, "u1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ProjectID != to.ID {
		t.Fatalf("project move lost: got %s, want %s", got.ProjectID, to.ID)
	}
	if got.Description != "now lives elsewhere" {
		t.Fatalf("description lost: %q", got.Description)
	}
	if got.DueDate == nil || !got.DueDate.Equal(due) {
		t.Fatalf("due date lost: %v", got.DueDate)
	}
	if len(got.History) != 0 {
		t.Fatalf("untracked fields recorded history: %d", len(got.History))
	}

	if _, err := s.projects.DeleteCascade(ctx, from.ID, "u1"); err != nil {
		t.Fatalf("cascade old project: %v", err)
	}
	if _, err := s.tasks.FindOwned(ctx, task.ID, "u1"); err != nil {
		t.Fatalf("old project cascade removed moved task: %v", err)
	}
	if _, err := s.projects.DeleteCascade(ctx, to.ID, "u1"); err != nil {
		t.Fatalf("cascade new project: %v", err)
	}
	if _, err := s.tasks.FindOwned(ctx, task.ID, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("moved task survived its project: %v", err)
	}
}

func TestApplyUpdateWrongOwnerLeavesTaskUntouched(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()
	task := seedTask(t, s, "u1", "p1", "Original")

	forged := *task
	forged.UserID = "intruder"
	forged.Title = "Hijacked"
	entries := model.DetectChanges(task.Tracked(), forged.Tracked(), forged.Actor(), base)

	if err := s.tasks.ApplyUpdate(ctx, &forged, entries); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	got, err := s.tasks.FindOwned(ctx, task.ID, "u1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Title != "Original" || len(got.History) != 0 {
		t.Fatalf("task mutated: %+v", got)
	}
}

func TestFindOwnedMismatchIsNotFound(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()
	task := seedTask(t, s, "u1", "p1", "Mine")

	if _, err := s.tasks.FindOwned(ctx, task.ID, "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other user: expected ErrNotFound, got %v", err)
	}
	if _, err := s.tasks.FindOwned(ctx, "missing", "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing id: expected ErrNotFound, got %v", err)
	}
}

func TestListWithHistoryFiltersEmpty(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	changed := seedTask(t, s, "u1", "p1", "Changed")
	seedTask(t, s, "u1", "p1", "Untouched")
	other := seedTask(t, s, "u2", "p2", "Other user")

	for _, task := range []*model.Task{changed, other} {
		prev := task.Tracked()
		task.Completed = true
		if err := s.tasks.ApplyUpdate(ctx, task, model.DetectChanges(prev, task.Tracked(), task.Actor(), base)); err != nil {
			t.Fatalf("apply update: %v", err)
		}
	}

	mine, err := s.tasks.ListWithHistory(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != changed.ID || len(mine[0].History) != 1 {
		t.Fatalf("unexpected scoped result: %+v", mine)
	}

	all, err := s.tasks.ListWithHistory(ctx, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 tasks across users, got %d", len(all))
	}
}

func TestDeleteOwnedTwice(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()
	task := seedTask(t, s, "u1", "p1", "Disposable")

	if _, err := s.tasks.DeleteOwned(ctx, task.ID, "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign delete: expected ErrNotFound, got %v", err)
	}
	deleted, err := s.tasks.DeleteOwned(ctx, task.ID, "u1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted.ID != task.ID {
		t.Fatalf("deleted wrong task: %s", deleted.ID)
	}
	if _, err := s.tasks.DeleteOwned(ctx, task.ID, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestDeleteCascade(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()
	project := seedProject(t, s, "u1")
	keep := seedProject(t, s, "u1")

	for i := 0; i < 3; i++ {
		task := seedTask(t, s, "u1", project.ID, "Doomed")
		prev := task.Tracked()
		task.Title = "Doomed again"
		if err := s.tasks.ApplyUpdate(ctx, task, model.DetectChanges(prev, task.Tracked(), task.Actor(), base)); err != nil {
			t.Fatalf("apply update: %v", err)
		}
	}
	survivor := seedTask(t, s, "u1", keep.ID, "Survivor")

	if _, err := s.projects.DeleteCascade(ctx, project.ID, "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign cascade: expected ErrNotFound, got %v", err)
	}
	if _, err := s.projects.DeleteCascade(ctx, project.ID, "u1"); err != nil {
		t.Fatalf("cascade: %v", err)
	}

	total, _, err := s.tasks.Count(ctx, TaskFilter{ProjectID: project.ID})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected no tasks left in project, got %d", total)
	}
	withHistory, err := s.tasks.ListWithHistory(ctx, "")
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(withHistory) != 0 {
		t.Fatalf("history rows of deleted tasks survived: %d", len(withHistory))
	}
	if _, err := s.tasks.FindOwned(ctx, survivor.ID, "u1"); err != nil {
		t.Fatalf("task of other project removed: %v", err)
	}

	empty := seedProject(t, s, "u1")
	if _, err := s.projects.DeleteCascade(ctx, empty.ID, "u1"); err != nil {
		t.Fatalf("empty project cascade: %v", err)
	}
}

func TestTaskListAndCount(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	due := base.Add(48 * time.Hour)
	a := seedTask(t, s, "u1", "p1", "With due date")
	a.DueDate = &due
	a.Completed = true
	if err := s.tasks.ApplyUpdate(ctx, a, nil); err != nil {
		t.Fatalf("apply update: %v", err)
	}
	seedTask(t, s, "u1", "p1", "No due date")
	seedTask(t, s, "u1", "p2", "Other project")

	total, completed, err := s.tasks.Count(ctx, TaskFilter{UserID: "u1"})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 3 || completed != 1 {
		t.Fatalf("count: total %d completed %d", total, completed)
	}

	from := due.Add(-time.Hour)
	before := due.Add(time.Hour)
	onDay, err := s.tasks.List(ctx, TaskFilter{UserID: "u1", DueFrom: &from, DueBefore: &before})
	if err != nil {
		t.Fatalf("list by due: %v", err)
	}
	if len(onDay) != 1 || onDay[0].ID != a.ID {
		t.Fatalf("unexpected due listing: %+v", onDay)
	}

	open := false
	pending, err := s.tasks.List(ctx, TaskFilter{UserID: "u1", ProjectID: "p1", Completed: &open})
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].Title != "No due date" {
		t.Fatalf("unexpected pending listing: %+v", pending)
	}

	ok, err := s.tasks.ExistsInProject(ctx, a.ID, "p1")
	if err != nil || !ok {
		t.Fatalf("exists in project: %v %v", ok, err)
	}
	ok, err = s.tasks.ExistsInProject(ctx, a.ID, "p2")
	if err != nil || ok {
		t.Fatalf("exists in other project: %v %v", ok, err)
	}
}

func TestUserDuplicateAndTelegramLink(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	user := &model.User{ID: uuid.NewString(), Name: "Ana", Email: "ana@example.com", PasswordHash: "x"}
	if err := s.users.Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	dup := &model.User{ID: uuid.NewString(), Name: "Ana 2", Email: "ana@example.com", PasswordHash: "y"}
	if err := s.users.Create(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	if err := s.users.SetLinkCode(ctx, user.ID, "123456", base.Add(10*time.Minute)); err != nil {
		t.Fatalf("set link code: %v", err)
	}
	if _, err := s.users.LinkTelegram(ctx, "123456", 42, base.Add(11*time.Minute)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired code: expected ErrNotFound, got %v", err)
	}
	linked, err := s.users.LinkTelegram(ctx, "123456", 42, base.Add(time.Minute))
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if linked.TelegramChatID == nil || *linked.TelegramChatID != 42 {
		t.Fatalf("chat id not set: %+v", linked)
	}
	if _, err := s.users.LinkTelegram(ctx, "123456", 42, base.Add(time.Minute)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("reused code: expected ErrNotFound, got %v", err)
	}

	byChat, err := s.users.FindByTelegramChatID(ctx, 42)
	if err != nil || byChat.ID != user.ID {
		t.Fatalf("find by chat: %v %v", byChat, err)
	}
	linkedUsers, err := s.users.ListLinked(ctx)
	if err != nil || len(linkedUsers) != 1 {
		t.Fatalf("list linked: %d %v", len(linkedUsers), err)
	}

	if err := s.users.UnlinkTelegram(ctx, 42); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	if _, err := s.users.FindByTelegramChatID(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("after unlink: expected ErrNotFound, got %v", err)
	}
}

func TestSetLinkCodeRejectsCodeHeldByAnotherUser(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	first := &model.User{ID: uuid.NewString(), Name: "Ana", Email: "ana@example.com", PasswordHash: "x"}
	second := &model.User{ID: uuid.NewString(), Name: "Bia", Email: "bia@example.com", PasswordHash: "y"}
	for _, u := range []*model.User{first, second} {
		if err := s.users.Create(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}

	expiry := base.Add(10 * time.Minute)
	if err := s.users.SetLinkCode(ctx, first.ID, "424242", expiry); err != nil {
		t.Fatalf("set first code: %v", err)
	}
	if err := s.users.SetLinkCode(ctx, second.ID, "424242", expiry); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	// Reissuing the same value to its holder is fine.
	if err := s.users.SetLinkCode(ctx, first.ID, "424242", expiry); err != nil {
		t.Fatalf("reissue to holder: %v", err)
	}
	if err := s.users.SetLinkCode(ctx, "missing", "111111", expiry); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown user: expected ErrNotFound, got %v", err)
	}

	linked, err := s.users.LinkTelegram(ctx, "424242", 9, base)
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if linked.ID != first.ID {
		t.Fatalf("code linked the wrong user: %s", linked.ID)
	}
	// Once consumed the value is free again.
	if err := s.users.SetLinkCode(ctx, second.ID, "424242", expiry); err != nil {
		t.Fatalf("set consumed code: %v", err)
	}
}
