package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"task-calendar/internal/model"
)

var (
	// ErrNotFound covers both a missing record and a record owned by someone else.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique key (user email, link code) is already taken.
	ErrDuplicate = errors.New("duplicate key")
)

// StoreError wraps a backend failure with the operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// TaskFilter narrows task listings. Zero values mean "any".
type TaskFilter struct {
	UserID    string
	ProjectID string
	Completed *bool
	DueFrom   *time.Time
	DueBefore *time.Time
	Limit     int
}

// UserStore persists accounts.
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByTelegramChatID(ctx context.Context, chatID int64) (*model.User, error)
	SetLinkCode(ctx context.Context, userID, code string, expiry time.Time) error
	// LinkTelegram binds chatID to the user holding a live code and clears the code.
	LinkTelegram(ctx context.Context, code string, chatID int64, now time.Time) (*model.User, error)
	UnlinkTelegram(ctx context.Context, chatID int64) error
	ListLinked(ctx context.Context) ([]model.User, error)
}

// ProjectStore persists projects. Every lookup is scoped to the owner.
type ProjectStore interface {
	Create(ctx context.Context, project *model.Project) error
	FindOwned(ctx context.Context, projectID, userID string) (*model.Project, error)
	ListByUser(ctx context.Context, userID string) ([]model.Project, error)
	Update(ctx context.Context, project *model.Project) error
	// DeleteCascade removes the project, its tasks and their history in one unit.
	DeleteCascade(ctx context.Context, projectID, userID string) (*model.Project, error)
}

// TaskStore persists tasks together with their history.
type TaskStore interface {
	Create(ctx context.Context, task *model.Task) error
	FindOwned(ctx context.Context, taskID, userID string) (*model.Task, error)
	ExistsInProject(ctx context.Context, taskID, projectID string) (bool, error)
	// ApplyUpdate writes the task fields and appends entries atomically.
	ApplyUpdate(ctx context.Context, task *model.Task, entries []model.HistoryEntry) error
	DeleteOwned(ctx context.Context, taskID, userID string) (*model.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]model.Task, error)
	// ListWithHistory returns tasks with at least one history entry; an empty
	// userID means all users. Order is unspecified.
	ListWithHistory(ctx context.Context, userID string) ([]model.Task, error)
	Count(ctx context.Context, filter TaskFilter) (total, completed int64, err error)
}
