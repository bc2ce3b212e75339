package model

import (
	"sort"
	"time"
)

// Task is a unit of work inside a project, carrying its own change history.
type Task struct {
	ID          string         `gorm:"primaryKey;type:text" json:"id" bson:"_id"`
	UserID      string         `gorm:"not null;index" json:"userId" bson:"userId"`
	ProjectID   string         `gorm:"not null;index" json:"projectId" bson:"projectId"`
	Title       string         `gorm:"not null" json:"title" bson:"title"`
	Description string         `json:"description" bson:"description"`
	Priority    Priority       `gorm:"not null;default:medium" json:"priority" bson:"priority"`
	Completed   bool           `gorm:"not null;default:false;index" json:"completed" bson:"completed"`
	Category    string         `json:"category,omitempty" bson:"category"`
	DueDate     *time.Time     `gorm:"index" json:"dueDate,omitempty" bson:"dueDate"`
	CreatedAt   time.Time      `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt" bson:"updatedAt"`
	History     []HistoryEntry `gorm:"foreignKey:TaskID;references:ID" json:"history" bson:"history"`
}

// Tracked snapshots the monitored fields.
func (t *Task) Tracked() TrackedFields {
	return TrackedFields{
		Title:     t.Title,
		Priority:  t.Priority,
		Completed: t.Completed,
		Category:  t.Category,
	}
}

// Actor is the identity recorded for changes made to this task.
func (t *Task) Actor() string {
	if t.UserID == "" {
		return SystemActor
	}
	return t.UserID
}

// LastChangedAt is the timestamp of the final history entry, or CreatedAt
// when the task was never changed.
func (t *Task) LastChangedAt() time.Time {
	if len(t.History) == 0 {
		return t.CreatedAt
	}
	return t.History[len(t.History)-1].ChangedAt
}

// HistoryFor returns the entries of one field in chronological order.
func (t *Task) HistoryFor(field string) []HistoryEntry {
	out := []HistoryEntry{}
	for _, entry := range t.History {
		if entry.Field == field {
			out = append(out, entry)
		}
	}
	return out
}

// HistorySummary aggregates a task's history.
type HistorySummary struct {
	TotalChanges  int        `json:"totalChanges"`
	ChangedFields []string   `json:"changedFields"`
	FirstChange   *time.Time `json:"firstChange"`
	LastChange    time.Time  `json:"lastChange"`
}

// HistorySummary counts entries and lists distinct fields in order of first appearance.
func (t *Task) HistorySummary() HistorySummary {
	summary := HistorySummary{
		TotalChanges:  len(t.History),
		ChangedFields: []string{},
		LastChange:    t.LastChangedAt(),
	}
	if len(t.History) == 0 {
		return summary
	}

	first := t.History[0].ChangedAt
	summary.FirstChange = &first

	seen := make(map[string]bool)
	for _, entry := range t.History {
		if seen[entry.Field] {
			continue
		}
		seen[entry.Field] = true
		summary.ChangedFields = append(summary.ChangedFields, entry.Field)
	}
	return summary
}

// HistoryNewestFirst returns a copy of the history ordered by ChangedAt
// descending. Entries sharing a timestamp keep reverse insertion order.
func (t *Task) HistoryNewestFirst() []HistoryEntry {
	out := make([]HistoryEntry, len(t.History))
	for i, entry := range t.History {
		out[len(t.History)-1-i] = entry
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ChangedAt.After(out[j].ChangedAt)
	})
	return out
}
