package model

import (
	"reflect"
	"testing"
	"time"
)

func historyTask() *Task {
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	return &Task{
		ID:        "t1",
		CreatedAt: base,
		History: []HistoryEntry{
			{Field: FieldTitle, OldValue: StringValue("a"), NewValue: StringValue("b"), ChangedAt: base.Add(time.Hour)},
			{Field: FieldPriority, OldValue: EnumValue(PriorityMedium), NewValue: EnumValue(PriorityHigh), ChangedAt: base.Add(2 * time.Hour)},
			{Field: FieldTitle, OldValue: StringValue("b"), NewValue: StringValue("a"), ChangedAt: base.Add(2 * time.Hour)},
			{Field: FieldCompleted, OldValue: BoolValue(false), NewValue: BoolValue(true), ChangedAt: base.Add(3 * time.Hour)},
		},
	}
}

func TestLastChangedAt(t *testing.T) {
	task := historyTask()
	if got := task.LastChangedAt(); !got.Equal(task.CreatedAt.Add(3 * time.Hour)) {
		t.Fatalf("last change: got %v", got)
	}

	task.History = nil
	if got := task.LastChangedAt(); !got.Equal(task.CreatedAt) {
		t.Fatalf("without history expected CreatedAt, got %v", got)
	}
}

func TestHistoryFor(t *testing.T) {
	task := historyTask()
	titles := task.HistoryFor(FieldTitle)
	if len(titles) != 2 {
		t.Fatalf("expected 2 title entries, got %d", len(titles))
	}
	if titles[0].NewValue.Str != "b" || titles[1].NewValue.Str != "a" {
		t.Fatalf("entries out of order: %+v", titles)
	}
	if got := task.HistoryFor(FieldCategory); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestHistorySummary(t *testing.T) {
	task := historyTask()
	summary := task.HistorySummary()
	if summary.TotalChanges != 4 {
		t.Fatalf("total: %d", summary.TotalChanges)
	}
	want := []string{FieldTitle, FieldPriority, FieldCompleted}
	if !reflect.DeepEqual(summary.ChangedFields, want) {
		t.Fatalf("fields: got %v, want %v", summary.ChangedFields, want)
	}
	if summary.FirstChange == nil || !summary.FirstChange.Equal(task.History[0].ChangedAt) {
		t.Fatalf("first change: %v", summary.FirstChange)
	}
	if !summary.LastChange.Equal(task.LastChangedAt()) {
		t.Fatalf("last change: %v", summary.LastChange)
	}

	empty := (&Task{CreatedAt: task.CreatedAt}).HistorySummary()
	if empty.TotalChanges != 0 || empty.FirstChange != nil || len(empty.ChangedFields) != 0 {
		t.Fatalf("empty summary: %+v", empty)
	}
	if !empty.LastChange.Equal(task.CreatedAt) {
		t.Fatalf("empty summary last change: %v", empty.LastChange)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	task := historyTask()
	view := task.HistoryNewestFirst()

	if view[0].Field != FieldCompleted {
		t.Fatalf("expected newest entry first, got %q", view[0].Field)
	}
	// Same timestamp: the later insertion comes first.
	if view[1].Field != FieldTitle || view[2].Field != FieldPriority {
		t.Fatalf("tie order: %q, %q", view[1].Field, view[2].Field)
	}
	if task.History[0].Field != FieldTitle || task.History[3].Field != FieldCompleted {
		t.Fatalf("stored order mutated")
	}
}

func TestNewCompletionStats(t *testing.T) {
	s := NewCompletionStats(3, 1)
	if s.PendingTasks != 2 || s.CompletionPercentage != 33.33 {
		t.Fatalf("unexpected stats: %+v", s)
	}
	if z := NewCompletionStats(0, 0); z.CompletionPercentage != 0 {
		t.Fatalf("zero tasks: %+v", z)
	}
}
