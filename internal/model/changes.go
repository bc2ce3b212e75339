package model

import "time"

// TrackedFields is the monitored subset of a task's state.
type TrackedFields struct {
	Title     string
	Priority  Priority
	Completed bool
	Category  string
}

// Values returns the monitored fields as field values, in MonitoredFields order.
func (f TrackedFields) Values() []FieldValue {
	return []FieldValue{
		StringValue(f.Title),
		EnumValue(f.Priority),
		BoolValue(f.Completed),
		CategoryValue(f.Category),
	}
}

// CategoryValue maps an empty category to null; category is optional.
func CategoryValue(category string) FieldValue {
	if category == "" {
		return NullValue()
	}
	return StringValue(category)
}

// DetectChanges compares two snapshots of the same task and returns one entry
// per monitored field whose value differs, in MonitoredFields order. All entries
// share the given actor and timestamp. Identical snapshots produce nil.
func DetectChanges(prev, next TrackedFields, actor string, at time.Time) []HistoryEntry {
	if actor == "" {
		actor = SystemActor
	}

	before := prev.Values()
	after := next.Values()

	var entries []HistoryEntry
	for i, field := range MonitoredFields {
		if before[i].Equal(after[i]) {
			continue
		}
		entries = append(entries, HistoryEntry{
			Field:     field,
			OldValue:  before[i],
			NewValue:  after[i],
			ChangedAt: at,
			Actor:     actor,
		})
	}
	return entries
}
