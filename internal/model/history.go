package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Monitored task fields, in detection order.
const (
	FieldTitle     = "title"
	FieldPriority  = "priority"
	FieldCompleted = "completed"
	FieldCategory  = "category"
)

// MonitoredFields lists the fields whose changes are recorded in task history.
var MonitoredFields = []string{FieldTitle, FieldPriority, FieldCompleted, FieldCategory}

// IsMonitoredField reports whether name is one of MonitoredFields.
func IsMonitoredField(name string) bool {
	for _, f := range MonitoredFields {
		if f == name {
			return true
		}
	}
	return false
}

// SystemActor is recorded when a change has no owning user.
const SystemActor = "system"

// ValueKind tags the variant held by a FieldValue.
type ValueKind string

const (
	KindNull   ValueKind = "null"
	KindString ValueKind = "string"
	KindEnum   ValueKind = "enum"
	KindBool   ValueKind = "bool"
)

// FieldValue is the value of a monitored field before or after a change.
// The zero value is not valid; use the constructors.
type FieldValue struct {
	Kind ValueKind `bson:"kind"`
	Str  string    `bson:"str,omitempty"`
	Bool bool      `bson:"bool,omitempty"`
}

func NullValue() FieldValue { return FieldValue{Kind: KindNull} }

func StringValue(s string) FieldValue { return FieldValue{Kind: KindString, Str: s} }

func EnumValue(p Priority) FieldValue { return FieldValue{Kind: KindEnum, Str: string(p)} }

func BoolValue(b bool) FieldValue { return FieldValue{Kind: KindBool, Bool: b} }

func (v FieldValue) IsNull() bool { return v.normalized().Kind == KindNull }

// Equal compares kind and payload; payload bits of other kinds are ignored.
func (v FieldValue) Equal(o FieldValue) bool { return v.normalized() == o.normalized() }

func (v FieldValue) normalized() FieldValue {
	switch v.Kind {
	case KindString, KindEnum:
		return FieldValue{Kind: v.Kind, Str: v.Str}
	case KindBool:
		return FieldValue{Kind: v.Kind, Bool: v.Bool}
	}
	return NullValue()
}

// Interface returns the plain Go value: nil, string or bool.
func (v FieldValue) Interface() any {
	switch v.Kind {
	case KindString, KindEnum:
		return v.Str
	case KindBool:
		return v.Bool
	}
	return nil
}

func (v FieldValue) String() string {
	switch v.Kind {
	case KindString, KindEnum:
		return v.Str
	case KindBool:
		return strconv.FormatBool(v.Bool)
	}
	return "null"
}

// MarshalJSON renders the raw scalar, so API clients see "high", true or null.
func (v FieldValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON accepts a raw scalar. Strings always decode as KindString.
func (v *FieldValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case nil:
		*v = NullValue()
	case string:
		*v = StringValue(x)
	case bool:
		*v = BoolValue(x)
	default:
		return fmt.Errorf("unsupported field value %s", string(data))
	}
	return nil
}

type storedValue struct {
	Kind ValueKind `json:"kind"`
	Str  string    `json:"str,omitempty"`
	Bool bool      `json:"bool,omitempty"`
}

// Value stores the tagged form so the kind survives a round trip.
func (v FieldValue) Value() (driver.Value, error) {
	n := v.normalized()
	b, err := json.Marshal(storedValue(n))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (v *FieldValue) Scan(src any) error {
	var data []byte
	switch s := src.(type) {
	case nil:
		*v = NullValue()
		return nil
	case string:
		data = []byte(s)
	case []byte:
		data = s
	default:
		return fmt.Errorf("scan field value: unsupported type %T", src)
	}
	var sv storedValue
	if err := json.Unmarshal(data, &sv); err != nil {
		return fmt.Errorf("scan field value: %w", err)
	}
	*v = FieldValue(sv).normalized()
	return nil
}

// HistoryEntry records one change of one monitored field.
type HistoryEntry struct {
	TaskID    string     `gorm:"primaryKey;type:text" json:"-" bson:"-"`
	Seq       int        `gorm:"primaryKey;autoIncrement:false" json:"-" bson:"seq"`
	Field     string     `gorm:"not null;index" json:"field" bson:"field"`
	OldValue  FieldValue `gorm:"type:text" json:"oldValue" bson:"oldValue"`
	NewValue  FieldValue `gorm:"type:text" json:"newValue" bson:"newValue"`
	ChangedAt time.Time  `gorm:"not null;index" json:"changedAt" bson:"changedAt"`
	Actor     string     `gorm:"not null" json:"actor" bson:"actor"`
}

func (HistoryEntry) TableName() string {
	return "task_history"
}
