package model

import "strings"

// Priority is the urgency level of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority accepts the canonical names and the legacy Portuguese labels
// (baixa, media, alta) still sent by older clients.
func ParsePriority(raw string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low", "baixa":
		return PriorityLow, true
	case "medium", "media", "média":
		return PriorityMedium, true
	case "high", "alta":
		return PriorityHigh, true
	}
	return "", false
}
