package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"task-calendar/internal/model"
	"task-calendar/internal/repository"
)

// ReminderService builds human-readable summaries for daily notifications.
type ReminderService struct {
	tasks    repository.TaskStore
	projects repository.ProjectStore
	holidays HolidayProvider
}

func NewReminderService(tasks repository.TaskStore, projects repository.ProjectStore, holidays HolidayProvider) *ReminderService {
	return &ReminderService{tasks: tasks, projects: projects, holidays: holidays}
}

// DailySummary lists the user's open tasks, earliest due date first, and
// mentions today's holiday if there is one.
func (s *ReminderService) DailySummary(ctx context.Context, user model.User, now time.Time) (string, error) {
	open := false
	pending, err := s.tasks.List(ctx, repository.TaskFilter{UserID: user.ID, Completed: &open})
	if err != nil {
		return "", err
	}

	projects, err := s.projects.ListByUser(ctx, user.ID)
	if err != nil {
		return "", err
	}
	projectNames := make(map[string]string, len(projects))
	for _, p := range projects {
		projectNames[p.ID] = p.Name
	}

	sort.SliceStable(pending, func(i, j int) bool {
		switch {
		case pending[i].DueDate == nil && pending[j].DueDate == nil:
			return pending[i].CreatedAt.After(pending[j].CreatedAt)
		case pending[i].DueDate == nil:
			return false
		case pending[j].DueDate == nil:
			return true
		default:
			return pending[i].DueDate.Before(*pending[j].DueDate)
		}
	})

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily report</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n", now.Format("Mon, 02 Jan 2006")))

	if s.holidays != nil {
		today := now.Format("2006-01-02")
		for _, h := range s.holidays.Holidays(ctx, now.Year()) {
			if h.Date == today {
				builder.WriteString(fmt.Sprintf("🎉 Today is a holiday: <b>%s</b>\n", html.EscapeString(h.Name)))
				break
			}
		}
	}

	builder.WriteString("\n🔥 <b>Open tasks</b>\n")
	if len(pending) == 0 {
		builder.WriteString("- nothing open, enjoy the day\n")
	} else {
		for _, task := range pending {
			builder.WriteString(formatTask(task, projectNames, now))
		}
	}

	return strings.TrimSpace(builder.String()), nil
}

func formatTask(task model.Task, projectNames map[string]string, now time.Time) string {
	var sb strings.Builder

	icon := "🟢"
	switch task.Priority {
	case model.PriorityHigh:
		icon = "🔴"
	case model.PriorityMedium:
		icon = "🟡"
	}
	if task.DueDate != nil {
		d := task.DueDate.In(now.Location())
		switch {
		case now.After(d):
			icon = "⚠️"
		case d.Sub(now) <= 48*time.Hour:
			icon = "⏳"
		}
	}

	title := html.EscapeString(strings.TrimSpace(task.Title))
	sb.WriteString(fmt.Sprintf("%s %s", icon, title))

	if name, ok := projectNames[task.ProjectID]; ok && strings.TrimSpace(name) != "" {
		sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(strings.TrimSpace(name))))
	}
	if task.Category != "" {
		sb.WriteString(fmt.Sprintf(" #%s", html.EscapeString(task.Category)))
	}

	if task.DueDate != nil {
		d := task.DueDate.In(now.Location())
		if now.After(d) {
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s, <b>overdue</b>", d.Format("2006-01-02")))
		} else {
			daysLeft := int(d.Sub(now).Hours()/24) + 1
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s, about %d day(s) left", d.Format("2006-01-02"), daysLeft))
		}
	}

	if task.Description != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", html.EscapeString(strings.TrimSpace(task.Description))))
	}

	sb.WriteByte('\n')
	return sb.String()
}
