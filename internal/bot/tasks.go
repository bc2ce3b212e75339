package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-calendar/internal/logging"
	"task-calendar/internal/model"
	"task-calendar/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageProject
	stageDeadline
)

type conversationState struct {
	stage    conversationStage
	userID   string
	input    service.TaskInput
	projects []model.Project
}

// historyEntriesShown caps the entries listed per task in chat.
const historyEntriesShown = 8

func (b *Bot) startNewTaskConversation(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.linkedUser(ctx, msg.Chat.ID)
	if user == nil {
		return err
	}
	projects, err := b.svc.Projects.List(ctx, user.ID)
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		return b.sendText(msg.Chat.ID, "You have no projects yet. Create one in the web app first.")
	}

	b.setConversation(msg.Chat.ID, &conversationState{stage: stageTitle, userID: user.ID, projects: projects})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New task.\n<b>Step 1:</b> what should it be called?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	state := b.getConversation(chatID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageTitle:
		if len([]rune(text)) < 3 {
			return b.sendWithReplyMarkup(chatID, "The title needs at least 3 characters.", cancelKeyboard())
		}
		state.input.Title = text
		if len(state.projects) == 1 {
			state.input.ProjectID = state.projects[0].ID
			state.stage = stageDeadline
			return b.sendWithReplyMarkup(chatID, "⏰ Due date as <code>2025-11-30</code> (or «Skip»).", skipKeyboard())
		}
		state.stage = stageProject
		return b.sendWithReplyMarkup(chatID, "📁 <b>Step 2:</b> which project?", projectKeyboard(state.projects))
	case stageProject:
		for _, p := range state.projects {
			if strings.EqualFold(strings.TrimSpace(p.Name), text) {
				state.input.ProjectID = p.ID
				state.stage = stageDeadline
				return b.sendWithReplyMarkup(chatID, "⏰ Due date as <code>2025-11-30</code> (or «Skip»).", skipKeyboard())
			}
		}
		return b.sendWithReplyMarkup(chatID, "Pick one of the projects below.", projectKeyboard(state.projects))
	case stageDeadline:
		if !isSkipInput(text) {
			parsed, err := time.ParseInLocation("2006-01-02", text, b.loc)
			if err != nil {
				return b.sendWithReplyMarkup(chatID, "I cannot read that date. Use <code>2025-11-30</code> or «Skip».", skipKeyboard())
			}
			state.input.DueDate = &parsed
		}
		err := b.finishTaskCreation(ctx, chatID, state)
		b.clearConversation(chatID)
		return err
	default:
		b.clearConversation(chatID)
		return b.sendText(chatID, "Input reset. Try again with /newtask.")
	}
}

func (b *Bot) finishTaskCreation(ctx context.Context, chatID int64, state *conversationState) error {
	task, err := b.svc.Tasks.CreateTask(ctx, state.userID, state.input)
	if err != nil {
		if problems, ok := service.AsValidation(err); ok {
			return b.sendText(chatID, fmt.Sprintf("Could not save the task: %s", escape(problems.Error())))
		}
		return err
	}

	logging.Logger.Infof("Event ID: BOT_TASK_CREATED, Description: task %s created from chat %d", task.ID, chatID)

	var summary strings.Builder
	summary.WriteString("✅ <b>Task saved</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>Title:</b> %s\n", escape(normalizeTitle(task.Title))))
	if task.DueDate != nil {
		summary.WriteString(fmt.Sprintf("• <b>Due:</b> %s\n", task.DueDate.In(b.loc).Format("2006-01-02")))
	}
	summary.WriteString(fmt.Sprintf("• <b>Priority:</b> %s", task.Priority))
	if err := b.sendTextWithRemove(chatID, summary.String()); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, state.userID)
}

func (b *Bot) handleListTasks(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.linkedUser(ctx, msg.Chat.ID)
	if user == nil {
		return err
	}
	return b.sendTaskList(ctx, msg.Chat.ID, user.ID)
}

// sendTaskList shows open tasks grouped by project, earliest due date first,
// each with complete, history and delete buttons.
func (b *Bot) sendTaskList(ctx context.Context, chatID int64, userID string) error {
	open := false
	tasks, err := b.svc.Tasks.ListTasks(ctx, userID, service.TaskQuery{Completed: &open})
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return b.sendText(chatID, "No open tasks. Add one with /newtask.")
	}

	projects, err := b.svc.Projects.List(ctx, userID)
	if err != nil {
		return err
	}
	names := make(map[string]string, len(projects))
	for _, p := range projects {
		names[p.ID] = p.Name
	}

	groups := make(map[string][]model.Task)
	order := make([]string, 0)
	for _, task := range tasks {
		if _, ok := groups[task.ProjectID]; !ok {
			order = append(order, task.ProjectID)
		}
		groups[task.ProjectID] = append(groups[task.ProjectID], task)
	}
	sort.Slice(order, func(i, j int) bool {
		return strings.ToLower(names[order[i]]) < strings.ToLower(names[order[j]])
	})

	now := b.now().In(b.loc)
	var builder strings.Builder
	builder.WriteString("📋 <b>Open tasks</b>\n")
	builder.WriteString("Use the buttons to complete a task, see its history or delete it.\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	n := 0
	for _, projectID := range order {
		section := groups[projectID]
		sortByDueDate(section)

		builder.WriteString(fmt.Sprintf("📁 <b>%s</b>\n", escape(names[projectID])))
		for _, task := range section {
			n++
			builder.WriteString(b.formatTask(n, task, now))
			buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ %d · %s", n, shortTitle(task.Title, 20)), cbCompletePrefix+task.ID),
				tgbotapi.NewInlineKeyboardButtonData("📜", cbHistoryPrefix+task.ID),
				tgbotapi.NewInlineKeyboardButtonData("🗑", cbDeletePrefix+task.ID),
			))
		}
		builder.WriteByte('\n')
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(msg)
	return err
}

func sortByDueDate(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, c := tasks[i].DueDate, tasks[j].DueDate
		switch {
		case a != nil && c != nil:
			return a.Before(*c)
		case a != nil:
			return true
		default:
			return false
		}
	})
}

func (b *Bot) formatTask(n int, task model.Task, now time.Time) string {
	var sb strings.Builder
	icon := iconDefault
	if task.DueDate != nil {
		d := task.DueDate.In(b.loc)
		if now.After(d.AddDate(0, 0, 1)) {
			icon = iconOverdue
		} else if d.Sub(now) <= 48*time.Hour {
			icon = iconDue
		}
	}
	if task.Priority == model.PriorityHigh {
		icon += iconHigh
	}
	sb.WriteString(fmt.Sprintf("%s <b>%d.</b> %s\n", icon, n, escape(normalizeTitle(task.Title))))
	if task.DueDate != nil {
		sb.WriteString(fmt.Sprintf("   ⏰ Due %s\n", task.DueDate.In(b.loc).Format("2006-01-02")))
	}
	if task.Category != "" {
		sb.WriteString(fmt.Sprintf("   🏷️ #%s\n", escape(task.Category)))
	}
	return sb.String()
}

// handleHistory lists the five most recently changed tasks.
func (b *Bot) handleHistory(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.linkedUser(ctx, msg.Chat.ID)
	if user == nil {
		return err
	}
	tasks, err := b.svc.Tasks.TasksWithHistory(ctx, user.ID)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return b.sendText(msg.Chat.ID, "No changes recorded yet.")
	}
	if len(tasks) > 5 {
		tasks = tasks[:5]
	}

	var sb strings.Builder
	sb.WriteString("📜 <b>Recently changed</b>\n\n")
	var buttons [][]tgbotapi.InlineKeyboardButton
	for i, task := range tasks {
		summary := task.HistorySummary()
		sb.WriteString(fmt.Sprintf("<b>%d.</b> %s\n   %d change(s), last %s\n",
			i+1, escape(normalizeTitle(task.Title)), summary.TotalChanges, summary.LastChange.In(b.loc).Format("2006-01-02 15:04")))
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("📜 %d · %s", i+1, shortTitle(task.Title, 24)), cbHistoryPrefix+task.ID),
		))
	}

	out := tgbotapi.NewMessage(msg.Chat.ID, strings.TrimSpace(sb.String()))
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	out.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(out)
	return err
}

func (b *Bot) sendTaskHistory(ctx context.Context, chatID int64, userID, taskID string) error {
	task, err := b.svc.Tasks.FetchOwned(ctx, taskID, userID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return b.sendText(chatID, "Task not found.")
		}
		return err
	}
	return b.sendText(chatID, b.formatHistory(task))
}

func (b *Bot) formatHistory(task *model.Task) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📜 <b>%s</b>\n", escape(normalizeTitle(task.Title))))
	sb.WriteString(fmt.Sprintf("Created %s\n", task.CreatedAt.In(b.loc).Format("2006-01-02 15:04")))

	entries := task.HistoryNewestFirst()
	if len(entries) == 0 {
		sb.WriteString("No changes recorded.")
		return sb.String()
	}
	sb.WriteString(fmt.Sprintf("%d change(s), newest first:\n", len(entries)))
	for i, e := range entries {
		if i == historyEntriesShown {
			sb.WriteString(fmt.Sprintf("… and %d more", len(entries)-historyEntriesShown))
			break
		}
		sb.WriteString(fmt.Sprintf("• %s <b>%s</b>: %s → %s\n",
			e.ChangedAt.In(b.loc).Format("2006-01-02 15:04"), e.Field, escape(e.OldValue.String()), escape(e.NewValue.String())))
	}
	return strings.TrimSpace(sb.String())
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	b.ack(cb)

	chatID := cb.Message.Chat.ID
	user, err := b.linkedUser(ctx, chatID)
	if user == nil {
		return err
	}

	data := cb.Data
	switch {
	case strings.HasPrefix(data, cbCompletePrefix):
		return b.askConfirmation(ctx, chatID, user.ID, strings.TrimPrefix(data, cbCompletePrefix), actionComplete)
	case strings.HasPrefix(data, cbDeletePrefix):
		return b.askConfirmation(ctx, chatID, user.ID, strings.TrimPrefix(data, cbDeletePrefix), actionDelete)
	case strings.HasPrefix(data, cbHistoryPrefix):
		return b.sendTaskHistory(ctx, chatID, user.ID, strings.TrimPrefix(data, cbHistoryPrefix))
	default:
		return nil
	}
}

func (b *Bot) askConfirmation(ctx context.Context, chatID int64, userID, taskID string, action confirmationAction) error {
	task, err := b.svc.Tasks.FetchOwned(ctx, taskID, userID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return b.sendText(chatID, "Task not found.")
		}
		return err
	}

	var text string
	switch action {
	case actionComplete:
		if task.Completed {
			return b.sendText(chatID, "That task is already completed.")
		}
		text = fmt.Sprintf("Mark «%s» as completed?", escape(normalizeTitle(task.Title)))
	case actionDelete:
		text = fmt.Sprintf("Delete «%s» and its history?", escape(normalizeTitle(task.Title)))
	}
	b.setConfirmation(chatID, confirmationRequest{taskID: task.ID, action: action})
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	chatID := msg.Chat.ID
	switch {
	case isConfirmInput(msg.Text):
		b.clearConfirmation(chatID)
		user, err := b.linkedUser(ctx, chatID)
		if user == nil {
			return err
		}
		if req.action == actionDelete {
			return b.deleteTaskAndRefresh(ctx, chatID, user.ID, req.taskID)
		}
		return b.completeTaskAndRefresh(ctx, chatID, user.ID, req.taskID)
	case isCancelInput(msg.Text):
		b.clearConfirmation(chatID)
		return b.sendText(chatID, "Okay, nothing changed.")
	default:
		return b.sendWithReplyMarkup(chatID, "Press «Confirm» or «Cancel».", confirmKeyboard())
	}
}

func (b *Bot) completeTaskAndRefresh(ctx context.Context, chatID int64, userID, taskID string) error {
	task, err := b.svc.Tasks.SetCompleted(ctx, taskID, userID, true)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return b.sendTextWithRemove(chatID, "Task not found or already deleted.")
		}
		return err
	}

	logging.Logger.Infof("Event ID: BOT_TASK_COMPLETED, Description: task %s completed from chat %d", task.ID, chatID)
	if err := b.sendTextWithRemove(chatID, fmt.Sprintf("✅ «%s» completed.", escape(normalizeTitle(task.Title)))); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, userID)
}

func (b *Bot) deleteTaskAndRefresh(ctx context.Context, chatID int64, userID, taskID string) error {
	task, err := b.svc.Tasks.DeleteOwned(ctx, taskID, userID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return b.sendTextWithRemove(chatID, "Task not found or already deleted.")
		}
		return err
	}

	logging.Logger.Infof("Event ID: BOT_TASK_DELETED, Description: task %s deleted from chat %d", task.ID, chatID)
	if err := b.sendTextWithRemove(chatID, fmt.Sprintf("🗑 «%s» deleted.", escape(normalizeTitle(task.Title)))); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, userID)
}
