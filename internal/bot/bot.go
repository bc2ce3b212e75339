package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-calendar/internal/logging"
	"task-calendar/internal/model"
	"task-calendar/internal/service"
)

const (
	cbCompletePrefix = "complete:"
	cbDeletePrefix   = "delete:"
	cbHistoryPrefix  = "history:"
)

const (
	btnSkip          = "⏭️ Skip"
	btnConfirm       = "✅ Confirm"
	btnCancel        = "↩️ Cancel"
	btnCancelDialog  = "⏪ Stop input"
	iconDefault      = "🟢"
	iconDue          = "⏳"
	iconOverdue      = "⚠️"
	iconHigh         = "‼️"
	menuLabelNewTask = "➕ New task"
	menuLabelTasks   = "📋 Tasks"
	menuLabelHistory = "📜 History"
	menuLabelHelp    = "ℹ️ Help"
)

// telegramAPI is the subset of *tgbotapi.BotAPI the bot uses.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Services are the application services the bot talks to.
type Services struct {
	Auth      *service.AuthService
	Tasks     *service.TaskService
	Projects  *service.ProjectService
	Reminders *service.ReminderService
}

type confirmationAction int

const (
	actionComplete confirmationAction = iota
	actionDelete
)

type confirmationRequest struct {
	taskID string
	action confirmationAction
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api           telegramAPI
	svc           Services
	loc           *time.Location
	now           func() time.Time
	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	mu            sync.Mutex
}

func New(token string, svc Services, loc *time.Location) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	logging.Logger.Infof("Event ID: BOT_AUTHORIZED, Description: bot authorized on account %s", api.Self.UserName)
	return newBot(api, svc, loc), nil
}

func newBot(api telegramAPI, svc Services, loc *time.Location) *Bot {
	if loc == nil {
		loc = time.Local
	}
	return &Bot{
		api:           api,
		svc:           svc,
		loc:           loc,
		now:           time.Now,
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	logging.Logger.Info("Event ID: BOT_POLLING, Description: start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		b.handleUpdate(ctx, update)
	}

	return nil
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			logging.Logger.Errorf("Event ID: BOT_CALLBACK_FAILED, Description: %v", err)
		}
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			logging.Logger.Errorf("Event ID: BOT_MESSAGE_FAILED, Description: %v", err)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	chatID := msg.Chat.ID

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(chatID)
		b.clearConfirmation(chatID)
		return b.sendText(chatID, "⏪ Input cancelled. Start again whenever you like.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		logging.Logger.Debugf("Event ID: BOT_COMMAND, Description: /%s from chat %d", msg.Command(), chatID)
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(chatID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if b.hasConversation(chatID) {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(chatID, "I did not get that. Use /newtask to add a task or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "link":
		return b.handleLink(ctx, msg)
	case "unlink":
		return b.handleUnlink(ctx, msg)
	case "report":
		return b.handleReport(ctx, msg)
	case "newtask":
		return b.startNewTaskConversation(ctx, msg)
	case "tasks":
		return b.handleListTasks(ctx, msg)
	case "history":
		return b.handleHistory(ctx, msg)
	case "stats":
		return b.handleStats(ctx, msg)
	case "cancel":
		b.clearConversation(msg.Chat.ID)
		b.clearConfirmation(msg.Chat.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}

	if _, err := b.svc.Auth.UserByChat(ctx, msg.Chat.ID); err != nil {
		if !errors.Is(err, service.ErrNotFound) {
			return err
		}
		text := fmt.Sprintf("👋 Hi, %s!\n<b>I keep an eye on your tasks and calendar.</b>\n\n"+
			"First link this chat to your account: create a code in the web app and send "+
			"<code>/link 123456</code> here.", escape(name))
		return b.sendText(msg.Chat.ID, text)
	}

	text := fmt.Sprintf("👋 Hi, %s!\n<b>This chat is linked to your account.</b>\n\n"+commandList, escape(name))
	return b.sendText(msg.Chat.ID, text)
}

const commandList = "Commands:\n" +
	"• /newtask — add a task step by step\n" +
	"• /tasks — open tasks, complete them with a button\n" +
	"• /history — recently changed tasks\n" +
	"• /stats — completion numbers\n" +
	"• /report — today's summary\n" +
	"• /unlink — disconnect this chat\n" +
	"• /cancel — stop the current input"

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	return b.sendText(msg.Chat.ID, "ℹ️ <b>Help</b>\n"+commandList+"\n• /link &lt;code&gt; — link this chat to your account")
}

func (b *Bot) handleLink(ctx context.Context, msg *tgbotapi.Message) error {
	code := strings.TrimSpace(msg.CommandArguments())
	if code == "" {
		return b.sendText(msg.Chat.ID, "Send the code from the web app: /link 123456")
	}

	user, err := b.svc.Auth.LinkTelegram(ctx, code, msg.Chat.ID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return b.sendText(msg.Chat.ID, "That code is unknown or has expired. Create a new one in the web app.")
		}
		if _, ok := service.AsValidation(err); ok {
			return b.sendText(msg.Chat.ID, "Send the code from the web app: /link 123456")
		}
		return err
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🔗 Linked to <b>%s</b>. You will get a daily summary here.", escape(user.Name)))
}

func (b *Bot) handleUnlink(ctx context.Context, msg *tgbotapi.Message) error {
	if err := b.svc.Auth.UnlinkTelegram(ctx, msg.Chat.ID); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return b.sendText(msg.Chat.ID, "This chat is not linked.")
		}
		return err
	}
	b.clearConversation(msg.Chat.ID)
	b.clearConfirmation(msg.Chat.ID)
	return b.sendTextWithRemove(msg.Chat.ID, "Chat unlinked. No more summaries will be sent here.")
}

func (b *Bot) handleReport(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.linkedUser(ctx, msg.Chat.ID)
	if user == nil {
		return err
	}
	text, err := b.svc.Reminders.DailySummary(ctx, *user, b.now().In(b.loc))
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not build the report: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleStats(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.linkedUser(ctx, msg.Chat.ID)
	if user == nil {
		return err
	}
	stats, err := b.svc.Tasks.Stats(ctx, user.ID)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("📊 <b>Your tasks</b>\n• Total: %d\n• Completed: %d\n• Pending: %d\n• Done: %.2f%%",
		stats.TotalTasks, stats.CompletedTasks, stats.PendingTasks, stats.CompletionPercentage)
	return b.sendText(msg.Chat.ID, text)
}

// SendDailyReports sends a summary to every linked user.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	users, err := b.svc.Auth.LinkedUsers(ctx)
	if err != nil {
		return err
	}
	now := b.now().In(b.loc)
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if user.TelegramChatID == nil {
			continue
		}
		text, err := b.svc.Reminders.DailySummary(ctx, user, now)
		if err != nil {
			logging.Logger.Errorf("Event ID: REPORT_BUILD_FAILED, Description: user %s: %v", user.ID, err)
			continue
		}
		if err := b.sendText(*user.TelegramChatID, text); err != nil {
			logging.Logger.Errorf("Event ID: REPORT_SEND_FAILED, Description: chat %d: %v", *user.TelegramChatID, err)
		}
	}
	return nil
}

// linkedUser resolves the account of a chat. For unlinked chats it sends a
// hint and returns a nil user.
func (b *Bot) linkedUser(ctx context.Context, chatID int64) (*model.User, error) {
	user, err := b.svc.Auth.UserByChat(ctx, chatID)
	if err == nil {
		return user, nil
	}
	if errors.Is(err, service.ErrNotFound) {
		return nil, b.sendText(chatID, "This chat is not linked yet. Create a code in the web app and send /link &lt;code&gt;.")
	}
	return nil, err
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelNewTask):
		return true, b.startNewTaskConversation(ctx, msg)
	case strings.ToLower(menuLabelTasks):
		return true, b.handleListTasks(ctx, msg)
	case strings.ToLower(menuLabelHistory):
		return true, b.handleHistory(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendTextWithRemove(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) ack(cb *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		logging.Logger.Warnf("Event ID: BOT_CALLBACK_ACK_FAILED, Description: %v", err)
	}
}

func (b *Bot) getConfirmation(chatID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[chatID]
	return req, ok
}

func (b *Bot) setConfirmation(chatID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[chatID] = req
}

func (b *Bot) clearConfirmation(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, chatID)
}

func (b *Bot) setConversation(chatID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[chatID] = state
}

func (b *Bot) getConversation(chatID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[chatID]
}

func (b *Bot) hasConversation(chatID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[chatID]
	return ok
}

func (b *Bot) clearConversation(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, chatID)
}

func confirmKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnConfirm),
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNewTask),
			tgbotapi.NewKeyboardButton(menuLabelTasks),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelHistory),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

// projectKeyboard offers one button per project name.
func projectKeyboard(projects []model.Project) tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(projects)+1)
	for _, p := range projects {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(p.Name)))
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelDialog)))
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "skip"
}

func isConfirmInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnConfirm) || value == "confirm" || value == "yes"
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancel) || value == "cancel" || value == "no"
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "stop"
}

func escape(s string) string {
	return html.EscapeString(s)
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}
