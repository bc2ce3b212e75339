package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"task-calendar/internal/model"
	"task-calendar/internal/service"
)

type taskView struct {
	model.Task
	LastChangedAt time.Time `json:"lastChangedAt"`
}

func newTaskView(task *model.Task) taskView {
	return taskView{Task: *task, LastChangedAt: task.LastChangedAt()}
}

func taskViews(tasks []model.Task) []taskView {
	views := make([]taskView, len(tasks))
	for i := range tasks {
		views[i] = newTaskView(&tasks[i])
	}
	return views
}

// taskRequest is the wire form of create and update bodies. An empty dueDate
// on update clears the due date.
type taskRequest struct {
	ProjectID   *string `json:"projectId"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Priority    *string `json:"priority"`
	Completed   *bool   `json:"completed"`
	Category    *string `json:"category"`
	DueDate     *string `json:"dueDate"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// parseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
func (s *Server) parseDate(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", raw, s.Location); err == nil {
		return t, nil
	}
	return time.Time{}, service.ValidationErrors{{Field: field, Message: "must be a date (YYYY-MM-DD) or RFC 3339 timestamp"}}
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in := service.TaskInput{
		ProjectID:   deref(req.ProjectID),
		Title:       deref(req.Title),
		Description: deref(req.Description),
		Priority:    deref(req.Priority),
		Category:    deref(req.Category),
	}
	if raw := deref(req.DueDate); raw != "" {
		due, err := s.parseDate("dueDate", raw)
		if err != nil {
			writeError(w, r, err)
			return
		}
		in.DueDate = &due
	}

	task, err := s.Tasks.CreateTask(r.Context(), userID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, newTaskView(task))
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := service.TaskQuery{ProjectID: q.Get("projectId")}
	if raw := q.Get("completed"); raw != "" {
		completed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, service.ValidationErrors{{Field: "completed", Message: "must be true or false"}})
			return
		}
		query.Completed = &completed
	}
	if raw := q.Get("date"); raw != "" {
		date, err := s.parseDate("date", raw)
		if err != nil {
			writeError(w, r, err)
			return
		}
		query.Date = &date
	}

	tasks, err := s.Tasks.ListTasks(r.Context(), userID(r), query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, taskViews(tasks))
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.Tasks.FetchOwned(r.Context(), mux.Vars(r)["id"], userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"task":    newTaskView(task),
		"summary": task.HistorySummary(),
	})
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	patch := service.TaskPatch{
		ProjectID:   req.ProjectID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Completed:   req.Completed,
		Category:    req.Category,
	}
	if req.DueDate != nil {
		if strings.TrimSpace(*req.DueDate) == "" {
			patch.ClearDueDate = true
		} else {
			due, err := s.parseDate("dueDate", *req.DueDate)
			if err != nil {
				writeError(w, r, err)
				return
			}
			patch.DueDate = &due
		}
	}

	task, err := s.Tasks.UpdateOwned(r.Context(), mux.Vars(r)["id"], userID(r), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, newTaskView(task))
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	if _, err := s.Tasks.DeleteOwned(r.Context(), mux.Vars(r)["id"], userID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, true, "task deleted")
}

func (s *Server) toggleTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.Tasks.Toggle(r.Context(), mux.Vars(r)["id"], userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, newTaskView(task))
}

func (s *Server) tasksWithHistory(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.Tasks.TasksWithHistory(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, taskViews(tasks))
}

func (s *Server) taskHistory(w http.ResponseWriter, r *http.Request) {
	task, err := s.Tasks.FetchOwned(r.Context(), mux.Vars(r)["id"], userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	history := task.History
	if strings.EqualFold(r.URL.Query().Get("order"), "desc") {
		history = task.HistoryNewestFirst()
	}
	if history == nil {
		history = []model.HistoryEntry{}
	}
	writeData(w, http.StatusOK, map[string]any{
		"taskId":  task.ID,
		"title":   task.Title,
		"history": history,
		"summary": task.HistorySummary(),
	})
}

func (s *Server) taskFieldHistory(w http.ResponseWriter, r *http.Request) {
	field := mux.Vars(r)["field"]
	if !model.IsMonitoredField(field) {
		writeError(w, r, service.ValidationErrors{{
			Field:   "field",
			Message: "must be one of " + strings.Join(model.MonitoredFields, ", "),
		}})
		return
	}
	task, err := s.Tasks.FetchOwned(r.Context(), mux.Vars(r)["id"], userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"taskId":  task.ID,
		"field":   field,
		"history": task.HistoryFor(field),
	})
}

func (s *Server) taskLastChange(w http.ResponseWriter, r *http.Request) {
	task, err := s.Tasks.FetchOwned(r.Context(), mux.Vars(r)["id"], userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var last *model.HistoryEntry
	if n := len(task.History); n > 0 {
		last = &task.History[n-1]
	}
	writeData(w, http.StatusOK, map[string]any{
		"taskId":        task.ID,
		"title":         task.Title,
		"createdAt":     task.CreatedAt,
		"lastChangedAt": task.LastChangedAt(),
		"totalChanges":  len(task.History),
		"lastEntry":     last,
	})
}

func (s *Server) userStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Tasks.Stats(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"stats":       stats.CompletionStats,
		"recentTasks": taskViews(stats.RecentTasks),
	})
}
