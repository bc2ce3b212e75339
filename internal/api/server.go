package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"task-calendar/internal/logging"
	"task-calendar/internal/service"
)

// Deps are the services the HTTP layer calls.
type Deps struct {
	Auth       *service.AuthService
	Projects   *service.ProjectService
	Tasks      *service.TaskService
	Calendar   *service.CalendarService
	Holidays   *service.HolidayService
	CORSOrigin string
	Location   *time.Location
}

// Server maps HTTP requests onto the services.
type Server struct {
	Deps
	now func() time.Time
}

func NewServer(deps Deps) *Server {
	if deps.CORSOrigin == "" {
		deps.CORSOrigin = "*"
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	return &Server{Deps: deps, now: time.Now}
}

// Routes builds the router. Everything except health and auth needs a bearer token.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, false, "route not found")
	})
	r.Use(logRequests)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.health).Methods(http.MethodGet)
	api.HandleFunc("/auth/register", s.register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.login).Methods(http.MethodPost)

	secured := api.NewRoute().Subrouter()
	secured.Use(s.requireAuth)

	secured.HandleFunc("/me", s.me).Methods(http.MethodGet)
	secured.HandleFunc("/telegram/link-code", s.linkCode).Methods(http.MethodPost)

	secured.HandleFunc("/projects", s.listProjects).Methods(http.MethodGet)
	secured.HandleFunc("/projects", s.createProject).Methods(http.MethodPost)
	secured.HandleFunc("/projects/{id}", s.getProject).Methods(http.MethodGet)
	secured.HandleFunc("/projects/{id}", s.updateProject).Methods(http.MethodPut)
	secured.HandleFunc("/projects/{id}", s.deleteProject).Methods(http.MethodDelete)
	secured.HandleFunc("/projects/{id}/stats", s.projectStats).Methods(http.MethodGet)
	secured.HandleFunc("/projects/{id}/tasks", s.projectTasks).Methods(http.MethodGet)

	secured.HandleFunc("/tasks", s.listTasks).Methods(http.MethodGet)
	secured.HandleFunc("/tasks", s.createTask).Methods(http.MethodPost)
	secured.HandleFunc("/tasks/history", s.tasksWithHistory).Methods(http.MethodGet)
	secured.HandleFunc("/tasks/{id}", s.getTask).Methods(http.MethodGet)
	secured.HandleFunc("/tasks/{id}", s.updateTask).Methods(http.MethodPut)
	secured.HandleFunc("/tasks/{id}", s.deleteTask).Methods(http.MethodDelete)
	secured.HandleFunc("/tasks/{id}/toggle", s.toggleTask).Methods(http.MethodPatch)
	secured.HandleFunc("/tasks/{id}/history", s.taskHistory).Methods(http.MethodGet)
	secured.HandleFunc("/tasks/{id}/history/{field}", s.taskFieldHistory).Methods(http.MethodGet)
	secured.HandleFunc("/tasks/{id}/last-change", s.taskLastChange).Methods(http.MethodGet)

	secured.HandleFunc("/stats", s.userStats).Methods(http.MethodGet)
	secured.HandleFunc("/calendar", s.calendarMonth).Methods(http.MethodGet)
	secured.HandleFunc("/holidays/cache", s.holidayCacheStats).Methods(http.MethodGet)
	secured.HandleFunc("/holidays/cache", s.clearHolidayCache).Methods(http.MethodDelete)
	secured.HandleFunc("/holidays/{year:[0-9]{4}}", s.holidays).Methods(http.MethodGet)

	return s.enableCORS(r)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]any{"status": "ok", "time": s.now().UTC()})
}

func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.CORSOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type ctxKey struct{}

// requireAuth validates the bearer token and stores the user id in the context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if header == "" || token == header {
			logging.Logger.Warnf("Event ID: JWT_AUTH_MISSING_HEADER, Description: bearer token missing for %s %s", r.Method, r.URL.Path)
			writeMessage(w, http.StatusUnauthorized, false, "authorization token required")
			return
		}

		userID, err := s.Auth.ParseToken(strings.TrimSpace(token))
		if err != nil {
			logging.Logger.Warnf("Event ID: JWT_AUTH_INVALID_TOKEN, Description: invalid token for %s %s: %v", r.Method, r.URL.Path, err)
			writeMessage(w, http.StatusUnauthorized, false, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, userID)))
	})
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.Logger.Debugf("Event ID: HTTP_REQUEST, Description: %s %s -> %d in %s", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}
