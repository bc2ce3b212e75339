package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"task-calendar/internal/service"
)

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.Projects.List(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, projects)
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var in service.ProjectInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	project, err := s.Projects.Create(r.Context(), userID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, project)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.Projects.FetchOwned(r.Context(), mux.Vars(r)["id"], userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, project)
}

func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	var in service.ProjectInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	project, err := s.Projects.Update(r.Context(), mux.Vars(r)["id"], userID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, project)
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	if _, err := s.Projects.DeleteOwned(r.Context(), mux.Vars(r)["id"], userID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, true, "project and its tasks deleted")
}

func (s *Server) projectStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Projects.Stats(r.Context(), mux.Vars(r)["id"], userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}

func (s *Server) projectTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.Tasks.ProjectTasks(r.Context(), mux.Vars(r)["id"], userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, taskViews(tasks))
}
