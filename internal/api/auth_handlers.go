package api

import (
	"net/http"

	"task-calendar/internal/service"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := s.Auth.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, user)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if in.Email == "" || in.Password == "" {
		writeError(w, r, service.ValidationErrors{{Field: "email", Message: "email and password are required"}})
		return
	}
	token, user, err := s.Auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	user, err := s.Auth.CurrentUser(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, user)
}

func (s *Server) linkCode(w http.ResponseWriter, r *http.Request) {
	code, expiry, err := s.Auth.IssueLinkCode(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, map[string]any{
		"code":      code,
		"expiresAt": expiry,
		"hint":      "send /link " + code + " to the Telegram bot",
	})
}
