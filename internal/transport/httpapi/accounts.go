package httpapi

import (
	"errors"
	"net/http"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type loginResponse struct {
	Token   string `json:"token"`
	IsAdmin bool   `json:"isAdmin"`
}

func (s *server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, err := s.Accounts.Register(r.Context(), req.Username, req.Email, req.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, tokenResponse{Token: token})
	case errors.Is(err, domain.ErrUserExists):
		writeMessage(w, http.StatusBadRequest, "Username or email already exists")
	default:
		s.fail(w, r, err, "", "Error creating user")
	}
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := s.Accounts.Login(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, loginResponse{Token: session.Token, IsAdmin: session.IsAdmin})
	case errors.Is(err, domain.ErrNotFound):
		writeMessage(w, http.StatusBadRequest, "User not found")
	case errors.Is(err, domain.ErrInvalidPassword):
		writeMessage(w, http.StatusBadRequest, "Invalid password")
	default:
		s.fail(w, r, err, "", "Error finding user")
	}
}
