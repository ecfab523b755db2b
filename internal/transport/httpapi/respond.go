package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/vladislavdragonenkov/bookstore/internal/auth"
	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/service/idempotency"
)

const maxBodyBytes = 1 << 20

type messageResponse struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}

// fail переводит ошибку сервиса в стабильную пару статус/сообщение.
// fallback используется для ошибок хранилища: текст драйвера клиенту не отдаётся.
func (s *server) fail(w http.ResponseWriter, r *http.Request, err error, notFound, fallback string) {
	switch {
	case errors.Is(err, auth.ErrMissingCredentials):
		writeMessage(w, http.StatusUnauthorized, "Access denied")
	case errors.Is(err, domain.ErrUnauthenticated):
		writeMessage(w, http.StatusForbidden, "Invalid token")
	case errors.Is(err, domain.ErrForbidden):
		writeMessage(w, http.StatusForbidden, "Access denied")
	case errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Invalid request", Errors: domain.Reasons(err)})
	case errors.Is(err, domain.ErrNotFound):
		writeMessage(w, http.StatusNotFound, notFound)
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		writeMessage(w, http.StatusConflict, "Idempotency key was already used with a different request")
	case errors.Is(err, idempotency.ErrRequestInProgress):
		writeMessage(w, http.StatusConflict, "Request is already processing")
	case errors.Is(err, idempotency.ErrKeyTooLong):
		writeMessage(w, http.StatusBadRequest, "Idempotency key is too long")
	default:
		requestLogger(r, s.Logger).WithError(err).Error(fallback)
		writeMessage(w, http.StatusInternalServerError, fallback)
	}
}

// decodeJSON читает тело запроса не длиннее maxBodyBytes.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// pathID разбирает {id}; false: id некорректен и уже отвечено 404.
func pathID(w http.ResponseWriter, r *http.Request, notFound string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeMessage(w, http.StatusNotFound, notFound)
		return 0, false
	}
	return id, true
}
