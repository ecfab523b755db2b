package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/vladislavdragonenkov/bookstore/internal/auth"
	"github.com/vladislavdragonenkov/bookstore/internal/service/idempotency"
)

// ReplayedHeader помечает ответ, отданный из хранилища идемпотентности.
const ReplayedHeader = "Idempotent-Replayed"

// idempotent выполняет запрос с Idempotency-Key не более одного раза на пользователя.
// Без заголовка или без настроенного хранилища запрос проходит как есть.
func (s *server) idempotent(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawKey := r.Header.Get(IdempotencyKeyHeader)
		if s.Idempotency == nil || rawKey == "" {
			next(w, r)
			return
		}

		id, _ := auth.IdentityFrom(r.Context())
		key, err := idempotency.ScopedKey(id.UserID, rawKey)
		if err != nil {
			s.fail(w, r, err, "", "Invalid idempotency key")
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		hash := idempotency.RequestHash([]byte(strconv.FormatInt(id.UserID, 10)), []byte(r.Method), []byte(r.URL.Path), body)
		outcome, err := s.Idempotency.Begin(r.Context(), key, hash)
		if err != nil {
			s.fail(w, r, err, "", "Error creating order")
			return
		}
		if outcome.Replay {
			s.Metrics.RecordIdempotentReplay()
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set(ReplayedHeader, "true")
			w.WriteHeader(outcome.Status)
			_, _ = w.Write(outcome.Body)
			return
		}

		rec := recordResponse(w)
		rec.capture = &bytes.Buffer{}
		defer func() {
			if p := recover(); p != nil {
				// Ключ не должен остаться в processing до истечения TTL.
				body, _ := json.Marshal(messageResponse{Message: panicMessage})
				s.Idempotency.Fail(r.Context(), key, http.StatusInternalServerError, body)
				panic(p)
			}
		}()
		next(rec, r)
		s.Idempotency.Complete(r.Context(), key, rec.statusCode(), rec.capture.Bytes())
		rec.capture = nil
	}
}
