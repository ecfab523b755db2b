package httpapi

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore/internal/auth"
)

// RequestIDHeader — заголовок с идентификатором запроса.
const RequestIDHeader = "X-Request-ID"

const panicMessage = "Something went wrong!"

type middleware func(http.Handler) http.Handler

// chain применяет middleware так, что последний в списке выполняется первым.
func chain(h http.Handler, mws ...middleware) http.Handler {
	for _, mw := range mws {
		h = mw(h)
	}
	return h
}

// responseRecorder запоминает статус и, при необходимости, копию тела ответа.
type responseRecorder struct {
	http.ResponseWriter
	status  int
	capture *bytes.Buffer
}

func (r *responseRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	if r.capture != nil {
		r.capture.Write(p)
	}
	return r.ResponseWriter.Write(p)
}

func (r *responseRecorder) statusCode() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func recordResponse(w http.ResponseWriter) *responseRecorder {
	if rec, ok := w.(*responseRecorder); ok {
		return rec
	}
	return &responseRecorder{ResponseWriter: w}
}

type requestIDKey struct{}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestLogger(r *http.Request, base *log.Entry) *log.Entry {
	entry := base.WithFields(log.Fields{"method": r.Method, "path": r.URL.Path})
	if id, ok := r.Context().Value(requestIDKey{}).(string); ok {
		entry = entry.WithField("request_id", id)
	}
	return entry
}

func (s *server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := recordResponse(w)
		next.ServeHTTP(rec, r)

		requestLogger(r, s.Logger).WithFields(log.Fields{
			"status":      rec.statusCode(),
			"duration_ms": time.Since(started).Milliseconds(),
		}).Info("http request")
	})
}

func (s *server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				requestLogger(r, s.Logger).WithField("panic", rec).Error("handler panicked")
				writeMessage(w, http.StatusInternalServerError, panicMessage)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// cors разрешает запросы браузерного клиента с любого origin.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, "+IdempotencyKeyHeader+", "+RequestIDHeader)
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) instrument(route string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := recordResponse(w)
		next(rec, r)
		s.Metrics.RecordHTTPRequest(r.Method, route, rec.statusCode(), time.Since(started))
	})
}

// requireUser пропускает только запросы с действительным Bearer-токеном.
func (s *server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := s.Auth.Authenticate(r.Context(), auth.BearerToken(r.Header.Get("Authorization")))
		if err != nil {
			s.fail(w, r, err, "", "Access denied")
			return
		}
		next(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	}
}

// requireAdmin дополнительно проверяет флаг администратора.
func (s *server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return s.requireUser(func(w http.ResponseWriter, r *http.Request) {
		id, _ := auth.IdentityFrom(r.Context())
		if err := auth.RequireAdmin(r.Context(), s.Users, id); err != nil {
			s.fail(w, r, err, "", "Access denied")
			return
		}
		next(w, r)
	})
}
