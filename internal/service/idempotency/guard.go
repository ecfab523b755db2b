// Package idempotency обеспечивает повтор запросов по Idempotency-Key без повторного
// выполнения и чистит просроченные ключи.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

// DefaultTTL — время жизни ключа по умолчанию.
const DefaultTTL = 24 * time.Hour

// MaxKeyLength — предельная длина клиентского ключа.
const MaxKeyLength = 255

// completeTimeout ограничивает запись результата после того, как клиент мог уже отключиться.
const completeTimeout = 5 * time.Second

var (
	// ErrRequestInProgress — первый запрос с этим ключом ещё выполняется.
	ErrRequestInProgress = fmt.Errorf("request is already processing: %w", domain.ErrIdempotencyKeyAlreadyExists)
	// ErrKeyTooLong — ключ длиннее MaxKeyLength.
	ErrKeyTooLong = errors.New("idempotency key is too long")
)

// Outcome — решение Guard по входящему запросу.
type Outcome struct {
	// Replay означает, что запрос уже выполнялся и нужно вернуть сохранённый ответ.
	Replay bool
	// Failed — сохранённый ответ описывает ошибку.
	Failed bool
	Status int
	Body   []byte
}

// Guard занимает ключи идемпотентности и сохраняет ответы.
type Guard struct {
	repo   domain.IdempotencyRepository
	ttl    time.Duration
	now    func() time.Time
	logger *log.Entry
}

// GuardOption настраивает Guard.
type GuardOption func(*Guard)

// WithTTL задаёт время жизни ключа.
func WithTTL(ttl time.Duration) GuardOption {
	return func(g *Guard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithGuardLogger задаёт logger.
func WithGuardLogger(logger *log.Entry) GuardOption {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithClock подменяет источник времени (используется в тестах).
func WithClock(now func() time.Time) GuardOption {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGuard создаёт Guard поверх хранилища ключей.
func NewGuard(repo domain.IdempotencyRepository, opts ...GuardOption) *Guard {
	g := &Guard{
		repo:   repo,
		ttl:    DefaultTTL,
		now:    func() time.Time { return time.Now().UTC() },
		logger: log.WithField("component", "idempotency"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ScopedKey привязывает клиентский ключ к пользователю: разные пользователи не видят ответов друг друга.
func ScopedKey(userID int64, key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", domain.ErrIdempotencyKeyRequired
	}
	if len(key) > MaxKeyLength {
		return "", ErrKeyTooLong
	}
	return fmt.Sprintf("user:%d:%s", userID, key), nil
}

// RequestHash считает SHA-256 от частей запроса (пользователь, метод, тело).
func RequestHash(parts ...[]byte) string {
	h := sha256.New()
	for _, part := range parts {
		fmt.Fprintf(h, "%d:", len(part))
		h.Write(part)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Begin занимает ключ. Повтор уже выполненного запроса возвращает Outcome{Replay: true}.
// Ключ с другим телом: domain.ErrIdempotencyHashMismatch, незавершённый: ErrRequestInProgress.
func (g *Guard) Begin(ctx context.Context, key, requestHash string) (Outcome, error) {
	record, err := g.repo.CreateProcessing(ctx, key, requestHash, g.now().Add(g.ttl))
	if err == nil {
		return Outcome{}, nil
	}

	switch {
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return Outcome{}, err
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		if record.RequestHash != "" && record.RequestHash != requestHash {
			return Outcome{}, domain.ErrIdempotencyHashMismatch
		}
		switch record.Status {
		case domain.IdempotencyStatusDone, domain.IdempotencyStatusFailed:
			return Outcome{
				Replay: true,
				Failed: record.Status == domain.IdempotencyStatusFailed,
				Status: record.HTTPStatus,
				Body:   record.ResponseBody,
			}, nil
		default:
			return Outcome{}, ErrRequestInProgress
		}
	default:
		return Outcome{}, fmt.Errorf("%w: reserve idempotency key: %w", domain.ErrStoreFailure, err)
	}
}

// Complete сохраняет HTTP-ответ: 2xx: done, остальные: failed.
func (g *Guard) Complete(ctx context.Context, key string, status int, body []byte) {
	if status >= 200 && status < 300 {
		g.Done(ctx, key, status, body)
		return
	}
	g.Fail(ctx, key, status, body)
}

// Done сохраняет успешный ответ. Ошибка сохранения только логируется.
// Отмена ctx не прерывает запись: заказ к этому моменту уже зафиксирован.
func (g *Guard) Done(ctx context.Context, key string, status int, body []byte) {
	ctx, cancel := detach(ctx)
	defer cancel()
	if err := g.repo.MarkDone(ctx, key, body, status); err != nil {
		g.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotent response")
	}
}

// Fail сохраняет ответ с ошибкой. Ошибка сохранения только логируется.
func (g *Guard) Fail(ctx context.Context, key string, status int, body []byte) {
	ctx, cancel := detach(ctx)
	defer cancel()
	if err := g.repo.MarkFailed(ctx, key, body, status); err != nil {
		g.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotent failure")
	}
}

func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), completeTimeout)
}
