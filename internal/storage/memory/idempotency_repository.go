package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

// Срок хранения ключа, если вызывающий не передал ttlAt.
const defaultIdempotencyTTL = 24 * time.Hour

// IdempotencyOption настраивает in-memory хранилище ключей идемпотентности.
type IdempotencyOption func(*idempotencyKeysInMemory)

// WithIdempotencyClock подменяет источник времени (используется в тестах).
func WithIdempotencyClock(now func() time.Time) IdempotencyOption {
	return func(r *idempotencyKeysInMemory) {
		if now != nil {
			r.now = now
		}
	}
}

// idempotencyKeysInMemory хранит ключи вида user:<id>:<key> и grpc:<id>:<key>
// как непрозрачные строки: пространства имён разводит Guard.
type idempotencyKeysInMemory struct {
	mu   sync.Mutex
	keys map[string]domain.IdempotencyRecord
	now  func() time.Time
}

// NewIdempotencyRepository создаёт in-memory реализацию IdempotencyRepository.
func NewIdempotencyRepository(opts ...IdempotencyOption) domain.IdempotencyRepository {
	r := &idempotencyKeysInMemory{
		keys: make(map[string]domain.IdempotencyRecord),
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateProcessing занимает ключ. Просроченную запись можно занять заново с любым хэшем.
func (r *idempotencyKeysInMemory) CreateProcessing(_ context.Context, key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	key, err := normalizeIdempotencyKey(key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}
	requestHash = strings.TrimSpace(requestHash)
	if requestHash == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyRequestHashRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if ttlAt.IsZero() {
		ttlAt = now.Add(defaultIdempotencyTTL)
	}

	if held, ok := r.keys[key]; ok && held.TTLAt.After(now) {
		err := domain.ErrIdempotencyKeyAlreadyExists
		if held.RequestHash != requestHash {
			err = domain.ErrIdempotencyHashMismatch
		}
		return copyIdempotencyRecord(held), err
	}

	claimed := domain.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Status:      domain.IdempotencyStatusProcessing,
		TTLAt:       ttlAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.keys[key] = claimed
	return copyIdempotencyRecord(claimed), nil
}

func (r *idempotencyKeysInMemory) Get(_ context.Context, key string) (domain.IdempotencyRecord, error) {
	key, err := normalizeIdempotencyKey(key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.keys[key]
	if !ok {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
	}
	return copyIdempotencyRecord(rec), nil
}

func (r *idempotencyKeysInMemory) MarkDone(_ context.Context, key string, responseBody []byte, httpStatus int) error {
	return r.finish(key, domain.IdempotencyStatusDone, responseBody, httpStatus)
}

func (r *idempotencyKeysInMemory) MarkFailed(_ context.Context, key string, responseBody []byte, httpStatus int) error {
	return r.finish(key, domain.IdempotencyStatusFailed, responseBody, httpStatus)
}

// DeleteExpired удаляет ключи с TTLAt <= before, начиная с самых старых.
func (r *idempotencyKeysInMemory) DeleteExpired(_ context.Context, before time.Time, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if before.IsZero() {
		before = r.now()
	}

	expired := make([]domain.IdempotencyRecord, 0)
	for _, rec := range r.keys {
		if !rec.TTLAt.After(before) {
			expired = append(expired, rec)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].TTLAt.Before(expired[j].TTLAt)
	})
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}

	for _, rec := range expired {
		delete(r.keys, rec.Key)
	}
	return len(expired), nil
}

// finish фиксирует итог запроса; TTL и хэш запроса не меняются.
func (r *idempotencyKeysInMemory) finish(key string, status domain.IdempotencyStatus, responseBody []byte, httpStatus int) error {
	key, err := normalizeIdempotencyKey(key)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.keys[key]
	if !ok {
		return domain.ErrIdempotencyKeyNotFound
	}
	rec.Status = status
	rec.HTTPStatus = httpStatus
	rec.ResponseBody = append([]byte(nil), responseBody...)
	rec.UpdatedAt = r.now()
	r.keys[key] = rec
	return nil
}

func normalizeIdempotencyKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", domain.ErrIdempotencyKeyRequired
	}
	return key, nil
}

func copyIdempotencyRecord(rec domain.IdempotencyRecord) domain.IdempotencyRecord {
	rec.ResponseBody = append([]byte(nil), rec.ResponseBody...)
	return rec
}

var _ domain.IdempotencyRepository = (*idempotencyKeysInMemory)(nil)
