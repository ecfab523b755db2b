// Package redis хранит ключи идемпотентности HTTP-запросов в Redis.
// Истечение TTL обеспечивает сам Redis, поэтому DeleteExpired ничего не делает.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

const (
	keyPrefix  = "idempotency:"
	opTimeout  = 2 * time.Second
	defaultTTL = 24 * time.Hour
)

// createScript занимает ключ атомарно: HSET + PEXPIREAT только если ключа ещё нет.
var createScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1],
	'request_hash', ARGV[1],
	'status', ARGV[2],
	'ttl_at', ARGV[3],
	'created_at', ARGV[4],
	'updated_at', ARGV[4])
redis.call('PEXPIREAT', KEYS[1], ARGV[5])
return 1
`)

// markScript обновляет статус существующей записи, не трогая её TTL.
var markScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1],
	'status', ARGV[1],
	'response_body', ARGV[2],
	'http_status', ARGV[3],
	'updated_at', ARGV[4])
return 1
`)

type idempotencyRepository struct {
	client goredis.UniversalClient
}

// NewIdempotencyRepository создаёт Redis-реализацию IdempotencyRepository.
func NewIdempotencyRepository(client goredis.UniversalClient) domain.IdempotencyRepository {
	return &idempotencyRepository{client: client}
}

func (r *idempotencyRepository) CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	requestHash = strings.TrimSpace(requestHash)
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}
	if requestHash == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyRequestHashRequired
	}

	now := time.Now().UTC()
	if ttlAt.IsZero() {
		ttlAt = now.Add(defaultTTL)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	created, err := createScript.Run(ctx, r.client, []string{keyPrefix + key},
		requestHash,
		string(domain.IdempotencyStatusProcessing),
		ttlAt.UnixNano(),
		now.UnixNano(),
		ttlAt.UnixMilli(),
	).Int()
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("create idempotency record: %w", err)
	}

	if created == 0 {
		existing, getErr := r.Get(ctx, key)
		if getErr != nil {
			return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyAlreadyExists
		}
		if existing.RequestHash != requestHash {
			return existing, domain.ErrIdempotencyHashMismatch
		}
		return existing, domain.ErrIdempotencyKeyAlreadyExists
	}

	return domain.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Status:      domain.IdempotencyStatusProcessing,
		TTLAt:       ttlAt.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (r *idempotencyRepository) Get(ctx context.Context, key string) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	fields, err := r.client.HGetAll(ctx, keyPrefix+key).Result()
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("get idempotency record: %w", err)
	}
	if len(fields) == 0 {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
	}

	record := domain.IdempotencyRecord{
		Key:          key,
		RequestHash:  fields["request_hash"],
		Status:       domain.IdempotencyStatus(fields["status"]),
		ResponseBody: []byte(fields["response_body"]),
		TTLAt:        unixNano(fields["ttl_at"]),
		CreatedAt:    unixNano(fields["created_at"]),
		UpdatedAt:    unixNano(fields["updated_at"]),
	}
	if !record.Status.Valid() {
		return domain.IdempotencyRecord{}, fmt.Errorf("invalid idempotency status %q for key %s", record.Status, key)
	}
	if raw := fields["http_status"]; raw != "" {
		if record.HTTPStatus, err = strconv.Atoi(raw); err != nil {
			return domain.IdempotencyRecord{}, fmt.Errorf("parse http status for key %s: %w", key, err)
		}
	}
	if len(record.ResponseBody) == 0 {
		record.ResponseBody = nil
	}

	return record, nil
}

func (r *idempotencyRepository) MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error {
	return r.markStatus(ctx, key, domain.IdempotencyStatusDone, responseBody, httpStatus)
}

func (r *idempotencyRepository) MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error {
	return r.markStatus(ctx, key, domain.IdempotencyStatusFailed, responseBody, httpStatus)
}

// DeleteExpired — no-op: записи удаляются Redis по PEXPIREAT.
func (r *idempotencyRepository) DeleteExpired(context.Context, time.Time, int) (int, error) {
	return 0, nil
}

func (r *idempotencyRepository) markStatus(ctx context.Context, key string, status domain.IdempotencyStatus, responseBody []byte, httpStatus int) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrIdempotencyKeyRequired
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	updated, err := markScript.Run(ctx, r.client, []string{keyPrefix + key},
		string(status),
		responseBody,
		httpStatus,
		time.Now().UTC().UnixNano(),
	).Int()
	if err != nil {
		return fmt.Errorf("mark idempotency key status: %w", err)
	}
	if updated == 0 {
		return domain.ErrIdempotencyKeyNotFound
	}
	return nil
}

func unixNano(raw string) time.Time {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

var _ domain.IdempotencyRepository = (*idempotencyRepository)(nil)
