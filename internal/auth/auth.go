// Package auth выпускает и проверяет токены доступа и хеширует пароли.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

var (
	// ErrMissingCredentials — запрос пришёл без токена.
	ErrMissingCredentials = fmt.Errorf("missing credentials: %w", domain.ErrUnauthenticated)
	// ErrInvalidToken — токен не прошёл проверку подписи или истёк.
	ErrInvalidToken = fmt.Errorf("invalid token: %w", domain.ErrUnauthenticated)
	// ErrSecretRequired — не задан ключ подписи.
	ErrSecretRequired = errors.New("jwt secret is required")
)

// DefaultTokenTTL — время жизни токена по умолчанию.
const DefaultTokenTTL = 24 * time.Hour

// Identity — аутентифицированный пользователь запроса.
type Identity struct {
	UserID int64
}

type claims struct {
	ID int64 `json:"id"`
	jwt.RegisteredClaims
}

// Provider выпускает HS256-токены с claim id и проверяет их.
type Provider struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// ProviderOption настраивает Provider.
type ProviderOption func(*Provider)

// WithTokenTTL задаёт время жизни выпускаемых токенов.
func WithTokenTTL(ttl time.Duration) ProviderOption {
	return func(p *Provider) {
		if ttl > 0 {
			p.ttl = ttl
		}
	}
}

// WithProviderClock подменяет источник времени (используется в тестах).
func WithProviderClock(now func() time.Time) ProviderOption {
	return func(p *Provider) {
		if now != nil {
			p.now = now
		}
	}
}

// NewProvider создаёт Provider; пустой secret недопустим.
func NewProvider(secret string, opts ...ProviderOption) (*Provider, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrSecretRequired
	}
	p := &Provider{
		secret: []byte(secret),
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Issue выпускает токен для пользователя.
func (p *Provider) Issue(userID int64) (string, error) {
	now := p.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		ID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
	})
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Authenticate проверяет токен и возвращает Identity.
// Пустой токен: ErrMissingCredentials, любой другой отказ: ErrInvalidToken.
func (p *Provider) Authenticate(_ context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrMissingCredentials
	}

	var parsed claims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if parsed.ID <= 0 {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: parsed.ID}, nil
}

// BearerToken извлекает токен из заголовка "Bearer <token>".
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireAdmin проверяет флаг администратора; любая ошибка поиска: ErrForbidden.
func RequireAdmin(ctx context.Context, users domain.UserRepository, id Identity) error {
	user, err := users.GetByID(ctx, id.UserID)
	if err != nil || !user.IsAdmin {
		return domain.ErrForbidden
	}
	return nil
}

// HashPassword хеширует пароль bcrypt с cost по умолчанию.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword сравнивает пароль с хешем; несовпадение: domain.ErrInvalidPassword.
func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return domain.ErrInvalidPassword
	}
	return nil
}

type identityKey struct{}

// WithIdentity кладёт Identity в контекст запроса.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom достаёт Identity из контекста.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
