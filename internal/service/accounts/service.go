// Package accounts регистрирует пользователей и выдаёт токены при входе.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore/internal/auth"
	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

// TokenIssuer выпускает токен доступа для пользователя.
type TokenIssuer interface {
	Issue(userID int64) (string, error)
}

// Session — результат входа.
type Session struct {
	Token   string
	IsAdmin bool
}

// Service реализует регистрацию и вход.
type Service struct {
	users  domain.UserRepository
	tokens TokenIssuer
	logger *log.Entry
}

// NewService создаёт сервис аккаунтов.
func NewService(users domain.UserRepository, tokens TokenIssuer, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "accounts")
	}
	return &Service{users: users, tokens: tokens, logger: logger}
}

// Register создаёт пользователя и возвращает токен.
func (s *Service) Register(ctx context.Context, username, email, password string) (string, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	var errs []error
	if username == "" {
		errs = append(errs, domain.ErrUsernameRequired)
	}
	if email == "" {
		errs = append(errs, domain.ErrEmailRequired)
	}
	if password == "" {
		errs = append(errs, domain.ErrPasswordRequired)
	}
	if len(errs) > 0 {
		return "", domain.InvalidInput(errs...)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", err
	}

	user, err := s.users.Create(ctx, domain.User{Username: username, Email: email, PasswordHash: hash})
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return "", err
		}
		s.logger.WithError(err).Error("create user failed")
		return "", fmt.Errorf("%w: create user: %w", domain.ErrStoreFailure, err)
	}

	s.logger.WithField("user_id", user.ID).Info("user registered")
	return s.tokens.Issue(user.ID)
}

// Login проверяет пароль и возвращает токен с признаком администратора.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Session{}, domain.ErrUserNotFound
		}
		s.logger.WithError(err).Error("find user failed")
		return Session{}, fmt.Errorf("%w: find user: %w", domain.ErrStoreFailure, err)
	}

	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		return Session{}, err
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, IsAdmin: user.IsAdmin}, nil
}
