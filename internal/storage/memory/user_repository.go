package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

type userRepositoryInMemory struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]domain.User
}

// NewUserRepository создаёт in-memory хранилище пользователей.
func NewUserRepository() domain.UserRepository {
	return &userRepositoryInMemory{users: make(map[int64]domain.User)}
}

// Create сохраняет пользователя; username и email уникальны без учёта регистра.
func (r *userRepositoryInMemory) Create(_ context.Context, user domain.User) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if strings.EqualFold(existing.Username, user.Username) || strings.EqualFold(existing.Email, user.Email) {
			return domain.User{}, domain.ErrUserExists
		}
	}

	r.nextID++
	user.ID = r.nextID
	r.users[user.ID] = user
	return user, nil
}

func (r *userRepositoryInMemory) GetByEmail(_ context.Context, email string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound
}

func (r *userRepositoryInMemory) GetByID(_ context.Context, id int64) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

var _ domain.UserRepository = (*userRepositoryInMemory)(nil)
