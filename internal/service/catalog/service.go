// Package catalog — чтение и администрирование каталога книг.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

// Service оборачивает BookRepository валидацией и категоризацией ошибок.
type Service struct {
	books  domain.BookRepository
	logger *log.Entry
}

// NewService создаёт сервис каталога.
func NewService(books domain.BookRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "catalog")
	}
	return &Service{books: books, logger: logger}
}

// List возвращает книги по фильтру, упорядоченные по id.
func (s *Service) List(ctx context.Context, filter domain.BookFilter) ([]domain.Book, error) {
	filter.Genre = strings.TrimSpace(filter.Genre)
	filter.Search = strings.TrimSpace(filter.Search)

	books, err := s.books.List(ctx, filter)
	if err != nil {
		return nil, s.storeFailure("list books", err)
	}
	if books == nil {
		books = []domain.Book{}
	}
	return books, nil
}

// Get возвращает книгу или ErrBookNotFound.
func (s *Service) Get(ctx context.Context, id int64) (domain.Book, error) {
	if id <= 0 {
		return domain.Book{}, domain.ErrBookNotFound
	}
	book, err := s.books.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Book{}, domain.ErrBookNotFound
		}
		return domain.Book{}, s.storeFailure("get book", err)
	}
	return book, nil
}

// Create добавляет книгу и возвращает её с присвоенным id.
func (s *Service) Create(ctx context.Context, book domain.Book) (domain.Book, error) {
	if errs := book.Validate(); len(errs) > 0 {
		return domain.Book{}, domain.InvalidInput(errs...)
	}
	created, err := s.books.Create(ctx, book)
	if err != nil {
		return domain.Book{}, s.storeFailure("create book", err)
	}
	s.logger.WithField("book_id", created.ID).Info("book created")
	return created, nil
}

// Update перезаписывает книгу целиком.
func (s *Service) Update(ctx context.Context, book domain.Book) error {
	if errs := book.Validate(); len(errs) > 0 {
		return domain.InvalidInput(errs...)
	}
	if book.ID <= 0 {
		return domain.ErrBookNotFound
	}
	if err := s.books.Update(ctx, book); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrBookNotFound
		}
		return s.storeFailure("update book", err)
	}
	return nil
}

// Delete удаляет книгу.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return domain.ErrBookNotFound
	}
	if err := s.books.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrBookNotFound
		}
		return s.storeFailure("delete book", err)
	}
	s.logger.WithField("book_id", id).Info("book deleted")
	return nil
}

func (s *Service) storeFailure(op string, err error) error {
	s.logger.WithError(err).Error(op + " failed")
	return fmt.Errorf("%w: %s: %w", domain.ErrStoreFailure, op, err)
}
