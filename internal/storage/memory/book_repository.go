package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

type bookRepositoryInMemory struct {
	mu     sync.RWMutex
	nextID int64
	books  map[int64]domain.Book
}

// NewBookRepository создаёт in-memory каталог. seed загружается с присвоением ID.
func NewBookRepository(seed ...domain.Book) domain.BookRepository {
	r := &bookRepositoryInMemory{books: make(map[int64]domain.Book)}
	for _, book := range seed {
		r.nextID++
		book.ID = r.nextID
		r.books[book.ID] = book
	}
	return r
}

func (r *bookRepositoryInMemory) List(_ context.Context, filter domain.BookFilter) ([]domain.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Book, 0, len(r.books))
	for _, book := range r.books {
		if filter.Matches(book) {
			result = append(result, book)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *bookRepositoryInMemory) Get(_ context.Context, id int64) (domain.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	book, ok := r.books[id]
	if !ok {
		return domain.Book{}, domain.ErrBookNotFound
	}
	return book, nil
}

func (r *bookRepositoryInMemory) Create(_ context.Context, book domain.Book) (domain.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	book.ID = r.nextID
	r.books[book.ID] = book
	return book, nil
}

func (r *bookRepositoryInMemory) Update(_ context.Context, book domain.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.books[book.ID]; !ok {
		return domain.ErrBookNotFound
	}
	r.books[book.ID] = book
	return nil
}

func (r *bookRepositoryInMemory) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.books[id]; !ok {
		return domain.ErrBookNotFound
	}
	delete(r.books, id)
	return nil
}

var _ domain.BookRepository = (*bookRepositoryInMemory)(nil)
