package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

type bookRepository struct {
	db *sql.DB
}

// NewBookRepository создаёт PostgreSQL-реализацию BookRepository.
func NewBookRepository(store *Store) domain.BookRepository {
	return &bookRepository{db: store.DB()}
}

func (r *bookRepository) List(ctx context.Context, filter domain.BookFilter) ([]domain.Book, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, author, price, genre, description, stock
		FROM books
		WHERE ($1 = '' OR genre = $1)
		  AND ($2 = '' OR title ILIKE '%' || $2 || '%' OR author ILIKE '%' || $2 || '%')
		ORDER BY id
	`, filter.Genre, filter.Search)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	books := make([]domain.Book, 0)
	for rows.Next() {
		var book domain.Book
		if err := rows.Scan(&book.ID, &book.Title, &book.Author, &book.Price, &book.Genre, &book.Description, &book.Stock); err != nil {
			return nil, fmt.Errorf("scan book row: %w", err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate book rows: %w", err)
	}

	return books, nil
}

func (r *bookRepository) Get(ctx context.Context, id int64) (domain.Book, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var book domain.Book
	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, author, price, genre, description, stock
		FROM books
		WHERE id = $1
	`, id).Scan(&book.ID, &book.Title, &book.Author, &book.Price, &book.Genre, &book.Description, &book.Stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Book{}, domain.ErrBookNotFound
		}
		return domain.Book{}, fmt.Errorf("select book: %w", err)
	}
	return book, nil
}

func (r *bookRepository) Create(ctx context.Context, book domain.Book) (domain.Book, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := r.db.QueryRowContext(ctx, `
		INSERT INTO books (title, author, price, genre, description, stock)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id
	`, book.Title, book.Author, book.Price, book.Genre, book.Description, book.Stock).Scan(&book.ID); err != nil {
		return domain.Book{}, fmt.Errorf("insert book: %w", err)
	}
	return book, nil
}

func (r *bookRepository) Update(ctx context.Context, book domain.Book) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE books
		SET title = $1,
		    author = $2,
		    price = $3,
		    genre = $4,
		    description = $5,
		    stock = $6
		WHERE id = $7
	`, book.Title, book.Author, book.Price, book.Genre, book.Description, book.Stock, book.ID)
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	return requireAffected(res, domain.ErrBookNotFound)
}

func (r *bookRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	return requireAffected(res, domain.ErrBookNotFound)
}

// requireAffected возвращает notFound, если запрос не затронул ни одной строки.
func requireAffected(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

var _ domain.BookRepository = (*bookRepository)(nil)
