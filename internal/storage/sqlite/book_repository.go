package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

const bookColumns = `id, title, author, price, genre, description, stock`

type bookRepository struct {
	db *sql.DB
}

// NewBookRepository создаёт SQLite-реализацию BookRepository.
func NewBookRepository(store *Store) domain.BookRepository {
	return &bookRepository{db: store.DB()}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (domain.Book, error) {
	var book domain.Book
	err := row.Scan(&book.ID, &book.Title, &book.Author, &book.Price, &book.Genre, &book.Description, &book.Stock)
	return book, err
}

func (r *bookRepository) List(ctx context.Context, filter domain.BookFilter) ([]domain.Book, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+bookColumns+`
		FROM books
		WHERE (?1 = '' OR genre = ?1)
		  AND (?2 = '' OR title LIKE '%' || ?2 || '%' OR author LIKE '%' || ?2 || '%')
		ORDER BY id
	`, filter.Genre, filter.Search)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	books := make([]domain.Book, 0)
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
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

	book, err := scanBook(r.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id))
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
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`, book.Title, book.Author, book.Price.String(), book.Genre, book.Description, book.Stock).Scan(&book.ID); err != nil {
		return domain.Book{}, fmt.Errorf("insert book: %w", err)
	}
	return book, nil
}

func (r *bookRepository) Update(ctx context.Context, book domain.Book) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE books
		SET title = ?, author = ?, price = ?, genre = ?, description = ?, stock = ?
		WHERE id = ?
	`, book.Title, book.Author, book.Price.String(), book.Genre, book.Description, book.Stock, book.ID)
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	return requireAffected(res, domain.ErrBookNotFound)
}

func (r *bookRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	return requireAffected(res, domain.ErrBookNotFound)
}

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
